// Package agents provides the household and firm data model for the market simulation.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/micro-market/internal/ledger"
)

// Kind distinguishes the two agent populations.
type Kind uint8

const (
	KindHousehold Kind = iota
	KindFirm
)

func (k Kind) String() string {
	switch k {
	case KindHousehold:
		return "household"
	case KindFirm:
		return "firm"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// AgentID identifies an agent by population and index within it.
type AgentID struct {
	Kind  Kind `json:"kind"`
	Index int  `json:"index"`
}

func (id AgentID) String() string {
	return fmt.Sprintf("%s-%d", id.Kind, id.Index)
}

// Goods traded in the model.
const (
	GoodMoney = "money"
	GoodLabor = "labor"
	GoodBread = "bread"
)

// Agent is the state shared by every agent: identity and holdings.
type Agent struct {
	ID     AgentID
	Ledger *ledger.Ledger
}

// Money returns the agent's money holding.
func (a *Agent) Money() float64 {
	return a.Ledger.Possession(GoodMoney)
}

// Household supplies labor and buys bread.
type Household struct {
	Agent

	OwnershipShare float64 // 1/num_firms, constant
	LaborEndowment float64 // labor held at the start of each round when refresh is on

	Log HouseholdLog
}

// HouseholdLog is the per-round observation series of a household.
type HouseholdLog struct {
	Money   []float64 `json:"money"`
	Bread   []float64 `json:"bread"`
	Utility []float64 `json:"utility"`
}

// Utility is ln(1 + bread).
func Utility(bread float64) float64 {
	return math.Log1p(bread)
}

// Utility returns the household's utility from its current bread holding.
func (h *Household) Utility() float64 {
	return Utility(h.Ledger.Possession(GoodBread))
}

// Record appends the post-round observation to the household's log.
func (h *Household) Record() {
	bread := h.Ledger.Possession(GoodBread)
	h.Log.Money = append(h.Log.Money, h.Money())
	h.Log.Bread = append(h.Log.Bread, bread)
	h.Log.Utility = append(h.Log.Utility, Utility(bread))
}

// Firm hires labor, produces bread and sells it.
type Firm struct {
	Agent

	Capital       float64 // fixed capital stock K
	Alpha         float64 // output elasticity of capital
	StartingMoney float64 // money restored each round under the reset-to-capital policy

	// Per-round bookkeeping, reset when a round opens.
	MoneyAtRoundStart float64
	LaborHired        float64

	Log FirmLog
}

// FirmLog is the per-round series of a firm.
type FirmLog struct {
	Wage       []float64 `json:"wage"`
	Price      []float64 `json:"price"`
	Production []float64 `json:"production"`
	Profit     []float64 `json:"profit"`
}

// OpenRound captures the firm's round-start money and clears the hiring count.
func (f *Firm) OpenRound() {
	f.MoneyAtRoundStart = f.Money()
	f.LaborHired = 0
}
