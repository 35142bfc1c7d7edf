// Simulation ties together the agent populations and the market and runs them
// one round at a time.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/config"
	"github.com/talgya/micro-market/internal/economy"
	"github.com/talgya/micro-market/internal/entropy"
	"github.com/talgya/micro-market/internal/ledger"
)

var (
	ErrUnbalancedJournal = errors.New("journal transfers do not balance")
	ErrNegativeHolding   = errors.New("negative holding")
)

// Simulation holds the complete model state.
type Simulation struct {
	Model      config.Model
	Households []*agents.Household
	Firms      []*agents.Firm
	Market     *economy.Market
	Journal    *ledger.Journal
	Rand       entropy.Source
	Policy     economy.CapitalPolicy

	// Household selection policies for the two markets.
	LaborPolicy economy.Selector
	BreadPolicy economy.Selector

	Round int          // most recently completed round
	Stats []RoundStats // one entry per completed round
}

// RoundStats summarizes one completed round.
type RoundStats struct {
	Round int `json:"round"`

	AvgMoney   float64 `json:"avg_money"`   // household average
	AvgUtility float64 `json:"avg_utility"` // household average
	AvgBread   float64 `json:"avg_bread"`   // household average
	TotalMoney float64 `json:"total_money"` // households and firms
	TotalBread float64 `json:"total_bread"` // households and firms

	Hired     float64 `json:"hired"`
	Output    float64 `json:"output"`
	BreadSold float64 `json:"bread_sold"`
	Trades    int     `json:"trades"`

	ProfitPool      float64 `json:"profit_pool"`
	Dividend        float64 `json:"dividend"`
	DividendSkipped bool    `json:"dividend_skipped"`
}

// NewSimulation spawns both populations from m. Every random choice the model
// makes is drawn from src.
func NewSimulation(m config.Model, src entropy.Source) (*Simulation, error) {
	policy, err := economy.ParseCapitalPolicy(m.CapitalPolicy)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("new simulation: nil random source")
	}

	journal := ledger.NewJournal()
	spawner := agents.NewSpawner(journal)
	endow := agents.Endowment{
		HouseholdMoney: m.HouseholdMoney,
		HouseholdLabor: m.HouseholdLabor,
		FirmMoney:      m.FirmMoney,
	}

	households, err := spawner.SpawnHouseholds(m.Households, m.Firms, endow)
	if err != nil {
		return nil, fmt.Errorf("spawn households: %w", err)
	}
	firms, err := spawner.SpawnFirms(m.Firms, endow, agents.Technology{Capital: m.Capital, Alpha: m.Alpha})
	if err != nil {
		return nil, fmt.Errorf("spawn firms: %w", err)
	}

	return &Simulation{
		Model:       m,
		Households:  households,
		Firms:       firms,
		Market:      economy.NewMarket(),
		Journal:     journal,
		Rand:        src,
		Policy:      policy,
		LaborPolicy: economy.HighestPrice,
		BreadPolicy: economy.LowestPrice,
	}, nil
}

// RunRound advances the model by one round. The phases always run in the same
// order: labor market, production, goods market, settlement, observation.
// A failed action by a single agent is logged and skipped; only a broken
// ledger invariant aborts the round.
func (s *Simulation) RunRound() (RoundStats, error) {
	s.openRound()

	s.hireLabor()
	output := s.produce()
	s.sellBread()

	settlement, err := economy.Settle(s.Market.Round(), s.Firms, s.Households, s.Model.Wage, s.Policy)
	if err != nil {
		return RoundStats{}, fmt.Errorf("round %d settle: %w", s.Market.Round(), err)
	}
	if settlement.Skipped {
		slog.Debug("dividend skipped, no households", "round", s.Market.Round(), "pool", settlement.Pool)
	}

	for _, h := range s.Households {
		h.Record()
	}

	s.Round = s.Market.Round()
	st := s.updateStats(output, settlement)
	s.Market.Clear()
	if err := s.audit(); err != nil {
		return st, fmt.Errorf("round %d: %w", s.Round, err)
	}
	return st, nil
}

// audit checks that every transfer so far nets to zero and that no agent
// holds a negative quantity of anything.
func (s *Simulation) audit() error {
	if !s.Journal.Balanced() {
		return ErrUnbalancedJournal
	}
	check := func(a *agents.Agent) error {
		for good, qty := range a.Ledger.Snapshot() {
			if qty < 0 {
				return fmt.Errorf("%s %s %.6g: %w", a.ID, good, qty, ErrNegativeHolding)
			}
		}
		return nil
	}
	for _, h := range s.Households {
		if err := check(&h.Agent); err != nil {
			return err
		}
	}
	for _, f := range s.Firms {
		if err := check(&f.Agent); err != nil {
			return err
		}
	}
	return nil
}

// openRound starts a new round on the market and the journal, snapshots each
// firm's money and tops household labor back up when refresh is enabled.
func (s *Simulation) openRound() {
	round := s.Round + 1
	s.Journal.SetRound(round)
	s.Market.BeginRound(round)

	for _, f := range s.Firms {
		f.OpenRound()
	}

	if !s.Model.RefreshLabor {
		return
	}
	for _, h := range s.Households {
		held := h.Ledger.Possession(agents.GoodLabor)
		if gap := h.LaborEndowment - held; gap > ledger.Epsilon {
			if err := h.Ledger.Create(agents.GoodLabor, gap); err != nil {
				slog.Debug("labor refresh failed", "agent", h.ID, "error", err)
			}
		}
	}
}

func (s *Simulation) updateStats(output float64, settlement economy.Settlement) RoundStats {
	st := RoundStats{
		Round:           s.Round,
		Output:          output,
		Hired:           s.Market.Volume(agents.GoodLabor),
		BreadSold:       s.Market.Volume(agents.GoodBread),
		Trades:          len(s.Market.Trades()),
		ProfitPool:      settlement.Pool,
		Dividend:        settlement.Dividend,
		DividendSkipped: settlement.Skipped,
	}

	var sumMoney, sumUtility, sumBread float64
	for _, h := range s.Households {
		sumMoney += h.Money()
		sumUtility += h.Utility()
		sumBread += h.Ledger.Possession(agents.GoodBread)
	}
	if n := float64(len(s.Households)); n > 0 {
		st.AvgMoney = sumMoney / n
		st.AvgUtility = sumUtility / n
		st.AvgBread = sumBread / n
	}

	st.TotalMoney, st.TotalBread = sumMoney, sumBread
	for _, f := range s.Firms {
		st.TotalMoney += f.Money()
		st.TotalBread += f.Ledger.Possession(agents.GoodBread)
	}

	s.Stats = append(s.Stats, st)
	return st
}

// AverageMoneySeries returns the population-averaged household money after
// each completed round, read from the household logs.
func (s *Simulation) AverageMoneySeries() []float64 {
	return s.averageSeries(func(h *agents.Household) []float64 { return h.Log.Money })
}

// AverageUtilitySeries returns the population-averaged household utility after
// each completed round.
func (s *Simulation) AverageUtilitySeries() []float64 {
	return s.averageSeries(func(h *agents.Household) []float64 { return h.Log.Utility })
}

func (s *Simulation) averageSeries(series func(*agents.Household) []float64) []float64 {
	out := make([]float64, s.Round)
	if len(s.Households) == 0 {
		return out
	}
	for _, h := range s.Households {
		for i, v := range series(h) {
			if i < len(out) {
				out[i] += v
			}
		}
	}
	n := float64(len(s.Households))
	for i := range out {
		out[i] /= n
	}
	return out
}

// firm returns the firm with the given id, or nil.
func (s *Simulation) firm(id agents.AgentID) *agents.Firm {
	if id.Kind != agents.KindFirm || id.Index < 0 || id.Index >= len(s.Firms) {
		return nil
	}
	return s.Firms[id.Index]
}

// randomHousehold picks a household uniformly at random. It returns false
// without drawing when there are no households.
func (s *Simulation) randomHousehold() (agents.AgentID, bool) {
	if len(s.Households) == 0 {
		return agents.AgentID{}, false
	}
	return s.Households[s.Rand.Intn(len(s.Households))].ID, true
}
