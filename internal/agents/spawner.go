// Agent spawning: builds both populations once, in index order, with their
// initial endowments.
package agents

import (
	"fmt"

	"github.com/talgya/micro-market/internal/ledger"
)

// Endowment holds the starting holdings for each population.
type Endowment struct {
	HouseholdMoney float64
	HouseholdLabor float64
	FirmMoney      float64
}

// Technology is the production setup every firm starts with.
type Technology struct {
	Capital float64
	Alpha   float64
}

// Spawner creates agents whose ledgers share one journal.
type Spawner struct {
	journal *ledger.Journal
}

// NewSpawner creates a spawner recording endowments to j (which may be nil).
func NewSpawner(j *ledger.Journal) *Spawner {
	return &Spawner{journal: j}
}

// SpawnHouseholds creates n households. numFirms sets each household's ownership share.
func (s *Spawner) SpawnHouseholds(n, numFirms int, e Endowment) ([]*Household, error) {
	share := 0.0
	if numFirms > 0 {
		share = 1.0 / float64(numFirms)
	}

	households := make([]*Household, 0, n)
	for i := 0; i < n; i++ {
		id := AgentID{Kind: KindHousehold, Index: i}
		h := &Household{
			Agent:          Agent{ID: id, Ledger: ledger.New(id.String(), s.journal)},
			OwnershipShare: share,
			LaborEndowment: e.HouseholdLabor,
		}
		if err := endow(h.Ledger, map[string]float64{
			GoodLabor: e.HouseholdLabor,
			GoodMoney: e.HouseholdMoney,
			GoodBread: 0,
		}); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", id, err)
		}
		households = append(households, h)
	}
	return households, nil
}

// SpawnFirms creates n firms.
func (s *Spawner) SpawnFirms(n int, e Endowment, tech Technology) ([]*Firm, error) {
	firms := make([]*Firm, 0, n)
	for i := 0; i < n; i++ {
		id := AgentID{Kind: KindFirm, Index: i}
		f := &Firm{
			Agent:         Agent{ID: id, Ledger: ledger.New(id.String(), s.journal)},
			Capital:       tech.Capital,
			Alpha:         tech.Alpha,
			StartingMoney: e.FirmMoney,
		}
		if err := endow(f.Ledger, map[string]float64{
			GoodBread: 0,
			GoodMoney: e.FirmMoney,
		}); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", id, err)
		}
		f.OpenRound()
		firms = append(firms, f)
	}
	return firms, nil
}

func endow(l *ledger.Ledger, holdings map[string]float64) error {
	for _, good := range []string{GoodLabor, GoodMoney, GoodBread} {
		qty, ok := holdings[good]
		if !ok {
			continue
		}
		if err := l.Create(good, qty); err != nil {
			return err
		}
	}
	return nil
}
