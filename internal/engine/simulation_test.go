package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/config"
	"github.com/talgya/micro-market/internal/entropy"
	"github.com/talgya/micro-market/internal/ledger"
)

// scripted replays a fixed list of draws so tests can steer random targeting.
type scripted struct {
	ints []int
	n    int
}

func (s *scripted) Intn(n int) int {
	v := s.ints[s.n%len(s.ints)] % n
	s.n++
	return v
}

func scenarioModel() config.Model {
	return config.Model{
		Households:       2,
		Firms:            1,
		Wage:             10,
		BreadPrice:       12,
		LaborPerHire:     1,
		BreadPerPurchase: 1,
		Capital:          1,
		Alpha:            0.5,
		FirmMoney:        100,
		HouseholdMoney:   10,
		HouseholdLabor:   1,
		RefreshLabor:     false,
		CapitalPolicy:    "reset-to-capital",
	}
}

func newSim(t *testing.T, m config.Model, src entropy.Source) *Simulation {
	t.Helper()
	sim, err := NewSimulation(m, src)
	require.NoError(t, err)
	return sim
}

func TestScenarioBreadGoesToHiredHousehold(t *testing.T) {
	// Both offers target household 0, the only one who can pay 12 after earning the wage.
	sim := newSim(t, scenarioModel(), &scripted{ints: []int{0, 0}})

	st, err := sim.RunRound()
	require.NoError(t, err)

	h0, h1, f := sim.Households[0], sim.Households[1], sim.Firms[0]
	assert.Equal(t, 8.0, h0.Money(), "10 + 10 wage - 12 bread")
	assert.Equal(t, 1.0, h0.Ledger.Possession(agents.GoodBread))
	assert.Zero(t, h0.Ledger.Possession(agents.GoodLabor))
	assert.Equal(t, 10.0, h1.Money())

	assert.Equal(t, []float64{10}, f.Log.Wage)
	assert.Equal(t, []float64{12}, f.Log.Price)
	assert.Equal(t, []float64{1}, f.Log.Production)
	assert.Equal(t, []float64{-8}, f.Log.Profit, "revenue 2 less wage bill 10")
	assert.Equal(t, 100.0, f.Money(), "money reset to starting capital")
	assert.Zero(t, f.Ledger.Possession(agents.GoodBread))

	assert.Equal(t, 1, st.Round)
	assert.Equal(t, 1.0, st.Hired)
	assert.Equal(t, 1.0, st.BreadSold)
	assert.Equal(t, 2, st.Trades)
	assert.Zero(t, st.ProfitPool)
	assert.Zero(t, st.Dividend)
	assert.Equal(t, 9.0, st.AvgMoney)
	assert.InDelta(t, math.Log(2)/2, st.AvgUtility, 1e-12)
	assert.Equal(t, 118.0, st.TotalMoney)

	assert.Equal(t, []float64{8}, h0.Log.Money)
	assert.Equal(t, []float64{1}, h0.Log.Bread)
	assert.InDelta(t, math.Log(2), h0.Log.Utility[0], 1e-12)
	assert.True(t, sim.Journal.Balanced())
}

func TestScenarioBreadOfferedToHouseholdThatCannotPay(t *testing.T) {
	sim := newSim(t, scenarioModel(), &scripted{ints: []int{0, 1}})

	st, err := sim.RunRound()
	require.NoError(t, err)

	h0, h1, f := sim.Households[0], sim.Households[1], sim.Firms[0]
	assert.Equal(t, 20.0, h0.Money())
	assert.Equal(t, 10.0, h1.Money())
	assert.Zero(t, h1.Ledger.Possession(agents.GoodBread))

	assert.Equal(t, 1.0, f.Ledger.Possession(agents.GoodBread), "unsold bread stays in stock")
	assert.Equal(t, []float64{-20}, f.Log.Profit)
	assert.Equal(t, 100.0, f.Money())

	assert.Equal(t, 1, st.Trades)
	assert.Zero(t, st.BreadSold)
	assert.Zero(t, st.Dividend)
	assert.Zero(t, sim.Market.Open(), "offers do not survive the round")
}

func TestScenarioPositiveProfitIsSplit(t *testing.T) {
	m := scenarioModel()
	m.Wage = 1
	m.BreadPrice = 5
	sim := newSim(t, m, &scripted{ints: []int{0, 0}})

	st, err := sim.RunRound()
	require.NoError(t, err)

	assert.Equal(t, []float64{3}, sim.Firms[0].Log.Profit, "revenue 4 less wage bill 1")
	assert.Equal(t, 3.0, st.ProfitPool)
	assert.Equal(t, 1.5, st.Dividend)
	assert.InDelta(t, 7.5, sim.Households[0].Money(), 1e-12)
	assert.InDelta(t, 11.5, sim.Households[1].Money(), 1e-12)
	assert.Equal(t, 100.0, sim.Firms[0].Money())
}

func TestCarryForwardConservesMoney(t *testing.T) {
	m := scenarioModel()
	m.Households = 1
	m.HouseholdMoney = 100
	m.BreadPrice = 30
	m.CapitalPolicy = "carry-forward"
	m.RefreshLabor = true
	sim := newSim(t, m, &scripted{ints: []int{0}})

	h, f := sim.Households[0], sim.Firms[0]
	before := h.Money() + f.Money()

	st, err := sim.RunRound()
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, f.Log.Profit, "revenue 20 less wage bill 10")
	assert.Equal(t, 10.0, st.Dividend)
	assert.Equal(t, 110.0, f.Money(), "dividend is paid out of retained money")
	assert.Equal(t, 90.0, h.Money())
	assert.Equal(t, before, st.TotalMoney)

	for r := 0; r < 3; r++ {
		st, err = sim.RunRound()
		require.NoError(t, err)
		assert.InDelta(t, before, st.TotalMoney, 1e-9, "round %d", st.Round)
	}
	assert.True(t, sim.Journal.Net(ledger.EntryBurn)[agents.GoodMoney].IsZero(), "carry-forward never destroys money")
	assert.True(t, sim.Journal.Balanced())
}

func TestCarryForwardKeepsFirmMoney(t *testing.T) {
	m := scenarioModel()
	m.CapitalPolicy = "carry-forward"
	sim := newSim(t, m, &scripted{ints: []int{0, 0}})

	_, err := sim.RunRound()
	require.NoError(t, err)
	assert.Equal(t, 102.0, sim.Firms[0].Money())
}

func TestLaborRefresh(t *testing.T) {
	for _, refresh := range []bool{true, false} {
		m := scenarioModel()
		m.RefreshLabor = refresh
		sim := newSim(t, m, &scripted{ints: []int{0}})

		_, err := sim.RunRound()
		require.NoError(t, err)
		st, err := sim.RunRound()
		require.NoError(t, err)

		if refresh {
			assert.Equal(t, 1.0, st.Hired, "labor is a per-round flow")
		} else {
			assert.Zero(t, st.Hired, "one-shot labor is spent in round 1")
			assert.Equal(t, []float64{1, 0}, sim.Firms[0].Log.Production)
		}
	}
}

func TestRunsAreReproducible(t *testing.T) {
	m := config.Default().Model
	m.Households, m.Firms = 12, 4

	run := func() *Simulation {
		sim := newSim(t, m, entropy.NewSeeded(7))
		require.NoError(t, NewEngine(sim).Run(context.Background(), 15))
		return sim
	}
	a, b := run(), run()

	for i := range a.Households {
		assert.Equal(t, a.Households[i].Log, b.Households[i].Log)
	}
	for i := range a.Firms {
		assert.Equal(t, a.Firms[i].Log, b.Firms[i].Log)
	}
	assert.Equal(t, a.Stats, b.Stats)
}

func TestHoldingsStayNonNegative(t *testing.T) {
	m := config.Default().Model
	m.Households, m.Firms = 20, 5
	m.HouseholdMoney = 3
	m.RefreshLabor = true
	sim := newSim(t, m, entropy.NewSeeded(11))

	for r := 0; r < 30; r++ {
		_, err := sim.RunRound()
		require.NoError(t, err)

		for _, h := range sim.Households {
			for good, qty := range h.Ledger.Snapshot() {
				assert.GreaterOrEqual(t, qty, 0.0, "%s %s", h.ID, good)
			}
		}
		for _, f := range sim.Firms {
			for good, qty := range f.Ledger.Snapshot() {
				assert.GreaterOrEqual(t, qty, 0.0, "%s %s", f.ID, good)
			}
		}
	}
	assert.True(t, sim.Journal.Balanced())
}

func TestDividendsMatchFlooredProfits(t *testing.T) {
	m := config.Default().Model
	m.Households, m.Firms = 6, 3
	m.Wage, m.BreadPrice = 1, 4
	m.RefreshLabor = true
	sim := newSim(t, m, entropy.NewSeeded(3))

	for r := 0; r < 10; r++ {
		st, err := sim.RunRound()
		require.NoError(t, err)

		pool := 0.0
		for _, f := range sim.Firms {
			pool += math.Max(f.Log.Profit[r], 0)
		}
		assert.InDelta(t, pool, st.ProfitPool, 1e-9)
		assert.InDelta(t, pool, st.Dividend*float64(len(sim.Households)), 1e-9)
	}
}

func TestNoHouseholdsSkipsMarketsAndDividends(t *testing.T) {
	m := scenarioModel()
	m.Households = 0
	src := entropy.NewSeeded(1)
	sim := newSim(t, m, src)

	st, err := sim.RunRound()
	require.NoError(t, err)
	assert.True(t, st.DividendSkipped)
	assert.Zero(t, st.Trades)
	assert.Zero(t, st.AvgMoney)
	assert.Equal(t, []float64{0}, sim.Firms[0].Log.Production)
	assert.Zero(t, src.Draws(), "no targets to draw")
	assert.Equal(t, []float64{0}, sim.AverageMoneySeries())
}

func TestNoFirms(t *testing.T) {
	m := scenarioModel()
	m.Firms = 0
	sim := newSim(t, m, entropy.NewSeeded(1))

	st, err := sim.RunRound()
	require.NoError(t, err)
	assert.Zero(t, st.Trades)
	assert.Equal(t, 10.0, st.AvgMoney)
	assert.Zero(t, sim.Households[0].OwnershipShare)
}

func TestAverageSeries(t *testing.T) {
	sim := newSim(t, scenarioModel(), &scripted{ints: []int{0, 0}})
	require.NoError(t, NewEngine(sim).Run(context.Background(), 2))

	money := sim.AverageMoneySeries()
	require.Len(t, money, 2)
	assert.Equal(t, 9.0, money[0])
	for i, st := range sim.Stats {
		assert.InDelta(t, st.AvgMoney, money[i], 1e-12)
		assert.InDelta(t, st.AvgUtility, sim.AverageUtilitySeries()[i], 1e-12)
	}
}

func TestNewSimulationRejectsUnknownPolicy(t *testing.T) {
	m := scenarioModel()
	m.CapitalPolicy = "hoard"
	_, err := NewSimulation(m, entropy.NewSeeded(1))
	assert.Error(t, err)
}

func TestEngineStopsOnCancel(t *testing.T) {
	sim := newSim(t, scenarioModel(), entropy.NewSeeded(1))
	ctx, cancel := context.WithCancel(context.Background())

	e := NewEngine(sim)
	e.OnRound = func(ctx context.Context, st RoundStats) error {
		if st.Round == 2 {
			cancel()
		}
		return nil
	}

	err := e.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sim.Round)
}

func TestEngineStopsOnCallbackError(t *testing.T) {
	sim := newSim(t, scenarioModel(), entropy.NewSeeded(1))
	boom := errors.New("sink down")

	e := NewEngine(sim)
	e.OnRound = func(context.Context, RoundStats) error { return boom }

	err := e.Run(context.Background(), 5)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sim.Round)
}
