// Package engine provides the round-based simulation loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Engine drives a Simulation forward a fixed number of rounds.
type Engine struct {
	Sim *Simulation

	// OnRound is called after every completed round, before the next one
	// starts. A returned error stops the run.
	OnRound func(ctx context.Context, st RoundStats) error
}

// NewEngine creates an engine for sim.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{Sim: sim}
}

// Run executes rounds rounds. Cancellation is checked between rounds; a round
// in progress always completes.
func (e *Engine) Run(ctx context.Context, rounds int) error {
	if rounds < 0 {
		return fmt.Errorf("run: negative round count %d", rounds)
	}

	slog.Info("simulation engine started",
		"rounds", rounds,
		"households", len(e.Sim.Households),
		"firms", len(e.Sim.Firms),
	)
	start := time.Now()

	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine cancelled", "round", e.Sim.Round)
			return err
		}

		st, err := e.Sim.RunRound()
		if err != nil {
			return err
		}
		logRound(st)

		if e.OnRound != nil {
			if err := e.OnRound(ctx, st); err != nil {
				return fmt.Errorf("round %d callback: %w", st.Round, err)
			}
		}
	}

	slog.Info("simulation engine stopped",
		"round", e.Sim.Round,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func logRound(st RoundStats) {
	slog.Info("round complete",
		"round", st.Round,
		"avg_money", fmt.Sprintf("%.3f", st.AvgMoney),
		"avg_utility", fmt.Sprintf("%.3f", st.AvgUtility),
		"total_money", humanize.CommafWithDigits(st.TotalMoney, 2),
		"hired", st.Hired,
		"output", fmt.Sprintf("%.3f", st.Output),
		"bread_sold", st.BreadSold,
		"trades", st.Trades,
		"dividend", fmt.Sprintf("%.3f", st.Dividend),
	)
}
