// Production phase: every firm turns the labor it holds into bread.
package engine

import (
	"log/slog"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/economy"
)

// produce runs each firm's production function and logs the output. It
// returns the total produced this round.
func (s *Simulation) produce() float64 {
	total := 0.0
	for _, f := range s.Firms {
		out, err := economy.Produce(f, agents.GoodBread)
		if err != nil {
			slog.Debug("production failed", "agent", f.ID, "error", err)
			out = 0
		}
		f.Log.Production = append(f.Log.Production, out)
		total += out
	}
	return total
}
