package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/micro-market/internal/agents"
)

var ErrInvalidProductionInput = errors.New("invalid production input")

// CobbDouglas is the production function Y = K^alpha * L^(1-alpha).
type CobbDouglas struct {
	Capital float64
	Alpha   float64
}

// Technology returns the production function of firm f.
func Technology(f *agents.Firm) CobbDouglas {
	return CobbDouglas{Capital: f.Capital, Alpha: f.Alpha}
}

// Output returns the quantity produced from labor. Zero labor yields zero output.
func (c CobbDouglas) Output(labor float64) (float64, error) {
	switch {
	case math.IsNaN(labor) || math.IsInf(labor, 0) || labor < 0:
		return 0, fmt.Errorf("%w: labor %v", ErrInvalidProductionInput, labor)
	case math.IsNaN(c.Alpha) || c.Alpha < 0 || c.Alpha > 1:
		return 0, fmt.Errorf("%w: alpha %v", ErrInvalidProductionInput, c.Alpha)
	case math.IsNaN(c.Capital) || math.IsInf(c.Capital, 0) || c.Capital < 0:
		return 0, fmt.Errorf("%w: capital %v", ErrInvalidProductionInput, c.Capital)
	}
	if labor == 0 {
		return 0, nil
	}
	return math.Pow(c.Capital, c.Alpha) * math.Pow(labor, 1-c.Alpha), nil
}

// Produce converts all labor held by f into output. The labor is destroyed and
// the output added to the firm's holding of good. A firm without labor
// produces nothing and its ledger is left unchanged.
func Produce(f *agents.Firm, good string) (float64, error) {
	labor := f.Ledger.Possession(agents.GoodLabor)
	if labor <= 0 {
		return 0, nil
	}

	out, err := Technology(f).Output(labor)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.ID, err)
	}
	if err := f.Ledger.Destroy(agents.GoodLabor, labor); err != nil {
		return 0, fmt.Errorf("%s consume labor: %w", f.ID, err)
	}
	if err := f.Ledger.Create(good, out); err != nil {
		return 0, fmt.Errorf("%s store output: %w", f.ID, err)
	}
	return out, nil
}
