package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/ledger"
)

var (
	ErrDegenerateConfiguration = errors.New("degenerate configuration")
	ErrUnknownCapitalPolicy    = errors.New("unknown capital policy")
)

// CapitalPolicy decides what happens to a firm's money after settlement.
type CapitalPolicy string

const (
	// ResetToCapital restores each firm's money to its starting amount every round.
	ResetToCapital CapitalPolicy = "reset-to-capital"
	// CarryForward leaves retained earnings (or losses) with the firm.
	CarryForward CapitalPolicy = "carry-forward"
)

// ParseCapitalPolicy converts a configuration string into a CapitalPolicy.
func ParseCapitalPolicy(s string) (CapitalPolicy, error) {
	switch p := CapitalPolicy(s); p {
	case ResetToCapital, CarryForward:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCapitalPolicy, s)
}

// Settlement summarizes the accounting phase of one round.
type Settlement struct {
	Round       int       `json:"round"`
	Profits     []float64 `json:"profits"`     // per firm, before flooring
	Pool        float64   `json:"pool"`        // sum of profits floored at zero
	Dividend    float64   `json:"dividend"`    // credit per household
	Distributed float64   `json:"distributed"` // total credited to households
	Skipped     bool      `json:"skipped"`     // no households to pay
}

// FirmProfit returns the firm's profit for the round: the change in money
// since the round opened, less the wage bill for labor hired this round.
func FirmProfit(f *agents.Firm, wage float64) float64 {
	revenue := f.Money() - f.MoneyAtRoundStart
	return revenue - wage*f.LaborHired
}

// ApplyCapitalPolicy adjusts the firm's money for the next round.
func ApplyCapitalPolicy(f *agents.Firm, p CapitalPolicy) error {
	switch p {
	case CarryForward:
		return nil
	case ResetToCapital:
		if err := f.Ledger.Destroy(agents.GoodMoney, f.Money()); err != nil {
			return fmt.Errorf("%s reset capital: %w", f.ID, err)
		}
		if err := f.Ledger.Create(agents.GoodMoney, f.StartingMoney); err != nil {
			return fmt.Errorf("%s reset capital: %w", f.ID, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCapitalPolicy, p)
}

// DistributeDividends splits pool evenly across households and credits each
// share. It returns the per-household dividend. With no households there is
// nobody to pay and ErrDegenerateConfiguration is returned.
func DistributeDividends(pool float64, households []*agents.Household) (float64, error) {
	if len(households) == 0 {
		return 0, ErrDegenerateConfiguration
	}
	if pool <= 0 {
		return 0, nil
	}
	per := pool / float64(len(households))
	for _, h := range households {
		if err := h.Ledger.Create(agents.GoodMoney, per); err != nil {
			return 0, fmt.Errorf("%s dividend: %w", h.ID, err)
		}
	}
	return per, nil
}

// PayDividendsFromFirms moves each firm's positive profit out of its own
// ledger, split evenly across households. profits is indexed like firms. It
// returns the total credited to each household.
func PayDividendsFromFirms(firms []*agents.Firm, profits []float64, households []*agents.Household) (float64, error) {
	if len(households) == 0 {
		return 0, ErrDegenerateConfiguration
	}
	if len(profits) != len(firms) {
		return 0, fmt.Errorf("%d profits for %d firms", len(profits), len(firms))
	}

	n := float64(len(households))
	per := 0.0
	for i, f := range firms {
		if profits[i] <= 0 {
			continue
		}
		share := profits[i] / n
		for _, h := range households {
			if err := ledger.Transfer(f.Ledger, h.Ledger, agents.GoodMoney, share); err != nil {
				return 0, fmt.Errorf("%s dividend to %s: %w", f.ID, h.ID, err)
			}
		}
		per += share
	}
	return per, nil
}

// Settle computes and logs every firm's profit, applies the capital policy and
// pays the floored profit pool out to households. Under reset-to-capital the
// firms' money is already gone, so the pool is credited fresh; under
// carry-forward it is paid out of the firms' retained money.
func Settle(round int, firms []*agents.Firm, households []*agents.Household, wage float64, policy CapitalPolicy) (Settlement, error) {
	s := Settlement{Round: round, Profits: make([]float64, 0, len(firms))}

	for _, f := range firms {
		profit := FirmProfit(f, wage)
		f.Log.Profit = append(f.Log.Profit, profit)
		s.Profits = append(s.Profits, profit)
		s.Pool += math.Max(profit, 0)

		if err := ApplyCapitalPolicy(f, policy); err != nil {
			return s, err
		}
	}

	var (
		per float64
		err error
	)
	if policy == CarryForward {
		per, err = PayDividendsFromFirms(firms, s.Profits, households)
	} else {
		per, err = DistributeDividends(s.Pool, households)
	}
	switch {
	case errors.Is(err, ErrDegenerateConfiguration):
		s.Skipped = true
	case err != nil:
		return s, err
	default:
		s.Dividend = per
		s.Distributed = per * float64(len(households))
	}
	return s, nil
}
