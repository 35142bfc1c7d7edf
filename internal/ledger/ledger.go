// Package ledger holds per-agent resource quantities and the primitives that
// move them between agents. Every change to an agent's holdings goes through
// Create, Destroy, Transfer or Swap.
package ledger

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon absorbs floating point residue when a holding is drawn down to zero.
const Epsilon = 1e-9

var (
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNegativeQuantity     = errors.New("quantity must be a finite non-negative number")
	ErrSelfTransfer         = errors.New("transfer to the same ledger")
)

// Ledger maps good names to non-negative quantities for a single agent.
type Ledger struct {
	owner    string
	holdings map[string]float64
	journal  *Journal // may be nil
}

// New creates an empty ledger. Entries are recorded to j when it is non-nil.
func New(owner string, j *Journal) *Ledger {
	return &Ledger{
		owner:    owner,
		holdings: make(map[string]float64),
		journal:  j,
	}
}

// Owner returns the name the ledger was created with.
func (l *Ledger) Owner() string {
	return l.owner
}

// Possession returns the current holding of good, 0 if it was never created.
func (l *Ledger) Possession(good string) float64 {
	return l.holdings[good]
}

// Create adds qty of good to the ledger.
func (l *Ledger) Create(good string, qty float64) error {
	if err := checkQuantity(qty); err != nil {
		return fmt.Errorf("create %s: %w", good, err)
	}
	l.add(good, qty)
	l.journal.record(EntryMint, l.owner, good, qty)
	return nil
}

// Destroy removes qty of good. Destroying more than is held fails with
// ErrInsufficientResource and leaves the ledger untouched. Destroying zero is a no-op.
func (l *Ledger) Destroy(good string, qty float64) error {
	if err := checkQuantity(qty); err != nil {
		return fmt.Errorf("destroy %s: %w", good, err)
	}
	if qty == 0 {
		return nil
	}
	if !l.covers(good, qty) {
		return fmt.Errorf("destroy %s %.6g from %s holding %.6g: %w",
			good, qty, l.owner, l.holdings[good], ErrInsufficientResource)
	}
	removed := l.remove(good, qty)
	l.journal.record(EntryBurn, l.owner, good, -removed)
	return nil
}

// Snapshot returns a copy of all holdings.
func (l *Ledger) Snapshot() map[string]float64 {
	snap := make(map[string]float64, len(l.holdings))
	for g, q := range l.holdings {
		snap[g] = q
	}
	return snap
}

func (l *Ledger) covers(good string, qty float64) bool {
	return qty <= l.holdings[good]+Epsilon
}

func (l *Ledger) add(good string, qty float64) {
	l.holdings[good] += qty
}

// remove takes up to qty of good and returns the amount taken. A remainder
// below Epsilon is burned so no holding is left as dust.
func (l *Ledger) remove(good string, qty float64) float64 {
	held := l.holdings[good]
	taken := math.Min(qty, held)
	left := held - taken
	if left > 0 && left < Epsilon {
		l.journal.record(EntryBurn, l.owner, good, -left)
		left = 0
	}
	l.holdings[good] = left
	return taken
}

func checkQuantity(qty float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return ErrNegativeQuantity
	}
	return nil
}
