package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a journal entry.
type EntryKind string

const (
	EntryMint   EntryKind = "mint"   // quantity created from outside the economy
	EntryBurn   EntryKind = "burn"   // quantity destroyed
	EntryDebit  EntryKind = "debit"  // outgoing leg of a transfer
	EntryCredit EntryKind = "credit" // incoming leg of a transfer
)

// Entry is a single signed movement on one ledger.
type Entry struct {
	ID     uuid.UUID       `json:"id"`
	TxID   uuid.UUID       `json:"tx_id"` // shared by both legs of a transfer; uuid.Nil for mint/burn
	Round  int             `json:"round"`
	Kind   EntryKind       `json:"kind"`
	Owner  string          `json:"owner"`
	Good   string          `json:"good"`
	Amount decimal.Decimal `json:"amount"` // negative for debits and burns
}

// Journal is an append-only double-entry record of ledger movements.
// A nil *Journal silently discards entries.
type Journal struct {
	round   int
	entries []Entry
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// SetRound tags subsequent entries with round r.
func (j *Journal) SetRound(r int) {
	if j != nil {
		j.round = r
	}
}

// Len returns the number of recorded entries.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// RoundEntries returns the entries recorded during round r, in recording order.
func (j *Journal) RoundEntries(r int) []Entry {
	if j == nil {
		return nil
	}
	var out []Entry
	for _, e := range j.entries {
		if e.Round == r {
			out = append(out, e)
		}
	}
	return out
}

// Net sums amounts per good over entries of the given kinds.
func (j *Journal) Net(kinds ...EntryKind) map[string]decimal.Decimal {
	net := make(map[string]decimal.Decimal)
	if j == nil {
		return net
	}
	for _, e := range j.entries {
		if !hasKind(kinds, e.Kind) {
			continue
		}
		net[e.Good] = net[e.Good].Add(e.Amount)
	}
	return net
}

// Balanced reports whether every transfer's debits and credits cancel, good by good.
func (j *Journal) Balanced() bool {
	for _, amt := range j.Net(EntryDebit, EntryCredit) {
		if !amt.IsZero() {
			return false
		}
	}
	return true
}

func (j *Journal) record(kind EntryKind, owner, good string, signed float64) {
	if j == nil {
		return
	}
	j.entries = append(j.entries, Entry{
		ID:     uuid.New(),
		Round:  j.round,
		Kind:   kind,
		Owner:  owner,
		Good:   good,
		Amount: decimal.NewFromFloat(signed),
	})
}

func (j *Journal) recordPair(tx uuid.UUID, from, to, good string, qty float64) {
	if j == nil {
		return
	}
	amt := decimal.NewFromFloat(qty)
	j.entries = append(j.entries,
		Entry{ID: uuid.New(), TxID: tx, Round: j.round, Kind: EntryDebit, Owner: from, Good: good, Amount: amt.Neg()},
		Entry{ID: uuid.New(), TxID: tx, Round: j.round, Kind: EntryCredit, Owner: to, Good: good, Amount: amt},
	)
}

func hasKind(kinds []EntryKind, k EntryKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
