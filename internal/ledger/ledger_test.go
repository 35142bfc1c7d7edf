package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPossessionDefaultsToZero(t *testing.T) {
	l := New("household-0", nil)
	assert.Equal(t, 0.0, l.Possession("bread"))
	assert.Empty(t, l.Snapshot())
}

func TestCreateAndDestroy(t *testing.T) {
	l := New("firm-0", nil)
	require.NoError(t, l.Create("money", 100))
	require.NoError(t, l.Create("bread", 0))
	assert.Equal(t, map[string]float64{"bread": 0, "money": 100}, l.Snapshot())

	require.NoError(t, l.Destroy("money", 40))
	assert.InDelta(t, 60, l.Possession("money"), 1e-12)

	require.NoError(t, l.Destroy("money", l.Possession("money")))
	assert.Equal(t, 0.0, l.Possession("money"))
}

func TestDestroyMoreThanHeldFails(t *testing.T) {
	l := New("firm-0", nil)
	require.NoError(t, l.Create("labor", 1))

	err := l.Destroy("labor", 1.5)
	require.ErrorIs(t, err, ErrInsufficientResource)
	assert.Equal(t, 1.0, l.Possession("labor"), "failed destroy must not clamp")

	err = l.Destroy("bread", 0.1)
	assert.ErrorIs(t, err, ErrInsufficientResource)
}

func TestDestroyZeroIsNoop(t *testing.T) {
	l := New("firm-0", NewJournal())
	require.NoError(t, l.Destroy("labor", 0))
	assert.Equal(t, 0.0, l.Possession("labor"))
	assert.Equal(t, 0, l.journal.Len())
}

func TestRejectsInvalidQuantities(t *testing.T) {
	l := New("household-1", nil)
	assert.ErrorIs(t, l.Create("money", -1), ErrNegativeQuantity)
	assert.ErrorIs(t, l.Destroy("money", -1), ErrNegativeQuantity)
}

func TestDestroyResidueLeavesExactZero(t *testing.T) {
	l := New("firm-0", nil)
	require.NoError(t, l.Create("bread", 0.1))
	require.NoError(t, l.Create("bread", 0.2))
	require.NoError(t, l.Destroy("bread", 0.3))
	assert.Equal(t, 0.0, l.Possession("bread"))
}

func TestTransferConservesQuantity(t *testing.T) {
	j := NewJournal()
	a := New("a", j)
	b := New("b", j)
	require.NoError(t, a.Create("bread", 3))

	require.NoError(t, Transfer(a, b, "bread", 2))
	assert.InDelta(t, 1, a.Possession("bread"), 1e-12)
	assert.InDelta(t, 2, b.Possession("bread"), 1e-12)
	assert.True(t, j.Balanced())

	err := Transfer(a, b, "bread", 5)
	require.ErrorIs(t, err, ErrInsufficientResource)
	assert.InDelta(t, 1, a.Possession("bread"), 1e-12)
	assert.InDelta(t, 2, b.Possession("bread"), 1e-12)

	assert.ErrorIs(t, Transfer(a, a, "bread", 1), ErrSelfTransfer)
}

func TestSwapIsAtomic(t *testing.T) {
	j := NewJournal()
	buyer := New("buyer", j)
	seller := New("seller", j)
	require.NoError(t, buyer.Create("money", 10))
	require.NoError(t, seller.Create("bread", 1))

	t.Run("buyer cannot pay", func(t *testing.T) {
		err := Swap(buyer, seller, "bread", 1, "money", 12)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, 10.0, buyer.Possession("money"))
		assert.Equal(t, 1.0, seller.Possession("bread"))
		assert.Equal(t, 0.0, buyer.Possession("bread"))
	})

	t.Run("seller cannot deliver", func(t *testing.T) {
		err := Swap(buyer, seller, "bread", 2, "money", 4)
		require.ErrorIs(t, err, ErrInsufficientResource)
		assert.Equal(t, 10.0, buyer.Possession("money"))
		assert.Equal(t, 0.0, seller.Possession("money"))
	})

	t.Run("both legs settle", func(t *testing.T) {
		before := buyer.Possession("money") + seller.Possession("money")
		require.NoError(t, Swap(buyer, seller, "bread", 1, "money", 8))
		assert.Equal(t, before, buyer.Possession("money")+seller.Possession("money"))
		assert.Equal(t, 1.0, buyer.Possession("bread"))
		assert.Equal(t, 0.0, seller.Possession("bread"))
		assert.Equal(t, 8.0, seller.Possession("money"))
	})

	assert.True(t, j.Balanced())
}

func TestJournalSeparatesMintsFromTransfers(t *testing.T) {
	j := NewJournal()
	j.SetRound(3)
	a := New("a", j)
	b := New("b", j)
	require.NoError(t, a.Create("money", 50))
	require.NoError(t, Transfer(a, b, "money", 20))
	require.NoError(t, b.Destroy("money", 5))

	assert.Equal(t, 4, j.Len())
	minted := j.Net(EntryMint, EntryBurn)
	assert.True(t, minted["money"].Equal(decimal.NewFromInt(45)))

	assert.Empty(t, j.RoundEntries(2))
	entries := j.RoundEntries(3)
	require.Len(t, entries, 4)
	assert.Equal(t, 3, entries[1].Round)
	assert.Equal(t, entries[1].TxID, entries[2].TxID)
	assert.Equal(t, EntryDebit, entries[1].Kind)
	assert.Equal(t, "a", entries[1].Owner)
	assert.Equal(t, EntryCredit, entries[2].Kind)

	var nilJournal *Journal
	assert.True(t, nilJournal.Balanced())
	assert.Zero(t, nilJournal.Len())
}

func TestDustIsBurnedNotDropped(t *testing.T) {
	j := NewJournal()
	l := New("firm-0", j)
	require.NoError(t, l.Create("money", 1))
	require.NoError(t, l.Destroy("money", 1-5e-10))

	assert.Equal(t, 0.0, l.Possession("money"))
	net := j.Net(EntryMint, EntryBurn)
	assert.InDelta(t, 0, net["money"].InexactFloat64(), 1e-15, "mints less burns must match the empty holding")
}

func TestTransferOvershootCreditsOnlyWhatWasHeld(t *testing.T) {
	j := NewJournal()
	a := New("a", j)
	b := New("b", j)
	require.NoError(t, a.Create("money", 1))

	require.NoError(t, Transfer(a, b, "money", 1+5e-10))
	assert.Equal(t, 0.0, a.Possession("money"))
	assert.Equal(t, 1.0, b.Possession("money"))
	assert.True(t, j.Balanced())
}

func TestTransferResidueIsJournaled(t *testing.T) {
	j := NewJournal()
	a := New("a", j)
	b := New("b", j)
	require.NoError(t, a.Create("money", 1))

	require.NoError(t, Transfer(a, b, "money", 1-5e-10))
	assert.Equal(t, 0.0, a.Possession("money"))

	total := a.Possession("money") + b.Possession("money")
	net := j.Net(EntryMint, EntryBurn)
	assert.InDelta(t, total, net["money"].InexactFloat64(), 1e-15)
	assert.True(t, j.Balanced())
}
