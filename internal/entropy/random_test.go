package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededIsReproducible(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Intn(50), b.Intn(50))
	}
	assert.Equal(t, uint64(100), a.Draws())
	assert.Equal(t, int64(42), a.Seed())
}

func TestSeededStaysInRange(t *testing.T) {
	s := NewSeeded(7)
	for i := 0; i < 1000; i++ {
		n := s.Intn(3)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 3)
	}
}

func TestRandomSeedIsPositive(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Positive(t, RandomSeed())
	}
}
