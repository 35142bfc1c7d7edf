// Package events publishes a RoundCompleted event after every simulation
// round to whatever sink the run is configured with.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/micro-market/internal/engine"
)

// RoundCompleted is emitted once per finished round.
type RoundCompleted struct {
	ID         uuid.UUID         `json:"id"`
	RunID      uuid.UUID         `json:"run_id"`
	Seed       int64             `json:"seed"`
	Stats      engine.RoundStats `json:"stats"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewRoundCompleted builds the event for st.
func NewRoundCompleted(runID uuid.UUID, seed int64, st engine.RoundStats) RoundCompleted {
	return RoundCompleted{
		ID:         uuid.New(),
		RunID:      runID,
		Seed:       seed,
		Stats:      st,
		OccurredAt: time.Now().UTC(),
	}
}

// Sink receives round events.
type Sink interface {
	Publish(ctx context.Context, e RoundCompleted) error
	Close() error
}

// Multi fans each event out to several sinks, stopping at the first failure.
type Multi []Sink

// Publish sends e to every sink in order.
func (ms Multi) Publish(ctx context.Context, e RoundCompleted) error {
	for _, s := range ms {
		if err := s.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (ms Multi) Close() error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Publisher returns an engine round callback that publishes each round of
// runID to sink.
func Publisher(sink Sink, runID uuid.UUID, seed int64) func(ctx context.Context, st engine.RoundStats) error {
	return func(ctx context.Context, st engine.RoundStats) error {
		return sink.Publish(ctx, NewRoundCompleted(runID, seed, st))
	}
}
