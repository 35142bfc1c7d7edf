package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/micro-market/internal/engine"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

// memorySink keeps every published event.
type memorySink struct {
	events []RoundCompleted
	closed bool
}

func (m *memorySink) Publish(_ context.Context, e RoundCompleted) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestPublisherBuildsEvents(t *testing.T) {
	sink := &memorySink{}
	runID := uuid.New()
	publish := Publisher(sink, runID, 42)

	require.NoError(t, publish(context.Background(), engine.RoundStats{Round: 1, Trades: 3}))
	require.NoError(t, publish(context.Background(), engine.RoundStats{Round: 2}))

	got := sink.events
	require.Len(t, got, 2)
	assert.Equal(t, runID, got[0].RunID)
	assert.Equal(t, int64(42), got[0].Seed)
	assert.Equal(t, 3, got[0].Stats.Trades)
	assert.Equal(t, 2, got[1].Stats.Round)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestKafkaSinkWritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w}
	e := NewRoundCompleted(uuid.New(), 7, engine.RoundStats{Round: 4, AvgMoney: 12.5})

	require.NoError(t, sink.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte(e.RunID.String()), w.msgs[0].Key)

	var decoded RoundCompleted
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, 4, decoded.Stats.Round)
	assert.Equal(t, 12.5, decoded.Stats.AvgMoney)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSinkWrapsWriteError(t *testing.T) {
	down := errors.New("broker unreachable")
	sink := &KafkaSink{writer: &fakeWriter{err: down}}

	err := sink.Publish(context.Background(), NewRoundCompleted(uuid.New(), 1, engine.RoundStats{Round: 1}))
	assert.ErrorIs(t, err, down)
}

func TestMultiStopsAtFirstError(t *testing.T) {
	down := errors.New("down")
	mem := &memorySink{}
	multi := Multi{&KafkaSink{writer: &fakeWriter{err: down}}, mem}

	err := multi.Publish(context.Background(), NewRoundCompleted(uuid.New(), 1, engine.RoundStats{}))
	assert.ErrorIs(t, err, down)
	assert.Empty(t, mem.events)
	assert.NoError(t, multi.Close())
	assert.True(t, mem.closed)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &memorySink{}, &memorySink{}
	publish := Publisher(Multi{a, b}, uuid.New(), 3)

	require.NoError(t, publish(context.Background(), engine.RoundStats{Round: 1}))
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, a.events[0].ID, b.events[0].ID)
}
