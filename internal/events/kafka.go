package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON messages keyed by run id, so every round
// of a run lands on the same partition in order.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Publish encodes e and writes it.
func (k *KafkaSink) Publish(ctx context.Context, e RoundCompleted) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode round %d event: %w", e.Stats.Round, err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RunID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("round_completed")},
		},
	})
	if err != nil {
		return fmt.Errorf("publish round %d event: %w", e.Stats.Round, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
