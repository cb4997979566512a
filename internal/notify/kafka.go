package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// envelope is the wire shape of one notification record. The payload keeps
// its kind-specific fields; the envelope carries routing metadata.
type envelope struct {
	UserID  uuid.UUID       `json:"user_id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// KafkaSink publishes notifications to a Kafka topic for downstream delivery
// workers (email, push). Produce errors are logged, never returned to the
// registration flow.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink connects a producer to the given brokers.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

// Notify produces asynchronously. Records for the same user share a key, so
// per-user ordering holds within a partition.
func (s *KafkaSink) Notify(ctx context.Context, userID uuid.UUID, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	value, err := json.Marshal(envelope{
		UserID:  userID,
		Kind:    payload.Kind(),
		Payload: body,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification envelope: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(userID.String()),
		Value: value,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("notification produce failed",
				"user_id", userID,
				"kind", payload.Kind(),
				"error", err)
		}
	})
	return nil
}

// Close flushes pending records and releases the producer.
func (s *KafkaSink) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	s.client.Close()
	return nil
}
