// Package publisher streams committed audit events to Kafka for downstream
// compliance consumers. The relational store remains the source of truth;
// the stream exists so review tooling does not poll the database.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "zenid/pkg/platform/audit"
)

// Kafka publishes audit events keyed by session id, so one session's events
// land on one partition in order.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

func (k *Kafka) Publish(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.SessionID.String()),
		Value: value,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && k.logger != nil {
			k.logger.Error("audit publish failed",
				"session_id", event.SessionID,
				"seq", event.Seq,
				"error", err,
			)
		}
	})
	return nil
}

func (k *Kafka) Close() error {
	k.client.Close()
	return nil
}
