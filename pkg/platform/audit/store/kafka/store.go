// Package kafka publishes audit events to a Kafka topic as JSON records keyed
// by user id (or subject when there is no user).
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "quill/pkg/platform/audit"
)

// Config selects brokers and the topic layout.
type Config struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

type Store struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and makes sure the topic exists.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}
	if err := EnsureTopic(ctx, kadm.NewClient(client), cfg.Topic, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		client.Close()
		return nil, err
	}
	return &Store{client: client, topic: cfg.Topic, logger: logger}, nil
}

// EnsureTopic creates topic unless it already exists. Non-positive
// partitions or replication use broker defaults.
func EnsureTopic(ctx context.Context, adm *kadm.Client, topic string, partitions int32, replication int16) error {
	if partitions <= 0 {
		partitions = -1
	}
	if replication <= 0 {
		replication = -1
	}
	_, err := adm.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

// Append produces the event synchronously so a failure reaches the caller.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(recordKey(event)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
		Timestamp: event.Timestamp,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func recordKey(event audit.Event) string {
	if !event.UserID.IsNil() {
		return event.UserID.String()
	}
	return event.Subject
}

// Health pings the cluster.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (s *Store) Close(ctx context.Context) {
	if err := s.client.Flush(ctx); err != nil {
		s.logger.WarnContext(ctx, "kafka flush on close failed", "error", err)
	}
	s.client.Close()
}
