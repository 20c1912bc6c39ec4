// Package kafka publishes deployment events to a Kafka topic. Events are
// keyed by agent name so lifecycle transitions for one agent stay ordered
// within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/arcanumlabs/canary/pkg/eventstream"
)

const defaultWriteTimeout = 10 * time.Second

// Config contains configurable parameters for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic is the topic deployment events are written to.
	Topic string

	// WriteTimeout is the per-write timeout. Defaults to 10s if zero.
	WriteTimeout time.Duration
}

// Publisher publishes deployment events to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher constructs a Kafka-backed publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &Publisher{writer: w}, nil
}

// PublishDeployment marshals the event and writes it keyed by agent name.
func (p *Publisher) PublishDeployment(ctx context.Context, event *eventstream.DeploymentEvent) error {
	if event == nil {
		return eventstream.ErrNilDeploymentEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling deployment event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AgentName),
		Value: payload,
		Time:  time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing deployment event: %w", err)
	}

	return nil
}

// Close shuts down the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}

	return p.writer.Close()
}
