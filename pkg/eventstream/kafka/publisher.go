// Package kafka publishes ingestion lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/eventstream"
)

// DefaultTopic is the topic events are published to when none is configured.
const DefaultTopic = "releaselens.ingest"

// Publisher writes ingest events to Kafka, keyed by run ID so all events of
// one run land on the same partition in order.
type Publisher struct {
	writer *segmentio.Writer
	logger *zap.Logger
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the destination topic. Defaults to DefaultTopic if empty.
	Topic string
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &segmentio.Writer{
		Addr:     segmentio.TCP(cfg.Brokers...),
		Topic:    topic,
		Balancer: &segmentio.Hash{},
	}

	logger.Info("kafka publisher created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishIngest marshals the event and writes it to the topic.
func (p *Publisher) PublishIngest(ctx context.Context, event *eventstream.IngestEvent) error {
	if event == nil {
		return eventstream.ErrNilIngestEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling ingest event: %w", err)
	}

	msg := segmentio.Message{
		Key:   []byte(event.RunID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing ingest event: %w", err)
	}

	p.logger.Debug("published ingest event",
		zap.String("event_type", event.EventType),
		zap.String("run_id", event.RunID),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
