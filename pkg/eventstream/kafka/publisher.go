// Package kafka publishes capture events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
)

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds each publish. Defaults to 5 seconds.
	WriteTimeout time.Duration

	// Writer overrides the Kafka writer built from Brokers.
	Writer Writer

	Logger *slog.Logger
}

// Publisher writes capture events as JSON messages keyed by project.
type Publisher struct {
	writer  Writer
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(c Config) (*Publisher, error) {
	if c.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	w := c.Writer
	if w == nil {
		if len(c.Brokers) == 0 {
			return nil, errors.New("at least one kafka broker is required")
		}
		w = &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  c.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		}
	}

	timeout := c.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	log := c.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Publisher{
		writer:  w,
		topic:   c.Topic,
		timeout: timeout,
		logger:  log,
	}, nil
}

// PublishCapture encodes and writes a single capture event.
func (p *Publisher) PublishCapture(ctx context.Context, event *eventstream.CaptureDecidedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding capture event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.Project),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Debug("published capture event",
		"topic", p.topic,
		"event_id", event.EventID,
		"decision", event.Decision,
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
