// Package events publishes domain events (SOS alerts) to Kafka, or to the log
// when no brokers are configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Source is stamped on every envelope this service produces
const Source = "tourist-safety"

// Event is the JSON envelope written to the topic
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Source  string          `json:"source"`
	Time    time.Time       `json:"time"`
	Subject string          `json:"subject,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// NewEvent builds an envelope around data. Subject is used as the message key
// so every event of one session lands on the same partition.
func NewEvent(eventType, subject string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Source:  Source,
		Time:    time.Now().UTC(),
		Subject: subject,
		Data:    raw,
	}, nil
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// MessageWriter is the part of kafka.Writer the publisher needs, so tests can
// substitute a fake.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, topic, logger)
}

// NewKafkaPublisherWithWriter creates a publisher around an existing writer
func NewKafkaPublisherWithWriter(writer MessageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.Named("events"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Subject),
		Value: value,
		Time:  event.Time,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", p.topic),
			zap.String("type", event.Type),
			zap.String("id", event.ID),
			zap.Error(err))
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", p.topic),
		zap.String("type", event.Type),
		zap.String("subject", event.Subject))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the logger only
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that logs each event at Info
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("event",
		zap.String("id", event.ID),
		zap.String("type", event.Type),
		zap.String("subject", event.Subject),
		zap.ByteString("data", event.Data))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

// New returns a Kafka publisher when brokers are configured, otherwise a log publisher
func New(brokers []string, topic string, logger *zap.Logger) Publisher {
	if len(brokers) == 0 {
		return NewLogPublisher(logger)
	}
	return NewKafkaPublisher(brokers, topic, logger)
}
