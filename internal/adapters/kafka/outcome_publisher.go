package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates a kafka writer for the order outcome topic.
// Messages are keyed by order number so events of one order stay ordered.
func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: false,
	}
}

// OutcomePublisher implements ports.EventPublisher on kafka-go
type OutcomePublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewOutcomePublisher creates a new order outcome publisher
func NewOutcomePublisher(writer MessageWriter, logger *zap.Logger) *OutcomePublisher {
	return &OutcomePublisher{writer: writer, logger: logger}
}

// PublishOrderOutcome writes the event as JSON keyed by order number
func (p *OutcomePublisher) PublishOrderOutcome(ctx context.Context, event *ports.OrderOutcomeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order outcome event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.OrderNo),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("order." + event.Decision)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order outcome event: %w", err)
	}

	p.logger.Debug("Order outcome event published",
		zap.String("order_no", event.OrderNo),
		zap.String("decision", event.Decision),
		zap.String("event_id", event.EventID))
	return nil
}

// Close flushes and closes the underlying writer
func (p *OutcomePublisher) Close() error {
	return p.writer.Close()
}
