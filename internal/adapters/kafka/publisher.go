package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/domain"
)

// Publisher emits payment events on a Kafka topic, keyed by order id so all
// events of one order land on the same partition.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
	topic  string
}

// NewPublisher creates a Kafka publisher for payment events.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Publisher{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Publish serializes the event and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, event domain.PaymentEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal payment event",
			zap.Error(err),
			zap.String("kind", string(event.Kind)),
			zap.String("order_id", event.OrderID),
		)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish payment event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("kind", string(event.Kind)),
			zap.String("order_id", event.OrderID),
		)
		return err
	}

	p.logger.Debug("Payment event published",
		zap.String("topic", p.topic),
		zap.String("kind", string(event.Kind)),
		zap.String("order_id", event.OrderID),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event domain.PaymentEvent) error { return nil }
func (NopPublisher) Close() error                                                 { return nil }
