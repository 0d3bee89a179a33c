package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// OrderEventPublisher emits the one-time order outcome events after
// reconciliation: the user-facing confirmation and anything downstream
// (notifications, fulfillment) hangs off these.
type OrderEventPublisher interface {
	PublishOrderPaid(ctx context.Context, order *Order) error
	PublishOrderFailed(ctx context.Context, order *Order) error
}

// KafkaOrderEventPublisher implements OrderEventPublisher on Kafka. Messages
// are keyed by order id so all events for one order land on one partition.
type KafkaOrderEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaOrderEventPublisher(brokers []string, topic string) *KafkaOrderEventPublisher {
	return &KafkaOrderEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaOrderEventPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaOrderEventPublisher) PublishOrderPaid(ctx context.Context, order *Order) error {
	return p.publish(ctx, "order.payment.completed", order)
}

func (p *KafkaOrderEventPublisher) PublishOrderFailed(ctx context.Context, order *Order) error {
	return p.publish(ctx, "order.payment.failed", order)
}

func (p *KafkaOrderEventPublisher) publish(ctx context.Context, eventType string, order *Order) error {
	payload := map[string]interface{}{
		"event_id":       uuid.New().String(),
		"event_type":     eventType,
		"event_version":  1,
		"occurred_at":    time.Now().UTC().Format(time.RFC3339),
		"order_id":       order.ID,
		"provider":       string(order.Provider),
		"amount":         order.TotalAmount,
		"currency":       order.Currency,
		"customer_email": order.CustomerEmail,
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event for order %s: %w", eventType, order.ID, err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: value,
	})
}
