package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"expiry-tracker/internal/products"
	"expiry-tracker/internal/products/messaging"

	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerTag = "expiry-notifications"

// Consumer turns product events into expiry notifications in the log.
type Consumer struct {
	channel *amqp.Channel
	queue   string
	logger  *slog.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, logger *slog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := messaging.DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &Consumer{
		channel: ch,
		queue:   queue,
		logger:  logger,
	}, nil
}

func (c *Consumer) Listen(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			if err := c.Handle(msg.Body); err != nil {
				c.logger.Error("handle message failed", "message_id", msg.MessageId, "error", err)
				// Malformed payloads are dropped, not redelivered.
				_ = msg.Nack(false, false)
				continue
			}

			_ = msg.Ack(false)
		}
	}
}

// Handle logs one event. Products that are expired or due soon are logged
// at WARN so they stand out.
func (c *Consumer) Handle(body []byte) error {
	var event products.ProductEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	attrs := []any{
		"event_type", event.EventType,
		"product_id", event.ProductID,
		"name", event.Name,
		"timestamp", event.Timestamp,
	}
	if event.ExpiryDate != "" {
		attrs = append(attrs, "expiry_date", event.ExpiryDate, "status", event.Status)
	}

	switch {
	case event.EventType == products.EventDeleted:
		c.logger.Info("product removed", attrs...)
	case event.Status == products.StatusExpired:
		c.logger.Warn("product has expired", attrs...)
	case event.Status == products.StatusDueSoon:
		c.logger.Warn("product expires soon", attrs...)
	default:
		c.logger.Info("product tracked", attrs...)
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.channel.Close()
}
