// Package amqp connects the engine to RabbitMQ. One durable direct exchange
// carries two event streams: quote-locked (consumed by the export worker) and
// expense-audited (for downstream tooling), each bound to its own queue.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"vandevis/internal/core"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	quoteQueue   string
	auditQueue   string
}

func NewClient(url, exchangeName, quoteQueue, auditQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		quoteQueue:   quoteQueue,
		auditQueue:   auditQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// One durable queue per event stream, routing key = queue name.
	for _, queue := range []string{c.quoteQueue, c.auditQueue} {
		if _, err := c.channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishQuoteLocked implements services.EventPublisher.
func (c *Client) PublishQuoteLocked(ctx context.Context, projectID, scenarioID, snapshotID int64, version int) error {
	body, err := NewQuoteLockedMessage(projectID, scenarioID, snapshotID, version).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.quoteQueue, body); err != nil {
		return fmt.Errorf("publish quote locked: %w", err)
	}

	slog.InfoContext(ctx, "Published quote locked message",
		"projet_id", projectID,
		"scenario_id", scenarioID,
		"snapshot_id", snapshotID,
		"version", version,
		"exchange", c.exchangeName,
		"queue", c.quoteQueue)
	return nil
}

// PublishExpenseAudited implements services.EventPublisher.
func (c *Client) PublishExpenseAudited(ctx context.Context, projectID int64, action core.AuditAction, expenseID int64) error {
	body, err := NewExpenseAuditMessage(projectID, action, expenseID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.auditQueue, body); err != nil {
		return fmt.Errorf("publish expense audited: %w", err)
	}

	slog.InfoContext(ctx, "Published expense audit message",
		"projet_id", projectID,
		"action", string(action),
		"depense_id", expenseID,
		"exchange", c.exchangeName,
		"queue", c.auditQueue)
	return nil
}

// ConsumeQuoteLocked delivers quote-locked messages to handler with manual
// acknowledgement. A handler error nacks with requeue so the export retries;
// an unparseable message is dropped.
func (c *Client) ConsumeQuoteLocked(ctx context.Context, handler func(*QuoteLockedMessage) error) error {
	msgs, err := c.channel.Consume(
		c.quoteQueue,
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming quote locked messages", "queue", c.quoteQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := QuoteLockedMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"snapshot_id", msg.SnapshotID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
			slog.InfoContext(ctx, "Processed quote locked message",
				"snapshot_id", msg.SnapshotID,
				"version", msg.Version)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
