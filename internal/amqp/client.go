// Package amqp is the RabbitMQ transport for ingestion: line item batches and
// reference data updates flow through durable queues bound to one direct
// exchange.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "bugetar/internal/log"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
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
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
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

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishLineItemBatch publishes one batch of raw line items.
func (c *Client) PublishLineItemBatch(ctx context.Context, msg *LineItemBatchMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal batch message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published line item batch",
		applog.FieldSource, msg.Source,
		applog.FieldItemCount, len(msg.Items),
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishReferenceUpdate publishes factor series and administrative unit
// updates.
func (c *Client) PublishReferenceUpdate(ctx context.Context, msg *ReferenceUpdateMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reference message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published reference update",
		"factors", len(msg.Factors),
		"units", len(msg.Units),
		"queue", c.queueName)
	return nil
}

// ConsumeLineItemBatches consumes batch messages until the context ends.
// Messages that fail to decode are rejected without requeue; handler failures
// requeue so transient storage errors retry.
func (c *Client) ConsumeLineItemBatches(ctx context.Context, handler func(*LineItemBatchMessage) error) error {
	return c.consume(ctx, func(body []byte) error {
		msg, err := LineItemBatchMessageFromJSON(body)
		if err != nil {
			return &decodeError{err}
		}
		return handler(msg)
	})
}

// ConsumeReferenceUpdates consumes reference update messages until the context
// ends.
func (c *Client) ConsumeReferenceUpdates(ctx context.Context, handler func(*ReferenceUpdateMessage) error) error {
	return c.consume(ctx, func(body []byte) error {
		msg, err := ReferenceUpdateMessageFromJSON(body)
		if err != nil {
			return &decodeError{err}
		}
		return handler(msg)
	})
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) consume(ctx context.Context, handle func([]byte) error) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := handle(delivery.Body); err != nil {
				if _, bad := err.(*decodeError); bad {
					slog.ErrorContext(ctx, "Failed to decode message", applog.FieldError, err)
					delivery.Nack(false, false)
					continue
				}
				slog.ErrorContext(ctx, "Failed to handle message", applog.FieldError, err)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
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
