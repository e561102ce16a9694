package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Message type tags carried in the AMQP Type property so one queue can
// transport both kinds of event.
const (
	typeRecordChanged = "record.changed"
	typeMonthCloned   = "month.cloned"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	url          string
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
		url:          url,
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

func (c *Client) publish(ctx context.Context, msgType string, body []byte) error {
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
			Type:         msgType,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishRecordChanged queues a record for the backup worker.
func (c *Client) PublishRecordChanged(ctx context.Context, kind string, id, version int64) error {
	msg := NewRecordChangedMessage(kind, id, version)
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, typeRecordChanged, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published record change",
		"kind", kind,
		"id", id,
		"version", version,
		"queue", c.queueName)
	return nil
}

// PublishMonthCloned announces a finished clone.
func (c *Client) PublishMonthCloned(ctx context.Context, sourceID, nextID int64, count int) error {
	body, err := NewMonthClonedMessage(sourceID, nextID, count).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, typeMonthCloned, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published month cloned event",
		"source_month_id", sourceID,
		"next_month_id", nextID,
		"cloned_count", count)
	return nil
}

// Handlers for the two message types. A nil onMonthCloned skips clone
// events with an ack.
type ConsumeHandlers struct {
	OnRecordChanged func(*RecordChangedMessage) error
	OnMonthCloned   func(*MonthClonedMessage) error
}

// Consume blocks delivering queue messages to the handlers until ctx
// is cancelled. Malformed messages are rejected without requeue;
// handler failures requeue the delivery.
func (c *Client) Consume(ctx context.Context, handlers ConsumeHandlers) error {
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

	slog.InfoContext(ctx, "Started consuming backup events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.dispatch(ctx, delivery, handlers)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, delivery amqp091.Delivery, handlers ConsumeHandlers) {
	switch delivery.Type {
	case typeMonthCloned:
		var msg MonthClonedMessage
		if err := unmarshalDelivery(delivery.Body, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal month cloned message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if handlers.OnMonthCloned != nil {
			if err := handlers.OnMonthCloned(&msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle month cloned message",
					"error", err,
					"source_month_id", msg.SourceMonthID)
				delivery.Nack(false, true)
				return
			}
		}
		delivery.Ack(false)

	default:
		// Older producers did not set the Type property; treat
		// untyped messages as record changes.
		msg, err := RecordChangedMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal record change message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if handlers.OnRecordChanged != nil {
			if err := handlers.OnRecordChanged(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle record change",
					"error", err,
					"kind", msg.Kind,
					"id", msg.ID)
				delivery.Nack(false, true)
				return
			}
		}
		delivery.Ack(false)
	}
}

func unmarshalDelivery(body []byte, v any) error {
	return json.Unmarshal(body, v)
}

// ConsumeWithReconnect wraps Consume with redial on broker connection
// loss. Non-connection errors are returned to the caller.
func (c *Client) ConsumeWithReconnect(ctx context.Context, handlers ConsumeHandlers) error {
	attempt := 0
	for {
		err := c.Consume(ctx, handlers)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"error", err,
			"attempt", attempt,
			"wait", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := c.reconnect(); err != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", err, "attempt", attempt)
			continue
		}
		attempt = 0
	}
}

func (c *Client) reconnect() error {
	c.Close()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return c.setup()
}

func exponentialBackoff(attempt int) time.Duration {
	const maxWait = 30 * time.Second
	if attempt >= 5 {
		return maxWait
	}
	wait := time.Duration(1<<attempt) * time.Second
	if wait > maxWait {
		return maxWait
	}
	return wait
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
		"message channel closed",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
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
