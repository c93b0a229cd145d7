package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"social-chat/internal/telemetry"
)

// Publisher publishes audit and websocket lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher or a noop publisher when AMQP is disabled.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		slog.Info("rabbitmq disabled, using noop", "reason", "empty amqp url")
		return noopPublisher{reason: "empty amqp url"}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		slog.Warn("rabbitmq disabled, using noop", "err", err)
		return noopPublisher{reason: err.Error()}
	}

	ch, err := conn.Channel()
	if err != nil {
		slog.Warn("rabbitmq disabled, using noop", "err", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		slog.Warn("rabbitmq disabled, using noop", "err", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	slog.Info("rabbitmq connected", "exchange", exchange)
	return newAMQPPublisher(conn, ch, exchange)
}

// ErrConnectionClosed is returned once the broker connection has gone away.
// Events are not buffered; callers treat the failure as best effort.
var ErrConnectionClosed = errors.New("rabbitmq connection closed")

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	mu     sync.RWMutex
	closed bool
}

func newAMQPPublisher(conn *amqp.Connection, ch *amqp.Channel, exchange string) *amqpPublisher {
	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
	lost := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-lost; ok && err != nil {
			slog.Warn("rabbitmq connection lost", "exchange", exchange, "err", err)
		}
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
	}()
	return p
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", routingKey, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrConnectionClosed
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headerTable(headers),
		Body:         body,
	})
	if err != nil {
		slog.Warn("rabbitmq publish failed", "routing_key", routingKey, "err", err)
	}
	return err
}

func headerTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}
	return table
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	attrs := []any{"routing_key", routingKey, "request_id", headers[telemetry.RequestIDHeader]}
	if envelope, ok := event.(telemetry.AuditEnvelope); ok {
		attrs = append(attrs, "action", envelope.Payload.Action, "chat_id", envelope.Payload.ChatID)
	}
	slog.Debug("rabbitmq noop publish", attrs...)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	switch publisher := p.(type) {
	case noopPublisher:
		return publisher.reason
	default:
		return ""
	}
}
