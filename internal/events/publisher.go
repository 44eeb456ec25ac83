// ABOUTME: RabbitMQ publisher for committed ledger events
// ABOUTME: Publishes JSON messages on a durable topic exchange keyed by event type

// Package events delivers committed ledger events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/2389/ledger-gateway/internal/ledger"
)

// channel is the part of *amqp091.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher implements ledger.EventPublisher over an AMQP channel.
type Publisher struct {
	conn     io.Closer
	exchange string
	logger   *slog.Logger

	// mu serializes use of ch, which is shared by every request.
	mu sync.Mutex
	ch channel
}

var _ ledger.EventPublisher = (*Publisher)(nil)

// Dial connects to the broker at url and declares exchange.
func Dial(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newPublisher(ch, conn, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch channel, conn io.Closer, exchange string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger.With("component", "events"),
	}, nil
}

// RoutingKey returns the topic routing key for an event type.
func RoutingKey(t ledger.EventType) string {
	return "ledger." + string(t)
}

// Publish sends e as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, e ledger.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := RoutingKey(e.Type)
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		AppId:        "ledger-gateway",
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	p.logger.Debug("published ledger event", "routing_key", key, "actor", e.Actor)
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return err
		}
	}
	return chErr
}
