package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const ExchangeKind = "topic"

// Routing keys of the domain events
const (
	EventCreated = "event.created"
	EventUpdated = "event.updated"
	EventDeleted = "event.deleted"
	RSVPAdded    = "rsvp.added"
	RSVPRemoved  = "rsvp.removed"
)

// Message is the JSON body of every domain event
type Message struct {
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// Publisher publishes domain events to a topic exchange. A nil Publisher
// drops every message.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewPublisher dials url and declares the exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func newPublishing(msg Message) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal payload: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.OccurredAt,
		Type:         msg.Type,
		Body:         body,
	}, nil
}

// Publish sends msg with its Type as routing key. Failures are logged and
// returned; callers are free to ignore them.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if p == nil {
		return nil
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}

	pub, err := newPublishing(msg)
	if err != nil {
		log.Error().Err(err).Str("routing_key", msg.Type).Msg("Failed to encode domain event")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, msg.Type, false, false, pub); err != nil {
		log.Error().Err(err).Str("routing_key", msg.Type).Msg("Failed to publish domain event")
		return fmt.Errorf("publish message: %w", err)
	}

	log.Debug().Str("exchange", p.exchange).Str("routing_key", msg.Type).Str("event_id", msg.EventID).Msg("Published domain event")
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
