// Package amqpad publishes domain events to RabbitMQ.
package amqpad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"luxury_villas/internal/adapters/observability"
	"luxury_villas/internal/domain"
)

const ReservationConfirmedQueue = "reservation.confirmed"

// ErrBrokerBackoff is returned while the publisher waits before dialing a
// broker that just refused it.
var ErrBrokerBackoff = errors.New("amqp broker unreachable, backing off")

// Publisher holds one connection and channel, opened on first use and
// reopened after the broker drops them.
type Publisher struct {
	url         string
	dialTimeout time.Duration
	backoff     time.Duration

	mu        sync.Mutex // guards the fields below; a channel is not safe for concurrent publishes
	conn      *amqp.Connection
	ch        *amqp.Channel
	nextDial  time.Time
	lastError error
}

func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if _, err := amqp.ParseURI(url); err != nil {
		return nil, fmt.Errorf("invalid amqp url: %w", err)
	}
	return &Publisher{url: url, dialTimeout: 3 * time.Second, backoff: 5 * time.Second}, nil
}

// PublishReservationConfirmed sends ev as a persistent JSON message to the
// durable reservation.confirmed queue.
func (p *Publisher) PublishReservationConfirmed(ctx context.Context, ev domain.ReservationConfirmed) (err error) {
	start := time.Now()
	defer func() {
		status := 200
		if err != nil {
			status = 0
		}
		observability.ObserveExternal("amqp", ReservationConfirmedQueue, status, time.Since(start))
	}()

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", ReservationConfirmedQueue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close releases the connection. The publisher dials again on the next event.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// channel returns the open channel, dialing when there is none. Callers hold mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if time.Now().Before(p.nextDial) {
		return nil, fmt.Errorf("%w: %v", ErrBrokerBackoff, p.lastError)
	}

	ch, err := p.dial()
	if err != nil {
		p.nextDial = time.Now().Add(p.backoff)
		p.lastError = err
		return nil, err
	}
	log.Info().Str("queue", ReservationConfirmedQueue).Msg("amqp channel open")
	return ch, nil
}

func (p *Publisher) dial() (*amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(ReservationConfirmedQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
