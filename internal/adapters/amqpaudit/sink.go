// Package amqpaudit publishes audit actions to a RabbitMQ topic exchange.
package amqpaudit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
)

const routingKeyPrefix = "booking.action."

// Channel is the subset of *amqp091.Channel the sink needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Sink struct {
	ch       Channel
	exchange string
}

func New(ch Channel, exchange string) *Sink {
	return &Sink{ch: ch, exchange: exchange}
}

// Dial connects to url and declares the durable topic exchange. The caller closes
// the returned connection; closing it also closes the channel.
func Dial(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, errors.Join(conn.Close(), err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, nil, errors.Join(conn.Close(), err)
	}
	return conn, ch, nil
}

var _ auditlog.Sink = (*Sink)(nil)

func (s *Sink) Record(ctx context.Context, a auditlog.Action) error {
	if s.ch == nil {
		return errors.New("nil amqp channel")
	}
	b, err := json.Marshal(a.Event())
	if err != nil {
		return err
	}
	return s.ch.PublishWithContext(ctx,
		s.exchange,
		routingKeyPrefix+a.Type,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    a.At.UTC(),
			Body:         b,
		},
	)
}
