// Package natsaudit publishes audit actions as JSON messages on a NATS subject.
package natsaudit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
)

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

type Sink struct {
	pub     Publisher
	subject string
}

func New(pub Publisher, subject string) *Sink {
	return &Sink{pub: pub, subject: subject}
}

// Connect dials url with a client name and reconnect settings suited to a long-lived API.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("booking-verify-api"),
		nats.MaxReconnects(-1),
	)
}

var _ auditlog.Sink = (*Sink)(nil)

func (s *Sink) Record(ctx context.Context, a auditlog.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.pub == nil {
		return errors.New("nil nats publisher")
	}
	b, err := json.Marshal(a.Event())
	if err != nil {
		return err
	}
	msg := nats.NewMsg(s.subject + "." + a.Type)
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = b
	return s.pub.PublishMsg(msg)
}
