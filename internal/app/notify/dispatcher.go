// Package notify sends the booking WhatsApp templates and folds the per-template
// results into one outcome for the status banner.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/domain/phone"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/messaging"
)

const (
	TemplateAfterBooking = "after_booking"
	TemplateGuidelines   = "guidelines_24_car"
)

// DefaultSendTimeout bounds each provider call.
const DefaultSendTimeout = 15 * time.Second

type Template struct {
	Name string
	// Params nil means "use the default booking id parameter"; an empty slice sends none.
	Params []messaging.Param
}

// BookingTemplates are the two templates sent after a booking is confirmed.
func BookingTemplates(id domain.BookingID) []Template {
	return []Template{
		{Name: TemplateAfterBooking, Params: []messaging.Param{{Name: "BookingID", Value: string(id)}}},
		{Name: TemplateGuidelines, Params: []messaging.Param{}},
	}
}

type Recipient struct {
	Phone     string
	Locale    string
	BookingID domain.BookingID
}

type Outcome struct {
	Template string
	Response messaging.Response
	// Err keeps the provider's error untouched for diagnostics.
	Err error
}

func (o Outcome) OK() bool { return o.Err == nil }

type Dispatcher struct {
	sender messaging.Sender
	log    *zap.Logger

	SendTimeout time.Duration
}

func NewDispatcher(sender messaging.Sender, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sender: sender, log: log, SendTimeout: DefaultSendTimeout}
}

// Send delivers one template. It never retries.
func (d *Dispatcher) Send(ctx context.Context, r Recipient, t Template) Outcome {
	params := t.Params
	if params == nil {
		params = []messaging.Param{{Name: "1", Value: string(r.BookingID)}}
	}
	msg := messaging.Message{
		Recipient:     phone.Normalize(r.Phone, r.Locale, phone.DefaultCode),
		TemplateName:  t.Name,
		BroadcastName: BroadcastName(r.BookingID),
		Params:        params,
	}

	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	resp, err := d.sender.Send(ctx, msg)
	if err != nil {
		d.log.Warn("whatsapp template failed",
			zap.String("template", t.Name),
			zap.String("bookingId", string(r.BookingID)),
			zap.Error(err),
		)
	}
	return Outcome{Template: t.Name, Response: resp, Err: err}
}

// SendAll sends every template concurrently and waits for all of them.
// Outcomes keep the order of ts.
func (d *Dispatcher) SendAll(ctx context.Context, r Recipient, ts []Template) Aggregate {
	out := Aggregate{Total: len(ts), Outcomes: make([]Outcome, len(ts))}

	// Sends never return an error to the group so one failure does not cancel the rest.
	var g errgroup.Group
	var mu sync.Mutex
	for i, t := range ts {
		i, t := i, t
		g.Go(func() error {
			o := d.Send(ctx, r, t)
			mu.Lock()
			out.Outcomes[i] = o
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range out.Outcomes {
		if o.OK() {
			out.Sent++
		}
	}
	d.log.Info("whatsapp templates sent",
		zap.String("bookingId", string(r.BookingID)),
		zap.Int("sent", out.Sent),
		zap.Int("total", out.Total),
	)
	return out
}

// BroadcastName is the provider broadcast label for a booking.
func BroadcastName(id domain.BookingID) string {
	return fmt.Sprintf("booking_notification_%s", id)
}
