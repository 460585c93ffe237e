// Package audit records user actions without ever blocking or failing the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
	clockport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/clock"
)

// DefaultTimeout bounds a single Record call made in the background.
const DefaultTimeout = 5 * time.Second

// Tracker hands actions to a Sink on a detached goroutine. Failures are logged.
type Tracker struct {
	sink auditlog.Sink
	clk  clockport.Clock
	log  *zap.Logger

	Timeout time.Duration

	wg sync.WaitGroup
}

func NewTracker(sink auditlog.Sink, clk clockport.Clock, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{sink: sink, clk: clk, log: log, Timeout: DefaultTimeout}
}

// Track records the action in the background. The request context's values are
// kept but its cancellation is not, so the write outlives the request.
func (t *Tracker) Track(ctx context.Context, email string, bookingID domain.BookingID, actionType string, data map[string]any) {
	if t == nil || t.sink == nil {
		return
	}
	a := auditlog.Action{
		UserEmail: domain.NormalizeEmail(email),
		BookingID: bookingID,
		Type:      actionType,
		Data:      data,
		At:        t.clk.Now(),
	}

	detached := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		cctx, cancel := context.WithTimeout(detached, t.Timeout)
		defer cancel()
		if err := t.sink.Record(cctx, a); err != nil {
			t.log.Warn("audit record failed",
				zap.String("action", a.Type),
				zap.String("bookingId", string(a.BookingID)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every in-flight Track call has finished.
func (t *Tracker) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}
