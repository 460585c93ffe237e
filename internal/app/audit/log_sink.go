package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
)

// LogSink writes actions to the structured log. It is the default sink.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

func (s *LogSink) Record(ctx context.Context, a auditlog.Action) error {
	_ = ctx
	s.log.Info("user action",
		zap.String("actionType", a.Type),
		zap.String("userEmail", a.UserEmail),
		zap.String("bookingId", string(a.BookingID)),
		zap.Any("actionData", a.Data),
		zap.Time("at", a.At),
	)
	return nil
}
