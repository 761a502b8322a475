package messaging

import (
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// AuditLog writes every event as one structured log line.
func AuditLog(bus shared.EventSubscriber, log *logger.Logger) error {
	audit := log.With(logger.Component("audit"))
	return bus.SubscribeAll(func(e shared.Event) error {
		fields := []logger.Field{
			logger.String("event_type", string(e.EventType())),
			logger.StudentID(e.AggregateID()),
			logger.Time("occurred_at", e.OccurredAt()),
		}
		for k, v := range e.Payload() {
			fields = append(fields, logger.Any(k, v))
		}
		audit.Info("ledger event", fields...)
		return nil
	})
}
