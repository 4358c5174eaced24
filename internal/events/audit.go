package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/events/bus"
)

// AuditLog is the event bus's structured-log subscriber: it consumes every
// task/agent-turn lifecycle event the executor publishes and logs it,
// giving the bus a real consumer rather than a publish-only side channel.
// Grounded on the teacher's internal/gateway/websocket/task_notifications.go
// (TaskEventBroadcaster), narrowed from a websocket fan-out to logging
// since this runtime has no websocket hub.
type AuditLog struct {
	sub bus.Subscription
	log *logger.Logger
}

// RegisterAuditLog subscribes a new AuditLog to every task event on
// eventBus. Safe to call with a nil eventBus (e.g. if wiring is skipped in
// a test harness); the returned AuditLog is then a no-op.
func RegisterAuditLog(eventBus bus.EventBus, log *logger.Logger) *AuditLog {
	a := &AuditLog{log: log.WithFields(zap.String("component", "event-audit"))}
	if eventBus == nil {
		return a
	}

	sub, err := eventBus.Subscribe(BuildTaskWildcardSubject(), func(_ context.Context, ev *bus.Event) error {
		a.log.Info("task event",
			zap.String("event_type", ev.Type),
			zap.String("event_id", ev.ID),
			zap.Any("data", ev.Data),
		)
		return nil
	})
	if err != nil {
		a.log.Error("failed to subscribe to task events", zap.Error(err))
		return a
	}
	a.sub = sub
	return a
}

// Close unsubscribes from the event bus.
func (a *AuditLog) Close() {
	if a.sub != nil && a.sub.IsValid() {
		_ = a.sub.Unsubscribe()
	}
}
