// Package notification hands workflow events to the out-of-band delivery
// layer. Dispatch is fire-and-forget from the core's perspective: a failed
// notification never fails the operation that produced it.
package notification

import (
	"context"

	"synapse/internal/logger"

	"go.uber.org/zap"
)

// Event types.
const (
	EventAssignmentCreated   = "assignment_created"
	EventAssignmentCompleted = "assignment_completed"
	EventAssignmentExpired   = "assignment_expired"
	EventPhaseStarted        = "phase_started"
	EventPhaseCompleted      = "phase_completed"
	EventResubmissionRequest = "resubmission_requested"
)

// Event is one workflow occurrence worth telling somebody about.
type Event struct {
	Type      string
	Recipient string // user id or role name
	Role      string
	Detail    map[string]any
}

// Notifier delivers events out of band.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

// LogNotifier writes events to the application log. It is the fallback when
// no delivery channel is configured, and keeps tests quiet via the no-op
// global logger.
type LogNotifier struct{}

// Notify logs the event.
func (LogNotifier) Notify(ctx context.Context, evt Event) {
	logger.WithContext(ctx).Info("notification",
		zap.String("event", evt.Type),
		zap.String("recipient", evt.Recipient),
		zap.String("role", evt.Role),
		zap.Any("detail", evt.Detail),
	)
}

// MultiNotifier fans one event out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a fan-out notifier; nil entries are skipped.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify delivers the event to every registered notifier.
func (m *MultiNotifier) Notify(ctx context.Context, evt Event) {
	for _, n := range m.notifiers {
		n.Notify(ctx, evt)
	}
}
