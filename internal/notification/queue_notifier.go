package notification

import (
	"context"

	"synapse/internal/infra/queue"
	"synapse/internal/logger"
	"synapse/internal/worker/tasks"

	"go.uber.org/zap"
)

// QueueNotifier pushes events onto the asynq notifications queue, where the
// worker hands them to the external dispatcher (email, in-app, etc.).
type QueueNotifier struct {
	queue queue.Client
}

// NewQueueNotifier creates an asynq-backed notifier.
func NewQueueNotifier(q queue.Client) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

// Notify enqueues the event. Enqueue failures are logged and swallowed.
func (n *QueueNotifier) Notify(ctx context.Context, evt Event) {
	err := n.queue.EnqueueDeliverNotification(tasks.DeliverNotificationPayload{
		Event:     evt.Type,
		Recipient: evt.Recipient,
		Role:      evt.Role,
		Detail:    evt.Detail,
	})
	if err != nil {
		logger.WithContext(ctx).Warn("notification enqueue failed",
			zap.String("event", evt.Type),
			zap.String("recipient", evt.Recipient),
			zap.Error(err),
		)
	}
}
