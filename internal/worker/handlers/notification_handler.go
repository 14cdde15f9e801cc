package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"synapse/internal/logger"
	"synapse/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// NotificationHandler hands queued workflow events to the external delivery
// dispatcher. Delivery channels (email, in-app) live outside this service;
// here the event is logged as handed off.
type NotificationHandler struct{}

// NewNotificationHandler creates the handler.
func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{}
}

// Handle processes one deliver-notification task.
func (h *NotificationHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload tasks.DeliverNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode notification payload: %w", err)
	}

	logger.WithContext(ctx).Info("notification handed off",
		zap.String("event", payload.Event),
		zap.String("recipient", payload.Recipient),
		zap.String("role", payload.Role),
		zap.Any("detail", payload.Detail),
	)
	return nil
}
