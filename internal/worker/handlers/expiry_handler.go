package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"synapse/internal/assignment"
	"synapse/internal/logger"
	"synapse/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ExpiryHandler sweeps overdue open assignments into the expired state.
type ExpiryHandler struct {
	coordinator *assignment.Coordinator
}

// NewExpiryHandler creates the handler.
func NewExpiryHandler(coordinator *assignment.Coordinator) *ExpiryHandler {
	return &ExpiryHandler{coordinator: coordinator}
}

// Handle processes one expiry-sweep task.
func (h *ExpiryHandler) Handle(ctx context.Context, t *asynq.Task) error {
	asOf := time.Now().UTC()
	if len(t.Payload()) > 0 {
		var payload tasks.ExpireAssignmentsPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode expiry payload: %w", err)
		}
		if payload.AsOf != "" {
			parsed, err := time.Parse(time.RFC3339, payload.AsOf)
			if err != nil {
				return fmt.Errorf("parse as_of: %w", err)
			}
			asOf = parsed
		}
	}

	count, err := h.coordinator.ExpireOverdue(ctx, asOf)
	if err != nil {
		return fmt.Errorf("expire overdue assignments: %w", err)
	}
	if count > 0 {
		logger.WithContext(ctx).Info("expiry sweep complete", zap.Int64("expired", count))
	}
	return nil
}
