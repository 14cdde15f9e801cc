package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"synapse/internal/logger"
	"synapse/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SignalHandler delivers phase-transition signals to the durable-execution
// substrate by publishing them on the per-workflow redis channel the
// substrate worker subscribes to. A returned error makes asynq retry.
type SignalHandler struct {
	rdb *redis.Client
}

// NewSignalHandler creates the handler. rdb may be nil when the substrate is
// disabled; signals are then dropped with a log line.
func NewSignalHandler(rdb *redis.Client) *SignalHandler {
	return &SignalHandler{rdb: rdb}
}

// Handle processes one dispatch-signal task.
func (h *SignalHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload tasks.DispatchSignalPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode signal payload: %w", err)
	}

	if h.rdb == nil {
		logger.WithContext(ctx).Info("substrate disabled, dropping signal",
			zap.String("workflow_id", payload.WorkflowID),
			zap.String("signal", payload.Signal),
		)
		return nil
	}

	message, err := json.Marshal(map[string]any{
		"signal":  payload.Signal,
		"payload": payload.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode signal message: %w", err)
	}

	channel := "substrate:signals:" + payload.WorkflowID
	if err := h.rdb.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}

	logger.WithContext(ctx).Debug("signal dispatched",
		zap.String("workflow_id", payload.WorkflowID),
		zap.String("signal", payload.Signal),
	)
	return nil
}
