package substrate

import (
	"context"
	"encoding/json"
	"fmt"

	"synapse/internal/infra/queue"
	"synapse/internal/worker/tasks"

	"github.com/redis/go-redis/v9"
)

// QueueClient implements Client over the asynq task queue (signals) and a
// redis schedule cache maintained by the external substrate worker (queries).
type QueueClient struct {
	queue     queue.Client
	redis     *redis.Client
	keyPrefix string
}

// NewQueueClient creates the production substrate client. redis may be nil, in
// which case QuerySchedule reports the substrate as unavailable.
func NewQueueClient(q queue.Client, rdb *redis.Client, keyPrefix string) *QueueClient {
	if keyPrefix == "" {
		keyPrefix = "substrate:schedule:"
	}
	return &QueueClient{queue: q, redis: rdb, keyPrefix: keyPrefix}
}

// SendSignal enqueues the signal for asynchronous dispatch.
func (c *QueueClient) SendSignal(ctx context.Context, workflowID, signal string, payload map[string]any) error {
	return c.queue.EnqueueDispatchSignal(tasks.DispatchSignalPayload{
		WorkflowID: workflowID,
		Signal:     signal,
		Payload:    payload,
	})
}

// QuerySchedule reads the substrate's published schedule state from redis.
func (c *QueueClient) QuerySchedule(ctx context.Context, workflowID, query string) (map[string]any, error) {
	if c.redis == nil {
		return nil, fmt.Errorf("substrate schedule cache unavailable")
	}

	raw, err := c.redis.HGet(ctx, c.keyPrefix+workflowID, query).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("no schedule state for %s/%s", workflowID, query)
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode schedule state: %w", err)
	}
	return state, nil
}

// Noop is a substrate client that accepts everything and knows nothing. Used
// in tests and when coordination is disabled.
type Noop struct{}

// SendSignal discards the signal.
func (Noop) SendSignal(ctx context.Context, workflowID, signal string, payload map[string]any) error {
	return nil
}

// QuerySchedule reports no state.
func (Noop) QuerySchedule(ctx context.Context, workflowID, query string) (map[string]any, error) {
	return map[string]any{}, nil
}
