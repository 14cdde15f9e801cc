package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"synapse/internal/config"
	"synapse/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client enqueues background work. The core treats every enqueue as
// best-effort: callers log failures but do not fail the originating request.
type Client interface {
	EnqueueDispatchSignal(payload tasks.DispatchSignalPayload) error
	EnqueueDeliverNotification(payload tasks.DeliverNotificationPayload) error
	EnqueueExpireAssignments(payload tasks.ExpireAssignmentsPayload) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient creates an asynq-backed queue client.
func NewClient(cfg config.RedisConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &asynqClient{client: client}
}

func (c *asynqClient) EnqueueDispatchSignal(payload tasks.DispatchSignalPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Signals are a secondary coordination aid; cap retries so a dead
	// substrate cannot pile up work forever.
	_, err = c.client.Enqueue(asynq.NewTask(tasks.TypeDispatchSignal, data),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Queue(tasks.QueueSubstrate),
	)
	if err != nil {
		return fmt.Errorf("enqueue signal: %w", err)
	}
	return nil
}

func (c *asynqClient) EnqueueDeliverNotification(payload tasks.DeliverNotificationPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = c.client.Enqueue(asynq.NewTask(tasks.TypeDeliverNotification, data),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Queue(tasks.QueueNotifications),
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (c *asynqClient) EnqueueExpireAssignments(payload tasks.ExpireAssignmentsPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = c.client.Enqueue(asynq.NewTask(tasks.TypeExpireAssignments, data),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(tasks.QueueMaintenance),
	)
	if err != nil {
		return fmt.Errorf("enqueue expiry sweep: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
