// Package substrate talks to the external durable-execution layer that hosts
// the long-running per-report workflows. The relational store remains the
// source of truth; everything here is best-effort coordination, and callers
// must treat failures as non-fatal.
package substrate

import (
	"context"
	"fmt"
)

// Signal names emitted on phase transitions.
const (
	SignalPhaseStarted   = "phase_started"
	SignalPhaseCompleted = "phase_completed"
	SignalPhaseOverride  = "phase_override"
)

// Client is the contract the core needs from the substrate.
type Client interface {
	// SendSignal delivers a named signal to the workflow identified by
	// workflowID. Delivery is asynchronous and may be retried by the queue.
	SendSignal(ctx context.Context, workflowID, signal string, payload map[string]any) error

	// QuerySchedule reads the substrate's current awaited-action state for the
	// workflow. Advisory only; may lag behind the relational store.
	QuerySchedule(ctx context.Context, workflowID, query string) (map[string]any, error)
}

// WorkflowID derives the substrate workflow identifier for a (cycle, report)
// pair. The scheme must stay stable across deployments since the substrate
// keys its histories by it.
func WorkflowID(cycleID, reportID string) string {
	return fmt.Sprintf("test-workflow-%s-%s", cycleID, reportID)
}
