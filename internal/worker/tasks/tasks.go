package tasks

// Task type names routed by the asynq worker server.
const (
	// TypeDispatchSignal delivers a phase-transition signal to the
	// durable-execution substrate.
	TypeDispatchSignal = "substrate:dispatch_signal"

	// TypeDeliverNotification hands a workflow event to the out-of-band
	// notification dispatcher.
	TypeDeliverNotification = "notification:deliver"

	// TypeExpireAssignments sweeps overdue open assignments into the expired
	// state.
	TypeExpireAssignments = "assignment:expire_sweep"
)

// Queue names.
const (
	QueueSubstrate     = "substrate"
	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
)

// DispatchSignalPayload carries one substrate signal.
type DispatchSignalPayload struct {
	WorkflowID string         `json:"workflow_id"`
	Signal     string         `json:"signal"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// DeliverNotificationPayload carries one workflow event for delivery.
type DeliverNotificationPayload struct {
	Event     string         `json:"event"`
	Recipient string         `json:"recipient"`
	Role      string         `json:"role,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// ExpireAssignmentsPayload triggers one expiry sweep. AsOf is RFC3339; empty
// means "now" at processing time.
type ExpireAssignmentsPayload struct {
	AsOf string `json:"as_of,omitempty"`
}
