package assignment

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the assignment lifecycle state. Transitions move forward only,
// except explicit reassignment; completed/approved/rejected/expired are
// terminal.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusExpired      Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Open reports whether the assignment still demands work from its assignee.
func (s Status) Open() bool {
	switch s {
	case StatusPending, StatusAcknowledged, StatusInProgress:
		return true
	}
	return false
}

// Priority orders assignments and gates phase completion: Critical and Urgent
// open assignments block the owning phase.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
	PriorityUrgent   Priority = "Urgent"
)

// Blocking reports whether the priority gates phase completion.
func (p Priority) Blocking() bool {
	return p == PriorityCritical || p == PriorityUrgent
}

// Assignment is one cross-role work handoff. It references its phase through
// the cycle/report/phase context fields but does not own it.
type Assignment struct {
	ID   string `json:"id" gorm:"primaryKey;type:uuid"`
	Type string `json:"type" gorm:"size:100;not null;index"`

	FromUserID string `json:"fromUserId" gorm:"size:100"`
	FromRole   string `json:"fromRole" gorm:"size:50"`
	ToUserID   string `json:"toUserId" gorm:"size:100;index"`
	ToRole     string `json:"toRole" gorm:"size:50;index"`

	Status   Status   `json:"status" gorm:"size:20;not null;default:'pending';index"`
	Priority Priority `json:"priority" gorm:"size:20;not null;default:'Medium'"`
	DueDate  *time.Time `json:"dueDate"`

	CycleID   string `json:"cycleId" gorm:"type:uuid;index:idx_assignment_phase"`
	ReportID  string `json:"reportId" gorm:"type:uuid;index:idx_assignment_phase"`
	PhaseName string `json:"phaseName" gorm:"size:50;index:idx_assignment_phase"`

	Context        datatypes.JSONMap `json:"context,omitempty" gorm:"type:jsonb"`
	CompletionData datatypes.JSONMap `json:"completionData,omitempty" gorm:"type:jsonb"`

	// ParentAssignmentID links a cascaded assignment to the completion that
	// created it.
	ParentAssignmentID string `json:"parentAssignmentId,omitempty" gorm:"type:uuid;index"`

	AcknowledgedAt *time.Time `json:"acknowledgedAt"`
	StartedAt      *time.Time `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	CompletedBy    string     `json:"completedBy,omitempty" gorm:"size:100"`
	ReviewedBy     string     `json:"reviewedBy,omitempty" gorm:"size:100"`
	ReviewNotes    string     `json:"reviewNotes,omitempty" gorm:"type:text"`

	CreatedBy string    `json:"createdBy" gorm:"size:100"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName pins the table name.
func (Assignment) TableName() string {
	return "assignments"
}
