package phase

import (
	"time"
)

// Name identifies one of the nine fixed testing phases. The set and order are
// domain-specific and never extended at runtime.
type Name string

const (
	NamePlanning         Name = "Planning"
	NameDataProfiling    Name = "Data Profiling"
	NameScoping          Name = "Scoping"
	NameSampleSelection  Name = "Sample Selection"
	NameDataOwnerID      Name = "Data Owner Identification"
	NameRequestInfo      Name = "Request for Information"
	NameTestExecution    Name = "Test Execution"
	NameObservations     Name = "Observations"
	NameFinalReport      Name = "Final Report"
)

// CanonicalOrder is the fixed phase sequence for every cycle/report pair.
var CanonicalOrder = []Name{
	NamePlanning,
	NameDataProfiling,
	NameScoping,
	NameSampleSelection,
	NameDataOwnerID,
	NameRequestInfo,
	NameTestExecution,
	NameObservations,
	NameFinalReport,
}

// Index returns the canonical position of a phase name, or -1 when the name is
// not one of the nine phases.
func Index(n Name) int {
	for i, name := range CanonicalOrder {
		if name == n {
			return i
		}
	}
	return -1
}

// ValidName reports whether n belongs to the fixed phase list.
func ValidName(n Name) bool {
	return Index(n) >= 0
}

// State is the phase lifecycle state.
type State string

const (
	StateNotStarted State = "Not Started"
	StateInProgress State = "In Progress"
	StateComplete   State = "Complete"
)

// ScheduleStatus is the schedule-health classification shown next to a phase.
type ScheduleStatus string

const (
	StatusOnTrack    ScheduleStatus = "On Track"
	StatusAtRisk     ScheduleStatus = "At Risk"
	StatusPastDue    ScheduleStatus = "Past Due"
	StatusComplete   ScheduleStatus = "Complete"
	StatusNotStarted ScheduleStatus = "Not Started"
)

// WorkflowPhase is one phase instance of a (cycle, report) pair. All nine rows
// are created together at initialization and are never deleted, only
// superseded by new cycles.
type WorkflowPhase struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	CycleID  string `json:"cycleId" gorm:"type:uuid;not null;uniqueIndex:idx_phase_cycle_report_name;index"`
	ReportID string `json:"reportId" gorm:"type:uuid;not null;uniqueIndex:idx_phase_cycle_report_name;index"`
	Name     Name   `json:"name" gorm:"size:50;not null;uniqueIndex:idx_phase_cycle_report_name"`

	State State `json:"state" gorm:"size:20;not null;default:'Not Started'"`

	PlannedStartDate *time.Time `json:"plannedStartDate"`
	PlannedEndDate   *time.Time `json:"plannedEndDate"`
	ActualStartDate  *time.Time `json:"actualStartDate"`
	ActualEndDate    *time.Time `json:"actualEndDate"`

	// Manual overrides sit on top of the computed values and never alter the
	// underlying state or dates. A non-empty reason is mandatory when set.
	StateOverride  *State          `json:"stateOverride,omitempty" gorm:"size:20"`
	StatusOverride *ScheduleStatus `json:"statusOverride,omitempty" gorm:"size:20"`
	OverrideReason string          `json:"overrideReason,omitempty" gorm:"type:text"`

	CompletionNotes string `json:"completionNotes,omitempty" gorm:"type:text"`
	StartedBy       string `json:"startedBy,omitempty" gorm:"size:100"`
	CompletedBy     string `json:"completedBy,omitempty" gorm:"size:100"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName pins the table name.
func (WorkflowPhase) TableName() string {
	return "workflow_phases"
}

// PhaseView is a phase row decorated with its effective state and status,
// recomputed on every read.
type PhaseView struct {
	WorkflowPhase
	EffectiveState  State          `json:"effectiveState"`
	EffectiveStatus ScheduleStatus `json:"effectiveStatus"`
}

// ProgressSummary aggregates phase completion for one (cycle, report) pair.
type ProgressSummary struct {
	TotalPhases     int   `json:"totalPhases"`
	CompletedPhases int   `json:"completedPhases"`
	OverallProgress int   `json:"overallProgress"` // percent, 0..100
	CurrentPhase    *Name `json:"currentPhase"`    // first non-complete phase, nil when all complete
}
