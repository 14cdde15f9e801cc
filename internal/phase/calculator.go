package phase

import (
	"sort"
	"time"
)

// DefaultAtRiskDays is the days-until-due window that flags an in-progress
// phase as At Risk.
const DefaultAtRiskDays = 2

// Calculator derives effective state and schedule status from phase fields.
// It holds no mutable state and performs no I/O; results depend only on the
// phase row and the supplied "today", so they must be recomputed on every
// read rather than cached.
type Calculator struct {
	atRiskDays int
}

// NewCalculator creates a calculator with the given at-risk window in days.
// Values below 1 fall back to DefaultAtRiskDays.
func NewCalculator(atRiskDays int) Calculator {
	if atRiskDays < 1 {
		atRiskDays = DefaultAtRiskDays
	}
	return Calculator{atRiskDays: atRiskDays}
}

// ComputeEffectiveState maps a phase row to its effective lifecycle state and
// schedule status as of today. Manual overrides take precedence over computed
// values; missing dates degrade to On Track rather than erroring.
func (c Calculator) ComputeEffectiveState(ph *WorkflowPhase, today time.Time) (State, ScheduleStatus) {
	state := c.effectiveState(ph)

	if ph.StatusOverride != nil {
		return state, *ph.StatusOverride
	}

	switch state {
	case StateComplete:
		return state, StatusComplete
	case StateNotStarted:
		return state, StatusNotStarted
	}

	// In Progress: judge against the planned end date when there is one.
	if ph.PlannedEndDate == nil {
		return state, StatusOnTrack
	}

	daysUntilDue := daysBetween(today, *ph.PlannedEndDate)
	switch {
	case daysUntilDue < 0:
		return state, StatusPastDue
	case daysUntilDue <= c.atRiskDays:
		return state, StatusAtRisk
	default:
		return state, StatusOnTrack
	}
}

func (c Calculator) effectiveState(ph *WorkflowPhase) State {
	if ph.StateOverride != nil {
		return *ph.StateOverride
	}
	if ph.ActualEndDate != nil {
		return StateComplete
	}
	if ph.ActualStartDate != nil {
		return StateInProgress
	}
	return ph.State
}

// Progress aggregates the effective states of a phase set into an overall
// percentage and the current phase (first non-complete in canonical order).
func (c Calculator) Progress(phases []WorkflowPhase, today time.Time) ProgressSummary {
	summary := ProgressSummary{TotalPhases: len(phases)}
	if len(phases) == 0 {
		return summary
	}

	ordered := make([]WorkflowPhase, len(phases))
	copy(ordered, phases)
	sort.Slice(ordered, func(i, j int) bool {
		return Index(ordered[i].Name) < Index(ordered[j].Name)
	})

	for i := range ordered {
		state, _ := c.ComputeEffectiveState(&ordered[i], today)
		if state == StateComplete {
			summary.CompletedPhases++
			continue
		}
		if summary.CurrentPhase == nil {
			name := ordered[i].Name
			summary.CurrentPhase = &name
		}
	}

	summary.OverallProgress = 100 * summary.CompletedPhases / summary.TotalPhases
	return summary
}

// View decorates a phase row with its effective state and status as of today.
func (c Calculator) View(ph *WorkflowPhase, today time.Time) PhaseView {
	state, status := c.ComputeEffectiveState(ph, today)
	return PhaseView{
		WorkflowPhase:   *ph,
		EffectiveState:  state,
		EffectiveStatus: status,
	}
}

// daysBetween counts whole calendar days from a to b, ignoring time of day.
// Negative when b is before a.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
