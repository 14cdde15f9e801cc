package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestComputeEffectiveStateFromDates(t *testing.T) {
	calc := NewCalculator(DefaultAtRiskDays)
	today := date(2025, 6, 10)

	ph := &WorkflowPhase{Name: NamePlanning, State: StateNotStarted}
	state, status := calc.ComputeEffectiveState(ph, today)
	require.Equal(t, StateNotStarted, state)
	require.Equal(t, StatusNotStarted, status)

	ph.ActualStartDate = datePtr(2025, 6, 1)
	state, _ = calc.ComputeEffectiveState(ph, today)
	require.Equal(t, StateInProgress, state)

	ph.ActualEndDate = datePtr(2025, 6, 9)
	state, status = calc.ComputeEffectiveState(ph, today)
	require.Equal(t, StateComplete, state)
	require.Equal(t, StatusComplete, status)
}

func TestComputeScheduleStatusWindows(t *testing.T) {
	calc := NewCalculator(2)
	today := date(2025, 6, 10)

	inProgress := func(end time.Time) *WorkflowPhase {
		return &WorkflowPhase{
			Name:            NameScoping,
			State:           StateNotStarted,
			ActualStartDate: datePtr(2025, 6, 1),
			PlannedEndDate:  &end,
		}
	}

	// Due comfortably in the future.
	_, status := calc.ComputeEffectiveState(inProgress(date(2025, 6, 15)), today)
	require.Equal(t, StatusOnTrack, status)

	// Due exactly at the at-risk boundary.
	_, status = calc.ComputeEffectiveState(inProgress(date(2025, 6, 12)), today)
	require.Equal(t, StatusAtRisk, status)

	// Due today still counts as at risk, not past due.
	_, status = calc.ComputeEffectiveState(inProgress(date(2025, 6, 10)), today)
	require.Equal(t, StatusAtRisk, status)

	// Due yesterday.
	_, status = calc.ComputeEffectiveState(inProgress(date(2025, 6, 9)), today)
	require.Equal(t, StatusPastDue, status)

	// No planned end date degrades to on track rather than erroring.
	ph := &WorkflowPhase{Name: NameScoping, State: StateNotStarted, ActualStartDate: datePtr(2025, 6, 1)}
	_, status = calc.ComputeEffectiveState(ph, today)
	require.Equal(t, StatusOnTrack, status)
}

func TestComputeEffectiveStateIsPure(t *testing.T) {
	calc := NewCalculator(2)
	ph := &WorkflowPhase{
		Name:            NamePlanning,
		State:           StateNotStarted,
		ActualStartDate: datePtr(2025, 6, 1),
		PlannedEndDate:  datePtr(2025, 6, 12),
	}

	// Same inputs, same answer; a different today flips the classification
	// without any mutation of the row.
	_, statusA := calc.ComputeEffectiveState(ph, date(2025, 6, 5))
	_, statusB := calc.ComputeEffectiveState(ph, date(2025, 6, 5))
	require.Equal(t, statusA, statusB)
	require.Equal(t, StatusOnTrack, statusA)

	_, status := calc.ComputeEffectiveState(ph, date(2025, 6, 20))
	require.Equal(t, StatusPastDue, status)
	require.Nil(t, ph.StateOverride)
}

func TestOverridesTakePrecedence(t *testing.T) {
	calc := NewCalculator(2)
	today := date(2025, 6, 10)

	stateOv := StateComplete
	statusOv := StatusAtRisk
	ph := &WorkflowPhase{
		Name:           NamePlanning,
		State:          StateNotStarted,
		StateOverride:  &stateOv,
		StatusOverride: &statusOv,
	}

	state, status := calc.ComputeEffectiveState(ph, today)
	require.Equal(t, StateComplete, state)
	require.Equal(t, StatusAtRisk, status)

	// Clearing the overrides restores the computed values exactly.
	ph.StateOverride = nil
	ph.StatusOverride = nil
	state, status = calc.ComputeEffectiveState(ph, today)
	require.Equal(t, StateNotStarted, state)
	require.Equal(t, StatusNotStarted, status)
}

func TestProgressAggregation(t *testing.T) {
	calc := NewCalculator(2)
	today := date(2025, 6, 10)

	var rows []WorkflowPhase
	for _, name := range CanonicalOrder {
		rows = append(rows, WorkflowPhase{Name: name, State: StateNotStarted})
	}

	summary := calc.Progress(rows, today)
	require.Equal(t, 9, summary.TotalPhases)
	require.Equal(t, 0, summary.CompletedPhases)
	require.Equal(t, 0, summary.OverallProgress)
	require.NotNil(t, summary.CurrentPhase)
	require.Equal(t, NamePlanning, *summary.CurrentPhase)

	// Complete the first three phases; the fourth becomes current.
	for i := 0; i < 3; i++ {
		rows[i].ActualStartDate = datePtr(2025, 6, 1)
		rows[i].ActualEndDate = datePtr(2025, 6, 5)
	}
	summary = calc.Progress(rows, today)
	require.Equal(t, 3, summary.CompletedPhases)
	require.Equal(t, 33, summary.OverallProgress)
	require.Equal(t, NameSampleSelection, *summary.CurrentPhase)

	// All complete.
	for i := range rows {
		rows[i].ActualStartDate = datePtr(2025, 6, 1)
		rows[i].ActualEndDate = datePtr(2025, 6, 5)
	}
	summary = calc.Progress(rows, today)
	require.Equal(t, 9, summary.CompletedPhases)
	require.Equal(t, 100, summary.OverallProgress)
	require.Nil(t, summary.CurrentPhase)
}
