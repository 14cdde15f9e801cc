package phase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"synapse/internal/assignment"
	"synapse/internal/common"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&WorkflowPhase{}, &assignment.Assignment{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, opts ...ServiceOption) *Service {
	t.Helper()
	return NewService(db, NewCalculator(2), opts...)
}

func TestInitializeWorkflowCreatesNinePhases(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	created, err := svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)
	require.Len(t, created, 9)

	views, err := svc.ListPhases(ctx, "cycle-1", "report-1")
	require.NoError(t, err)
	require.Len(t, views, 9)
	for i, view := range views {
		require.Equal(t, CanonicalOrder[i], view.Name)
		require.Equal(t, StateNotStarted, view.EffectiveState)
		require.Equal(t, StatusNotStarted, view.EffectiveStatus)
	}

	// Re-initializing the same pair conflicts.
	_, err = svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	var conflict *common.ConflictError
	require.ErrorAs(t, err, &conflict)

	// A second pair initializes independently.
	_, err = svc.InitializeWorkflow(ctx, "cycle-1", "report-2")
	require.NoError(t, err)
}

func TestInitializeWorkflowRaceLoserGetsConflict(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	// Slip a competing row for the same pair in just before the batch insert,
	// the way a second initializer racing past the count check would.
	injected := false
	err := db.Callback().Create().Before("gorm:create").Register("competing_initializer", func(tx *gorm.DB) {
		if injected {
			return
		}
		phases, ok := tx.Statement.Dest.(*[]WorkflowPhase)
		if !ok || len(*phases) == 0 {
			return
		}
		injected = true
		competing := (*phases)[0]
		competing.ID = uuid.New().String()
		tx.Session(&gorm.Session{NewDB: true}).Create(&competing)
	})
	require.NoError(t, err)

	_, err = svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	var conflict *common.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.True(t, injected)

	// The loser rolled back cleanly; a retry initializes all nine phases.
	require.NoError(t, db.Callback().Create().Remove("competing_initializer"))
	created, err := svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)
	require.Len(t, created, 9)
}

func TestStartPhaseRequiresPlannedEnd(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	_, err := svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)

	_, err = svc.StartPhase(ctx, "cycle-1", "report-1", NamePlanning, nil, nil, "tester-1")
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = svc.StartPhase(ctx, "cycle-1", "report-1", "No Such Phase", nil, datePtr(2025, 6, 20), "tester-1")
	require.ErrorAs(t, err, &validation)
}

func TestStartAndCompletePhase(t *testing.T) {
	db := openTestDB(t)
	now := date(2025, 6, 10)
	svc := newTestService(t, db, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)

	view, err := svc.StartPhase(ctx, "cycle-1", "report-1", NamePlanning,
		datePtr(2025, 6, 10), datePtr(2025, 6, 20), "tester-1")
	require.NoError(t, err)
	require.Equal(t, StateInProgress, view.EffectiveState)
	require.Equal(t, StatusOnTrack, view.EffectiveStatus)
	require.Equal(t, "tester-1", view.StartedBy)

	// Starting twice is an invalid transition.
	_, err = svc.StartPhase(ctx, "cycle-1", "report-1", NamePlanning,
		datePtr(2025, 6, 10), datePtr(2025, 6, 20), "tester-1")
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)

	view, err = svc.CompletePhase(ctx, "cycle-1", "report-1", NamePlanning, "done early", "tester-1")
	require.NoError(t, err)
	require.Equal(t, StateComplete, view.EffectiveState)
	require.Equal(t, StatusComplete, view.EffectiveStatus)
	require.Equal(t, "done early", view.CompletionNotes)

	// Completing twice is an invalid transition as well.
	_, err = svc.CompletePhase(ctx, "cycle-1", "report-1", NamePlanning, "", "tester-1")
	require.ErrorAs(t, err, &invalidState)

	summary, err := svc.GetProgress(ctx, "cycle-1", "report-1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.CompletedPhases)
	require.Equal(t, 11, summary.OverallProgress)
	require.Equal(t, NameDataProfiling, *summary.CurrentPhase)
}

func TestCompletePhaseConcurrentCallersSerialize(t *testing.T) {
	db := openTestDB(t)
	now := date(2025, 6, 10)
	winner := newTestService(t, db, WithClock(func() time.Time { return now }))
	loser := newTestService(t, db, WithClock(func() time.Time { return now.Add(time.Minute) }))
	ctx := context.Background()

	_, err := winner.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)
	_, err = winner.StartPhase(ctx, "cycle-1", "report-1", NamePlanning,
		nil, datePtr(2025, 6, 20), "tester-1")
	require.NoError(t, err)

	// Both callers observed the phase In Progress. The guarded update admits
	// exactly one; the second sees zero affected rows.
	view, err := winner.CompletePhase(ctx, "cycle-1", "report-1", NamePlanning, "all tests passed", "tester-1")
	require.NoError(t, err)
	require.Equal(t, StateComplete, view.EffectiveState)

	_, err = loser.CompletePhase(ctx, "cycle-1", "report-1", NamePlanning, "wrapping up", "tester-2")
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)

	// The winner's completion record stands untouched.
	final, err := winner.GetPhase(ctx, "cycle-1", "report-1", NamePlanning)
	require.NoError(t, err)
	require.Equal(t, "all tests passed", final.CompletionNotes)
	require.Equal(t, "tester-1", final.CompletedBy)
	require.NotNil(t, final.ActualEndDate)
	require.True(t, final.ActualEndDate.Equal(now))
}

func TestCompletePhaseBlockedByCriticalAssignment(t *testing.T) {
	db := openTestDB(t)
	coordinator := assignment.NewCoordinator(db, assignment.DefaultCascadeTable())
	svc := newTestService(t, db, WithGate(coordinator))
	ctx := context.Background()

	_, err := svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)
	_, err = svc.StartPhase(ctx, "cycle-1", "report-1", NameTestExecution,
		nil, datePtr(2025, 7, 1), "tester-1")
	require.NoError(t, err)

	blocker, err := coordinator.Create(ctx, assignment.CreateInput{
		Type:      assignment.TypeTestReview,
		ToUserID:  "tester-1",
		CycleID:   "cycle-1",
		ReportID:  "report-1",
		PhaseName: string(NameTestExecution),
		Priority:  assignment.PriorityCritical,
	})
	require.NoError(t, err)

	_, err = svc.CompletePhase(ctx, "cycle-1", "report-1", NameTestExecution, "", "tester-1")
	var blocked *common.BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Contains(t, blocked.BlockingIDs, blocker.ID)

	// Resolve the blocker; completion then goes through. The completing user
	// holds the tester role, so the cascade fires for the review type.
	_, err = coordinator.Acknowledge(ctx, blocker.ID, "tester-1")
	require.NoError(t, err)
	_, _, err = coordinator.Complete(ctx, blocker.ID, "tester-1", "Tester", nil)
	require.NoError(t, err)

	view, err := svc.CompletePhase(ctx, "cycle-1", "report-1", NameTestExecution, "", "tester-1")
	require.NoError(t, err)
	require.Equal(t, StateComplete, view.EffectiveState)
}

func TestOverrideAndClear(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	_, err := svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)

	stateOv := StateInProgress
	statusOv := StatusAtRisk

	// Reason is mandatory.
	_, err = svc.OverridePhase(ctx, "cycle-1", "report-1", NamePlanning, &stateOv, &statusOv, "")
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)

	view, err := svc.OverridePhase(ctx, "cycle-1", "report-1", NamePlanning, &stateOv, &statusOv, "kickoff delayed")
	require.NoError(t, err)
	require.Equal(t, StateInProgress, view.EffectiveState)
	require.Equal(t, StatusAtRisk, view.EffectiveStatus)
	require.Equal(t, "kickoff delayed", view.OverrideReason)

	// The stored state is untouched underneath the override.
	require.Equal(t, StateNotStarted, view.State)

	view, err = svc.ClearOverrides(ctx, "cycle-1", "report-1", NamePlanning)
	require.NoError(t, err)
	require.Equal(t, StateNotStarted, view.EffectiveState)
	require.Equal(t, StatusNotStarted, view.EffectiveStatus)
	require.Empty(t, view.OverrideReason)
	require.Nil(t, view.StateOverride)
	require.Nil(t, view.StatusOverride)
}

func TestUpdatePhaseDatesValidation(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	_, err := svc.InitializeWorkflow(ctx, "cycle-1", "report-1")
	require.NoError(t, err)

	_, err = svc.UpdatePhaseDates(ctx, "cycle-1", "report-1", NamePlanning,
		datePtr(2025, 6, 20), datePtr(2025, 6, 10))
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)

	view, err := svc.UpdatePhaseDates(ctx, "cycle-1", "report-1", NamePlanning,
		datePtr(2025, 6, 10), datePtr(2025, 6, 20))
	require.NoError(t, err)
	require.True(t, view.PlannedStartDate.Equal(date(2025, 6, 10)))
	require.True(t, view.PlannedEndDate.Equal(date(2025, 6, 20)))
}

func TestGetPhaseNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.GetPhase(context.Background(), "cycle-x", "report-x", NamePlanning)
	var notFound *common.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
