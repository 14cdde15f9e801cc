package assignment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"synapse/internal/auth"
	"synapse/internal/common"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Assignment{}))
	return db
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return NewCoordinator(openTestDB(t), DefaultCascadeTable())
}

func TestCreateValidation(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	var validation *common.ValidationError

	_, err := c.Create(ctx, CreateInput{ToUserID: "u-1"})
	require.ErrorAs(t, err, &validation) // missing type

	_, err = c.Create(ctx, CreateInput{Type: TypeScopingReview})
	require.ErrorAs(t, err, &validation) // no assignee at all

	a, err := c.Create(ctx, CreateInput{Type: TypeScopingReview, ToRole: auth.RoleTester})
	require.NoError(t, err)
	require.Equal(t, StatusPending, a.Status)
	require.Equal(t, PriorityMedium, a.Priority) // default
}

func TestLifecycleTransitions(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	a, err := c.Create(ctx, CreateInput{
		Type:     TypeScopingReview,
		ToUserID: "tester-1",
		ToRole:   auth.RoleTester,
	})
	require.NoError(t, err)

	// Only the assignee may act on it.
	_, err = c.Acknowledge(ctx, a.ID, "intruder")
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)

	acked, err := c.Acknowledge(ctx, a.ID, "tester-1")
	require.NoError(t, err)
	require.Equal(t, StatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	// Acknowledging twice is invalid.
	_, err = c.Acknowledge(ctx, a.ID, "tester-1")
	require.ErrorAs(t, err, &invalidState)

	started, err := c.Start(ctx, a.ID, "tester-1")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, started.Status)

	completed, _, err := c.Complete(ctx, a.ID, "tester-1", auth.RoleTester, map[string]any{"result": "ok"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Equal(t, "tester-1", completed.CompletedBy)
	require.Equal(t, "ok", completed.CompletionData["result"])

	// Completing twice fails; the first completion stands untouched.
	_, _, err = c.Complete(ctx, a.ID, "tester-1", auth.RoleTester, nil)
	require.ErrorAs(t, err, &invalidState)
	again, err := c.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, again.Status)
}

func TestCompleteCascadesOneLevel(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	a, err := c.Create(ctx, CreateInput{
		Type:      TypeScopingReview,
		ToUserID:  "tester-1",
		CycleID:   "cycle-1",
		ReportID:  "report-1",
		PhaseName: "Scoping",
	})
	require.NoError(t, err)
	_, err = c.Acknowledge(ctx, a.ID, "tester-1")
	require.NoError(t, err)

	completed, dependents, err := c.Complete(ctx, a.ID, "tester-1", auth.RoleTester, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Len(t, dependents, 1)

	dep := dependents[0]
	require.Equal(t, TypeScopingApproval, dep.Type)
	require.Equal(t, auth.RoleReportOwner, dep.ToRole)
	require.Equal(t, PriorityHigh, dep.Priority)
	require.Equal(t, a.ID, dep.ParentAssignmentID)
	require.Equal(t, "cycle-1", dep.CycleID)
	require.Equal(t, StatusPending, dep.Status)
	require.NotNil(t, dep.DueDate)

	// One level only: the dependent's own completion would trigger its own
	// cascade, not this one's.
	require.Empty(t, dep.CompletionData)
}

func TestCascadeConditionOnCompletionData(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	create := func() *Assignment {
		a, err := c.Create(ctx, CreateInput{
			Type:      TypeEvidenceSubmission,
			ToUserID:  "owner-1",
			CycleID:   "cycle-1",
			ReportID:  "report-1",
			PhaseName: "Request for Information",
		})
		require.NoError(t, err)
		_, err = c.Acknowledge(ctx, a.ID, "owner-1")
		require.NoError(t, err)
		return a
	}

	// Nothing submitted: the evidence-review follow-up is not created.
	a := create()
	_, dependents, err := c.Complete(ctx, a.ID, "owner-1", auth.RoleDataOwner,
		map[string]any{"submitted_count": 0})
	require.NoError(t, err)
	require.Empty(t, dependents)

	// With submissions the rule matches.
	b := create()
	_, dependents, err = c.Complete(ctx, b.ID, "owner-1", auth.RoleDataOwner,
		map[string]any{"submitted_count": 3})
	require.NoError(t, err)
	require.Len(t, dependents, 1)
	require.Equal(t, TypeEvidenceReview, dependents[0].Type)

	// Missing parameter means the condition simply does not match.
	d := create()
	_, dependents, err = c.Complete(ctx, d.ID, "owner-1", auth.RoleDataOwner, nil)
	require.NoError(t, err)
	require.Empty(t, dependents)
}

func TestCascadeTableRejectsInvalidCondition(t *testing.T) {
	_, err := NewCascadeTable([]CascadeRule{
		{
			Phase: "Scoping", OnType: TypeScopingReview, FromRole: auth.RoleTester,
			Type: TypeScopingApproval, AutoAssign: true,
			When: "submitted_count >",
		},
	})
	require.Error(t, err)

	_, err = NewCascadeTable([]CascadeRule{{Type: TypeScopingApproval}})
	require.Error(t, err)
}

func TestReviewRequiresNotesOnRejection(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	a, err := c.Create(ctx, CreateInput{Type: TypeTestReview, ToUserID: "tester-1"})
	require.NoError(t, err)
	_, err = c.Acknowledge(ctx, a.ID, "tester-1")
	require.NoError(t, err)
	_, _, err = c.Complete(ctx, a.ID, "tester-1", auth.RoleTester, nil)
	require.NoError(t, err)

	_, err = c.Review(ctx, a.ID, false, "exec-1", "")
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)

	reviewed, err := c.Review(ctx, a.ID, false, "exec-1", "rework the test steps")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, reviewed.Status)
	require.Equal(t, "exec-1", reviewed.ReviewedBy)

	// Terminal now; further reviews fail.
	_, err = c.Review(ctx, a.ID, true, "exec-1", "")
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)
}

func TestReassign(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	a, err := c.Create(ctx, CreateInput{Type: TypeTestReview, ToUserID: "tester-1"})
	require.NoError(t, err)
	_, err = c.Acknowledge(ctx, a.ID, "tester-1")
	require.NoError(t, err)

	reassigned, err := c.Reassign(ctx, a.ID, "tester-2", auth.RoleTester, "exec-1")
	require.NoError(t, err)
	require.Equal(t, "tester-2", reassigned.ToUserID)
	require.Equal(t, StatusPending, reassigned.Status)

	// Completed assignments cannot be reassigned.
	_, err = c.Acknowledge(ctx, a.ID, "tester-2")
	require.NoError(t, err)
	_, _, err = c.Complete(ctx, a.ID, "tester-2", auth.RoleTester, nil)
	require.NoError(t, err)
	_, err = c.Reassign(ctx, a.ID, "tester-3", auth.RoleTester, "exec-1")
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)
}

func TestCanProceedGate(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	ok, blocking, err := c.CanProceed(ctx, "cycle-1", "report-1", "Test Execution", "tester-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, blocking)

	// An open High assignment does not block.
	_, err = c.Create(ctx, CreateInput{
		Type: TypeTestReview, ToUserID: "tester-1",
		CycleID: "cycle-1", ReportID: "report-1", PhaseName: "Test Execution",
		Priority: PriorityHigh,
	})
	require.NoError(t, err)
	ok, _, err = c.CanProceed(ctx, "cycle-1", "report-1", "Test Execution", "tester-1")
	require.NoError(t, err)
	require.True(t, ok)

	blocker, err := c.Create(ctx, CreateInput{
		Type: TypeTestApproval, ToUserID: "tester-1",
		CycleID: "cycle-1", ReportID: "report-1", PhaseName: "Test Execution",
		Priority: PriorityUrgent,
	})
	require.NoError(t, err)

	ok, blocking, err = c.CanProceed(ctx, "cycle-1", "report-1", "Test Execution", "tester-1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []string{blocker.ID}, blocking)

	// Someone else's blocker does not gate this user.
	ok, _, err = c.CanProceed(ctx, "cycle-1", "report-1", "Test Execution", "tester-2")
	require.NoError(t, err)
	require.True(t, ok)

	// Resolving the blocker opens the gate.
	_, err = c.Acknowledge(ctx, blocker.ID, "tester-1")
	require.NoError(t, err)
	_, _, err = c.Complete(ctx, blocker.ID, "tester-1", auth.RoleTester, nil)
	require.NoError(t, err)
	ok, _, err = c.CanProceed(ctx, "cycle-1", "report-1", "Test Execution", "tester-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanProceedGatesOnRoleTargetedBlockers(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	// Critical work aimed at a role with no pinned user blocks everyone.
	blocker, err := c.Create(ctx, CreateInput{
		Type: TypeTestApproval, ToRole: auth.RoleReportOwner,
		CycleID: "cycle-1", ReportID: "report-1", PhaseName: "Test Execution",
		Priority: PriorityCritical,
	})
	require.NoError(t, err)

	for _, user := range []string{"tester-1", "tester-2"} {
		ok, blocking, err := c.CanProceed(ctx, "cycle-1", "report-1", "Test Execution", user)
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, []string{blocker.ID}, blocking)
	}

	// Once someone claims and resolves it, the gate opens.
	_, err = c.Acknowledge(ctx, blocker.ID, "owner-1")
	require.NoError(t, err)
	_, _, err = c.Complete(ctx, blocker.ID, "owner-1", auth.RoleReportOwner, nil)
	require.NoError(t, err)

	ok, _, err := c.CanProceed(ctx, "cycle-1", "report-1", "Test Execution", "tester-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExpireOverdue(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	overdue, err := c.Create(ctx, CreateInput{Type: TypeDataUploadRequest, ToUserID: "owner-1", DueDate: &past})
	require.NoError(t, err)
	fresh, err := c.Create(ctx, CreateInput{Type: TypeDataUploadRequest, ToUserID: "owner-2", DueDate: &future})
	require.NoError(t, err)
	undated, err := c.Create(ctx, CreateInput{Type: TypeDataUploadRequest, ToUserID: "owner-3"})
	require.NoError(t, err)

	count, err := c.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	expired, err := c.Get(ctx, overdue.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, expired.Status)

	kept, err := c.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, kept.Status)
	kept, err = c.Get(ctx, undated.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, kept.Status)

	// Idempotent: expired is terminal, so a second sweep finds nothing.
	count, err = c.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}
