package evidence

import (
	"context"
	"fmt"
	"testing"
	"time"

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
	require.NoError(t, db.AutoMigrate(&Evidence{}))
	return db
}

func submitDocument(t *testing.T, m *Manager, testCaseID, parentID string) *Evidence {
	t.Helper()
	ev, err := m.Submit(context.Background(), SubmitInput{
		TestCaseID:       testCaseID,
		Type:             TypeDocument,
		FileName:         "statement.pdf",
		FilePath:         "/evidence/statement.pdf",
		FileSize:         2048,
		FileHash:         "abc123",
		ParentEvidenceID: parentID,
		CycleID:          "cycle-1",
		ReportID:         "report-1",
		PhaseName:        "Request for Information",
		SubmittedBy:      "data-owner-1",
	})
	require.NoError(t, err)
	return ev
}

func TestSubmitValidatesTypePayload(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db)
	ctx := context.Background()

	var validation *common.ValidationError

	_, err := m.Submit(ctx, SubmitInput{Type: TypeDocument, FileName: "x.pdf"})
	require.ErrorAs(t, err, &validation) // missing test case

	_, err = m.Submit(ctx, SubmitInput{TestCaseID: "tc-1", Type: TypeDocument})
	require.ErrorAs(t, err, &validation) // document without file name

	_, err = m.Submit(ctx, SubmitInput{TestCaseID: "tc-1", Type: TypeDataSource})
	require.ErrorAs(t, err, &validation) // data source without query

	_, err = m.Submit(ctx, SubmitInput{TestCaseID: "tc-1", Type: "spreadsheet"})
	require.ErrorAs(t, err, &validation)

	ev, err := m.Submit(ctx, SubmitInput{
		TestCaseID:  "tc-1",
		Type:        TypeDataSource,
		QueryText:   "SELECT balance FROM accounts WHERE id = :id",
		QueryParams: map[string]any{"id": "acct-9"},
		SubmittedBy: "data-owner-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, ev.VersionNumber)
	require.True(t, ev.IsCurrent)
}

func TestSubmissionChainVersioning(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db)
	ctx := context.Background()

	first := submitDocument(t, m, "tc-1", "")
	second := submitDocument(t, m, "tc-1", first.ID)

	require.Equal(t, 2, second.VersionNumber)
	require.Equal(t, first.ID, second.ParentEvidenceID)
	require.True(t, second.IsCurrent)

	// Exactly one current version per test case.
	prev, err := m.Get(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, prev.IsCurrent)

	current, err := m.GetCurrent(ctx, "tc-1")
	require.NoError(t, err)
	require.Equal(t, second.ID, current.ID)

	history, err := m.ListHistory(ctx, "tc-1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	// A parent from another test case is rejected.
	_, err = m.Submit(ctx, SubmitInput{
		TestCaseID:       "tc-2",
		Type:             TypeDocument,
		FileName:         "other.pdf",
		ParentEvidenceID: first.ID,
	})
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestDualDecisionsAreIndependent(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db)
	ctx := context.Background()

	ev := submitDocument(t, m, "tc-1", "")

	updated, err := m.RecordDecision(ctx, ev.ID, RoleTester, DecisionApproved, "tester-1", "")
	require.NoError(t, err)
	require.Equal(t, DecisionApproved, *updated.TesterDecision)
	require.Nil(t, updated.ReportOwnerDecision)

	updated, err = m.RecordDecision(ctx, ev.ID, RoleReportOwner, DecisionRejected, "owner-1", "wrong statement period")
	require.NoError(t, err)
	require.Equal(t, DecisionApproved, *updated.TesterDecision)
	require.Equal(t, DecisionRejected, *updated.ReportOwnerDecision)
	require.Equal(t, "wrong statement period", updated.ReportOwnerNotes)

	// Split decisions do not qualify for acceptance.
	require.False(t, updated.EligibleForAcceptance())
	_, err = m.MarkAccepted(ctx, ev.ID)
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)
}

func TestDecisionValidation(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db)
	ctx := context.Background()

	ev := submitDocument(t, m, "tc-1", "")

	var validation *common.ValidationError

	_, err := m.RecordDecision(ctx, ev.ID, RoleTester, "maybe", "tester-1", "")
	require.ErrorAs(t, err, &validation)

	// Non-approval without notes.
	_, err = m.RecordDecision(ctx, ev.ID, RoleTester, DecisionRejected, "tester-1", "")
	require.ErrorAs(t, err, &validation)

	_, err = m.RecordDecision(ctx, ev.ID, "auditor", DecisionApproved, "aud-1", "")
	require.ErrorAs(t, err, &validation)

	// Superseded versions cannot be decided.
	submitDocument(t, m, "tc-1", ev.ID)
	_, err = m.RecordDecision(ctx, ev.ID, RoleTester, DecisionApproved, "tester-1", "")
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)
}

func TestResubmissionFlow(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db)
	ctx := context.Background()

	ev := submitDocument(t, m, "tc-1", "")

	_, err := m.RequestResubmission(ctx, ev.ID, "", nil, "tester-1")
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)

	deadline := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	flagged, err := m.RequestResubmission(ctx, ev.ID, "statement is truncated", &deadline, "tester-1")
	require.NoError(t, err)
	require.True(t, flagged.RequiresResubmission)
	require.Equal(t, "statement is truncated", flagged.ResubmissionReason)
	require.NotNil(t, flagged.ResubmissionDeadline)

	// Even with both approvals, a pending resubmission blocks acceptance.
	_, err = m.RecordDecision(ctx, ev.ID, RoleTester, DecisionApproved, "tester-1", "")
	require.NoError(t, err)
	_, err = m.RecordDecision(ctx, ev.ID, RoleReportOwner, DecisionApproved, "owner-1", "")
	require.NoError(t, err)
	_, err = m.MarkAccepted(ctx, ev.ID)
	var invalidState *common.InvalidStateError
	require.ErrorAs(t, err, &invalidState)

	// The replacement arrives with fresh, empty decisions.
	replacement := submitDocument(t, m, "tc-1", ev.ID)
	require.Nil(t, replacement.TesterDecision)
	require.Nil(t, replacement.ReportOwnerDecision)
	require.False(t, replacement.RequiresResubmission)
}

func TestMarkAcceptedRequiresBothApprovals(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db)
	ctx := context.Background()

	ev := submitDocument(t, m, "tc-1", "")

	_, err := m.RecordDecision(ctx, ev.ID, RoleTester, DecisionApproved, "tester-1", "")
	require.NoError(t, err)
	_, err = m.RecordDecision(ctx, ev.ID, RoleReportOwner, DecisionApproved, "owner-1", "")
	require.NoError(t, err)

	accepted, err := m.MarkAccepted(ctx, ev.ID)
	require.NoError(t, err)
	require.True(t, accepted.Accepted)
	require.NotNil(t, accepted.AcceptedAt)
}
