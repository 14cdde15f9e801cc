package evidence

import (
	"context"
	"errors"
	"time"

	"synapse/internal/common"
	"synapse/internal/logger"
	"synapse/internal/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles allowed to record an evidence decision.
const (
	RoleTester      = "tester"
	RoleReportOwner = "report_owner"
)

// Manager runs the per-test-case evidence lifecycle: submission chains,
// independent tester/report-owner decisions, and resubmission requests.
// Rejection does not auto-trigger a resubmission; that orchestration stays
// with the caller.
type Manager struct {
	db       *gorm.DB
	notifier notification.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithNotifier injects the out-of-band notifier.
func WithNotifier(n notification.Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithManagerLogger injects a custom logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates the evidence manager.
func NewManager(db *gorm.DB, opts ...ManagerOption) *Manager {
	m := &Manager{
		db:     db,
		logger: logger.Get(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// SubmitInput carries the fields for a new evidence version.
type SubmitInput struct {
	TestCaseID string
	Type       Type

	FileName string
	FilePath string
	FileSize int64
	FileHash string

	QueryText   string
	QueryParams map[string]any

	// ParentEvidenceID links a resubmission to the version it replaces.
	ParentEvidenceID string

	CycleID     string
	ReportID    string
	PhaseName   string
	SubmittedBy string
}

// Submit records a new evidence version for the test case and makes it
// current. Decisions start empty; reviewers weigh in on the new version from
// scratch.
func (m *Manager) Submit(ctx context.Context, in SubmitInput) (*Evidence, error) {
	if in.TestCaseID == "" {
		return nil, common.NewValidationError("test_case_id", "test case id is required")
	}
	switch in.Type {
	case TypeDocument:
		if in.FileName == "" {
			return nil, common.NewValidationError("file_name", "document evidence requires a file name")
		}
	case TypeDataSource:
		if in.QueryText == "" {
			return nil, common.NewValidationError("query_text", "data source evidence requires query text")
		}
	default:
		return nil, common.NewValidationError("type", "evidence type must be document or data_source")
	}

	var created *Evidence
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ParentEvidenceID != "" {
			var parent Evidence
			err := tx.Where("id = ?", in.ParentEvidenceID).First(&parent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("evidence", in.ParentEvidenceID)
			}
			if err != nil {
				return err
			}
			if parent.TestCaseID != in.TestCaseID {
				return common.NewValidationError("parent_evidence_id", "parent evidence belongs to a different test case")
			}
		}

		var maxNumber int
		err := tx.Model(&Evidence{}).
			Where("test_case_id = ?", in.TestCaseID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&maxNumber).Error
		if err != nil {
			return err
		}

		err = tx.Model(&Evidence{}).
			Where("test_case_id = ? AND is_current = ?", in.TestCaseID, true).
			Update("is_current", false).Error
		if err != nil {
			return err
		}

		created = &Evidence{
			ID:               uuid.New().String(),
			TestCaseID:       in.TestCaseID,
			VersionNumber:    maxNumber + 1,
			Type:             in.Type,
			FileName:         in.FileName,
			FilePath:         in.FilePath,
			FileSize:         in.FileSize,
			FileHash:         in.FileHash,
			QueryText:        in.QueryText,
			QueryParams:      datatypes.JSONMap(in.QueryParams),
			ParentEvidenceID: in.ParentEvidenceID,
			IsCurrent:        true,
			CycleID:          in.CycleID,
			ReportID:         in.ReportID,
			PhaseName:        in.PhaseName,
			SubmittedBy:      in.SubmittedBy,
		}
		return tx.Create(created).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, common.NewConflictError("concurrent evidence submission for test case %s", in.TestCaseID)
		}
		return nil, err
	}
	return created, nil
}

// RecordDecision stores one reviewer's verdict. Tester and report owner
// decisions are independent; neither overwrites the other.
func (m *Manager) RecordDecision(ctx context.Context, evidenceID, role string, decision Decision, decidedBy, notes string) (*Evidence, error) {
	switch decision {
	case DecisionApproved, DecisionRejected, DecisionRequestChanges:
	default:
		return nil, common.NewValidationError("decision", "decision must be approved, rejected or request_changes")
	}
	if decision != DecisionApproved && notes == "" {
		return nil, common.NewValidationError("notes", "notes are required when not approving")
	}

	ev, err := m.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if !ev.IsCurrent {
		return nil, common.NewInvalidStateError("evidence", evidenceID, "superseded", "decide")
	}

	now := m.now()
	var updates map[string]any
	switch role {
	case RoleTester:
		updates = map[string]any{
			"tester_decision":   decision,
			"tester_decided_by": decidedBy,
			"tester_decided_at": now,
			"tester_notes":      notes,
		}
	case RoleReportOwner:
		updates = map[string]any{
			"report_owner_decision":   decision,
			"report_owner_decided_by": decidedBy,
			"report_owner_decided_at": now,
			"report_owner_notes":      notes,
		}
	default:
		return nil, common.NewValidationError("role", "role must be tester or report_owner")
	}

	err = m.db.WithContext(ctx).Model(&Evidence{}).
		Where("id = ?", evidenceID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, evidenceID)
}

// RequestResubmission flags the current evidence as needing a replacement.
// The new version is not created here; the submitter files it separately with
// ParentEvidenceID pointing at this one.
func (m *Manager) RequestResubmission(ctx context.Context, evidenceID, reason string, deadline *time.Time, requestedBy string) (*Evidence, error) {
	if reason == "" {
		return nil, common.NewValidationError("reason", "resubmission reason is required")
	}

	ev, err := m.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if !ev.IsCurrent {
		return nil, common.NewInvalidStateError("evidence", evidenceID, "superseded", "request resubmission")
	}

	updates := map[string]any{
		"requires_resubmission": true,
		"resubmission_reason":   reason,
	}
	if deadline != nil {
		updates["resubmission_deadline"] = *deadline
	}

	err = m.db.WithContext(ctx).Model(&Evidence{}).
		Where("id = ?", evidenceID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}

	if m.notifier != nil {
		m.notifier.Notify(ctx, notification.Event{
			Type:      notification.EventResubmissionRequest,
			Recipient: ev.SubmittedBy,
			Detail: map[string]any{
				"evidence_id":  ev.ID,
				"test_case_id": ev.TestCaseID,
				"reason":       reason,
				"requested_by": requestedBy,
			},
		})
	}

	return m.Get(ctx, evidenceID)
}

// MarkAccepted records the evidence as the phase's final accepted evidence
// for its test case. Requires both decisions approved and no pending
// resubmission.
func (m *Manager) MarkAccepted(ctx context.Context, evidenceID string) (*Evidence, error) {
	ev, err := m.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if !ev.EligibleForAcceptance() {
		return nil, common.NewInvalidStateError("evidence", evidenceID, decisionSummary(ev), "accept")
	}

	now := m.now()
	err = m.db.WithContext(ctx).Model(&Evidence{}).
		Where("id = ? AND requires_resubmission = ? AND is_current = ?", evidenceID, false, true).
		Updates(map[string]any{
			"accepted":    true,
			"accepted_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, evidenceID)
}

// Get loads one evidence version.
func (m *Manager) Get(ctx context.Context, evidenceID string) (*Evidence, error) {
	var ev Evidence
	err := m.db.WithContext(ctx).Where("id = ?", evidenceID).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("evidence", evidenceID)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetCurrent returns the test case's current evidence version.
func (m *Manager) GetCurrent(ctx context.Context, testCaseID string) (*Evidence, error) {
	var ev Evidence
	err := m.db.WithContext(ctx).
		Scopes(common.CurrentOnly()).
		Where("test_case_id = ?", testCaseID).
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("evidence for test case", testCaseID)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListHistory returns the test case's full submission history in version
// order.
func (m *Manager) ListHistory(ctx context.Context, testCaseID string) ([]*Evidence, error) {
	var history []*Evidence
	err := m.db.WithContext(ctx).
		Where("test_case_id = ?", testCaseID).
		Order("version_number ASC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, common.NewNotFoundError("evidence for test case", testCaseID)
	}
	return history, nil
}

func decisionSummary(ev *Evidence) string {
	tester, owner := "undecided", "undecided"
	if ev.TesterDecision != nil {
		tester = string(*ev.TesterDecision)
	}
	if ev.ReportOwnerDecision != nil {
		owner = string(*ev.ReportOwnerDecision)
	}
	if ev.RequiresResubmission {
		return "awaiting resubmission"
	}
	return "tester " + tester + ", report owner " + owner
}
