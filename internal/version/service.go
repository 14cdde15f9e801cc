package version

import (
	"context"
	"errors"
	"time"

	"synapse/internal/common"
	"synapse/internal/logger"
	"synapse/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service manages versioned-artifact lineages: draft creation, submission,
// approval decisions and revision chains. Deletion is not offered anywhere;
// every version stays for audit.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceLogger injects a custom logger.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the version service.
func NewService(db *gorm.DB, opts ...ServiceOption) *Service {
	s := &Service{
		db:     db,
		logger: logger.Get(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateInput carries the fields for a new version.
type CreateInput struct {
	ArtifactKind ArtifactKind
	// LineageID continues an existing lineage; empty starts a new one.
	LineageID string
	CycleID   string
	ReportID  string
	PhaseName string
	Payload   map[string]any
	CreatedBy string
}

// Create allocates the next version number of the lineage as a draft and
// makes it current. Fails with ConflictError while the lineage already has an
// open draft; the unique (lineage, number) index backs this up under
// concurrent attempts.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Version, error) {
	if in.ArtifactKind == "" {
		return nil, common.NewValidationError("artifact_kind", "artifact kind is required")
	}

	lineageID := in.LineageID
	if lineageID == "" {
		lineageID = uuid.New().String()
	}

	var created *Version
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var openDrafts int64
		err := tx.Model(&Version{}).
			Where("lineage_id = ? AND status = ?", lineageID, StatusDraft).
			Count(&openDrafts).Error
		if err != nil {
			return err
		}
		if openDrafts > 0 {
			return common.NewConflictError("lineage %s already has an open draft", lineageID)
		}

		next, err := s.nextNumber(tx, lineageID)
		if err != nil {
			return err
		}

		var parentID string
		if next > 1 {
			var current Version
			err := tx.Scopes(common.CurrentOnly()).
				Where("lineage_id = ?", lineageID).
				First(&current).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err == nil {
				parentID = current.ID
			}
		}

		created = &Version{
			ID:              uuid.New().String(),
			ArtifactKind:    in.ArtifactKind,
			LineageID:       lineageID,
			VersionNumber:   next,
			Status:          StatusDraft,
			ParentVersionID: parentID,
			IsCurrent:       true,
			CycleID:         in.CycleID,
			ReportID:        in.ReportID,
			PhaseName:       in.PhaseName,
			Payload:         datatypes.JSONMap(in.Payload),
			CreatedBy:       in.CreatedBy,
		}
		return s.insertAsCurrent(tx, created)
	})
	if err != nil {
		return nil, mapDuplicate(err, lineageID)
	}
	return created, nil
}

// SubmitForApproval moves a draft to pending_approval.
func (s *Service) SubmitForApproval(ctx context.Context, versionID, submittedBy string) (*Version, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&Version{}).
		Where("id = ? AND status = ?", versionID, StatusDraft).
		Updates(map[string]any{
			"status":       StatusPendingApproval,
			"submitted_by": submittedBy,
			"submitted_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, versionID)
		if err != nil {
			return nil, err
		}
		return nil, common.NewInvalidStateError("version", versionID, string(current.Status), "submit for approval")
	}
	return s.Get(ctx, versionID)
}

// Decide records an approval decision on a pending version. Rejection
// requires non-empty notes. Approval supersedes any previously approved
// version of the lineage, keeping at most one live approval per lineage.
func (s *Service) Decide(ctx context.Context, versionID string, approve bool, decidedBy, notes string) (*Version, error) {
	if !approve && notes == "" {
		return nil, common.NewValidationError("notes", "rejection reason is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v Version
		if err := tx.Where("id = ?", versionID).First(&v).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("version", versionID)
			}
			return err
		}
		if v.Status != StatusPendingApproval {
			return common.NewInvalidStateError("version", versionID, string(v.Status), "decide")
		}

		// Approval audit fields are set on approval only; a rejected version
		// carries the rejection reason and notes, never approver stamps.
		updates := map[string]any{"decision_notes": notes}
		if approve {
			updates["status"] = StatusApproved
			updates["approved_by"] = decidedBy
			updates["approved_at"] = s.now()
		} else {
			updates["status"] = StatusRejected
			updates["rejection_reason"] = notes
		}

		res := tx.Model(&Version{}).
			Where("id = ? AND status = ?", versionID, StatusPendingApproval).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.NewInvalidStateError("version", versionID, string(v.Status), "decide")
		}

		if approve {
			return tx.Model(&Version{}).
				Where("lineage_id = ? AND id <> ? AND status = ?", v.LineageID, v.ID, StatusApproved).
				Update("status", StatusSuperseded).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	decision := "approved"
	if !approve {
		decision = "rejected"
	}
	v, err := s.Get(ctx, versionID)
	if err != nil {
		return nil, err
	}
	metrics.VersionDecisions.WithLabelValues(string(v.ArtifactKind), decision).Inc()
	return v, nil
}

// CreateRevision spawns a new draft revising an approved or rejected parent.
// The draft becomes current; the parent keeps its status but loses currency.
func (s *Service) CreateRevision(ctx context.Context, parentVersionID, createdBy string) (*Version, error) {
	var created *Version
	var lineageID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent Version
		if err := tx.Where("id = ?", parentVersionID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("version", parentVersionID)
			}
			return err
		}
		if parent.Status != StatusApproved && parent.Status != StatusRejected {
			return common.NewInvalidStateError("version", parentVersionID, string(parent.Status), "revise")
		}
		lineageID = parent.LineageID

		var openDrafts int64
		err := tx.Model(&Version{}).
			Where("lineage_id = ? AND status = ?", parent.LineageID, StatusDraft).
			Count(&openDrafts).Error
		if err != nil {
			return err
		}
		if openDrafts > 0 {
			return common.NewConflictError("lineage %s already has an open draft", parent.LineageID)
		}

		next, err := s.nextNumber(tx, parent.LineageID)
		if err != nil {
			return err
		}

		created = &Version{
			ID:              uuid.New().String(),
			ArtifactKind:    parent.ArtifactKind,
			LineageID:       parent.LineageID,
			VersionNumber:   next,
			Status:          StatusDraft,
			ParentVersionID: parent.ID,
			IsCurrent:       true,
			CycleID:         parent.CycleID,
			ReportID:        parent.ReportID,
			PhaseName:       parent.PhaseName,
			Payload:         parent.Payload,
			CreatedBy:       createdBy,
		}
		return s.insertAsCurrent(tx, created)
	})
	if err != nil {
		// Two revisions racing past the draft pre-check collide on the
		// (lineage, number) index; the loser reports a conflict.
		return nil, mapDuplicate(err, lineageID)
	}
	return created, nil
}

// UpdateDraftPayload replaces the payload of an open draft.
func (s *Service) UpdateDraftPayload(ctx context.Context, versionID string, payload map[string]any) (*Version, error) {
	res := s.db.WithContext(ctx).Model(&Version{}).
		Where("id = ? AND status = ?", versionID, StatusDraft).
		Update("payload", datatypes.JSONMap(payload))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, versionID)
		if err != nil {
			return nil, err
		}
		return nil, common.NewInvalidStateError("version", versionID, string(current.Status), "update payload")
	}
	return s.Get(ctx, versionID)
}

// Get loads one version.
func (s *Service) Get(ctx context.Context, versionID string) (*Version, error) {
	var v Version
	err := s.db.WithContext(ctx).Where("id = ?", versionID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("version", versionID)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetCurrent returns the lineage's single current version.
func (s *Service) GetCurrent(ctx context.Context, lineageID string) (*Version, error) {
	var v Version
	err := s.db.WithContext(ctx).
		Scopes(common.CurrentOnly()).
		Where("lineage_id = ?", lineageID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("lineage", lineageID)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListLineage returns the lineage history in version order.
func (s *Service) ListLineage(ctx context.Context, lineageID string) ([]*Version, error) {
	var versions []*Version
	err := s.db.WithContext(ctx).
		Where("lineage_id = ?", lineageID).
		Order("version_number ASC").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, common.NewNotFoundError("lineage", lineageID)
	}
	return versions, nil
}

// insertAsCurrent demotes the previous current version and inserts v as the
// lineage's current one, inside the caller's transaction.
func (s *Service) insertAsCurrent(tx *gorm.DB, v *Version) error {
	err := tx.Model(&Version{}).
		Where("lineage_id = ? AND is_current = ?", v.LineageID, true).
		Update("is_current", false).Error
	if err != nil {
		return err
	}
	return tx.Create(v).Error
}

func (s *Service) nextNumber(tx *gorm.DB, lineageID string) (int, error) {
	var maxNumber int
	err := tx.Model(&Version{}).
		Where("lineage_id = ?", lineageID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, err
	}
	return maxNumber + 1, nil
}

func mapDuplicate(err error, lineageID string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.NewConflictError("concurrent version creation for lineage %s", lineageID)
	}
	return err
}
