package assignment

import (
	"context"
	"errors"
	"time"

	"synapse/internal/common"
	"synapse/internal/logger"
	"synapse/internal/metrics"
	"synapse/internal/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Coordinator creates, tracks and completes cross-role assignments, and runs
// the one-level completion cascade against its immutable configuration table.
type Coordinator struct {
	db       *gorm.DB
	table    *CascadeTable
	notifier notification.Notifier
	logger   *zap.Logger
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithNotifier injects the out-of-band notifier.
func WithNotifier(n notification.Notifier) CoordinatorOption {
	return func(c *Coordinator) { c.notifier = n }
}

// WithCoordinatorLogger injects a custom logger.
func WithCoordinatorLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a Coordinator bound to the given cascade table.
func NewCoordinator(db *gorm.DB, table *CascadeTable, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		db:     db,
		table:  table,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// CreateInput carries the fields for a new assignment.
type CreateInput struct {
	Type       string
	FromUserID string
	FromRole   string
	ToUserID   string
	ToRole     string
	CycleID    string
	ReportID   string
	PhaseName  string
	Priority   Priority
	DueDate    *time.Time
	Context    map[string]any
	CreatedBy  string

	parentAssignmentID string
}

// Create inserts a pending assignment. At least one of ToUserID/ToRole must
// be set.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (*Assignment, error) {
	if in.Type == "" {
		return nil, common.NewValidationError("type", "assignment type is required")
	}
	if in.ToUserID == "" && in.ToRole == "" {
		return nil, common.NewValidationError("to", "either to_user_id or to_role must be set")
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}

	a := c.build(in)
	if err := c.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}

	metrics.AssignmentsCreated.WithLabelValues(a.Type, string(a.Priority)).Inc()
	c.notifyCreated(ctx, a)
	return a, nil
}

func (c *Coordinator) build(in CreateInput) *Assignment {
	return &Assignment{
		ID:                 uuid.New().String(),
		Type:               in.Type,
		FromUserID:         in.FromUserID,
		FromRole:           in.FromRole,
		ToUserID:           in.ToUserID,
		ToRole:             in.ToRole,
		Status:             StatusPending,
		Priority:           in.Priority,
		DueDate:            in.DueDate,
		CycleID:            in.CycleID,
		ReportID:           in.ReportID,
		PhaseName:          in.PhaseName,
		Context:            datatypes.JSONMap(in.Context),
		ParentAssignmentID: in.parentAssignmentID,
		CreatedBy:          in.CreatedBy,
	}
}

// Get loads one assignment.
func (c *Coordinator) Get(ctx context.Context, id string) (*Assignment, error) {
	var a Assignment
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("assignment", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	CycleID   string
	ReportID  string
	PhaseName string
	ToUserID  string
	Status    string
	common.PaginationRequest
}

// List returns assignments matching the filter, newest first.
func (c *Coordinator) List(ctx context.Context, f ListFilter) ([]*Assignment, int64, error) {
	query := c.db.WithContext(ctx).Model(&Assignment{})
	if f.CycleID != "" {
		query = query.Where("cycle_id = ?", f.CycleID)
	}
	if f.ReportID != "" {
		query = query.Where("report_id = ?", f.ReportID)
	}
	if f.PhaseName != "" {
		query = query.Where("phase_name = ?", f.PhaseName)
	}
	if f.ToUserID != "" {
		query = query.Where("to_user_id = ?", f.ToUserID)
	}
	query = query.Scopes(common.ByStatus(f.Status))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*Assignment
	err := query.Order("created_at DESC").
		Offset(f.GetOffset()).
		Limit(f.GetPageSize()).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Acknowledge moves a pending assignment to acknowledged. The acting user
// must be the assignee when one is pinned.
func (c *Coordinator) Acknowledge(ctx context.Context, id, byUser string) (*Assignment, error) {
	return c.transition(ctx, id, byUser, "acknowledge",
		[]Status{StatusPending}, StatusAcknowledged,
		map[string]any{"acknowledged_at": time.Now().UTC()})
}

// Start moves a pending or acknowledged assignment to in_progress.
func (c *Coordinator) Start(ctx context.Context, id, byUser string) (*Assignment, error) {
	return c.transition(ctx, id, byUser, "start",
		[]Status{StatusPending, StatusAcknowledged}, StatusInProgress,
		map[string]any{"started_at": time.Now().UTC()})
}

// transition applies a guarded status update: the UPDATE carries the expected
// current statuses, so of two concurrent calls exactly one wins and the other
// observes zero rows and fails with InvalidStateError.
func (c *Coordinator) transition(ctx context.Context, id, byUser, verb string, from []Status, to Status, extra map[string]any) (*Assignment, error) {
	a, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ToUserID != "" && byUser != "" && a.ToUserID != byUser {
		return nil, common.NewInvalidStateError("assignment", id, "assigned to "+a.ToUserID, verb)
	}

	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := c.db.WithContext(ctx).Model(&Assignment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, common.NewInvalidStateError("assignment", id, string(current.Status), verb)
	}

	return c.Get(ctx, id)
}

// Complete marks the assignment completed and creates its direct dependents
// from the cascade table, all inside one transaction: a failure anywhere rolls
// back both the completion and the cascade. The cascade is one level deep;
// dependents of dependents wait for their own completions.
func (c *Coordinator) Complete(ctx context.Context, id, byUser, byRole string, completionData map[string]any) (*Assignment, []*Assignment, error) {
	var completed *Assignment
	var created []*Assignment

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Assignment
		if err := tx.Where("id = ?", id).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("assignment", id)
			}
			return err
		}
		if a.ToUserID != "" && byUser != "" && a.ToUserID != byUser {
			return common.NewInvalidStateError("assignment", id, "assigned to "+a.ToUserID, "complete")
		}

		now := time.Now().UTC()
		res := tx.Model(&Assignment{}).
			Where("id = ? AND status IN ?", id, []Status{StatusAcknowledged, StatusInProgress}).
			Updates(map[string]any{
				"status":          StatusCompleted,
				"completed_at":    now,
				"completed_by":    byUser,
				"completion_data": datatypes.JSONMap(completionData),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.NewInvalidStateError("assignment", id, string(a.Status), "complete")
		}

		for _, rule := range c.table.DependentsFor(a.PhaseName, a.Type, byRole, completionData) {
			dep := c.build(CreateInput{
				Type:               rule.Type,
				FromUserID:         byUser,
				FromRole:           byRole,
				ToRole:             rule.ToRole,
				CycleID:            a.CycleID,
				ReportID:           a.ReportID,
				PhaseName:          a.PhaseName,
				Priority:           rule.Priority,
				Context:            map[string]any{"parent_assignment_id": a.ID},
				CreatedBy:          byUser,
				parentAssignmentID: a.ID,
			})
			if rule.DueInDays > 0 {
				due := now.AddDate(0, 0, rule.DueInDays)
				dep.DueDate = &due
			}
			if err := tx.Create(dep).Error; err != nil {
				return err
			}
			created = append(created, dep)
		}

		if err := tx.Where("id = ?", id).First(&a).Error; err != nil {
			return err
		}
		completed = &a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.AssignmentsCompleted.WithLabelValues(completed.Type).Inc()
	metrics.AssignmentCascades.Add(float64(len(created)))

	c.notify(ctx, notification.Event{
		Type:      notification.EventAssignmentCompleted,
		Recipient: completed.FromUserID,
		Detail:    map[string]any{"assignment_id": completed.ID, "type": completed.Type},
	})
	for _, dep := range created {
		c.notifyCreated(ctx, dep)
	}

	return completed, created, nil
}

// Review records the reviewer's verdict on a completed assignment. Rejection
// requires notes.
func (c *Coordinator) Review(ctx context.Context, id string, approve bool, byUser, notes string) (*Assignment, error) {
	if !approve && notes == "" {
		return nil, common.NewValidationError("notes", "rejection notes are required")
	}

	to := StatusApproved
	if !approve {
		to = StatusRejected
	}

	res := c.db.WithContext(ctx).Model(&Assignment{}).
		Where("id = ? AND status = ?", id, StatusCompleted).
		Updates(map[string]any{
			"status":       to,
			"reviewed_by":  byUser,
			"review_notes": notes,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, common.NewInvalidStateError("assignment", id, string(current.Status), "review")
	}
	return c.Get(ctx, id)
}

// Reassign points a non-terminal assignment at a new assignee.
func (c *Coordinator) Reassign(ctx context.Context, id, toUserID, toRole, byUser string) (*Assignment, error) {
	if toUserID == "" && toRole == "" {
		return nil, common.NewValidationError("to", "either to_user_id or to_role must be set")
	}

	a, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() || a.Status == StatusCompleted {
		return nil, common.NewInvalidStateError("assignment", id, string(a.Status), "reassign")
	}

	res := c.db.WithContext(ctx).Model(&Assignment{}).
		Where("id = ? AND status IN ?", id, []Status{StatusPending, StatusAcknowledged, StatusInProgress}).
		Updates(map[string]any{
			"to_user_id": toUserID,
			"to_role":    toRole,
			"status":     StatusPending,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, common.NewInvalidStateError("assignment", id, string(current.Status), "reassign")
	}

	reassigned, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.notifyCreated(ctx, reassigned)
	return reassigned, nil
}

// CanProceed reports whether the user may complete the phase: false when any
// open Critical/Urgent assignment gating the phase remains, along with the
// blocking assignment ids. An assignment gates when it is pinned to the acting
// user, or when it targets a role with no pinned user: unclaimed critical work
// blocks everyone until someone resolves it.
func (c *Coordinator) CanProceed(ctx context.Context, cycleID, reportID, phaseName, userID string) (bool, []string, error) {
	var blocking []Assignment
	err := c.db.WithContext(ctx).
		Scopes(common.ByCycleReport(cycleID, reportID), common.OpenOnly()).
		Where("phase_name = ?", phaseName).
		Where("to_user_id = ? OR to_user_id = ''", userID).
		Where("priority IN ?", []Priority{PriorityCritical, PriorityUrgent}).
		Find(&blocking).Error
	if err != nil {
		return false, nil, err
	}
	if len(blocking) == 0 {
		return true, nil, nil
	}

	ids := make([]string, len(blocking))
	for i, a := range blocking {
		ids[i] = a.ID
	}
	return false, ids, nil
}

// ExpireOverdue flips open assignments with a due date before asOf to
// expired and returns how many were swept.
func (c *Coordinator) ExpireOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var overdue []Assignment
	err := c.db.WithContext(ctx).
		Scopes(common.OpenOnly()).
		Where("due_date IS NOT NULL AND due_date < ?", asOf).
		Find(&overdue).Error
	if err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	ids := make([]string, len(overdue))
	for i, a := range overdue {
		ids[i] = a.ID
	}

	res := c.db.WithContext(ctx).Model(&Assignment{}).
		Where("id IN ?", ids).
		Scopes(common.OpenOnly()).
		Update("status", StatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}

	for _, a := range overdue {
		c.notify(ctx, notification.Event{
			Type:      notification.EventAssignmentExpired,
			Recipient: a.ToUserID,
			Role:      a.ToRole,
			Detail:    map[string]any{"assignment_id": a.ID, "type": a.Type},
		})
	}

	c.logger.Info("expired overdue assignments", zap.Int64("count", res.RowsAffected))
	return res.RowsAffected, nil
}

func (c *Coordinator) notifyCreated(ctx context.Context, a *Assignment) {
	c.notify(ctx, notification.Event{
		Type:      notification.EventAssignmentCreated,
		Recipient: a.ToUserID,
		Role:      a.ToRole,
		Detail: map[string]any{
			"assignment_id": a.ID,
			"type":          a.Type,
			"priority":      string(a.Priority),
			"phase":         a.PhaseName,
		},
	})
}

func (c *Coordinator) notify(ctx context.Context, evt notification.Event) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, evt)
}
