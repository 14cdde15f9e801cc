package phase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"synapse/internal/common"
	"synapse/internal/logger"
	"synapse/internal/metrics"
	"synapse/internal/notification"
	"synapse/internal/substrate"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompletionGate decides whether a user may complete a phase. Implemented by
// the assignment coordinator; returns the blocking assignment ids when not.
type CompletionGate interface {
	CanProceed(ctx context.Context, cycleID, reportID, phaseName, userID string) (bool, []string, error)
}

// Service is the top-level state machine sequencing the nine phases of one
// cycle/report pair. The relational store it writes is authoritative; the
// durable-execution substrate only receives advisory signals.
type Service struct {
	db        *gorm.DB
	calc      Calculator
	gate      CompletionGate
	substrate substrate.Client
	notifier  notification.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithGate injects the completion gate.
func WithGate(g CompletionGate) ServiceOption {
	return func(s *Service) { s.gate = g }
}

// WithSubstrate injects the durable-execution substrate client.
func WithSubstrate(c substrate.Client) ServiceOption {
	return func(s *Service) { s.substrate = c }
}

// WithNotifier injects the out-of-band notifier.
func WithNotifier(n notification.Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithServiceLogger injects a custom logger.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the phase orchestrator.
func NewService(db *gorm.DB, calc Calculator, opts ...ServiceOption) *Service {
	s := &Service{
		db:        db,
		calc:      calc,
		substrate: substrate.Noop{},
		logger:    logger.Get(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// InitializeWorkflow creates all nine phase rows in Not Started state for the
// pair. Fails with ConflictError when the pair is already initialized.
func (s *Service) InitializeWorkflow(ctx context.Context, cycleID, reportID string) ([]WorkflowPhase, error) {
	if cycleID == "" {
		return nil, common.NewValidationError("cycle_id", "cycle id is required")
	}
	if reportID == "" {
		return nil, common.NewValidationError("report_id", "report id is required")
	}

	var created []WorkflowPhase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&WorkflowPhase{}).
			Scopes(common.ByCycleReport(cycleID, reportID)).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return common.NewConflictError("workflow already initialized for cycle %s report %s", cycleID, reportID)
		}

		for _, name := range CanonicalOrder {
			created = append(created, WorkflowPhase{
				ID:       uuid.New().String(),
				CycleID:  cycleID,
				ReportID: reportID,
				Name:     name,
				State:    StateNotStarted,
			})
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		// A second initializer racing past the count check loses on the
		// (cycle, report, name) index instead.
		return nil, initializeConflict(err, cycleID, reportID)
	}

	s.logger.Info("workflow initialized",
		zap.String("cycle_id", cycleID),
		zap.String("report_id", reportID),
	)
	return created, nil
}

// StartPhase moves a Not Started phase to In Progress. A planned end date is
// mandatory: a phase without one could never be judged against its SLA.
func (s *Service) StartPhase(ctx context.Context, cycleID, reportID string, name Name, plannedStart, plannedEnd *time.Time, byUser string) (*PhaseView, error) {
	if !ValidName(name) {
		return nil, common.NewValidationError("phase_name", fmt.Sprintf("unknown phase %q", name))
	}
	if plannedEnd == nil {
		return nil, common.NewValidationError("planned_end_date", "planned end date is required to start a phase")
	}

	ph, err := s.load(ctx, cycleID, reportID, name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updates := map[string]any{
		"state":             StateInProgress,
		"actual_start_date": now,
		"planned_end_date":  *plannedEnd,
		"started_by":        byUser,
	}
	if plannedStart != nil {
		updates["planned_start_date"] = *plannedStart
	}

	res := s.db.WithContext(ctx).Model(&WorkflowPhase{}).
		Where("id = ? AND state = ?", ph.ID, StateNotStarted).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		metrics.PhaseTransitions.WithLabelValues(string(name), "start", "invalid_state").Inc()
		current, err := s.load(ctx, cycleID, reportID, name)
		if err != nil {
			return nil, err
		}
		return nil, common.NewInvalidStateError("phase", string(name), string(current.State), "start")
	}

	metrics.PhaseTransitions.WithLabelValues(string(name), "start", "ok").Inc()
	s.emitSignal(ctx, cycleID, reportID, substrate.SignalPhaseStarted, name)
	s.notify(ctx, notification.EventPhaseStarted, cycleID, reportID, name, byUser)

	return s.GetPhase(ctx, cycleID, reportID, name)
}

// CompletePhase moves an In Progress phase to Complete, provided the acting
// user has no open Critical/Urgent assignments gating the phase. The guarded
// update ensures that of two concurrent completions exactly one succeeds.
func (s *Service) CompletePhase(ctx context.Context, cycleID, reportID string, name Name, notes, byUser string) (*PhaseView, error) {
	if !ValidName(name) {
		return nil, common.NewValidationError("phase_name", fmt.Sprintf("unknown phase %q", name))
	}

	ph, err := s.load(ctx, cycleID, reportID, name)
	if err != nil {
		return nil, err
	}

	if s.gate != nil {
		ok, blocking, err := s.gate.CanProceed(ctx, cycleID, reportID, string(name), byUser)
		if err != nil {
			return nil, err
		}
		if !ok {
			metrics.PhaseTransitions.WithLabelValues(string(name), "complete", "blocked").Inc()
			return nil, common.NewBlockedError(
				fmt.Sprintf("phase %s has open critical assignments", name), blocking)
		}
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&WorkflowPhase{}).
		Where("id = ? AND state = ? AND actual_end_date IS NULL", ph.ID, StateInProgress).
		Updates(map[string]any{
			"state":            StateComplete,
			"actual_end_date":  now,
			"completion_notes": notes,
			"completed_by":     byUser,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		metrics.PhaseTransitions.WithLabelValues(string(name), "complete", "invalid_state").Inc()
		current, err := s.load(ctx, cycleID, reportID, name)
		if err != nil {
			return nil, err
		}
		return nil, common.NewInvalidStateError("phase", string(name), string(current.State), "complete")
	}

	metrics.PhaseTransitions.WithLabelValues(string(name), "complete", "ok").Inc()
	s.emitSignal(ctx, cycleID, reportID, substrate.SignalPhaseCompleted, name)
	s.notify(ctx, notification.EventPhaseCompleted, cycleID, reportID, name, byUser)

	return s.GetPhase(ctx, cycleID, reportID, name)
}

// OverridePhase records manual state/status overrides. Overrides are
// transparent: they never touch the underlying state or dates, and
// ClearOverrides restores the computed values exactly.
func (s *Service) OverridePhase(ctx context.Context, cycleID, reportID string, name Name, stateOverride *State, statusOverride *ScheduleStatus, reason string) (*PhaseView, error) {
	if reason == "" {
		return nil, common.NewValidationError("override_reason", "override reason is required")
	}
	if stateOverride == nil && statusOverride == nil {
		return nil, common.NewValidationError("override", "at least one of state or status override must be set")
	}
	if stateOverride != nil {
		switch *stateOverride {
		case StateNotStarted, StateInProgress, StateComplete:
		default:
			return nil, common.NewValidationError("state_override", fmt.Sprintf("invalid state %q", *stateOverride))
		}
	}
	if statusOverride != nil {
		switch *statusOverride {
		case StatusOnTrack, StatusAtRisk, StatusPastDue:
		default:
			return nil, common.NewValidationError("status_override", fmt.Sprintf("invalid status %q", *statusOverride))
		}
	}

	ph, err := s.load(ctx, cycleID, reportID, name)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"override_reason": reason}
	if stateOverride != nil {
		updates["state_override"] = *stateOverride
	}
	if statusOverride != nil {
		updates["status_override"] = *statusOverride
	}

	if err := s.db.WithContext(ctx).Model(&WorkflowPhase{}).Where("id = ?", ph.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	metrics.PhaseTransitions.WithLabelValues(string(name), "override", "ok").Inc()
	s.emitSignal(ctx, cycleID, reportID, substrate.SignalPhaseOverride, name)

	return s.GetPhase(ctx, cycleID, reportID, name)
}

// ClearOverrides removes manual overrides, restoring computed state/status.
func (s *Service) ClearOverrides(ctx context.Context, cycleID, reportID string, name Name) (*PhaseView, error) {
	ph, err := s.load(ctx, cycleID, reportID, name)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&WorkflowPhase{}).
		Where("id = ?", ph.ID).
		Updates(map[string]any{
			"state_override":  nil,
			"status_override": nil,
			"override_reason": "",
		}).Error
	if err != nil {
		return nil, err
	}

	return s.GetPhase(ctx, cycleID, reportID, name)
}

// UpdatePhaseDates re-plans a phase. Allowed in any state.
func (s *Service) UpdatePhaseDates(ctx context.Context, cycleID, reportID string, name Name, plannedStart, plannedEnd *time.Time) (*PhaseView, error) {
	if plannedStart == nil && plannedEnd == nil {
		return nil, common.NewValidationError("dates", "at least one planned date must be set")
	}
	if plannedStart != nil && plannedEnd != nil && plannedEnd.Before(*plannedStart) {
		return nil, common.NewValidationError("planned_end_date", "planned end date precedes planned start date")
	}

	ph, err := s.load(ctx, cycleID, reportID, name)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if plannedStart != nil {
		updates["planned_start_date"] = *plannedStart
	}
	if plannedEnd != nil {
		updates["planned_end_date"] = *plannedEnd
	}

	if err := s.db.WithContext(ctx).Model(&WorkflowPhase{}).Where("id = ?", ph.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	return s.GetPhase(ctx, cycleID, reportID, name)
}

// GetPhase returns one phase with effective state/status computed as of now.
func (s *Service) GetPhase(ctx context.Context, cycleID, reportID string, name Name) (*PhaseView, error) {
	ph, err := s.load(ctx, cycleID, reportID, name)
	if err != nil {
		return nil, err
	}
	view := s.calc.View(ph, s.now())
	return &view, nil
}

// ListPhases returns all phases of the pair in canonical order, each with
// effective state/status computed as of now.
func (s *Service) ListPhases(ctx context.Context, cycleID, reportID string) ([]PhaseView, error) {
	phases, err := s.loadAll(ctx, cycleID, reportID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]PhaseView, 0, len(phases))
	for _, name := range CanonicalOrder {
		for i := range phases {
			if phases[i].Name == name {
				views = append(views, s.calc.View(&phases[i], now))
				break
			}
		}
	}
	return views, nil
}

// GetProgress aggregates the pair's phases into overall progress.
func (s *Service) GetProgress(ctx context.Context, cycleID, reportID string) (*ProgressSummary, error) {
	phases, err := s.loadAll(ctx, cycleID, reportID)
	if err != nil {
		return nil, err
	}
	summary := s.calc.Progress(phases, s.now())
	return &summary, nil
}

// QuerySchedule exposes the substrate's advisory awaited-action state for the
// pair's workflow.
func (s *Service) QuerySchedule(ctx context.Context, cycleID, reportID, query string) (map[string]any, error) {
	return s.substrate.QuerySchedule(ctx, substrate.WorkflowID(cycleID, reportID), query)
}

func initializeConflict(err error, cycleID, reportID string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.NewConflictError("workflow already initialized for cycle %s report %s", cycleID, reportID)
	}
	return err
}

func (s *Service) load(ctx context.Context, cycleID, reportID string, name Name) (*WorkflowPhase, error) {
	var ph WorkflowPhase
	err := s.db.WithContext(ctx).
		Scopes(common.ByCycleReport(cycleID, reportID)).
		Where("name = ?", name).
		First(&ph).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("phase", fmt.Sprintf("%s/%s/%s", cycleID, reportID, name))
	}
	if err != nil {
		return nil, err
	}
	return &ph, nil
}

func (s *Service) loadAll(ctx context.Context, cycleID, reportID string) ([]WorkflowPhase, error) {
	var phases []WorkflowPhase
	err := s.db.WithContext(ctx).
		Scopes(common.ByCycleReport(cycleID, reportID)).
		Find(&phases).Error
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return nil, common.NewNotFoundError("workflow", fmt.Sprintf("%s/%s", cycleID, reportID))
	}
	return phases, nil
}

// emitSignal sends a phase-transition signal to the substrate. Failures are
// logged and counted, never surfaced: the store already holds the truth.
func (s *Service) emitSignal(ctx context.Context, cycleID, reportID, signal string, name Name) {
	err := s.substrate.SendSignal(ctx, substrate.WorkflowID(cycleID, reportID), signal, map[string]any{
		"phase": string(name),
	})
	if err != nil {
		metrics.SubstrateSignalFailures.Inc()
		s.logger.Warn("substrate signal failed",
			zap.String("signal", signal),
			zap.String("phase", string(name)),
			zap.Error(err),
		)
	}
}

func (s *Service) notify(ctx context.Context, event, cycleID, reportID string, name Name, byUser string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notification.Event{
		Type:      event,
		Recipient: byUser,
		Detail: map[string]any{
			"cycle_id":  cycleID,
			"report_id": reportID,
			"phase":     string(name),
		},
	})
}
