package phases

import (
	"time"

	"synapse/internal/auth"
	"synapse/internal/common"
	"synapse/internal/phase"

	"github.com/gin-gonic/gin"
)

// PhaseHandler exposes the workflow phase lifecycle over HTTP.
type PhaseHandler struct {
	service *phase.Service
}

// NewPhaseHandler creates the handler.
func NewPhaseHandler(service *phase.Service) *PhaseHandler {
	return &PhaseHandler{service: service}
}

// InitializeWorkflow creates the nine phase rows for a cycle/report pair.
// POST /cycles/:cycleId/reports/:reportId/phases
func (h *PhaseHandler) InitializeWorkflow(c *gin.Context) {
	phases, err := h.service.InitializeWorkflow(c.Request.Context(), c.Param("cycleId"), c.Param("reportId"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, phases)
}

// ListPhases returns all phases of the pair in canonical order.
// GET /cycles/:cycleId/reports/:reportId/phases
func (h *PhaseHandler) ListPhases(c *gin.Context) {
	views, err := h.service.ListPhases(c.Request.Context(), c.Param("cycleId"), c.Param("reportId"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, views)
}

// GetPhase returns one phase with effective state/status.
// GET /cycles/:cycleId/reports/:reportId/phases/:name
func (h *PhaseHandler) GetPhase(c *gin.Context) {
	view, err := h.service.GetPhase(c.Request.Context(),
		c.Param("cycleId"), c.Param("reportId"), phase.Name(c.Param("name")))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

type startPhaseRequest struct {
	PlannedStartDate *time.Time `json:"plannedStartDate"`
	PlannedEndDate   *time.Time `json:"plannedEndDate"`
}

// StartPhase moves a phase to In Progress.
// POST /cycles/:cycleId/reports/:reportId/phases/:name/start
func (h *PhaseHandler) StartPhase(c *gin.Context) {
	var req startPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	view, err := h.service.StartPhase(c.Request.Context(),
		c.Param("cycleId"), c.Param("reportId"), phase.Name(c.Param("name")),
		req.PlannedStartDate, req.PlannedEndDate, user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

type completePhaseRequest struct {
	Notes string `json:"notes"`
}

// CompletePhase moves a phase to Complete, subject to the assignment gate.
// POST /cycles/:cycleId/reports/:reportId/phases/:name/complete
func (h *PhaseHandler) CompletePhase(c *gin.Context) {
	var req completePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	view, err := h.service.CompletePhase(c.Request.Context(),
		c.Param("cycleId"), c.Param("reportId"), phase.Name(c.Param("name")),
		req.Notes, user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

type overridePhaseRequest struct {
	StateOverride  *phase.State          `json:"stateOverride"`
	StatusOverride *phase.ScheduleStatus `json:"statusOverride"`
	Reason         string                `json:"reason"`
}

// OverridePhase records manual state/status overrides.
// PUT /cycles/:cycleId/reports/:reportId/phases/:name/override
func (h *PhaseHandler) OverridePhase(c *gin.Context) {
	var req overridePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	view, err := h.service.OverridePhase(c.Request.Context(),
		c.Param("cycleId"), c.Param("reportId"), phase.Name(c.Param("name")),
		req.StateOverride, req.StatusOverride, req.Reason)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

// ClearOverrides removes manual overrides, restoring computed values.
// DELETE /cycles/:cycleId/reports/:reportId/phases/:name/override
func (h *PhaseHandler) ClearOverrides(c *gin.Context) {
	view, err := h.service.ClearOverrides(c.Request.Context(),
		c.Param("cycleId"), c.Param("reportId"), phase.Name(c.Param("name")))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

type updateDatesRequest struct {
	PlannedStartDate *time.Time `json:"plannedStartDate"`
	PlannedEndDate   *time.Time `json:"plannedEndDate"`
}

// UpdateDates re-plans a phase.
// PUT /cycles/:cycleId/reports/:reportId/phases/:name/dates
func (h *PhaseHandler) UpdateDates(c *gin.Context) {
	var req updateDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	view, err := h.service.UpdatePhaseDates(c.Request.Context(),
		c.Param("cycleId"), c.Param("reportId"), phase.Name(c.Param("name")),
		req.PlannedStartDate, req.PlannedEndDate)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

// GetProgress aggregates the pair's phases into overall progress.
// GET /cycles/:cycleId/reports/:reportId/progress
func (h *PhaseHandler) GetProgress(c *gin.Context) {
	summary, err := h.service.GetProgress(c.Request.Context(), c.Param("cycleId"), c.Param("reportId"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, summary)
}

// statusReport combines the per-phase views with the aggregate summary so
// dashboards need one round trip.
type statusReport struct {
	Phases   []phase.PhaseView      `json:"phases"`
	Progress *phase.ProgressSummary `json:"progress"`
}

// GetStatusReport returns phases plus progress for the pair.
// GET /cycles/:cycleId/reports/:reportId/status
func (h *PhaseHandler) GetStatusReport(c *gin.Context) {
	ctx := c.Request.Context()
	cycleID, reportID := c.Param("cycleId"), c.Param("reportId")

	views, err := h.service.ListPhases(ctx, cycleID, reportID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	summary, err := h.service.GetProgress(ctx, cycleID, reportID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, statusReport{Phases: views, Progress: summary})
}

// QuerySchedule exposes the substrate's advisory schedule state.
// GET /cycles/:cycleId/reports/:reportId/schedule?query=awaiting_action
func (h *PhaseHandler) QuerySchedule(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		query = "awaiting_action"
	}

	state, err := h.service.QuerySchedule(c.Request.Context(), c.Param("cycleId"), c.Param("reportId"), query)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, state)
}
