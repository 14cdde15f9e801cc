package assignments

import (
	"time"

	"synapse/internal/assignment"
	"synapse/internal/auth"
	"synapse/internal/common"

	"github.com/gin-gonic/gin"
)

// AssignmentHandler exposes cross-role assignments over HTTP.
type AssignmentHandler struct {
	coordinator *assignment.Coordinator
}

// NewAssignmentHandler creates the handler.
func NewAssignmentHandler(coordinator *assignment.Coordinator) *AssignmentHandler {
	return &AssignmentHandler{coordinator: coordinator}
}

type createRequest struct {
	Type      string         `json:"type" binding:"required"`
	ToUserID  string         `json:"toUserId"`
	ToRole    string         `json:"toRole"`
	CycleID   string         `json:"cycleId"`
	ReportID  string         `json:"reportId"`
	PhaseName string         `json:"phaseName"`
	Priority  string         `json:"priority"`
	DueDate   *time.Time     `json:"dueDate"`
	Context   map[string]any `json:"context"`
}

// Create inserts a pending assignment.
// POST /assignments
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	a, err := h.coordinator.Create(c.Request.Context(), assignment.CreateInput{
		Type:       req.Type,
		FromUserID: user.UserID,
		FromRole:   user.Role,
		ToUserID:   req.ToUserID,
		ToRole:     req.ToRole,
		CycleID:    req.CycleID,
		ReportID:   req.ReportID,
		PhaseName:  req.PhaseName,
		Priority:   assignment.Priority(req.Priority),
		DueDate:    req.DueDate,
		Context:    req.Context,
		CreatedBy:  user.UserID,
	})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, a)
}

// List returns assignments matching the query filters, newest first.
// GET /assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	var pagination common.PaginationRequest
	if err := c.ShouldBindQuery(&pagination); err != nil {
		common.ResponseBadRequest(c, "invalid pagination: "+err.Error())
		return
	}

	filter := assignment.ListFilter{
		CycleID:           c.Query("cycleId"),
		ReportID:          c.Query("reportId"),
		PhaseName:         c.Query("phaseName"),
		ToUserID:          c.Query("toUserId"),
		Status:            c.Query("status"),
		PaginationRequest: pagination,
	}

	items, total, err := h.coordinator.List(c.Request.Context(), filter)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseList(c, items, total, &pagination)
}

// Get loads one assignment.
// GET /assignments/:id
func (h *AssignmentHandler) Get(c *gin.Context) {
	a, err := h.coordinator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

// Acknowledge moves a pending assignment to acknowledged.
// POST /assignments/:id/acknowledge
func (h *AssignmentHandler) Acknowledge(c *gin.Context) {
	user := auth.CurrentUser(c)
	a, err := h.coordinator.Acknowledge(c.Request.Context(), c.Param("id"), user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

// Start moves an assignment to in_progress.
// POST /assignments/:id/start
func (h *AssignmentHandler) Start(c *gin.Context) {
	user := auth.CurrentUser(c)
	a, err := h.coordinator.Start(c.Request.Context(), c.Param("id"), user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

type completeRequest struct {
	CompletionData map[string]any `json:"completionData"`
}

// completeResponse carries the completed assignment together with any
// dependents created by the cascade.
type completeResponse struct {
	Assignment *assignment.Assignment   `json:"assignment"`
	Dependents []*assignment.Assignment `json:"dependents"`
}

// Complete marks the assignment completed and runs the one-level cascade.
// POST /assignments/:id/complete
func (h *AssignmentHandler) Complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	completed, dependents, err := h.coordinator.Complete(c.Request.Context(),
		c.Param("id"), user.UserID, user.Role, req.CompletionData)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, completeResponse{Assignment: completed, Dependents: dependents})
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// Review records the reviewer's verdict on a completed assignment.
// POST /assignments/:id/review
func (h *AssignmentHandler) Review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	a, err := h.coordinator.Review(c.Request.Context(), c.Param("id"), req.Approve, user.UserID, req.Notes)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

type reassignRequest struct {
	ToUserID string `json:"toUserId"`
	ToRole   string `json:"toRole"`
}

// Reassign points a non-terminal assignment at a new assignee.
// POST /assignments/:id/reassign
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	a, err := h.coordinator.Reassign(c.Request.Context(), c.Param("id"), req.ToUserID, req.ToRole, user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

// canProceedResponse is the gate verdict for a user/phase pair.
type canProceedResponse struct {
	CanProceed  bool     `json:"canProceed"`
	BlockingIDs []string `json:"blockingIds,omitempty"`
}

// CanProceed reports whether the caller may complete the phase.
// GET /assignments/can-proceed?cycleId=&reportId=&phaseName=
func (h *AssignmentHandler) CanProceed(c *gin.Context) {
	cycleID := c.Query("cycleId")
	reportID := c.Query("reportId")
	phaseName := c.Query("phaseName")
	if cycleID == "" || reportID == "" || phaseName == "" {
		common.ResponseBadRequest(c, "cycleId, reportId and phaseName are required")
		return
	}

	user := auth.CurrentUser(c)
	userID := c.Query("userId")
	if userID == "" {
		userID = user.UserID
	}

	ok, blocking, err := h.coordinator.CanProceed(c.Request.Context(), cycleID, reportID, phaseName, userID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, canProceedResponse{CanProceed: ok, BlockingIDs: blocking})
}
