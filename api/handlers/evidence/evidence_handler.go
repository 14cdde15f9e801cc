package evidence

import (
	"time"

	"synapse/internal/auth"
	"synapse/internal/common"
	"synapse/internal/evidence"

	"github.com/gin-gonic/gin"
)

// EvidenceHandler exposes the test-case evidence lifecycle over HTTP.
type EvidenceHandler struct {
	manager *evidence.Manager
}

// NewEvidenceHandler creates the handler.
func NewEvidenceHandler(manager *evidence.Manager) *EvidenceHandler {
	return &EvidenceHandler{manager: manager}
}

type submitRequest struct {
	TestCaseID string `json:"testCaseId" binding:"required"`
	Type       string `json:"type" binding:"required"`

	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
	FileHash string `json:"fileHash"`

	QueryText   string         `json:"queryText"`
	QueryParams map[string]any `json:"queryParams"`

	ParentEvidenceID string `json:"parentEvidenceId"`

	CycleID   string `json:"cycleId"`
	ReportID  string `json:"reportId"`
	PhaseName string `json:"phaseName"`
}

// Submit records a new evidence version for a test case.
// POST /evidence
func (h *EvidenceHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	ev, err := h.manager.Submit(c.Request.Context(), evidence.SubmitInput{
		TestCaseID:       req.TestCaseID,
		Type:             evidence.Type(req.Type),
		FileName:         req.FileName,
		FilePath:         req.FilePath,
		FileSize:         req.FileSize,
		FileHash:         req.FileHash,
		QueryText:        req.QueryText,
		QueryParams:      req.QueryParams,
		ParentEvidenceID: req.ParentEvidenceID,
		CycleID:          req.CycleID,
		ReportID:         req.ReportID,
		PhaseName:        req.PhaseName,
		SubmittedBy:      user.UserID,
	})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, ev)
}

// Get loads one evidence version.
// GET /evidence/:id
func (h *EvidenceHandler) Get(c *gin.Context) {
	ev, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, ev)
}

type evidenceDecisionRequest struct {
	Role     string `json:"role" binding:"required"`
	Decision string `json:"decision" binding:"required"`
	Notes    string `json:"notes"`
}

// Decide records one reviewer's verdict on the current evidence.
// POST /evidence/:id/decision
func (h *EvidenceHandler) Decide(c *gin.Context) {
	var req evidenceDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	ev, err := h.manager.RecordDecision(c.Request.Context(), c.Param("id"),
		req.Role, evidence.Decision(req.Decision), user.UserID, req.Notes)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, ev)
}

type resubmissionRequest struct {
	Reason   string     `json:"reason" binding:"required"`
	Deadline *time.Time `json:"deadline"`
}

// RequestResubmission flags the current evidence as needing a replacement.
// POST /evidence/:id/resubmission-request
func (h *EvidenceHandler) RequestResubmission(c *gin.Context) {
	var req resubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	ev, err := h.manager.RequestResubmission(c.Request.Context(), c.Param("id"),
		req.Reason, req.Deadline, user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, ev)
}

// Accept records the evidence as the final accepted evidence for its test case.
// POST /evidence/:id/accept
func (h *EvidenceHandler) Accept(c *gin.Context) {
	ev, err := h.manager.MarkAccepted(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, ev)
}

// GetCurrent returns the test case's current evidence version.
// GET /test-cases/:testCaseId/evidence/current
func (h *EvidenceHandler) GetCurrent(c *gin.Context) {
	ev, err := h.manager.GetCurrent(c.Request.Context(), c.Param("testCaseId"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, ev)
}

// ListHistory returns the test case's full submission history.
// GET /test-cases/:testCaseId/evidence
func (h *EvidenceHandler) ListHistory(c *gin.Context) {
	history, err := h.manager.ListHistory(c.Request.Context(), c.Param("testCaseId"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, history)
}
