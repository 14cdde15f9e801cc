package versions

import (
	"synapse/internal/auth"
	"synapse/internal/common"
	"synapse/internal/version"

	"github.com/gin-gonic/gin"
)

// VersionHandler exposes versioned-artifact lineages over HTTP.
type VersionHandler struct {
	service *version.Service
}

// NewVersionHandler creates the handler.
func NewVersionHandler(service *version.Service) *VersionHandler {
	return &VersionHandler{service: service}
}

type createVersionRequest struct {
	ArtifactKind string         `json:"artifactKind" binding:"required"`
	LineageID    string         `json:"lineageId"`
	CycleID      string         `json:"cycleId"`
	ReportID     string         `json:"reportId"`
	PhaseName    string         `json:"phaseName"`
	Payload      map[string]any `json:"payload"`
}

// Create opens a new draft version.
// POST /versions
func (h *VersionHandler) Create(c *gin.Context) {
	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	v, err := h.service.Create(c.Request.Context(), version.CreateInput{
		ArtifactKind: version.ArtifactKind(req.ArtifactKind),
		LineageID:    req.LineageID,
		CycleID:      req.CycleID,
		ReportID:     req.ReportID,
		PhaseName:    req.PhaseName,
		Payload:      req.Payload,
		CreatedBy:    user.UserID,
	})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, v)
}

// Get loads one version.
// GET /versions/:id
func (h *VersionHandler) Get(c *gin.Context) {
	v, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, v)
}

// Submit moves a draft to pending approval.
// POST /versions/:id/submit
func (h *VersionHandler) Submit(c *gin.Context) {
	user := auth.CurrentUser(c)
	v, err := h.service.SubmitForApproval(c.Request.Context(), c.Param("id"), user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, v)
}

type decisionRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// Decide records an approval decision on a pending version.
// POST /versions/:id/decision
func (h *VersionHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user := auth.CurrentUser(c)
	v, err := h.service.Decide(c.Request.Context(), c.Param("id"), req.Approve, user.UserID, req.Notes)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, v)
}

// CreateRevision spawns a draft revising an approved or rejected version.
// POST /versions/:id/revisions
func (h *VersionHandler) CreateRevision(c *gin.Context) {
	user := auth.CurrentUser(c)
	v, err := h.service.CreateRevision(c.Request.Context(), c.Param("id"), user.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, v)
}

type updatePayloadRequest struct {
	Payload map[string]any `json:"payload" binding:"required"`
}

// UpdatePayload replaces the payload of an open draft.
// PUT /versions/:id/payload
func (h *VersionHandler) UpdatePayload(c *gin.Context) {
	var req updatePayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	v, err := h.service.UpdateDraftPayload(c.Request.Context(), c.Param("id"), req.Payload)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, v)
}

// GetCurrent returns the lineage's current version.
// GET /lineages/:lineageId/current
func (h *VersionHandler) GetCurrent(c *gin.Context) {
	v, err := h.service.GetCurrent(c.Request.Context(), c.Param("lineageId"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, v)
}

// ListLineage returns the lineage history in version order.
// GET /lineages/:lineageId/versions
func (h *VersionHandler) ListLineage(c *gin.Context) {
	versions, err := h.service.ListLineage(c.Request.Context(), c.Param("lineageId"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, versions)
}
