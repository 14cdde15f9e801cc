package api

import (
	"synapse/api/handlers/assignments"
	evidenceHandlers "synapse/api/handlers/evidence"
	"synapse/api/handlers/phases"
	"synapse/api/handlers/versions"

	"github.com/gin-gonic/gin"
)

// registerRoutes mounts the domain routes under the given (authenticated)
// group.
func registerRoutes(
	g *gin.RouterGroup,
	phaseHandler *phases.PhaseHandler,
	versionHandler *versions.VersionHandler,
	evidenceHandler *evidenceHandlers.EvidenceHandler,
	assignmentHandler *assignments.AssignmentHandler,
) {
	// Workflow phases, scoped to one cycle/report pair. Phase names contain
	// spaces and arrive URL-encoded.
	pair := g.Group("/cycles/:cycleId/reports/:reportId")
	{
		pair.POST("/phases", phaseHandler.InitializeWorkflow)
		pair.GET("/phases", phaseHandler.ListPhases)
		pair.GET("/phases/:name", phaseHandler.GetPhase)
		pair.POST("/phases/:name/start", phaseHandler.StartPhase)
		pair.POST("/phases/:name/complete", phaseHandler.CompletePhase)
		pair.PUT("/phases/:name/override", phaseHandler.OverridePhase)
		pair.DELETE("/phases/:name/override", phaseHandler.ClearOverrides)
		pair.PUT("/phases/:name/dates", phaseHandler.UpdateDates)

		pair.GET("/progress", phaseHandler.GetProgress)
		pair.GET("/status", phaseHandler.GetStatusReport)
		pair.GET("/schedule", phaseHandler.QuerySchedule)
	}

	// Versioned artifacts.
	versionsGroup := g.Group("/versions")
	{
		versionsGroup.POST("", versionHandler.Create)
		versionsGroup.GET("/:id", versionHandler.Get)
		versionsGroup.POST("/:id/submit", versionHandler.Submit)
		versionsGroup.POST("/:id/decision", versionHandler.Decide)
		versionsGroup.POST("/:id/revisions", versionHandler.CreateRevision)
		versionsGroup.PUT("/:id/payload", versionHandler.UpdatePayload)
	}
	lineages := g.Group("/lineages")
	{
		lineages.GET("/:lineageId/current", versionHandler.GetCurrent)
		lineages.GET("/:lineageId/versions", versionHandler.ListLineage)
	}

	// Test-case evidence.
	evidenceGroup := g.Group("/evidence")
	{
		evidenceGroup.POST("", evidenceHandler.Submit)
		evidenceGroup.GET("/:id", evidenceHandler.Get)
		evidenceGroup.POST("/:id/decision", evidenceHandler.Decide)
		evidenceGroup.POST("/:id/resubmission-request", evidenceHandler.RequestResubmission)
		evidenceGroup.POST("/:id/accept", evidenceHandler.Accept)
	}
	testCases := g.Group("/test-cases")
	{
		testCases.GET("/:testCaseId/evidence", evidenceHandler.ListHistory)
		testCases.GET("/:testCaseId/evidence/current", evidenceHandler.GetCurrent)
	}

	// Assignments.
	assignmentsGroup := g.Group("/assignments")
	{
		assignmentsGroup.POST("", assignmentHandler.Create)
		assignmentsGroup.GET("", assignmentHandler.List)
		assignmentsGroup.GET("/can-proceed", assignmentHandler.CanProceed)
		assignmentsGroup.GET("/:id", assignmentHandler.Get)
		assignmentsGroup.POST("/:id/acknowledge", assignmentHandler.Acknowledge)
		assignmentsGroup.POST("/:id/start", assignmentHandler.Start)
		assignmentsGroup.POST("/:id/complete", assignmentHandler.Complete)
		assignmentsGroup.POST("/:id/review", assignmentHandler.Review)
		assignmentsGroup.POST("/:id/reassign", assignmentHandler.Reassign)
	}
}
