package version

import (
	"time"

	"gorm.io/datatypes"
)

// ArtifactKind names the phase artifact a lineage versions.
type ArtifactKind string

const (
	KindPlanningAttributes ArtifactKind = "planning_attributes"
	KindScopingDecisions   ArtifactKind = "scoping_decisions"
	KindSampleSelection    ArtifactKind = "sample_selection"
	KindRFIEvidence        ArtifactKind = "rfi_evidence"
)

// Status is the version lifecycle state. Transitions run
// draft → pending_approval → approved|rejected; an approved version becomes
// superseded when a later version of its lineage is approved.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSuperseded      Status = "superseded"
)

// Version is one record in a versioned-artifact lineage. Versions are never
// deleted; history is retained indefinitely for audit.
type Version struct {
	ID           string       `json:"id" gorm:"primaryKey;type:uuid"`
	ArtifactKind ArtifactKind `json:"artifactKind" gorm:"size:50;not null;index"`

	// LineageID groups the successive versions of one artifact. The version
	// number is unique within a lineage and never reused.
	LineageID     string `json:"lineageId" gorm:"type:uuid;not null;uniqueIndex:idx_version_lineage_number;index"`
	VersionNumber int    `json:"versionNumber" gorm:"not null;uniqueIndex:idx_version_lineage_number"`

	Status Status `json:"status" gorm:"size:20;not null;default:'draft';index"`

	// ParentVersionID points at the version this one revises; empty for the
	// first version of a lineage. The chain is strictly linear.
	ParentVersionID string `json:"parentVersionId,omitempty" gorm:"type:uuid;index"`

	// IsCurrent marks the single working version of the lineage.
	IsCurrent bool `json:"isCurrent" gorm:"not null;default:false;index"`

	// Owning phase.
	CycleID   string `json:"cycleId" gorm:"type:uuid;index"`
	ReportID  string `json:"reportId" gorm:"type:uuid;index"`
	PhaseName string `json:"phaseName" gorm:"size:50"`

	Payload datatypes.JSONMap `json:"payload,omitempty" gorm:"type:jsonb"`

	CreatedBy       string     `json:"createdBy" gorm:"size:100"`
	CreatedAt       time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	SubmittedBy     string     `json:"submittedBy,omitempty" gorm:"size:100"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty" gorm:"size:100"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty" gorm:"type:text"`
	DecisionNotes   string     `json:"decisionNotes,omitempty" gorm:"type:text"`

	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName pins the table name.
func (Version) TableName() string {
	return "artifact_versions"
}
