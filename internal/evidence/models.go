package evidence

import (
	"time"

	"gorm.io/datatypes"
)

// Type distinguishes how evidence for a test case was provided.
type Type string

const (
	TypeDocument   Type = "document"
	TypeDataSource Type = "data_source"
)

// Decision is one reviewer's verdict on an evidence version. Tester and
// report owner decide independently.
type Decision string

const (
	DecisionApproved       Decision = "approved"
	DecisionRejected       Decision = "rejected"
	DecisionRequestChanges Decision = "request_changes"
)

// Evidence is one submitted evidence version for a test case. Versions chain
// through ParentEvidenceID across resubmissions; a test case has at most one
// current row at a time.
type Evidence struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	TestCaseID string `json:"testCaseId" gorm:"type:uuid;not null;uniqueIndex:idx_evidence_case_number;index"`

	// VersionNumber is monotonic per test case, starting at 1.
	VersionNumber int  `json:"versionNumber" gorm:"not null;uniqueIndex:idx_evidence_case_number"`
	Type          Type `json:"type" gorm:"size:20;not null"`

	// Document payload.
	FileName string `json:"fileName,omitempty" gorm:"size:255"`
	FilePath string `json:"filePath,omitempty" gorm:"size:500"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileHash string `json:"fileHash,omitempty" gorm:"size:128"`

	// Data-source payload.
	QueryText   string            `json:"queryText,omitempty" gorm:"type:text"`
	QueryParams datatypes.JSONMap `json:"queryParams,omitempty" gorm:"type:jsonb"`

	// ParentEvidenceID chains resubmissions back to the version they replace.
	ParentEvidenceID string `json:"parentEvidenceId,omitempty" gorm:"type:uuid;index"`
	IsCurrent        bool   `json:"isCurrent" gorm:"not null;default:false;index"`

	// Independent dual decisions.
	TesterDecision       *Decision  `json:"testerDecision,omitempty" gorm:"size:20"`
	TesterDecidedBy      string     `json:"testerDecidedBy,omitempty" gorm:"size:100"`
	TesterDecidedAt      *time.Time `json:"testerDecidedAt,omitempty"`
	TesterNotes          string     `json:"testerNotes,omitempty" gorm:"type:text"`
	ReportOwnerDecision  *Decision  `json:"reportOwnerDecision,omitempty" gorm:"size:20"`
	ReportOwnerDecidedBy string     `json:"reportOwnerDecidedBy,omitempty" gorm:"size:100"`
	ReportOwnerDecidedAt *time.Time `json:"reportOwnerDecidedAt,omitempty"`
	ReportOwnerNotes     string     `json:"reportOwnerNotes,omitempty" gorm:"type:text"`

	RequiresResubmission bool       `json:"requiresResubmission" gorm:"not null;default:false"`
	ResubmissionReason   string     `json:"resubmissionReason,omitempty" gorm:"type:text"`
	ResubmissionDeadline *time.Time `json:"resubmissionDeadline,omitempty"`

	// Accepted marks the phase's final accepted evidence for the test case.
	Accepted   bool       `json:"accepted" gorm:"not null;default:false"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`

	// Owning phase.
	CycleID   string `json:"cycleId" gorm:"type:uuid;index"`
	ReportID  string `json:"reportId" gorm:"type:uuid;index"`
	PhaseName string `json:"phaseName" gorm:"size:50"`

	SubmittedBy string    `json:"submittedBy" gorm:"size:100"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName pins the table name.
func (Evidence) TableName() string {
	return "test_case_evidence"
}

// EligibleForAcceptance reports whether this version can be marked as the
// phase's final accepted evidence: both reviewers approved and no
// resubmission is pending.
func (e *Evidence) EligibleForAcceptance() bool {
	if e.RequiresResubmission || !e.IsCurrent {
		return false
	}
	return e.TesterDecision != nil && *e.TesterDecision == DecisionApproved &&
		e.ReportOwnerDecision != nil && *e.ReportOwnerDecision == DecisionApproved
}
