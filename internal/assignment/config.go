package assignment

import (
	"fmt"

	"synapse/internal/auth"

	"github.com/Knetic/govaluate"
)

// CascadeRule declares one follow-up assignment created when an assignment of
// OnType is completed in Phase by a user holding FromRole. When is an optional
// boolean expression evaluated against the completion data; an empty When
// always matches.
type CascadeRule struct {
	Phase    string
	OnType   string
	FromRole string

	Type      string
	ToRole    string
	Priority  Priority
	DueInDays int

	AutoAssign bool
	When       string

	expr *govaluate.EvaluableExpression
}

// CascadeTable is the immutable phase-to-assignment-type configuration
// injected into the Coordinator at construction. It replaces what the
// original system kept as module-level mutable state.
type CascadeTable struct {
	rules []CascadeRule
}

// NewCascadeTable validates and compiles the rule set. Invalid When
// expressions are rejected here so cascade evaluation stays deterministic.
func NewCascadeTable(rules []CascadeRule) (*CascadeTable, error) {
	compiled := make([]CascadeRule, len(rules))
	copy(compiled, rules)

	for i := range compiled {
		r := &compiled[i]
		if r.Phase == "" || r.OnType == "" || r.Type == "" {
			return nil, fmt.Errorf("cascade rule %d: phase, on-type and type are required", i)
		}
		if r.When == "" {
			continue
		}
		expr, err := govaluate.NewEvaluableExpression(r.When)
		if err != nil {
			return nil, fmt.Errorf("cascade rule %d (%s/%s): invalid condition %q: %w",
				i, r.Phase, r.OnType, r.When, err)
		}
		r.expr = expr
	}

	return &CascadeTable{rules: compiled}, nil
}

// DependentsFor returns the auto-assign rules triggered by completing an
// assignment of onType in phaseName by a user holding fromRole. A rule with a
// condition that fails to evaluate against the completion data (missing
// parameter, non-boolean result) simply does not match.
func (t *CascadeTable) DependentsFor(phaseName, onType, fromRole string, completionData map[string]any) []CascadeRule {
	var matched []CascadeRule
	for _, r := range t.rules {
		if !r.AutoAssign || r.Phase != phaseName || r.OnType != onType || r.FromRole != fromRole {
			continue
		}
		if r.expr != nil {
			result, err := r.expr.Evaluate(completionData)
			if err != nil {
				continue
			}
			ok, isBool := result.(bool)
			if !isBool || !ok {
				continue
			}
		}
		matched = append(matched, r)
	}
	return matched
}

// Rules returns a copy of the rule set.
func (t *CascadeTable) Rules() []CascadeRule {
	out := make([]CascadeRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Assignment types used by the default handoff configuration.
const (
	TypeAttributeReview    = "attribute_review"
	TypeAttributeApproval  = "attribute_approval"
	TypeScopingReview      = "scoping_review"
	TypeScopingApproval    = "scoping_approval"
	TypeSampleReview       = "sample_review"
	TypeSampleApproval     = "sample_approval"
	TypeLOBAssignment      = "lob_assignment"
	TypeDataUploadRequest  = "data_upload_request"
	TypeEvidenceSubmission = "evidence_submission"
	TypeEvidenceReview     = "evidence_review"
	TypeTestReview         = "test_review"
	TypeTestApproval       = "test_approval"
	TypeObservationReview  = "observation_review"
	TypeObservationApproval = "observation_approval"
	TypeReportReview       = "report_review"
	TypeReportSignoff      = "report_signoff"
)

// DefaultCascadeTable is the standard handoff configuration across the nine
// phases.
func DefaultCascadeTable() *CascadeTable {
	table, err := NewCascadeTable([]CascadeRule{
		{
			Phase: "Planning", OnType: TypeAttributeReview, FromRole: auth.RoleTester,
			Type: TypeAttributeApproval, ToRole: auth.RoleTestExecutive,
			Priority: PriorityHigh, DueInDays: 3, AutoAssign: true,
		},
		{
			Phase: "Scoping", OnType: TypeScopingReview, FromRole: auth.RoleTester,
			Type: TypeScopingApproval, ToRole: auth.RoleReportOwner,
			Priority: PriorityHigh, DueInDays: 3, AutoAssign: true,
		},
		{
			Phase: "Sample Selection", OnType: TypeSampleReview, FromRole: auth.RoleTester,
			Type: TypeSampleApproval, ToRole: auth.RoleReportOwner,
			Priority: PriorityHigh, DueInDays: 3, AutoAssign: true,
		},
		{
			Phase: "Data Owner Identification", OnType: TypeLOBAssignment, FromRole: auth.RoleDataExecutive,
			Type: TypeDataUploadRequest, ToRole: auth.RoleDataOwner,
			Priority: PriorityCritical, DueInDays: 5, AutoAssign: true,
		},
		{
			Phase: "Request for Information", OnType: TypeEvidenceSubmission, FromRole: auth.RoleDataOwner,
			Type: TypeEvidenceReview, ToRole: auth.RoleTester,
			Priority: PriorityHigh, DueInDays: 2, AutoAssign: true,
			When: "submitted_count > 0",
		},
		{
			Phase: "Test Execution", OnType: TypeTestReview, FromRole: auth.RoleTester,
			Type: TypeTestApproval, ToRole: auth.RoleTestExecutive,
			Priority: PriorityMedium, DueInDays: 3, AutoAssign: true,
		},
		{
			Phase: "Observations", OnType: TypeObservationReview, FromRole: auth.RoleTester,
			Type: TypeObservationApproval, ToRole: auth.RoleReportOwner,
			Priority: PriorityHigh, DueInDays: 3, AutoAssign: true,
		},
		{
			Phase: "Final Report", OnType: TypeReportReview, FromRole: auth.RoleTestExecutive,
			Type: TypeReportSignoff, ToRole: auth.RoleReportOwner,
			Priority: PriorityCritical, DueInDays: 2, AutoAssign: true,
		},
	})
	if err != nil {
		// Static configuration; an error here is a programming mistake.
		panic(err)
	}
	return table
}
