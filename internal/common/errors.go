package common

import (
	"fmt"
	"strings"
)

// Error taxonomy for the testing-workflow core. Every operation returns one of
// these typed errors (or wraps one); none of them is fatal to the process.
// Callers pick the recovery strategy: re-read state, retry, or resolve the
// blocking condition.

// ValidationError reports malformed input with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError reports an operation that is not legal for the entity's
// current lifecycle state. The caller should re-fetch and re-evaluate.
type InvalidStateError struct {
	Entity    string
	ID        string
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s, cannot %s", e.Entity, e.ID, e.Current, e.Attempted)
}

// NewInvalidStateError creates an invalid-state error.
func NewInvalidStateError(entity, id, current, attempted string) *InvalidStateError {
	return &InvalidStateError{Entity: entity, ID: id, Current: current, Attempted: attempted}
}

// ConflictError reports a concurrent-mutation conflict (duplicate open draft,
// lost optimistic check, already-initialized workflow). Retry after re-read.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a conflict error.
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// BlockedError reports a business-rule gate failure. BlockingIDs names the
// records holding up the operation so the caller can surface or resolve them.
type BlockedError struct {
	Message     string
	BlockingIDs []string
}

func (e *BlockedError) Error() string {
	if len(e.BlockingIDs) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (blocked by: %s)", e.Message, strings.Join(e.BlockingIDs, ", "))
}

// NewBlockedError creates a blocked error carrying the blocking record ids.
func NewBlockedError(message string, blockingIDs []string) *BlockedError {
	return &BlockedError{Message: message, BlockingIDs: blockingIDs}
}

// NotFoundError reports a missing phase/version/evidence/assignment record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}
