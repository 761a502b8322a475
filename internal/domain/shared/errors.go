// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	ErrNotFound         = errors.New("entity not found")
	ErrConflict         = errors.New("conflict")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotEnrolled      = errors.New("not enrolled")

	// ErrInconsistent means a multi-step ledger update failed part way and
	// could not be settled. It must always reach the caller.
	ErrInconsistent = errors.New("inconsistent state")

	// ErrVersionConflict is a Conflict raised by the optimistic version token.
	ErrVersionConflict = fmt.Errorf("version mismatch: %w", ErrConflict)

	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "grade", "record"
	Op      string // Operation that failed, e.g., "Enroll", "RecordExit"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Course errors
var (
	ErrCourseNotFound = NewDomainError("course", "Get", ErrNotFound, "course not found")
	ErrCourseInactive = NewDomainError("course", "Get", ErrNotFound, "course is not active")
	ErrCourseFull     = NewDomainError("course", "Admit", ErrCapacityExceeded, "course has reached its enrollment cap")
)

// Enrollment errors
var (
	ErrEnrollmentNotFound  = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrEnrollmentExists    = NewDomainError("enrollment", "Enroll", ErrConflict, "student is already enrolled in this course")
	ErrEnrollmentNotActive = NewDomainError("enrollment", "Mutate", ErrNotFound, "active enrollment not found")
	ErrEnrollmentNotOwned  = NewDomainError("enrollment", "Mutate", ErrForbidden, "enrollment belongs to another student")
	ErrInvalidProgress     = NewDomainError("enrollment", "UpdateProgress", ErrInvalidArgument, "progress must be between 0 and 100")
	ErrStudentNotEnrolled  = NewDomainError("grade", "Submit", ErrNotEnrolled, "student is not enrolled in this course")
)

// Grade errors
var (
	ErrGradeNotFound     = NewDomainError("grade", "Find", ErrNotFound, "grade not found")
	ErrInvalidMarks      = NewDomainError("grade", "Validate", ErrInvalidArgument, "marks must be between 0 and 100")
	ErrInvalidGradeScale = NewDomainError("grade", "Scale", ErrInvalidArgument, "grade scale cutoffs must be strictly descending")
)

// Academic record errors
var (
	ErrRecordNotFound    = NewDomainError("record", "Find", ErrNotFound, "academic record not found")
	ErrInvalidExitLevel  = NewDomainError("record", "RecordExit", ErrInvalidArgument, "exit level must be one of certificate, diploma, degree, postgraduate")
	ErrExitRegression    = NewDomainError("record", "RecordExit", ErrInvalidArgument, "exit level is lower than an already recorded level")
	ErrInvalidExitCredit = NewDomainError("record", "RecordExit", ErrInvalidArgument, "exit credits cannot be negative")
)

// Student errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Register", ErrConflict, "student with this email or code already exists")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict, version mismatches included.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsVersionConflict checks if the error came from a stale optimistic version.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// Kind names are stable and part of the API error body.
const (
	KindNotFound         = "not_found"
	KindConflict         = "conflict"
	KindCapacityExceeded = "capacity_exceeded"
	KindForbidden        = "forbidden"
	KindInvalidArgument  = "invalid_argument"
	KindInconsistent     = "inconsistent"
	KindNotEnrolled      = "not_enrolled"
	KindUnauthorized     = "unauthorized"
	KindInternal         = "internal"
)

// KindOf classifies err into one of the stable kind names.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInconsistent):
		return KindInconsistent
	case errors.Is(err, ErrNotEnrolled):
		return KindNotEnrolled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCapacityExceeded):
		return KindCapacityExceeded
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// Inconsistent marks err as an unsettled multi-step update.
func Inconsistent(op string, err error) error {
	return WrapError("ledger", op, ErrInconsistent, "ledger update could not be settled", err)
}
