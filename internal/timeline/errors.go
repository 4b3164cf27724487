package timeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies transition failures. Every code maps to exactly one
// caller remedy: fix input, refetch, or give up.
type ErrorCode string

const (
	// CodeRoleNotPermitted: actor's role is not in the template's allowed
	// set. Not retryable.
	CodeRoleNotPermitted ErrorCode = "role_not_permitted"
	// CodeDependencyNotSatisfied: named blocking steps are incomplete.
	// User-correctable, not retryable as-is.
	CodeDependencyNotSatisfied ErrorCode = "dependency_not_satisfied"
	// CodeValidationFailed: missing remarks/attachments/mandatory documents,
	// enumerated. User-correctable.
	CodeValidationFailed ErrorCode = "validation_failed"
	// CodeConflict: stale concurrency token. Retryable after refetch.
	CodeConflict ErrorCode = "conflict"
	// CodeOverrideFailed: a batch override could not be fully applied; the
	// whole batch was rolled back.
	CodeOverrideFailed ErrorCode = "override_failed"
	// CodeProjectClosed: a non-override action was attempted on a closed
	// lead.
	CodeProjectClosed ErrorCode = "project_closed"
	// CodeNotFound: lead, step, or template does not exist.
	CodeNotFound ErrorCode = "not_found"
	// CodeInvariantViolation: data-integrity breakage (e.g. duplicate
	// instances for one (lead, template) pair). The mutation halts; nothing
	// attempts repair.
	CodeInvariantViolation ErrorCode = "invariant_violation"
)

// Error is the structured failure returned by every transition entry point.
type Error struct {
	Code    ErrorCode
	Message string

	// Blocking holds the step names preventing eligibility
	// (CodeDependencyNotSatisfied).
	Blocking []string
	// Missing enumerates unmet completion requirements
	// (CodeValidationFailed).
	Missing []string

	cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Blocking) > 0 {
		fmt.Fprintf(&b, " (blocked by: %s)", strings.Join(e.Blocking, ", "))
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing: %s)", strings.Join(e.Missing, ", "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the error code, or "" for non-timeline errors.
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func newRoleNotPermitted(role, stepName string) *Error {
	return &Error{
		Code:    CodeRoleNotPermitted,
		Message: fmt.Sprintf("role %q may not act on step %q", role, stepName),
	}
}

func newDependencyNotSatisfied(stepName string, blocking []string) *Error {
	return &Error{
		Code:     CodeDependencyNotSatisfied,
		Message:  fmt.Sprintf("step %q is not eligible yet", stepName),
		Blocking: blocking,
	}
}

func newValidationFailed(stepName string, missing []string) *Error {
	return &Error{
		Code:    CodeValidationFailed,
		Message: fmt.Sprintf("step %q cannot complete", stepName),
		Missing: missing,
	}
}

func newConflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func newOverrideFailed(cause error) *Error {
	return &Error{
		Code:    CodeOverrideFailed,
		Message: "override was rolled back: " + cause.Error(),
		cause:   cause,
	}
}

func newProjectClosed(leadID string) *Error {
	return &Error{
		Code:    CodeProjectClosed,
		Message: fmt.Sprintf("lead %s is closed; only an admin reopen_project is accepted", leadID),
	}
}

func newNotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func newInvariantViolation(message string) *Error {
	return &Error{Code: CodeInvariantViolation, Message: message}
}
