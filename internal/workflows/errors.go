package workflows

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
)

// ErrorSeverity classifies workflow errors.
type ErrorSeverity string

const (
	// ErrorSeverityCritical fails the workflow.
	ErrorSeverityCritical ErrorSeverity = "critical"
	// ErrorSeverityLow is recorded in the result; the workflow continues.
	ErrorSeverityLow ErrorSeverity = "low"
)

// WorkflowError is a structured workflow error.
type WorkflowError struct {
	Operation string        // e.g. "cleanup_expired"
	Severity  ErrorSeverity
	Err       error
	Context   string
}

func (e *WorkflowError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s failed: %s (%s)", e.Operation, e.Err.Error(), e.Context)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Err.Error())
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a workflow error.
func NewWorkflowError(operation string, severity ErrorSeverity, err error, context string) *WorkflowError {
	return &WorkflowError{
		Operation: operation,
		Severity:  severity,
		Err:       err,
		Context:   context,
	}
}

// activityError marks errors that retrying cannot fix as non-retryable.
func activityError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if docindex.IsValidation(err) || errors.Is(err, docindex.ErrLatestless) {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("%s: %v", operation, err), "NonRetryable", err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
