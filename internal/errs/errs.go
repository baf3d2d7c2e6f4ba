// Package errs defines the error taxonomy shared by the export core.
// Callers match with errors.As (typed errors) or errors.Is (sentinels).
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound marks lookups by an id the store does not know.
var ErrNotFound = errors.New("not found")

// MalformedInputError is returned when uploaded XML cannot be parsed at all.
// Offset is the byte position of the first fatal error in the input.
type MalformedInputError struct {
	Offset int64
	Err    error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed xml at byte %d: %v", e.Offset, e.Err)
}
func (e *MalformedInputError) Unwrap() error { return e.Err }

// ValidationError carries every violation found, not just the first,
// so a UI can show the complete list in one round trip.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// InUseError blocks deleting a template while a non-terminal export
// task still references it.
type InUseError struct {
	TemplateID string
	TaskIDs    []string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("template %s in use by %d active task(s)", e.TemplateID, len(e.TaskIDs))
}

// InvalidRequestError rejects an export submission before any task is created.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return "invalid export request: " + e.Reason }

// TemplateResolutionError: no type-specific template and no "any" fallback.
type TemplateResolutionError struct {
	QuestionType string
}

func (e *TemplateResolutionError) Error() string {
	return fmt.Sprintf("no presentation template applicable to question type %q", e.QuestionType)
}

// EmptyExportError: a renderer was handed a document with zero questions.
type EmptyExportError struct{}

func (e *EmptyExportError) Error() string { return "nothing to export: empty question set" }

// RenderError wraps a failure inside a format renderer.
type RenderError struct {
	Format string
	Err    error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render %s: %v", e.Format, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }
