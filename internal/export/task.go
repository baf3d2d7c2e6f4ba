// Package export owns the asynchronous export task lifecycle and the
// append-only export history.
package export

import (
	"github.com/openqbank/qbexport/internal/render"
)

// State transitions are monotonic: pending -> running -> succeeded|failed,
// plus pending -> cancelled. Terminal states never change again.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

type Task struct {
	ID                     string        `json:"id"`
	RequestedBy            string        `json:"requested_by"`
	SessionID              string        `json:"session_id"`
	QuestionIDs            []string      `json:"question_ids"`
	Format                 render.Format `json:"format"`
	PresentationTemplateID string        `json:"presentation_template_id"`
	MetadataTemplateID     string        `json:"metadata_template_id,omitempty"`
	State                  State         `json:"state"`
	CreatedAt              int64         `json:"created_at"`
	CompletedAt            *int64        `json:"completed_at,omitempty"`
	Error                  string        `json:"error,omitempty"`
	// ArtifactPath is set if and only if State == StateSucceeded.
	ArtifactPath string `json:"artifact_path,omitempty"`
}

// Record is the immutable history snapshot written once a task reaches a
// terminal state. Never mutated after insertion.
type Record struct {
	TaskID        string `json:"task_id"`
	RequestedBy   string `json:"requested_by"`
	Format        string `json:"format"`
	TemplateName  string `json:"template_name"`
	QuestionCount int    `json:"question_count"`
	FilePath      string `json:"file_path,omitempty"`
	FileSize      int64  `json:"file_size"`
	Failed        bool   `json:"failed,omitempty"`
	Error         string `json:"error,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}
