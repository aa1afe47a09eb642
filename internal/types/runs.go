package types

import (
	"time"

	"github.com/google/uuid"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// StepStatus constants
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusFailed     = "failed"
	StepStatusSkipped    = "skipped"
)

// PipelineRun is one execution of the sourcing pipeline for a job.
type PipelineRun struct {
	ID           uuid.UUID      `json:"id"`
	JobID        uuid.UUID      `json:"job_id"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Summary      map[string]int `json:"summary,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// RunStep represents a single stage execution within a pipeline run
type RunStep struct {
	RunID        uuid.UUID      `json:"run_id"`
	Step         string         `json:"step"`
	Category     string         `json:"category"`
	Status       string         `json:"status"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	DurationMs   *int           `json:"duration_ms,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Counts       map[string]int `json:"counts,omitempty"`
}
