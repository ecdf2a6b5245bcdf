package model

import "time"

// ExecutionStatus is the lifecycle state of one pipeline run.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether no further step results may be appended.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionSucceeded || s == ExecutionFailed || s == ExecutionCancelled
}

// StepStatus is the outcome of a single executed step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
)

// StepResult records the outcome of one step of an execution. Steps that
// never ran (after a failure or cancellation) have no result at all.
type StepResult struct {
	Index           int        `json:"index"`
	Status          StepStatus `json:"status"`
	OutputDatasetID string     `json:"outputDatasetId,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Execution is the durable record of one pipeline run.
type Execution struct {
	ID         string          `json:"id"`
	PipelineID string          `json:"pipelineId"`
	JobID      string          `json:"jobId"`
	Status     ExecutionStatus `json:"status"`
	Steps      []StepResult    `json:"steps"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
