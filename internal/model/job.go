package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType identifies what kind of work an async job tracks.
type JobType string

const (
	JobImport    JobType = "import"
	JobExecution JobType = "execution"
)

// JobStatus is the lifecycle state of an async job. A job stays running from
// creation until its single terminal transition.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the job has reached its terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Metadata is the open stage-detail mapping attached to a job. Values are
// restricted to what JSON can represent (strings, numbers, booleans, nested
// maps and slices) so serialization and equality stay well-defined.
type Metadata map[string]interface{}

// Normalize round-trips the metadata through JSON, rejecting values outside
// the allowed variant set and collapsing numeric types to float64.
func (m Metadata) Normalize() (Metadata, error) {
	if m == nil {
		return Metadata{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("metadata not representable: %w", err)
	}
	var out Metadata
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge returns a copy of m with patch applied key-wise.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := make(Metadata, len(m)+len(patch))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// AsyncJob is the shared lifecycle record under imports and executions. Its
// ID is the handle callers poll; progress is monotonically non-decreasing
// and reaches 100 exactly when the job succeeds.
type AsyncJob struct {
	ID           string    `json:"jobId"`
	Type         JobType   `json:"jobType"`
	UserID       string    `json:"userId"`
	Status       JobStatus `json:"status"`
	Stage        string    `json:"stage"`
	Progress     int       `json:"progress"`
	Metadata     Metadata  `json:"metadata"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
