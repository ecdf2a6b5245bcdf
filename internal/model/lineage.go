package model

import "time"

// LineageEdge records that a derived dataset was produced from a source
// dataset by a specific step of a specific execution. Edges are append-only.
type LineageEdge struct {
	DerivedDatasetID string    `json:"derivedDatasetId"`
	SourceDatasetID  string    `json:"sourceDatasetId"`
	ExecutionID      string    `json:"executionId"`
	StepIndex        int       `json:"stepIndex"`
	CreatedAt        time.Time `json:"createdAt"`
}
