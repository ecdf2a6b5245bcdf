package model

import "time"

// StepKind selects the step implementation.
type StepKind string

const (
	StepSQLQuery StepKind = "sql_query"
	StepScript   StepKind = "script"
)

// Step is one transformation in a pipeline. Source holds the SQL text or the
// script body. Inputs name the datasets the step reads: either the name of a
// registered dataset or the declared output name of an earlier step in the
// same pipeline. OutputName is the dataset name the step's result is
// registered under.
type Step struct {
	Kind       StepKind `json:"kind"`
	Source     string   `json:"source"`
	Inputs     []string `json:"inputs"`
	OutputName string   `json:"outputName"`
}

// Pipeline is an ordered sequence of steps executed fail-fast.
type Pipeline struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
