// Package pipeline sequences a pipeline's steps into an execution plan and
// drives single runs to completion, failure or cancellation.
package pipeline

import (
	"errors"
	"fmt"

	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/store"
)

// PlanError marks a pipeline as structurally invalid before any step runs:
// empty pipelines, missing output names, or input references that resolve
// to nothing. Plan errors are surfaced synchronously and never retried.
type PlanError struct {
	Detail string
}

func (e *PlanError) Error() string { return "plan error: " + e.Detail }

// resolvedInput binds one declared input name to its dataset: either a
// registered dataset resolved at plan time, or the output of an earlier
// step in the same run (stepIndex >= 0), bound while the run progresses.
type resolvedInput struct {
	name      string
	dataset   model.Dataset
	stepIndex int
}

type plannedStep struct {
	step   model.Step
	inputs []resolvedInput
}

type plan struct {
	steps []plannedStep
}

// buildPlan resolves every step's inputs up front so partially-invalid
// pipelines never begin executing. Intra-pipeline references (to an earlier
// step's declared output) take precedence over registered dataset names;
// forward references cannot resolve and fail the plan.
func buildPlan(p model.Pipeline, registry *dataset.Registry) (*plan, error) {
	if len(p.Steps) == 0 {
		return nil, &PlanError{Detail: fmt.Sprintf("pipeline %q has no steps", p.Name)}
	}

	outputs := make(map[string]int, len(p.Steps))
	pl := &plan{steps: make([]plannedStep, 0, len(p.Steps))}

	for i, s := range p.Steps {
		if s.OutputName == "" {
			return nil, &PlanError{Detail: fmt.Sprintf("step %d declares no output name", i+1)}
		}
		if s.Source == "" {
			return nil, &PlanError{Detail: fmt.Sprintf("step %d has an empty source", i+1)}
		}
		if s.Kind != model.StepSQLQuery && s.Kind != model.StepScript {
			return nil, &PlanError{Detail: fmt.Sprintf("step %d has unknown kind %q", i+1, s.Kind)}
		}
		if len(s.Inputs) == 0 {
			return nil, &PlanError{Detail: fmt.Sprintf("step %d declares no inputs", i+1)}
		}

		ps := plannedStep{step: s}
		for _, name := range s.Inputs {
			if idx, ok := outputs[name]; ok {
				ps.inputs = append(ps.inputs, resolvedInput{name: name, stepIndex: idx})
				continue
			}
			ds, err := registry.LatestByName(name)
			if errors.Is(err, store.ErrNotFound) {
				return nil, &PlanError{Detail: fmt.Sprintf("step %d input %q does not resolve to any dataset", i+1, name)}
			}
			if err != nil {
				return nil, fmt.Errorf("resolve input %q: %w", name, err)
			}
			ps.inputs = append(ps.inputs, resolvedInput{name: name, dataset: ds, stepIndex: -1})
		}

		outputs[s.OutputName] = i
		pl.steps = append(pl.steps, ps)
	}
	return pl, nil
}
