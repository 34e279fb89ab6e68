// Package solver is the public entry point of the scheduling core: it runs
// validation, CPM analysis, resource-feasibility resolution and wall-clock
// anchoring, and assembles the solved schedule. A solve is a pure function
// of (template, inventory); identical inputs yield identical outputs.
package solver

import (
	"sort"

	"github.com/sa2812/skejj/internal/alloc"
	"github.com/sa2812/skejj/internal/cpm"
	"github.com/sa2812/skejj/internal/graph"
	"github.com/sa2812/skejj/internal/model"
	"github.com/sa2812/skejj/internal/validate"
)

// Solve produces a concrete timed plan for the template. The optional
// inventory substitutes declared capacities by resource name; callers reject
// unknown names and non-positive values before invoking Solve. Schema,
// referential and cycle errors abort; resource pressure never does.
func Solve(t *model.Template, inv model.Inventory) (*model.SolvedSchedule, error) {
	if err := validate.Strict(t); err != nil {
		return nil, err
	}

	g, err := graph.Build(t)
	if err != nil {
		return nil, err
	}

	analysis, err := cpm.Analyze(g)
	if err != nil {
		return nil, err
	}

	resolved := alloc.Resolve(t, g, analysis, inv)

	solved := assemble(t, analysis, resolved)
	if err := anchorSchedule(t.TimeConstraint, solved, resolved.Makespan); err != nil {
		return nil, err
	}
	return solved, nil
}

// assemble builds the solved schedule: steps ordered by start offset
// ascending with ties broken by step id, CPM float and criticality echoed
// per step, and the resolver's warnings carried on the result.
func assemble(t *model.Template, analysis *cpm.Result, resolved *alloc.Result) *model.SolvedSchedule {
	steps := make([]model.SolvedStep, 0, len(t.Steps))
	for i := range t.Steps {
		s := &t.Steps[i]
		p := resolved.Placements[s.ID]
		ts := analysis.Steps[s.ID]

		assigned := p.Assigned
		if assigned == nil {
			assigned = []model.AssignedResource{}
		}
		steps = append(steps, model.SolvedStep{
			StepID:            s.ID,
			StartOffsetMins:   p.Start,
			EndOffsetMins:     p.End,
			TotalFloatMins:    ts.TotalFloat,
			IsCritical:        ts.IsCritical,
			AssignedResources: assigned,
		})
	}
	sort.Slice(steps, func(a, b int) bool {
		if steps[a].StartOffsetMins != steps[b].StartOffsetMins {
			return steps[a].StartOffsetMins < steps[b].StartOffsetMins
		}
		return steps[a].StepID < steps[b].StepID
	})

	criticalPath := analysis.CriticalPath
	if criticalPath == nil {
		criticalPath = []string{}
	}
	warnings := resolved.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return &model.SolvedSchedule{
		TemplateID:  t.ID,
		SolvedSteps: steps,
		Summary: model.ScheduleSummary{
			TotalDurationMins:   resolved.Makespan,
			CriticalPathStepIDs: criticalPath,
		},
		Warnings: warnings,
	}
}
