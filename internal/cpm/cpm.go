// Package cpm implements the Critical Path Method over a precedence graph
// with typed edges. The forward and backward passes operate on integer
// minutes; analysis never fails on an acyclic graph.
package cpm

import (
	"github.com/sa2812/skejj/internal/graph"
	"github.com/sa2812/skejj/internal/model"
)

// earliestStart returns the lower bound an edge of the given kind places on
// the successor's earliest start, given the predecessor's ES/EF and the
// successor's duration.
func earliestStart(kind model.DependencyKind, predES, predEF, succDur int) int {
	switch kind {
	case model.StartToStart:
		return predES
	case model.FinishToFinish:
		return predEF - succDur
	case model.StartToFinish:
		return predES - succDur
	default: // FinishToStart
		return predEF
	}
}

// latestFinish returns the upper bound an edge of the given kind places on
// the predecessor's latest finish, given the successor's LS/LF and both
// durations.
func latestFinish(kind model.DependencyKind, succLS, succLF, succDur, predDur int) int {
	switch kind {
	case model.StartToStart:
		return succLS + predDur
	case model.FinishToFinish:
		return succLF
	case model.StartToFinish:
		return succLF - succDur + predDur
	default: // FinishToStart
		return succLS
	}
}

// Analyze runs the forward and backward passes and extracts slack and the
// critical path. The only failure mode is a cyclic graph, surfaced by the
// topological sort.
func Analyze(g *graph.Graph) (*Result, error) {
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Steps:     make(map[string]*StepSchedule, len(order)),
		TopoOrder: order,
	}
	for _, id := range order {
		result.Steps[id] = &StepSchedule{StepID: id}
	}

	// Forward pass: ES is the max over all incoming edge constraints,
	// pinned to 0 for sources (and clamped at 0 for SF/FF underflow).
	for _, id := range order {
		ts := result.Steps[id]
		dur := g.Duration(id)
		es := 0
		for _, e := range g.RevAdj[id] {
			pred := result.Steps[e.From]
			if c := earliestStart(e.Kind, pred.ES, pred.EF, dur); c > es {
				es = c
			}
		}
		ts.ES = es
		ts.EF = es + dur
	}

	makespan := 0
	for _, ts := range result.Steps {
		if ts.EF > makespan {
			makespan = ts.EF
		}
	}
	result.Makespan = makespan

	// Backward pass: LF is the min over all outgoing edge constraints,
	// pinned to the makespan for sinks.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Steps[id]
		dur := g.Duration(id)

		lf := makespan
		for _, e := range g.Adj[id] {
			succ := result.Steps[e.To]
			if c := latestFinish(e.Kind, succ.LS, succ.LF, g.Duration(e.To), dur); c < lf {
				lf = c
			}
		}
		ts.LF = lf
		ts.LS = lf - dur
		ts.TotalFloat = ts.LS - ts.ES
		ts.IsCritical = ts.TotalFloat == 0
	}

	// Critical steps in topological order
	for _, id := range order {
		if result.Steps[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	return result, nil
}
