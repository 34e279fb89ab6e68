package graph

import "github.com/sa2812/skejj/internal/model"

// Edge is a typed precedence edge between two steps.
type Edge struct {
	From string
	To   string
	Kind model.DependencyKind
}

// Graph is a directed acyclic precedence graph over a template's steps.
// Adjacency lists are keyed by step id and carry the dependency kind on each
// edge; they index into the validated template and own nothing.
type Graph struct {
	Steps  map[string]*model.Step
	Adj    map[string][]Edge // predecessor -> outgoing edges
	RevAdj map[string][]Edge // successor -> incoming edges
	Roots  []string          // steps with no predecessors
	Leaves []string          // steps with no successors
}

// StepCount returns the number of steps in the graph.
func (g *Graph) StepCount() int {
	return len(g.Steps)
}

// Duration returns the duration of the step with the given id.
func (g *Graph) Duration(id string) int {
	return g.Steps[id].DurationMins
}
