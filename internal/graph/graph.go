// Package graph builds the precedence DAG over a template's steps, detects
// cycles and produces the topological ordering the CPM engine consumes.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sa2812/skejj/internal/model"
)

// CycleError reports a dependency cycle. Cycle lists the step ids along the
// cycle in forward order, with the first id repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Build constructs a Graph from a validated template. Unknown predecessor
// references and cycles are errors; referential problems are normally caught
// by validation first, but Build guards against them so it is safe on its own.
func Build(t *model.Template) (*Graph, error) {
	g := &Graph{
		Steps:  make(map[string]*model.Step, len(t.Steps)),
		Adj:    make(map[string][]Edge),
		RevAdj: make(map[string][]Edge),
	}

	for i := range t.Steps {
		s := &t.Steps[i]
		if _, dup := g.Steps[s.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", s.ID)
		}
		g.Steps[s.ID] = s
	}

	// Exact duplicate edges (same endpoints and kind) are collapsed; distinct
	// kinds between the same endpoints are all kept — CPM takes the tightest.
	edgeSet := make(map[Edge]bool)
	for i := range t.Steps {
		succ := &t.Steps[i]
		for _, dep := range succ.Dependencies {
			pred := dep.PredecessorStepID
			if pred == succ.ID {
				return nil, fmt.Errorf("step %q depends on itself", succ.ID)
			}
			if _, ok := g.Steps[pred]; !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", succ.ID, pred)
			}
			e := Edge{From: pred, To: succ.ID, Kind: dep.EffectiveKind()}
			if edgeSet[e] {
				continue
			}
			edgeSet[e] = true
			g.Adj[pred] = append(g.Adj[pred], e)
			g.RevAdj[succ.ID] = append(g.RevAdj[succ.ID], e)
		}
	}

	// Sort adjacency lists for deterministic traversal
	for k := range g.Adj {
		sortEdges(g.Adj[k])
	}
	for k := range g.RevAdj {
		sortEdges(g.RevAdj[k])
	}

	for id := range g.Steps {
		if len(g.RevAdj[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Adj[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}
	sort.Strings(g.Roots)
	sort.Strings(g.Leaves)

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	return g, nil
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].From != edges[b].From {
			return edges[a].From < edges[b].From
		}
		if edges[a].To != edges[b].To {
			return edges[a].To < edges[b].To
		}
		return edges[a].Kind < edges[b].Kind
	})
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is
// acyclic. Uses DFS with coloring: white (unvisited), gray (in progress),
// black (done). The returned path starts and ends on the same step.
func (g *Graph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, e := range g.Adj[node] {
			next := e.To
			if color[next] == gray {
				// Found a cycle — reconstruct it
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				// Reverse to get forward order
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	// Sort keys for deterministic detection
	ids := make([]string, 0, len(g.Steps))
	for id := range g.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopoSort returns a topological ordering via Kahn's algorithm. Ready steps
// are processed first-in first-out; the initial ready set and each batch of
// newly ready steps are sorted by id for determinism.
func (g *Graph) TopoSort() ([]string, error) {
	inDegree := make(map[string]int)
	for id := range g.Steps {
		inDegree[id] = len(g.RevAdj[id])
	}

	var queue []string
	for id := range g.Steps {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, e := range g.Adj[node] {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				newReady = append(newReady, e.To)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.Steps) {
		if cycle := g.DetectCycle(); cycle != nil {
			return nil, &CycleError{Cycle: cycle}
		}
		return nil, fmt.Errorf("topological sort failed: %d of %d steps sorted", len(order), len(g.Steps))
	}

	return order, nil
}
