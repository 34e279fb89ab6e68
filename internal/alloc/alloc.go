// Package alloc post-processes a CPM solution so that no renewable-resource
// capacity is ever exceeded and consumable totals are accounted for. It
// implements serial schedule generation with earliest-feasible placement,
// followed by a reverse-topological ALAP pass. The resolver never fails on
// resource pressure alone: pressure becomes delay, and delay past CPM slack
// becomes a warning.
package alloc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sa2812/skejj/internal/cpm"
	"github.com/sa2812/skejj/internal/graph"
	"github.com/sa2812/skejj/internal/model"
)

// Placement is the resolved timing for one step.
type Placement struct {
	StepID   string
	Start    int
	End      int
	Assigned []model.AssignedResource
}

// Result is the feasibility-resolved schedule.
type Result struct {
	Placements map[string]*Placement
	Makespan   int
	Warnings   []string
}

type resolver struct {
	tpl      *model.Template
	g        *graph.Graph
	analysis *cpm.Result

	capacity    map[string]int       // resource id -> effective capacity
	timelines   map[string]*timeline // renewable resource id -> usage
	placed      map[string]*Placement
	warnings    []string
	delayWarned map[string]bool
}

// Resolve runs the resolver. The inventory map substitutes declared
// capacities by resource name (case-preserving); callers validate it first.
// Identical inputs always produce identical schedules.
func Resolve(t *model.Template, g *graph.Graph, analysis *cpm.Result, inv model.Inventory) *Result {
	r := &resolver{
		tpl:         t,
		g:           g,
		analysis:    analysis,
		capacity:    effectiveCapacity(t, inv),
		timelines:   make(map[string]*timeline),
		placed:      make(map[string]*Placement, len(t.Steps)),
		delayWarned: make(map[string]bool),
	}
	for i := range t.Resources {
		res := &t.Resources[i]
		if res.Kind.Renewable() {
			r.timelines[res.ID] = &timeline{}
		}
	}

	r.overcapacityWarnings()
	for _, id := range r.eventOrder() {
		r.place(id)
	}
	r.repair()
	r.shiftAlap()
	r.consumableWarnings()

	makespan := 0
	for _, p := range r.placed {
		if p.End > makespan {
			makespan = p.End
		}
	}

	return &Result{Placements: r.placed, Makespan: makespan, Warnings: r.warnings}
}

// effectiveCapacity maps resource id to capacity with inventory overrides
// applied by name.
func effectiveCapacity(t *model.Template, inv model.Inventory) map[string]int {
	caps := make(map[string]int, len(t.Resources))
	for _, res := range t.Resources {
		cap := res.Capacity
		if qty, ok := inv[res.Name]; ok {
			cap = qty
		}
		caps[res.ID] = cap
	}
	return caps
}

// eventOrder sorts step ids by earliest start, with ties ordered so that
// critical steps come before non-critical, ASAP before ALAP, then by step id
// for determinism.
func (r *resolver) eventOrder() []string {
	ids := make([]string, 0, len(r.g.Steps))
	for id := range r.g.Steps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		sa, sb := r.analysis.Steps[ids[a]], r.analysis.Steps[ids[b]]
		if sa.ES != sb.ES {
			return sa.ES < sb.ES
		}
		if sa.IsCritical != sb.IsCritical {
			return sa.IsCritical
		}
		pa, pb := r.g.Steps[ids[a]].Policy(), r.g.Steps[ids[b]].Policy()
		if pa != pb {
			return pa == model.Asap
		}
		return ids[a] < ids[b]
	})
	return ids
}

// earliestBound recomputes the predecessor lower bound for a step, using
// already-placed predecessor times where available and CPM times otherwise.
func (r *resolver) earliestBound(id string) int {
	dur := r.g.Duration(id)
	bound := 0
	for _, e := range r.g.RevAdj[id] {
		predStart, predEnd := r.timesOf(e.From)
		var c int
		switch e.Kind {
		case model.StartToStart:
			c = predStart
		case model.FinishToFinish:
			c = predEnd - dur
		case model.StartToFinish:
			c = predStart - dur
		default: // FinishToStart
			c = predEnd
		}
		if c > bound {
			bound = c
		}
	}
	return bound
}

func (r *resolver) timesOf(id string) (start, end int) {
	if p, ok := r.placed[id]; ok {
		return p.Start, p.End
	}
	ts := r.analysis.Steps[id]
	return ts.ES, ts.EF
}

// place finds the smallest feasible start at or after the step's predecessor
// bound and claims its resources there.
func (r *resolver) place(id string) {
	step := r.g.Steps[id]
	dur := step.DurationMins
	lb := r.earliestBound(id)

	renewable := r.renewableNeeds(step)

	start := lb
	if len(renewable) > 0 {
		start = r.earliestFeasible(lb, dur, renewable)
	}

	r.warnIfDelayed(id, start, lb, renewable)

	p := &Placement{StepID: id, Start: start, End: start + dur}
	for _, need := range step.ResourceNeeds {
		res := r.tpl.ResourceByID(need.ResourceID)
		if res != nil && res.Kind.Renewable() {
			r.timelines[res.ID].reserve(p.Start, p.End, need.Quantity)
		}
		// Allocation proceeds as declared for every kind; consumable
		// shortfalls surface as warnings, not reduced assignments.
		p.Assigned = append(p.Assigned, model.AssignedResource{
			ResourceID:   need.ResourceID,
			QuantityUsed: need.Quantity,
		})
	}
	r.placed[id] = p
}

func (r *resolver) renewableNeeds(step *model.Step) []model.ResourceNeed {
	var needs []model.ResourceNeed
	for _, need := range step.ResourceNeeds {
		res := r.tpl.ResourceByID(need.ResourceID)
		if res != nil && res.Kind.Renewable() {
			needs = append(needs, need)
		}
	}
	return needs
}

// fits reports whether every renewable need can be claimed over
// [t, t+dur) without exceeding capacity.
func (r *resolver) fits(t, dur int, needs []model.ResourceNeed) bool {
	for _, need := range needs {
		tl := r.timelines[need.ResourceID]
		if tl.maxUsedIn(t, t+dur)+need.Quantity > r.capacity[need.ResourceID] {
			return false
		}
	}
	return true
}

// earliestFeasible scans candidate starts — the lower bound plus every
// capacity-release instant after it — and returns the first that fits. A
// need larger than total capacity can never fit; the step is placed at its
// bound anyway, since delay cannot create capacity.
func (r *resolver) earliestFeasible(lb, dur int, needs []model.ResourceNeed) int {
	for _, need := range needs {
		if need.Quantity > r.capacity[need.ResourceID] {
			return lb
		}
	}

	candidates := []int{lb}
	for _, need := range needs {
		for _, at := range r.timelines[need.ResourceID].releaseTimes(lb) {
			candidates = append(candidates, at)
		}
	}
	sort.Ints(candidates)

	for _, t := range candidates {
		if r.fits(t, dur, needs) {
			return t
		}
	}
	// Unreachable: the last release time always leaves the timelines empty
	// over the window.
	return lb
}

// blockingNames lists the resources that could not fit the step at its
// predecessor bound, quoted and comma-joined for warning text. Empty when
// the delay cascaded from predecessors rather than a direct conflict.
func (r *resolver) blockingNames(lb, dur int, needs []model.ResourceNeed) string {
	var names []string
	for _, need := range needs {
		tl := r.timelines[need.ResourceID]
		if tl.maxUsedIn(lb, lb+dur)+need.Quantity > r.capacity[need.ResourceID] {
			names = append(names, "'"+r.tpl.ResourceByID(need.ResourceID).Name+"'")
		}
	}
	return strings.Join(names, ", ")
}

// warnIfDelayed records a warning, once per step, when placement pushed the
// step past its CPM slack. Blockers are named when the bound itself was
// contended; otherwise the delay cascaded from predecessors.
func (r *resolver) warnIfDelayed(id string, start, lb int, needs []model.ResourceNeed) {
	if start <= r.analysis.Steps[id].LS || r.delayWarned[id] {
		return
	}
	r.delayWarned[id] = true
	title := r.g.Steps[id].Title
	dur := r.g.Duration(id)
	if blockers := r.blockingNames(lb, dur, needs); blockers != "" {
		r.warnings = append(r.warnings, fmt.Sprintf(
			"Step '%s' was delayed beyond its slack by contention on %s", title, blockers))
	} else {
		r.warnings = append(r.warnings, fmt.Sprintf(
			"Step '%s' was delayed beyond its slack by upstream resource delays", title))
	}
}

// repair re-places, in topological order, any step whose predecessors moved
// after it was placed. The event order is earliest-start order, which for
// start-to-start and finish-driven edge kinds can schedule a successor
// before a predecessor that later slips; one topological sweep restores
// every precedence inequality because each step sees final predecessor
// times.
func (r *resolver) repair() {
	for _, id := range r.analysis.TopoOrder {
		p := r.placed[id]
		lb := r.earliestBound(id)
		if p.Start >= lb {
			continue
		}
		step := r.g.Steps[id]
		dur := step.DurationMins
		renewable := r.renewableNeeds(step)

		for _, need := range renewable {
			r.timelines[need.ResourceID].release(p.Start, p.End, need.Quantity)
		}
		start := lb
		if len(renewable) > 0 {
			start = r.earliestFeasible(lb, dur, renewable)
		}
		r.warnIfDelayed(id, start, lb, renewable)

		for _, need := range renewable {
			r.timelines[need.ResourceID].reserve(start, start+dur, need.Quantity)
		}
		p.Start, p.End = start, start+dur
	}
}

// shiftAlap moves every ALAP step as late as its successors and the resource
// profiles permit, in reverse topological order. The pass never moves an
// ASAP step and never extends the resolved makespan.
func (r *resolver) shiftAlap() {
	makespan := 0
	for _, p := range r.placed {
		if p.End > makespan {
			makespan = p.End
		}
	}

	order := r.analysis.TopoOrder
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		step := r.g.Steps[id]
		if step.Policy() != model.Alap {
			continue
		}
		p := r.placed[id]
		dur := step.DurationMins

		upper := makespan - dur
		for _, e := range r.g.Adj[id] {
			succ := r.placed[e.To]
			var c int
			switch e.Kind {
			case model.StartToStart:
				c = succ.Start
			case model.FinishToFinish:
				c = succ.End - dur
			case model.StartToFinish:
				c = succ.End
			default: // FinishToStart
				c = succ.Start - dur
			}
			if c < upper {
				upper = c
			}
		}
		if upper <= p.Start {
			continue
		}

		needs := r.renewableNeeds(step)
		for _, need := range needs {
			r.timelines[need.ResourceID].release(p.Start, p.End, need.Quantity)
		}

		t := r.latestFeasible(p.Start, upper, dur, needs)

		for _, need := range needs {
			r.timelines[need.ResourceID].reserve(t, t+dur, need.Quantity)
		}
		p.Start, p.End = t, t+dur
	}
}

// latestFeasible returns the largest start in [lo, hi] at which every
// renewable need fits. lo is always feasible: the step held it before being
// released.
func (r *resolver) latestFeasible(lo, hi, dur int, needs []model.ResourceNeed) int {
	candidates := []int{hi, lo}
	for _, need := range needs {
		for _, res := range r.timelines[need.ResourceID].reservations {
			if c := res.start - dur; c > lo && c < hi {
				candidates = append(candidates, c)
			}
			if res.end > lo && res.end < hi {
				candidates = append(candidates, res.end)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(candidates)))

	for _, t := range candidates {
		if t < lo || t > hi {
			continue
		}
		if r.fits(t, dur, needs) {
			return t
		}
	}
	return lo
}

// overcapacityWarnings reports, once per (step, resource) pair, renewable
// needs that exceed total capacity. Such steps are placed at their
// predecessor bound regardless: no amount of delay creates capacity.
func (r *resolver) overcapacityWarnings() {
	for i := range r.tpl.Steps {
		step := &r.tpl.Steps[i]
		for _, need := range step.ResourceNeeds {
			res := r.tpl.ResourceByID(need.ResourceID)
			if res == nil || !res.Kind.Renewable() {
				continue
			}
			if need.Quantity > r.capacity[res.ID] {
				r.warnings = append(r.warnings, fmt.Sprintf(
					"Step '%s' needs %d of '%s' but only %d exist -- capacity will be exceeded",
					step.Title, need.Quantity, res.Name, r.capacity[res.ID]))
			}
		}
	}
}

// consumableWarnings reports each consumable whose total declared demand
// exceeds its effective capacity. Demand is time-independent, so totals are
// checked once after placement.
func (r *resolver) consumableWarnings() {
	totals := make(map[string]int)
	for _, step := range r.tpl.Steps {
		for _, need := range step.ResourceNeeds {
			res := r.tpl.ResourceByID(need.ResourceID)
			if res == nil || res.Kind != model.Consumable {
				continue
			}
			totals[res.ID] += need.Quantity
		}
	}

	// Iterate declared order for deterministic warning order.
	for i := range r.tpl.Resources {
		res := &r.tpl.Resources[i]
		needed, ok := totals[res.ID]
		if !ok {
			continue
		}
		cap := r.capacity[res.ID]
		if needed > cap {
			r.warnings = append(r.warnings, fmt.Sprintf(
				"Consumable '%s' shortfall: needed=%d, available=%d, shortfall=%d",
				res.Name, needed, cap, needed-cap))
		}
	}
}
