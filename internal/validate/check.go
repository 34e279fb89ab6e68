package validate

import (
	"fmt"
	"sort"

	"github.com/sa2812/skejj/internal/cpm"
	"github.com/sa2812/skejj/internal/graph"
	"github.com/sa2812/skejj/internal/model"
)

// Result is the structured diagnostics payload of the check entry point.
// Errors block solving; warnings are advisory.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether the template would solve.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Check runs a dry diagnostics pass: the strict validation, graph
// construction, and a set of advisory warnings computed from CPM timings
// without running the resource resolver. It never returns an error.
func Check(t *model.Template) Result {
	res := Result{Errors: []string{}, Warnings: []string{}}

	if err := Strict(t); err != nil {
		verr := err.(*Error)
		for _, iss := range verr.Issues {
			if iss.Path != "" {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", iss.Path, iss.Message))
			} else {
				res.Errors = append(res.Errors, iss.Message)
			}
		}
		return res
	}

	g, err := graph.Build(t)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	// Advisories below need CPM timings; analysis cannot fail on an acyclic
	// graph.
	analysis, err := cpm.Analyze(g)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	res.Warnings = append(res.Warnings, utilizationWarnings(t, analysis)...)
	res.Warnings = append(res.Warnings, slackWarnings(t, analysis)...)
	res.Warnings = append(res.Warnings, unreferencedWarnings(t)...)

	return res
}

// peakDemand computes, per renewable resource, the maximum concurrent demand
// over the CPM schedule, ignoring contention (every step at its earliest
// window).
func peakDemand(t *model.Template, analysis *cpm.Result) map[string]int {
	type event struct {
		at    int
		delta int
	}
	events := make(map[string][]event)
	for i := range t.Steps {
		s := &t.Steps[i]
		ts := analysis.Steps[s.ID]
		for _, need := range s.ResourceNeeds {
			r := t.ResourceByID(need.ResourceID)
			if r == nil || !r.Kind.Renewable() {
				continue
			}
			events[r.ID] = append(events[r.ID],
				event{at: ts.ES, delta: need.Quantity},
				event{at: ts.EF, delta: -need.Quantity})
		}
	}

	peaks := make(map[string]int, len(events))
	for id, evs := range events {
		sort.Slice(evs, func(a, b int) bool {
			if evs[a].at != evs[b].at {
				return evs[a].at < evs[b].at
			}
			return evs[a].delta < evs[b].delta // releases before claims at the same instant
		})
		running, peak := 0, 0
		for _, ev := range evs {
			running += ev.delta
			if running > peak {
				peak = running
			}
		}
		peaks[id] = peak
	}
	return peaks
}

// utilizationWarnings flags renewable resources whose peak demand, ignoring
// contention, already equals capacity: tight but feasible.
func utilizationWarnings(t *model.Template, analysis *cpm.Result) []string {
	peaks := peakDemand(t, analysis)
	var warnings []string
	for i := range t.Resources {
		r := &t.Resources[i]
		if !r.Kind.Renewable() {
			continue
		}
		if peak, ok := peaks[r.ID]; ok && peak == r.Capacity {
			warnings = append(warnings, fmt.Sprintf(
				"Resource '%s' is fully utilized at peak demand (%d of %d) -- no headroom for delays",
				r.Name, peak, r.Capacity))
		}
	}
	return warnings
}

// slackWarnings flags steps that cannot absorb a resource delay inside their
// own float: a contended step whose duration exceeds its slack will push the
// schedule out rather than slide within it. Informational only — the solver
// still satisfies every constraint by extending the makespan.
func slackWarnings(t *model.Template, analysis *cpm.Result) []string {
	peaks := peakDemand(t, analysis)
	var warnings []string
	for i := range t.Steps {
		s := &t.Steps[i]
		ts := analysis.Steps[s.ID]
		if s.DurationMins <= ts.TotalFloat {
			continue
		}
		contended := false
		for _, need := range s.ResourceNeeds {
			r := t.ResourceByID(need.ResourceID)
			if r == nil || !r.Kind.Renewable() {
				continue
			}
			if peaks[r.ID] > r.Capacity {
				contended = true
				break
			}
		}
		if contended {
			warnings = append(warnings, fmt.Sprintf(
				"Step '%s' cannot fit a resource delay within its slack -- solving will extend the timeline",
				s.Title))
		}
	}
	return warnings
}

// unreferencedWarnings flags resources needed by no step and tracks used by
// no step.
func unreferencedWarnings(t *model.Template) []string {
	neededResources := make(map[string]bool)
	usedTracks := make(map[string]bool)
	for _, s := range t.Steps {
		for _, need := range s.ResourceNeeds {
			neededResources[need.ResourceID] = true
		}
		if s.TrackID != "" {
			usedTracks[s.TrackID] = true
		}
	}

	var warnings []string
	for _, r := range t.Resources {
		if !neededResources[r.ID] {
			warnings = append(warnings, fmt.Sprintf("Resource '%s' is declared but needed by no step", r.Name))
		}
	}
	for _, tr := range t.Tracks {
		if !usedTracks[tr.ID] {
			warnings = append(warnings, fmt.Sprintf("Track '%s' is declared but used by no step", tr.Name))
		}
	}
	return warnings
}
