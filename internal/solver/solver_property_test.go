package solver

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/sa2812/skejj/internal/model"
)

// genTemplate draws a random acyclic template: dependencies only point at
// earlier-indexed steps, so cycles cannot occur by construction.
func genTemplate(rt *rapid.T) *model.Template {
	numSteps := rapid.IntRange(1, 8).Draw(rt, "num_steps")

	capEquip := rapid.IntRange(1, 3).Draw(rt, "equip_cap")
	capCrew := rapid.IntRange(1, 4).Draw(rt, "crew_cap")
	resources := []model.Resource{
		{ID: "equip", Name: "Equip", Kind: model.Equipment, Capacity: capEquip},
		{ID: "crew", Name: "Crew", Kind: model.People, Capacity: capCrew},
		{ID: "fuel", Name: "Fuel", Kind: model.Consumable, Capacity: rapid.IntRange(1, 200).Draw(rt, "fuel_cap")},
	}

	kinds := []model.DependencyKind{
		model.FinishToStart, model.StartToStart, model.FinishToFinish, model.StartToFinish,
	}

	steps := make([]model.Step, numSteps)
	for i := range steps {
		step := model.Step{
			ID:           fmt.Sprintf("s%02d", i),
			Title:        fmt.Sprintf("Step %d", i),
			DurationMins: rapid.IntRange(1, 120).Draw(rt, fmt.Sprintf("dur_%d", i)),
		}
		if i > 0 {
			numDeps := rapid.IntRange(0, min(i, 3)).Draw(rt, fmt.Sprintf("num_deps_%d", i))
			seen := map[int]bool{}
			for d := 0; d < numDeps; d++ {
				pred := rapid.IntRange(0, i-1).Draw(rt, fmt.Sprintf("dep_%d_%d", i, d))
				if seen[pred] {
					continue
				}
				seen[pred] = true
				step.Dependencies = append(step.Dependencies, model.Dependency{
					PredecessorStepID: fmt.Sprintf("s%02d", pred),
					Kind:              rapid.SampledFrom(kinds).Draw(rt, fmt.Sprintf("kind_%d_%d", i, d)),
				})
			}
		}
		if rapid.Bool().Draw(rt, fmt.Sprintf("needs_equip_%d", i)) {
			step.ResourceNeeds = append(step.ResourceNeeds, model.ResourceNeed{
				ResourceID: "equip",
				Quantity:   rapid.IntRange(1, capEquip).Draw(rt, fmt.Sprintf("equip_qty_%d", i)),
			})
		}
		if rapid.Bool().Draw(rt, fmt.Sprintf("needs_crew_%d", i)) {
			step.ResourceNeeds = append(step.ResourceNeeds, model.ResourceNeed{
				ResourceID: "crew",
				Quantity:   rapid.IntRange(1, capCrew).Draw(rt, fmt.Sprintf("crew_qty_%d", i)),
			})
		}
		if rapid.Bool().Draw(rt, fmt.Sprintf("needs_fuel_%d", i)) {
			step.ResourceNeeds = append(step.ResourceNeeds, model.ResourceNeed{
				ResourceID: "fuel",
				Quantity:   rapid.IntRange(1, 100).Draw(rt, fmt.Sprintf("fuel_qty_%d", i)),
			})
		}
		if rapid.Bool().Draw(rt, fmt.Sprintf("alap_%d", i)) {
			step.TimingPolicy = model.Alap
		}
		steps[i] = step
	}

	return &model.Template{ID: "prop", Name: "Property", Steps: steps, Resources: resources}
}

// TestSolveProperty_DurationsAndPrecedence checks that every solved step
// keeps its duration and that every dependency's kind-specific inequality
// holds on the returned offsets.
func TestSolveProperty_DurationsAndPrecedence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tpl := genTemplate(rt)

		solved, err := Solve(tpl, nil)
		if err != nil {
			rt.Fatalf("solve: %v", err)
		}

		for i := range tpl.Steps {
			step := &tpl.Steps[i]
			ss := solved.StepByID(step.ID)
			if ss == nil {
				rt.Fatalf("step %s missing from output", step.ID)
			}
			if got := ss.EndOffsetMins - ss.StartOffsetMins; got != step.DurationMins {
				rt.Fatalf("step %s: duration %d, want %d", step.ID, got, step.DurationMins)
			}

			for _, dep := range step.Dependencies {
				pred := solved.StepByID(dep.PredecessorStepID)
				ok := true
				switch dep.EffectiveKind() {
				case model.FinishToStart:
					ok = ss.StartOffsetMins >= pred.EndOffsetMins
				case model.StartToStart:
					ok = ss.StartOffsetMins >= pred.StartOffsetMins
				case model.FinishToFinish:
					ok = ss.EndOffsetMins >= pred.EndOffsetMins
				case model.StartToFinish:
					ok = ss.EndOffsetMins >= pred.StartOffsetMins
				}
				if !ok {
					rt.Fatalf("step %s violates %s dependency on %s: [%d,%d) vs [%d,%d)",
						step.ID, dep.EffectiveKind(), dep.PredecessorStepID,
						ss.StartOffsetMins, ss.EndOffsetMins, pred.StartOffsetMins, pred.EndOffsetMins)
				}
			}
		}
	})
}

// TestSolveProperty_RenewableCapacity checks the instantaneous capacity
// invariant for every renewable resource over the whole schedule.
func TestSolveProperty_RenewableCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tpl := genTemplate(rt)

		solved, err := Solve(tpl, nil)
		if err != nil {
			rt.Fatalf("solve: %v", err)
		}

		for _, res := range tpl.Resources {
			if !res.Kind.Renewable() {
				continue
			}
			for t := 0; t < solved.Summary.TotalDurationMins; t++ {
				used := 0
				for i := range tpl.Steps {
					step := &tpl.Steps[i]
					ss := solved.StepByID(step.ID)
					if ss.StartOffsetMins > t || ss.EndOffsetMins <= t {
						continue
					}
					for _, need := range step.ResourceNeeds {
						if need.ResourceID == res.ID {
							used += need.Quantity
						}
					}
				}
				if used > res.Capacity {
					rt.Fatalf("resource %s over capacity at t=%d: %d > %d", res.ID, t, used, res.Capacity)
				}
			}
		}
	})
}

// TestSolveProperty_ConsumableAccounting checks that a consumable is either
// within budget or flagged with the exact shortfall.
func TestSolveProperty_ConsumableAccounting(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tpl := genTemplate(rt)

		solved, err := Solve(tpl, nil)
		if err != nil {
			rt.Fatalf("solve: %v", err)
		}

		total := 0
		for _, step := range tpl.Steps {
			for _, need := range step.ResourceNeeds {
				if need.ResourceID == "fuel" {
					total += need.Quantity
				}
			}
		}

		var capacity int
		for _, res := range tpl.Resources {
			if res.ID == "fuel" {
				capacity = res.Capacity
			}
		}

		wantShortfall := ""
		if total > capacity {
			wantShortfall = fmt.Sprintf("shortfall=%d", total-capacity)
		}

		found := false
		for _, w := range solved.Warnings {
			if wantShortfall != "" && containsAll(w, "Fuel", wantShortfall) {
				found = true
			}
			if wantShortfall == "" && containsAll(w, "Fuel", "shortfall") {
				rt.Fatalf("unexpected shortfall warning: %s", w)
			}
		}
		if wantShortfall != "" && !found {
			rt.Fatalf("missing shortfall warning (%s) in %v", wantShortfall, solved.Warnings)
		}
	})
}

// TestSolveProperty_Idempotent checks that solving the same inputs twice
// yields byte-identical output.
func TestSolveProperty_Idempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tpl := genTemplate(rt)

		first, err := Solve(tpl, nil)
		if err != nil {
			rt.Fatalf("solve: %v", err)
		}
		second, err := Solve(tpl, nil)
		if err != nil {
			rt.Fatalf("re-solve: %v", err)
		}

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if string(a) != string(b) {
			rt.Fatalf("solve not idempotent:\n%s\nvs\n%s", a, b)
		}
	})
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
