package alloc

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sa2812/skejj/internal/cpm"
	"github.com/sa2812/skejj/internal/graph"
	"github.com/sa2812/skejj/internal/model"
)

func resolve(t *testing.T, tpl *model.Template, inv model.Inventory) *Result {
	t.Helper()
	g, err := graph.Build(tpl)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	analysis, err := cpm.Analyze(g)
	if err != nil {
		t.Fatalf("cpm: %v", err)
	}
	return Resolve(tpl, g, analysis, inv)
}

func assertPlaced(t *testing.T, res *Result, id string, start, end int) {
	t.Helper()
	p := res.Placements[id]
	if p == nil {
		t.Fatalf("step %s not placed", id)
	}
	if p.Start != start || p.End != end {
		t.Errorf("step %s: expected [%d, %d), got [%d, %d)", id, start, end, p.Start, p.End)
	}
}

func hasWarning(warnings []string, substrings ...string) bool {
	for _, w := range warnings {
		ok := true
		for _, sub := range substrings {
			if !strings.Contains(w, sub) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func TestResolve_EquipmentContention(t *testing.T) {
	// a(15) -> b(90), p(20) -> q(40); b and q both need the single oven.
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "a", Title: "A", DurationMins: 15},
			{ID: "b", Title: "B", DurationMins: 90,
				Dependencies:  []model.Dependency{{PredecessorStepID: "a"}},
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "oven", Quantity: 1}}},
			{ID: "p", Title: "P", DurationMins: 20},
			{ID: "q", Title: "Q", DurationMins: 40,
				Dependencies:  []model.Dependency{{PredecessorStepID: "p"}},
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "oven", Quantity: 1}}},
		},
		Resources: []model.Resource{
			{ID: "oven", Name: "Oven", Kind: model.Equipment, Capacity: 1},
		},
	}

	res := resolve(t, tpl, nil)

	assertPlaced(t, res, "a", 0, 15)
	assertPlaced(t, res, "b", 15, 105)
	assertPlaced(t, res, "p", 0, 20)
	assertPlaced(t, res, "q", 105, 145) // delayed until the oven frees up

	if res.Makespan != 145 {
		t.Errorf("expected makespan 145, got %d", res.Makespan)
	}
	if !hasWarning(res.Warnings, "'Q'", "'Oven'") {
		t.Errorf("expected delay warning naming Q and Oven, got %v", res.Warnings)
	}
}

func TestResolve_PeopleCapacity(t *testing.T) {
	// Four independent 30-minute steps each needing 2 of 4 people:
	// two run 0-30, two run 30-60.
	steps := make([]model.Step, 0, 4)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		steps = append(steps, model.Step{
			ID: id, Title: id, DurationMins: 30,
			ResourceNeeds: []model.ResourceNeed{{ResourceID: "crew", Quantity: 2}},
		})
	}
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: steps,
		Resources: []model.Resource{
			{ID: "crew", Name: "Crew", Kind: model.People, Capacity: 4},
		},
	}

	res := resolve(t, tpl, nil)

	assertPlaced(t, res, "s1", 0, 30)
	assertPlaced(t, res, "s2", 0, 30)
	assertPlaced(t, res, "s3", 30, 60)
	assertPlaced(t, res, "s4", 30, 60)
	if res.Makespan != 60 {
		t.Errorf("expected makespan 60, got %d", res.Makespan)
	}
}

func TestResolve_ConsumableShortfall(t *testing.T) {
	// Two sequential steps consuming 60 each from a 100-unit consumable,
	// overridden down to 80: solve proceeds, warning carries the arithmetic.
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "x", Title: "X", DurationMins: 10,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "flour", Quantity: 60}}},
			{ID: "y", Title: "Y", DurationMins: 10,
				Dependencies:  []model.Dependency{{PredecessorStepID: "x"}},
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "flour", Quantity: 60}}},
		},
		Resources: []model.Resource{
			{ID: "flour", Name: "Flour", Kind: model.Consumable, Capacity: 100},
		},
	}

	res := resolve(t, tpl, model.Inventory{"Flour": 80})

	assertPlaced(t, res, "x", 0, 10)
	assertPlaced(t, res, "y", 10, 20)
	if res.Makespan != 20 {
		t.Errorf("expected makespan 20 (consumables never delay), got %d", res.Makespan)
	}

	if !hasWarning(res.Warnings, "needed=120", "available=80", "shortfall=40") {
		t.Errorf("expected shortfall warning with needed=120 available=80 shortfall=40, got %v", res.Warnings)
	}

	// Allocation proceeds as declared.
	for _, id := range []string{"x", "y"} {
		assigned := res.Placements[id].Assigned
		if len(assigned) != 1 || assigned[0].QuantityUsed != 60 {
			t.Errorf("step %s: expected declared assignment of 60, got %v", id, assigned)
		}
	}
}

func TestResolve_ConsumableWithinBudgetNoWarning(t *testing.T) {
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "x", Title: "X", DurationMins: 10,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "flour", Quantity: 60}}},
		},
		Resources: []model.Resource{
			{ID: "flour", Name: "Flour", Kind: model.Consumable, Capacity: 100},
		},
	}

	res := resolve(t, tpl, nil)
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
}

func TestResolve_AlapShiftsIntoLatestGap(t *testing.T) {
	// A long chain drives the makespan; an independent ALAP step sharing the
	// drill with an early ASAP step slides to the end of the schedule.
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "long", Title: "Long", DurationMins: 100},
			{ID: "early", Title: "Early", DurationMins: 30,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "drill", Quantity: 1}}},
			{ID: "late", Title: "Late", DurationMins: 20, TimingPolicy: model.Alap,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "drill", Quantity: 1}}},
		},
		Resources: []model.Resource{
			{ID: "drill", Name: "Drill", Kind: model.Equipment, Capacity: 1},
		},
	}

	res := resolve(t, tpl, nil)

	assertPlaced(t, res, "long", 0, 100)
	assertPlaced(t, res, "early", 0, 30)
	assertPlaced(t, res, "late", 80, 100) // as late as the makespan permits
	if res.Makespan != 100 {
		t.Errorf("ALAP shift must not extend the makespan, got %d", res.Makespan)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
}

func TestResolve_AlapRespectsSuccessors(t *testing.T) {
	// alap -> fixed: the ALAP step may only slide up to its successor.
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "alap", Title: "Alap", DurationMins: 10, TimingPolicy: model.Alap},
			{ID: "fixed", Title: "Fixed", DurationMins: 20,
				Dependencies: []model.Dependency{{PredecessorStepID: "alap"}}},
			{ID: "long", Title: "Long", DurationMins: 90},
		},
	}

	res := resolve(t, tpl, nil)

	assertPlaced(t, res, "fixed", 10, 30)
	assertPlaced(t, res, "alap", 0, 10) // pinned by its already-placed successor
	if res.Makespan != 90 {
		t.Errorf("expected makespan 90, got %d", res.Makespan)
	}
}

func TestResolve_NeedBeyondCapacityWarns(t *testing.T) {
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "big", Title: "Big", DurationMins: 10,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "oven", Quantity: 3}}},
		},
		Resources: []model.Resource{
			{ID: "oven", Name: "Oven", Kind: model.Equipment, Capacity: 1},
		},
	}

	res := resolve(t, tpl, nil)
	assertPlaced(t, res, "big", 0, 10)
	if !hasWarning(res.Warnings, "'Big'", "capacity will be exceeded") {
		t.Errorf("expected overcapacity warning, got %v", res.Warnings)
	}
}

func TestResolve_InventoryOverrideTightensRenewable(t *testing.T) {
	// Two parallel steps fit side by side at capacity 2 but serialize when
	// the override drops the ovens to 1.
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "a", Title: "A", DurationMins: 30,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "oven", Quantity: 1}}},
			{ID: "b", Title: "B", DurationMins: 30,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "oven", Quantity: 1}}},
		},
		Resources: []model.Resource{
			{ID: "oven", Name: "Oven", Kind: model.Equipment, Capacity: 2},
		},
	}

	free := resolve(t, tpl, nil)
	assertPlaced(t, free, "a", 0, 30)
	assertPlaced(t, free, "b", 0, 30)

	tight := resolve(t, tpl, model.Inventory{"Oven": 1})
	assertPlaced(t, tight, "a", 0, 30)
	assertPlaced(t, tight, "b", 30, 60)
	if !hasWarning(tight.Warnings, "'B'", "'Oven'") {
		t.Errorf("expected delay warning for B, got %v", tight.Warnings)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	tpl := &model.Template{
		ID: "tpl", Name: "Test",
		Steps: []model.Step{
			{ID: "a", Title: "A", DurationMins: 25,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "crew", Quantity: 2}}},
			{ID: "b", Title: "B", DurationMins: 25,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "crew", Quantity: 2}}},
			{ID: "c", Title: "C", DurationMins: 25,
				ResourceNeeds: []model.ResourceNeed{{ResourceID: "crew", Quantity: 2}}},
		},
		Resources: []model.Resource{
			{ID: "crew", Name: "Crew", Kind: model.People, Capacity: 2},
		},
	}

	first := resolve(t, tpl, nil)
	for i := 0; i < 10; i++ {
		again := resolve(t, tpl, nil)
		if !reflect.DeepEqual(first.Placements, again.Placements) {
			t.Fatalf("non-deterministic placements on run %d", i)
		}
		if !reflect.DeepEqual(first.Warnings, again.Warnings) {
			t.Fatalf("non-deterministic warnings on run %d", i)
		}
	}
}
