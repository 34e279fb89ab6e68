// Package validate implements template validation: the strict schema and
// referential-integrity pass that gates solving, and the advisory check pass
// behind the "check" entry point.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sa2812/skejj/internal/model"
)

// Issue is a single validation failure with a JSON-pointer style path into
// the template.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is the fatal outcome of the strict pass; the solver refuses to
// proceed when it is non-nil.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		if iss.Path != "" {
			msgs[i] = fmt.Sprintf("%s: %s", iss.Path, iss.Message)
		} else {
			msgs[i] = iss.Message
		}
	}
	return "invalid template: " + strings.Join(msgs, "; ")
}

// structValidator checks field bounds via struct tags. Field names in error
// paths use the json tag spelling.
var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Strict runs the fatal validation pass: schema bounds, enum spellings,
// referential integrity and the time-constraint exclusivity rule. Returns
// nil when the template is solvable, or an *Error listing every problem.
func Strict(t *model.Template) error {
	var issues []Issue

	if err := structValidator.Struct(t); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				issues = append(issues, Issue{
					Path:    jsonPointer(fe.Namespace()),
					Message: boundsMessage(fe),
				})
			}
		} else {
			issues = append(issues, Issue{Message: err.Error()})
		}
	}

	issues = append(issues, referentialIssues(t)...)
	issues = append(issues, timeConstraintIssues(t)...)

	if len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}

// jsonPointer converts a validator namespace like
// "Template.steps[2].durationMins" into "/steps/2/durationMins".
func jsonPointer(namespace string) string {
	// Drop the root struct segment
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	} else {
		return ""
	}
	r := strings.NewReplacer("[", "/", "]", "", ".", "/")
	return "/" + r.Replace(namespace)
}

func boundsMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required and must be non-empty"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// referentialIssues enforces id uniqueness and that every reference points
// at a declared entity.
func referentialIssues(t *model.Template) []Issue {
	var issues []Issue

	stepIDs := make(map[string]bool, len(t.Steps))
	for i, s := range t.Steps {
		if s.ID == "" {
			continue // reported by the bounds pass
		}
		if stepIDs[s.ID] {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("/steps/%d/id", i),
				Message: fmt.Sprintf("duplicate step id %q", s.ID),
			})
		}
		stepIDs[s.ID] = true
	}

	resourceIDs := make(map[string]bool, len(t.Resources))
	for i, r := range t.Resources {
		if r.ID == "" {
			continue
		}
		if resourceIDs[r.ID] {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("/resources/%d/id", i),
				Message: fmt.Sprintf("duplicate resource id %q", r.ID),
			})
		}
		resourceIDs[r.ID] = true
	}

	trackIDs := make(map[string]bool, len(t.Tracks))
	for i, tr := range t.Tracks {
		if tr.ID == "" {
			continue
		}
		if trackIDs[tr.ID] {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("/tracks/%d/id", i),
				Message: fmt.Sprintf("duplicate track id %q", tr.ID),
			})
		}
		trackIDs[tr.ID] = true
	}

	for i, s := range t.Steps {
		for j, dep := range s.Dependencies {
			if dep.PredecessorStepID == s.ID {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("/steps/%d/dependencies/%d/predecessorStepId", i, j),
					Message: fmt.Sprintf("step %q may not depend on itself", s.ID),
				})
			} else if dep.PredecessorStepID != "" && !stepIDs[dep.PredecessorStepID] {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("/steps/%d/dependencies/%d/predecessorStepId", i, j),
					Message: fmt.Sprintf("step %q depends on unknown step %q", s.ID, dep.PredecessorStepID),
				})
			}
		}
		for j, need := range s.ResourceNeeds {
			if need.ResourceID != "" && !resourceIDs[need.ResourceID] {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("/steps/%d/resourceNeeds/%d/resourceId", i, j),
					Message: fmt.Sprintf("step %q needs unknown resource %q", s.ID, need.ResourceID),
				})
			}
		}
		if s.TrackID != "" && !trackIDs[s.TrackID] {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("/steps/%d/trackId", i),
				Message: fmt.Sprintf("step %q references unknown track %q", s.ID, s.TrackID),
			})
		}
	}

	return issues
}

// timeConstraintIssues enforces startTime/endTime exclusivity and that any
// supplied anchor parses as an ISO local datetime.
func timeConstraintIssues(t *model.Template) []Issue {
	tc := t.TimeConstraint
	if tc == nil {
		return nil
	}

	var issues []Issue
	if tc.StartTime != "" && tc.EndTime != "" {
		issues = append(issues, Issue{
			Path:    "/timeConstraint",
			Message: "startTime and endTime are mutually exclusive; supply at most one",
		})
	}
	if tc.StartTime != "" {
		if _, err := model.ParseLocalDateTime(tc.StartTime); err != nil {
			issues = append(issues, Issue{Path: "/timeConstraint/startTime", Message: err.Error()})
		}
	}
	if tc.EndTime != "" {
		if _, err := model.ParseLocalDateTime(tc.EndTime); err != nil {
			issues = append(issues, Issue{Path: "/timeConstraint/endTime", Message: err.Error()})
		}
	}
	return issues
}

// Normalize fills in defaulted collections and enum values in place. Load
// paths call it once after decoding; the solver itself never mutates
// templates.
func Normalize(t *model.Template) {
	if t.Steps == nil {
		t.Steps = []model.Step{}
	}
	if t.Tracks == nil {
		t.Tracks = []model.Track{}
	}
	if t.Resources == nil {
		t.Resources = []model.Resource{}
	}
	for i := range t.Steps {
		s := &t.Steps[i]
		if s.Dependencies == nil {
			s.Dependencies = []model.Dependency{}
		}
		if s.ResourceNeeds == nil {
			s.ResourceNeeds = []model.ResourceNeed{}
		}
		if s.TimingPolicy == "" {
			s.TimingPolicy = model.Asap
		}
		for j := range s.Dependencies {
			if s.Dependencies[j].Kind == "" {
				s.Dependencies[j].Kind = model.FinishToStart
			}
		}
	}
}

// CheckInventory enforces the caller-side inventory contract: every name
// must match a declared resource (case-preserving) and every value must be
// positive.
func CheckInventory(t *model.Template, inv model.Inventory) error {
	names := make(map[string]bool, len(t.Resources))
	for _, r := range t.Resources {
		names[r.Name] = true
	}
	for name, qty := range inv {
		if !names[name] {
			return fmt.Errorf("inventory references unknown resource %q", name)
		}
		if qty <= 0 {
			return fmt.Errorf("inventory for %q must be positive, got %d", name, qty)
		}
	}
	return nil
}
