package solver

import (
	"fmt"
	"time"

	"github.com/sa2812/skejj/internal/model"
)

// anchorSchedule converts relative minute offsets into wall-clock strings.
// Forward anchoring adds offsets to the start anchor; backward anchoring
// derives a virtual start from the deadline minus the resolved makespan and
// anchors forward from there. Datetime arithmetic is minute-precise and
// local-naive. Exclusivity of the two anchors is enforced by validation.
func anchorSchedule(tc *model.TimeConstraint, s *model.SolvedSchedule, makespan int) error {
	if tc == nil {
		return nil
	}

	var t0 time.Time
	switch {
	case tc.StartTime != "":
		parsed, err := model.ParseLocalDateTime(tc.StartTime)
		if err != nil {
			return fmt.Errorf("anchor startTime: %w", err)
		}
		t0 = parsed
	case tc.EndTime != "":
		parsed, err := model.ParseLocalDateTime(tc.EndTime)
		if err != nil {
			return fmt.Errorf("anchor endTime: %w", err)
		}
		t0 = parsed.Add(-time.Duration(makespan) * time.Minute)
	default:
		return nil
	}

	for i := range s.SolvedSteps {
		step := &s.SolvedSteps[i]
		step.StartTime = model.FormatLocalDateTime(t0.Add(time.Duration(step.StartOffsetMins) * time.Minute))
		step.EndTime = model.FormatLocalDateTime(t0.Add(time.Duration(step.EndOffsetMins) * time.Minute))
	}
	return nil
}
