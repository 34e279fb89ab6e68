// Package render turns solved schedules and diagnostics into terminal
// output and export formats. Rendering never influences solving.
package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sa2812/skejj/internal/model"
	"github.com/sa2812/skejj/internal/validate"
)

// Schedule writes a colored per-step table plus summary and warnings.
func Schedule(w io.Writer, t *model.Template, s *model.SolvedSchedule) {
	fmt.Fprintf(w, "%s %s — %s\n\n", BoldCyan("skejj:"), Bold(t.Name), Dim(t.ID))

	anchored := false
	for _, step := range s.SolvedSteps {
		if step.StartTime != "" {
			anchored = true
			break
		}
	}

	for _, step := range s.SolvedSteps {
		tpl := t.StepByID(step.StepID)
		title := step.StepID
		if tpl != nil {
			title = tpl.Title
		}
		if len(title) > 32 {
			title = title[:29] + "..."
		}

		when := fmt.Sprintf("%4d → %4d min", step.StartOffsetMins, step.EndOffsetMins)
		if anchored {
			when = fmt.Sprintf("%s → %s", clockPart(step.StartTime), clockPart(step.EndTime))
		}

		crit := " "
		if step.IsCritical {
			crit = BoldYellow("⚡")
		}
		float := ""
		if step.TotalFloatMins > 0 {
			float = Dim(fmt.Sprintf("[+%dm float]", step.TotalFloatMins))
		}

		fmt.Fprintf(w, "  %s %-12s %-32s %s  %s\n", crit, BoldMagenta(step.StepID), title, when, float)
	}

	fmt.Fprintf(w, "\n%s %s (%d min), critical path: %s\n",
		Bold("Total:"), formatMins(s.Summary.TotalDurationMins), s.Summary.TotalDurationMins,
		BoldYellow(strings.Join(s.Summary.CriticalPathStepIDs, " → ")))

	Warnings(w, s.Warnings)
}

// Warnings writes the advisory block, if any.
func Warnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, warning := range warnings {
		fmt.Fprintf(w, "  %s %s\n", Yellow("⚠"), warning)
	}
}

// Diagnostics writes a check result: errors in red, warnings in yellow.
func Diagnostics(w io.Writer, res validate.Result) {
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s %s\n", BoldRed("✗"), e)
	}
	Warnings(w, res.Warnings)
	if res.OK() {
		fmt.Fprintf(w, "  %s template is valid\n", Green("✓"))
	}
}

// Gantt writes an ASCII bar chart on the minute grid, one row per solved
// step, bars scaled to fit width columns.
func Gantt(w io.Writer, t *model.Template, s *model.SolvedSchedule, width int) {
	if s.Summary.TotalDurationMins == 0 || len(s.SolvedSteps) == 0 {
		return
	}
	if width < 20 {
		width = 20
	}
	scale := float64(width) / float64(s.Summary.TotalDurationMins)

	for _, step := range s.SolvedSteps {
		from := int(float64(step.StartOffsetMins) * scale)
		to := int(float64(step.EndOffsetMins) * scale)
		if to <= from {
			to = from + 1
		}
		if to > width {
			to = width
		}

		bar := strings.Repeat(" ", from) + strings.Repeat("█", to-from)
		if step.IsCritical {
			bar = BoldYellow(bar)
		} else {
			bar = Cyan(bar)
		}
		fmt.Fprintf(w, "  %-12s %s\n", BoldMagenta(step.StepID), bar)
	}
	fmt.Fprintf(w, "  %-12s %s\n", "", Dim(fmt.Sprintf("0 %s %d min", strings.Repeat("─", max(width-12, 1)), s.Summary.TotalDurationMins)))
}

// Mermaid renders a mermaid gantt diagram. Anchored schedules use wall-clock
// times; unanchored ones use minute offsets on a numeric axis.
func Mermaid(t *model.Template, s *model.SolvedSchedule) string {
	var b strings.Builder
	b.WriteString("gantt\n")
	fmt.Fprintf(&b, "    title %s\n", t.Name)

	anchored := len(s.SolvedSteps) > 0 && s.SolvedSteps[0].StartTime != ""
	if anchored {
		b.WriteString("    dateFormat YYYY-MM-DDTHH:mm:ss\n    axisFormat %H:%M\n")
	} else {
		b.WriteString("    dateFormat X\n    axisFormat %s\n")
	}

	b.WriteString("    section Schedule\n")
	for _, step := range s.SolvedSteps {
		tpl := t.StepByID(step.StepID)
		title := step.StepID
		if tpl != nil {
			title = tpl.Title
		}
		tag := ""
		if step.IsCritical {
			tag = "crit, "
		}
		if anchored {
			fmt.Fprintf(&b, "    %s :%s%s, %s, %dm\n", title, tag, step.StepID, step.StartTime, step.Duration())
		} else {
			fmt.Fprintf(&b, "    %s :%s%s, %d, %d\n", title, tag, step.StepID, step.StartOffsetMins, step.EndOffsetMins)
		}
	}
	return b.String()
}

// CSV renders the solved steps as comma-separated rows with a header.
func CSV(s *model.SolvedSchedule) (string, error) {
	var b strings.Builder
	cw := csv.NewWriter(&b)

	header := []string{"stepId", "startOffsetMins", "endOffsetMins", "totalFloatMins", "isCritical", "startTime", "endTime"}
	if err := cw.Write(header); err != nil {
		return "", err
	}
	for _, step := range s.SolvedSteps {
		row := []string{
			step.StepID,
			strconv.Itoa(step.StartOffsetMins),
			strconv.Itoa(step.EndOffsetMins),
			strconv.Itoa(step.TotalFloatMins),
			strconv.FormatBool(step.IsCritical),
			step.StartTime,
			step.EndTime,
		}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	return b.String(), cw.Error()
}

func clockPart(iso string) string {
	if idx := strings.IndexByte(iso, 'T'); idx >= 0 && len(iso) >= idx+6 {
		return iso[idx+1 : idx+6]
	}
	return iso
}

func formatMins(mins int) string {
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}
