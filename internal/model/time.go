package model

import (
	"fmt"
	"strings"
	"time"
)

// Accepted ISO local datetime layouts, tried in order. Times are local-naive:
// no timezone or DST correction is ever applied.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseLocalDateTime parses an ISO local datetime string. A trailing Z or
// timezone offset is stripped rather than honored.
func ParseLocalDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimSuffix(s, "Z"))
	// Strip +HH:MM / -HH:MM offsets that appear after the time part.
	if pos := strings.LastIndex(s, "+"); pos > 10 {
		s = s[:pos]
	}
	if pos := strings.LastIndex(s, "-"); pos > 10 {
		s = s[:pos]
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q (expected ISO local format like 2006-01-02T15:04)", s)
}

// FormatLocalDateTime renders a local-naive datetime the way the solver
// emits wall-clock times.
func FormatLocalDateTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}
