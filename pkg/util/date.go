package util

import (
	"fmt"
	"time"
)

// MinYear is the first year of history the pipeline backfills.
const MinYear = 2000

// YearTarget returns the target pricing date for a year: January 2nd UTC,
// chosen to dodge the New Year holiday.
func YearTarget(year int) time.Time {
	return time.Date(year, time.January, 2, 0, 0, 0, 0, time.UTC)
}

// YearKey formats a year as the 4-digit cache key.
func YearKey(year int) string {
	return fmt.Sprintf("%04d", year)
}

// Years returns every year in [from, to] inclusive, empty when from > to.
func Years(from, to int) []int {
	if from > to {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, y)
	}
	return out
}

// ParseTime tries RFC3339 and date-only formats. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
