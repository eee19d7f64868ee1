package engine

import (
	"fmt"
	"time"
)

// A financial year is identified by its ending calendar year: with the
// default July boundary, FY 2025 runs 1 Jul 2024 through 30 Jun 2025.

// FYRange returns the first and last day of the financial year ending in
// year, for a boundary that starts on the 1st of startMonth.
func FYRange(year int, startMonth time.Month) (start, end time.Time) {
	start = time.Date(year-1, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return start, end
}

// FYOf returns the financial year a date falls into.
func FYOf(d time.Time, startMonth time.Month) int {
	if d.Month() >= startMonth {
		return d.Year() + 1
	}
	return d.Year()
}

// FYLabel renders a year as e.g. "FY2024-25".
func FYLabel(year int) string {
	return fmt.Sprintf("FY%d-%02d", year-1, year%100)
}
