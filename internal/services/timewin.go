// Package services – reporting time windows.
//
// Analytics requests speak in the store's local calendar ("today",
// "2025-06-10".."2025-06-12") while every timestamp in the store is UTC.
// The helpers here convert inclusive local day ranges into half-open UTC
// windows, so a "day" always covers exactly the local midnight-to-midnight
// span regardless of DST transitions.
package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// maxReportLimit caps row counts on analytics endpoints.
const maxReportLimit = 200

// maxScopeHours caps the hours scope at seven days.
const maxScopeHours = 168

// clampLimit forces limit into [1, maxReportLimit], substituting def when
// the input is zero or negative garbage.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}
	return limit
}

// clampHours forces hours into [1, maxScopeHours].
func clampHours(hours int) int {
	if hours < 1 {
		return 1
	}
	if hours > maxScopeHours {
		return maxScopeHours
	}
	return hours
}

// localDayRangeUTC converts an inclusive local day range to a half-open UTC
// window. fromDay and toDay are "YYYY-MM-DD" in loc; the returned end is the
// UTC instant of local midnight after toDay.
func localDayRangeUTC(loc *time.Location, fromDay, toDay string) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(dayLayout, fromDay, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidArgument)
	}
	to, err := time.ParseInLocation(dayLayout, toDay, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidArgument)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", ErrInvalidArgument)
	}
	end := to.AddDate(0, 0, 1)
	return from.UTC(), end.UTC(), nil
}

// localDay formats t's calendar date in loc.
func localDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// utcDay formats t's UTC calendar date.
func utcDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// dayWindowUTC returns the half-open UTC window [day 00:00, day+1 00:00)
// for a UTC calendar date.
func dayWindowUTC(day string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: day must be YYYY-MM-DD", ErrInvalidArgument)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// scopeStart resolves the "today"/"hours" scope to the window's opening
// instant. "today" opens at local midnight; "hours" opens the given number
// of hours before now.
func scopeStart(scope string, hours int, loc *time.Location, now time.Time) (time.Time, string, error) {
	switch scope {
	case "today":
		local := now.In(loc)
		start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return start.UTC(), "today", nil
	case "hours":
		hours = clampHours(hours)
		return now.Add(-time.Duration(hours) * time.Hour).UTC(), fmt.Sprintf("last_%d_hours", hours), nil
	default:
		return time.Time{}, "", fmt.Errorf("%w: scope must be today or hours", ErrInvalidArgument)
	}
}

// parseMinAbsDelta parses the noise threshold, falling back to the default
// 0.0001 when blank or unparseable (matching report conventions).
func parseMinAbsDelta(s string) decimal.Decimal {
	def := decimal.RequireFromString("0.0001")
	if s == "" {
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}
