/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

// IsActive reports whether a definition matches the time context right now.
// Filters apply in order and short-circuit: date range, day of week, time
// window. For timed content the window verdict is final; interval content
// uses the window only as an outer bound for trigger projection.
func IsActive(def Definition, ctx Context) bool {
	if !def.matchesDate(ctx.CalendarDate) {
		return false
	}
	if !def.matchesDay(ctx.Weekday) {
		return false
	}
	return def.matchesWindow(ctx.TimeOfDay)
}

// matchesWindow evaluates the time-of-day window. A window whose end is not
// after its start wraps past midnight (e.g. 22:00-02:00) and matches the
// union of both sides. Start is inclusive, end exclusive.
//
// The system this replaces short-circuited the wraparound branch with an
// always-true comparison, which silently disabled the window near midnight;
// here the wraparound is evaluated for real.
func (d Definition) matchesWindow(timeOfDay string) bool {
	if d.StartTime == "" || d.EndTime == "" {
		return true
	}

	start := normalizeTime(d.StartTime)
	end := normalizeTime(d.EndTime)
	now := normalizeTime(timeOfDay)

	if end > start {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// normalizeTime pads HH:MM to HH:MM:SS so lexicographic comparison is exact.
func normalizeTime(tod string) string {
	if len(tod) == 5 {
		return tod + ":00"
	}
	return tod
}
