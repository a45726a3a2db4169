/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import "fmt"

const minutesPerDay = 24 * 60

// NextTrigger computes the next firing instant for an interval definition,
// as a local timestamp string "YYYY-MM-DDTHH:MM:00". The boolean is false
// when no further trigger exists today.
//
// Callers must have passed the date and day filters first; the time window
// is not a precondition here, it only bounds the projected result.
//
// Triggers never roll into the next calendar day: a projection landing past
// midnight yields no trigger rather than tomorrow's first slot. Whether
// late-night schedules should instead roll over is an open product question;
// until it is settled the current behavior is kept.
func NextTrigger(def Definition, ctx Context) (string, bool) {
	if def.IntervalMinutes <= 0 {
		return "", false
	}

	startMin, ok := minutesOfDay(def.StartTime)
	if !ok {
		return "", false
	}
	nowMin, ok := minutesOfDay(ctx.TimeOfDay)
	if !ok {
		return "", false
	}

	elapsed := nowMin - startMin
	if elapsed < 0 {
		// Before the window opens: first trigger is the start time itself.
		return composeTrigger(ctx.CalendarDate, startMin), true
	}

	passed := elapsed / def.IntervalMinutes
	next := startMin + (passed+1)*def.IntervalMinutes

	if next >= minutesPerDay {
		return "", false
	}

	if def.EndTime != "" {
		endMin, ok := minutesOfDay(def.EndTime)
		if ok && next > endMin {
			return "", false
		}
	}

	return composeTrigger(ctx.CalendarDate, next), true
}

func composeTrigger(calendarDate string, minutes int) string {
	return fmt.Sprintf("%sT%02d:%02d:00", calendarDate, minutes/60, minutes%60)
}
