/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import "testing"

func ctxAt(timeOfDay, date, weekday string) Context {
	return Context{TimeOfDay: timeOfDay, CalendarDate: date, Weekday: weekday}
}

func TestIsActiveUnconstrained(t *testing.T) {
	def := Definition{Mode: ModeTimed}

	contexts := []Context{
		ctxAt("00:00:00", "2026-01-01", "thursday"),
		ctxAt("12:30:15", "2026-06-15", "monday"),
		ctxAt("23:59:59", "2026-12-31", "sunday"),
	}
	for _, ctx := range contexts {
		if !IsActive(def, ctx) {
			t.Errorf("unconstrained timed definition inactive at %s", ctx.TimeOfDay)
		}
	}
}

func TestIsActiveDateRange(t *testing.T) {
	def := Definition{Mode: ModeTimed, StartDate: "2026-03-01", EndDate: "2026-03-31"}

	tests := []struct {
		name   string
		date   string
		active bool
	}{
		{"before range", "2026-02-28", false},
		{"first day inclusive", "2026-03-01", true},
		{"mid range", "2026-03-15", true},
		{"last day inclusive", "2026-03-31", true},
		{"after range", "2026-04-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsActive(def, ctxAt("10:00:00", tt.date, "monday"))
			if got != tt.active {
				t.Errorf("date %s: active = %v, want %v", tt.date, got, tt.active)
			}
		})
	}
}

func TestIsActiveDaysOfWeek(t *testing.T) {
	def := Definition{Mode: ModeTimed, DaysOfWeek: []string{"monday", "wednesday", "friday"}}

	tests := []struct {
		weekday string
		active  bool
	}{
		{"monday", true},
		{"tuesday", false},
		{"wednesday", true},
		{"saturday", false},
	}

	for _, tt := range tests {
		t.Run(tt.weekday, func(t *testing.T) {
			got := IsActive(def, ctxAt("10:00:00", "2026-05-04", tt.weekday))
			if got != tt.active {
				t.Errorf("weekday %s: active = %v, want %v", tt.weekday, got, tt.active)
			}
		})
	}
}

func TestIsActiveTimeWindow(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		timeOfDay string
		active    bool
	}{
		{"inside window", "09:00", "17:00", "12:00:00", true},
		{"inclusive start", "09:00", "17:00", "09:00:00", true},
		{"just before start", "09:00", "17:00", "08:59:59", false},
		{"exclusive end", "09:00", "17:00", "17:00:00", false},
		{"just before end", "09:00", "17:00", "16:59:59", true},

		// Wraparound spans cross midnight and match both sides.
		{"wraparound evening side", "22:00", "02:00", "23:00:00", true},
		{"wraparound morning side", "22:00", "02:00", "01:00:00", true},
		{"wraparound midday miss", "22:00", "02:00", "12:00:00", false},
		{"wraparound inclusive start", "22:00", "02:00", "22:00:00", true},
		{"wraparound exclusive end", "22:00", "02:00", "02:00:00", false},

		{"seconds precision", "09:00:30", "17:00", "09:00:15", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Definition{Mode: ModeTimed, StartTime: tt.start, EndTime: tt.end}
			got := IsActive(def, ctxAt(tt.timeOfDay, "2026-05-04", "monday"))
			if got != tt.active {
				t.Errorf("window %s-%s at %s: active = %v, want %v",
					tt.start, tt.end, tt.timeOfDay, got, tt.active)
			}
		})
	}
}

func TestIsActiveFilterOrder(t *testing.T) {
	// A failing date filter short-circuits before the window matters.
	def := Definition{
		Mode:      ModeTimed,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-31",
		StartTime: "09:00",
		EndTime:   "17:00",
	}

	if IsActive(def, ctxAt("10:00:00", "2026-04-15", "wednesday")) {
		t.Error("item active outside its date range")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		ok   bool
	}{
		{"timed bare", Definition{Mode: ModeTimed}, true},
		{"interval complete", Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 60}, true},
		{"interval missing minutes", Definition{Mode: ModeInterval, StartTime: "09:00"}, false},
		{"interval zero minutes", Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 0}, false},
		{"interval negative minutes", Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: -5}, false},
		{"interval missing start", Definition{Mode: ModeInterval, IntervalMinutes: 60}, false},
		{"unknown mode", Definition{Mode: "cron"}, false},
		{"bad date format", Definition{Mode: ModeTimed, StartDate: "2026-3-1"}, false},
		{"bad time format", Definition{Mode: ModeTimed, StartTime: "9am"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok = %v", err, tt.ok)
			}
		})
	}
}
