/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import "testing"

func TestNextTrigger(t *testing.T) {
	tests := []struct {
		name      string
		def       Definition
		timeOfDay string
		want      string
		ok        bool
	}{
		{
			name:      "mid bucket rounds up",
			def:       Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 60},
			timeOfDay: "09:45:00",
			want:      "2026-05-04T10:00:00",
			ok:        true,
		},
		{
			name:      "before window start fires at start verbatim",
			def:       Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 60},
			timeOfDay: "08:00:00",
			want:      "2026-05-04T09:00:00",
			ok:        true,
		},
		{
			name:      "exactly on a slot schedules the following slot",
			def:       Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 60},
			timeOfDay: "10:00:00",
			want:      "2026-05-04T11:00:00",
			ok:        true,
		},
		{
			name:      "odd interval bucketing",
			def:       Definition{Mode: ModeInterval, StartTime: "08:15", IntervalMinutes: 45},
			timeOfDay: "10:00:00",
			want:      "2026-05-04T10:30:00",
			ok:        true,
		},
		{
			name:      "seconds ignored in interval math",
			def:       Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 60},
			timeOfDay: "09:59:59",
			want:      "2026-05-04T10:00:00",
			ok:        true,
		},
		{
			name:      "no rollover past midnight",
			def:       Definition{Mode: ModeInterval, StartTime: "23:30", IntervalMinutes: 60},
			timeOfDay: "23:45:00",
			ok:        false,
		},
		{
			name:      "last slot of the day still fires",
			def:       Definition{Mode: ModeInterval, StartTime: "23:00", IntervalMinutes: 30},
			timeOfDay: "23:10:00",
			want:      "2026-05-04T23:30:00",
			ok:        true,
		},
		{
			name:      "end bound discards trigger",
			def:       Definition{Mode: ModeInterval, StartTime: "09:00", EndTime: "10:30", IntervalMinutes: 60},
			timeOfDay: "10:15:00",
			ok:        false,
		},
		{
			name:      "end bound inclusive on the boundary slot",
			def:       Definition{Mode: ModeInterval, StartTime: "09:00", EndTime: "11:00", IntervalMinutes: 60},
			timeOfDay: "10:15:00",
			want:      "2026-05-04T11:00:00",
			ok:        true,
		},
		{
			name:      "zero interval yields nothing",
			def:       Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 0},
			timeOfDay: "10:00:00",
			ok:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ctxAt(tt.timeOfDay, "2026-05-04", "monday")
			got, ok := NextTrigger(tt.def, ctx)
			if ok != tt.ok {
				t.Fatalf("NextTrigger ok = %v, want %v (got %q)", ok, tt.ok, got)
			}
			if ok && got != tt.want {
				t.Errorf("NextTrigger = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMinutesOfDay(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"09:30:45", 570, true}, // seconds discarded
		{"24:00", 0, false},
		{"09:60", 0, false},
		{"garbage", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := minutesOfDay(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("minutesOfDay(%q) = (%d, %v), want (%d, %v)",
					tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}
