/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"testing"
	"time"
)

func TestNewProviderRejectsInvalidZone(t *testing.T) {
	if _, err := NewProvider("Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestProviderNow(t *testing.T) {
	// 2026-05-04 00:30 UTC is 10:30 the same day in Melbourne (AEST, UTC+10).
	frozen := time.Date(2026, 5, 4, 0, 30, 45, 0, time.UTC)
	p, err := NewProviderAt("Australia/Melbourne", func() time.Time { return frozen })
	if err != nil {
		t.Fatalf("NewProviderAt: %v", err)
	}

	ctx := p.Now()
	if ctx.TimeOfDay != "10:30:45" {
		t.Errorf("TimeOfDay = %s, want 10:30:45", ctx.TimeOfDay)
	}
	if ctx.CalendarDate != "2026-05-04" {
		t.Errorf("CalendarDate = %s, want 2026-05-04", ctx.CalendarDate)
	}
	if ctx.Weekday != "monday" {
		t.Errorf("Weekday = %s, want monday", ctx.Weekday)
	}
}

func TestProviderCrossesDateLine(t *testing.T) {
	// Late UTC evening is already the next calendar day in Melbourne.
	frozen := time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)
	p, err := NewProviderAt("Australia/Melbourne", func() time.Time { return frozen })
	if err != nil {
		t.Fatalf("NewProviderAt: %v", err)
	}

	ctx := p.Now()
	if ctx.CalendarDate != "2026-05-05" {
		t.Errorf("CalendarDate = %s, want 2026-05-05", ctx.CalendarDate)
	}
	if ctx.Weekday != "tuesday" {
		t.Errorf("Weekday = %s, want tuesday", ctx.Weekday)
	}
}

func TestProviderDSTOffsetChanges(t *testing.T) {
	// Melbourne is UTC+11 during southern summer, UTC+10 in winter. The
	// provider must track both, which a fixed offset cannot.
	p := func(utc time.Time) Context {
		prov, err := NewProviderAt("Australia/Melbourne", func() time.Time { return utc })
		if err != nil {
			t.Fatalf("NewProviderAt: %v", err)
		}
		return prov.Now()
	}

	summer := p(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	if summer.TimeOfDay != "11:00:00" {
		t.Errorf("summer TimeOfDay = %s, want 11:00:00 (UTC+11)", summer.TimeOfDay)
	}

	winter := p(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC))
	if winter.TimeOfDay != "10:00:00" {
		t.Errorf("winter TimeOfDay = %s, want 10:00:00 (UTC+10)", winter.TimeOfDay)
	}
}
