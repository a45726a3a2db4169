/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func testResolver() *Resolver {
	return NewResolver(zerolog.Nop())
}

func TestResolvePartitionsByMode(t *testing.T) {
	items := []Item{
		{ID: "banner", Version: 1, Definition: Definition{Mode: ModeTimed}},
		{ID: "chime", Version: 2, Definition: Definition{
			Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 30,
		}},
	}
	ctx := ctxAt("10:10:00", "2026-05-04", "monday")

	res := testResolver().Resolve(items, ctx)

	if len(res.Active) != 1 || res.Active[0].ID != "banner" {
		t.Fatalf("active = %+v, want banner only", res.Active)
	}
	if len(res.Upcoming) != 1 || res.Upcoming[0].Item.ID != "chime" {
		t.Fatalf("upcoming = %+v, want chime only", res.Upcoming)
	}
	if res.Upcoming[0].NextTrigger != "2026-05-04T10:30:00" {
		t.Errorf("next trigger = %q, want 2026-05-04T10:30:00", res.Upcoming[0].NextTrigger)
	}
}

func TestResolveSkipsMalformedItems(t *testing.T) {
	// Item 3 is interval mode with no interval; the pass must survive it.
	items := []Item{
		{ID: "a", Definition: Definition{Mode: ModeTimed}},
		{ID: "b", Definition: Definition{Mode: ModeTimed}},
		{ID: "c", Definition: Definition{Mode: ModeInterval, StartTime: "09:00"}},
		{ID: "d", Definition: Definition{Mode: ModeTimed}},
		{ID: "e", Definition: Definition{Mode: ModeInterval, StartTime: "08:00", IntervalMinutes: 60}},
	}
	ctx := ctxAt("10:10:00", "2026-05-04", "monday")

	res := testResolver().Resolve(items, ctx)

	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	gotActive := make([]string, 0, len(res.Active))
	for _, item := range res.Active {
		gotActive = append(gotActive, item.ID)
	}
	if !reflect.DeepEqual(gotActive, []string{"a", "b", "d"}) {
		t.Errorf("active ids = %v, want [a b d]", gotActive)
	}
	if len(res.Upcoming) != 1 || res.Upcoming[0].Item.ID != "e" {
		t.Errorf("upcoming = %+v, want item e only", res.Upcoming)
	}
}

func TestResolveIdempotent(t *testing.T) {
	items := []Item{
		{ID: "x", Definition: Definition{Mode: ModeTimed, StartTime: "09:00", EndTime: "17:00"}},
		{ID: "y", Definition: Definition{Mode: ModeInterval, StartTime: "09:00", IntervalMinutes: 15}},
		{ID: "z", Definition: Definition{Mode: ModeTimed, DaysOfWeek: []string{"monday"}}},
	}
	ctx := ctxAt("11:07:42", "2026-05-04", "monday")
	r := testResolver()

	first := r.Resolve(items, ctx)
	second := r.Resolve(items, ctx)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated resolution diverged:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestResolvePreservesCatalogOrder(t *testing.T) {
	items := []Item{
		{ID: "third", Definition: Definition{Mode: ModeTimed}},
		{ID: "first", Definition: Definition{Mode: ModeTimed}},
		{ID: "second", Definition: Definition{Mode: ModeTimed}},
	}
	ctx := ctxAt("10:00:00", "2026-05-04", "monday")

	res := testResolver().Resolve(items, ctx)

	want := []string{"third", "first", "second"}
	for i, item := range res.Active {
		if item.ID != want[i] {
			t.Fatalf("active[%d] = %s, want %s (input order must be preserved)", i, item.ID, want[i])
		}
	}
}

func TestResolveIntervalNotInActive(t *testing.T) {
	// An interval item inside its window is still only surfaced via its
	// trigger; the device fires it at that instant.
	items := []Item{
		{ID: "hourly", Definition: Definition{
			Mode: ModeInterval, StartTime: "09:00", EndTime: "18:00", IntervalMinutes: 60,
		}},
	}
	ctx := ctxAt("10:30:00", "2026-05-04", "monday")

	res := testResolver().Resolve(items, ctx)

	if len(res.Active) != 0 {
		t.Errorf("interval item leaked into active: %+v", res.Active)
	}
	if len(res.Upcoming) != 1 {
		t.Fatalf("upcoming = %+v, want one entry", res.Upcoming)
	}
}

func TestResolveEndToEndScenario(t *testing.T) {
	// One weekday business-hours item, evaluated midweek and on a weekend.
	item := Item{
		ID:      "lobby-loop",
		Version: 42,
		Definition: Definition{
			Mode:       ModeTimed,
			StartDate:  "2026-05-01",
			EndDate:    "2026-05-31",
			DaysOfWeek: []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
			StartTime:  "09:00",
			EndTime:    "17:00",
		},
	}
	r := testResolver()

	midweek := r.Resolve([]Item{item}, ctxAt("10:00:00", "2026-05-06", "wednesday"))
	if len(midweek.Active) != 1 {
		t.Fatalf("wednesday 10:00 active = %+v, want the item", midweek.Active)
	}

	weekend := r.Resolve([]Item{item}, ctxAt("10:00:00", "2026-05-09", "saturday"))
	if len(weekend.Active) != 0 || len(weekend.Upcoming) != 0 {
		t.Fatalf("saturday resolution = %+v, want empty", weekend)
	}
}

func TestResolveIntervalHonorsDateAndDayFilters(t *testing.T) {
	items := []Item{
		{ID: "weekday-chime", Definition: Definition{
			Mode:       ModeInterval,
			DaysOfWeek: []string{"monday"},
			StartTime:  "09:00",
			IntervalMinutes: 60,
		}},
	}

	sunday := testResolver().Resolve(items, ctxAt("10:00:00", "2026-05-03", "sunday"))
	if len(sunday.Upcoming) != 0 {
		t.Errorf("interval item projected on a filtered-out day: %+v", sunday.Upcoming)
	}

	monday := testResolver().Resolve(items, ctxAt("10:00:00", "2026-05-04", "monday"))
	if len(monday.Upcoming) != 1 {
		t.Errorf("interval item missing on a matching day: %+v", monday.Upcoming)
	}
}

func TestResolveEmptyCatalog(t *testing.T) {
	res := testResolver().Resolve(nil, ctxAt("10:00:00", "2026-05-04", "monday"))
	if len(res.Active) != 0 || len(res.Upcoming) != 0 || res.Skipped != 0 {
		t.Errorf("empty catalog resolution = %+v, want empty", res)
	}
}
