/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"github.com/rs/zerolog"
)

// Item is one schedulable unit from the catalog. The payload is opaque to
// the resolver and passed through untouched; Version lets devices detect
// content changes between polls (derived from last-modified time upstream).
type Item struct {
	ID         string     `json:"id"`
	Version    int64      `json:"version"`
	Definition Definition `json:"schedule"`
	Payload    any        `json:"payload"`
}

// Trigger pairs an interval item with its computed next firing instant.
type Trigger struct {
	Item        Item   `json:"item"`
	NextTrigger string `json:"next_trigger"` // local YYYY-MM-DDTHH:MM:00
}

// Resolution is the outcome of one pass over a catalog. Ordering inside each
// list follows catalog order. Both lists empty is a normal result.
type Resolution struct {
	Active   []Item    `json:"active"`
	Upcoming []Trigger `json:"upcoming"`
	Skipped  int       `json:"-"`
}

// Resolver runs resolution passes. It holds only a logger; every pass is
// independent, deterministic for a frozen Context, and safe to run
// concurrently from any number of device polls.
type Resolver struct {
	logger zerolog.Logger
}

// NewResolver constructs a resolver.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{logger: logger.With().Str("component", "schedule").Logger()}
}

// Resolve partitions the catalog into content active now and interval
// content with a projected next trigger.
//
// A malformed item is logged and skipped; it never aborts the pass. One bad
// schedule must not break every device polling the same tenant.
func (r *Resolver) Resolve(items []Item, ctx Context) Resolution {
	res := Resolution{}

	for _, item := range items {
		def := item.Definition

		if err := def.Validate(); err != nil {
			res.Skipped++
			r.logger.Debug().
				Str("item_id", item.ID).
				Str("mode", string(def.Mode)).
				Msg("skipping unschedulable item")
			continue
		}

		switch def.Mode {
		case ModeTimed:
			if IsActive(def, ctx) {
				res.Active = append(res.Active, item)
			}
		case ModeInterval:
			// Interval content is surfaced only through its next trigger;
			// the device fires it at that instant.
			if !def.matchesDate(ctx.CalendarDate) || !def.matchesDay(ctx.Weekday) {
				continue
			}
			if next, ok := NextTrigger(def, ctx); ok {
				res.Upcoming = append(res.Upcoming, Trigger{Item: item, NextTrigger: next})
			}
		}
	}

	return res
}
