/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Context is a snapshot of "now" in the display timezone. It is computed
// fresh for every resolution pass so repeated device polls always see the
// true current time.
type Context struct {
	TimeOfDay    string `json:"time_of_day"`   // HH:MM:SS
	CalendarDate string `json:"calendar_date"` // YYYY-MM-DD
	Weekday      string `json:"weekday"`       // lowercase full name
}

// Provider converts wall-clock time into a Context for a fixed IANA
// timezone. The zone is resolved once at construction; an invalid zone is a
// startup failure, not a per-call one.
type Provider struct {
	loc   *time.Location
	nowFn func() time.Time
}

// NewProvider resolves the timezone and returns a provider bound to it.
// DST-aware conversion comes from the loaded location, never a fixed offset.
func NewProvider(timezone string) (*Provider, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Provider{loc: loc, nowFn: time.Now}, nil
}

// NewProviderAt returns a provider with a fixed clock. Test use only.
func NewProviderAt(timezone string, now func() time.Time) (*Provider, error) {
	p, err := NewProvider(timezone)
	if err != nil {
		return nil, err
	}
	p.nowFn = now
	return p, nil
}

// Location returns the resolved display timezone.
func (p *Provider) Location() *time.Location {
	return p.loc
}

// Now captures the current time context.
func (p *Provider) Now() Context {
	now := p.nowFn().In(p.loc)
	return Context{
		TimeOfDay:    now.Format("15:04:05"),
		CalendarDate: now.Format("2006-01-02"),
		Weekday:      strings.ToLower(now.Weekday().String()),
	}
}

// minutesOfDay parses HH:MM or HH:MM:SS into whole minutes since midnight.
// Seconds are discarded; interval arithmetic works in integer minutes.
func minutesOfDay(tod string) (int, bool) {
	if len(tod) < 5 {
		return 0, false
	}
	var h, m int
	if _, err := fmt.Sscanf(tod[:5], "%02d:%02d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
