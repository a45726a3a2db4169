/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule decides which content a device should play right now.
//
// The resolver is pure: it performs no I/O, holds no state between calls,
// and is safe for concurrent use. Callers fetch the candidate catalog,
// capture a time context, and hand both to Resolve.
package schedule

import (
	"errors"
	"regexp"
	"strings"
)

// Mode selects how a definition triggers playback.
type Mode string

const (
	// ModeTimed content plays continuously while its window matches.
	ModeTimed Mode = "timed"
	// ModeInterval content fires repeatedly every IntervalMinutes,
	// starting at StartTime.
	ModeInterval Mode = "interval"
)

var (
	// ErrUnschedulable indicates a definition missing fields required by its mode.
	ErrUnschedulable = errors.New("schedule definition is unschedulable")

	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
)

// Definition describes when a content item is eligible to play.
// All fields besides Mode are optional; absent filters match everything.
type Definition struct {
	Mode Mode `json:"mode"`

	// Inclusive calendar date bounds, zero-padded ISO form (YYYY-MM-DD).
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	// Lowercase full weekday names ("monday" .. "sunday"). Empty = every day.
	DaysOfWeek []string `json:"days_of_week,omitempty"`

	// Time-of-day window, HH:MM or HH:MM:SS. EndTime <= StartTime denotes a
	// span that wraps past midnight.
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	// Minutes between triggers. Interval mode only; must be positive.
	IntervalMinutes int `json:"interval_minutes,omitempty"`
}

// Validate reports whether the definition can be scheduled at all.
// A failing definition is skipped by the aggregator, never a hard error.
func (d Definition) Validate() error {
	switch d.Mode {
	case ModeTimed:
	case ModeInterval:
		if d.IntervalMinutes <= 0 {
			return ErrUnschedulable
		}
		if d.StartTime == "" {
			return ErrUnschedulable
		}
	default:
		return ErrUnschedulable
	}

	for _, date := range []string{d.StartDate, d.EndDate} {
		if date != "" && !datePattern.MatchString(date) {
			return ErrUnschedulable
		}
	}
	for _, tod := range []string{d.StartTime, d.EndTime} {
		if tod != "" && !timePattern.MatchString(tod) {
			return ErrUnschedulable
		}
	}
	return nil
}

// matchesDay reports whether the weekday passes the day-of-week filter.
func (d Definition) matchesDay(weekday string) bool {
	if len(d.DaysOfWeek) == 0 {
		return true
	}
	for _, day := range d.DaysOfWeek {
		if strings.EqualFold(day, weekday) {
			return true
		}
	}
	return false
}

// matchesDate reports whether the calendar date lies inside the inclusive
// date range. Lexicographic comparison is sound because Validate enforces
// zero-padded ISO dates.
func (d Definition) matchesDate(calendarDate string) bool {
	if d.StartDate != "" && calendarDate < d.StartDate {
		return false
	}
	if d.EndDate != "" && calendarDate > d.EndDate {
		return false
	}
	return true
}
