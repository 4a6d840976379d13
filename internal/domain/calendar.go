package domain

import (
	"fmt"
	"time"

	"github.com/Truenya/caldav-daemon/internal/flatten"
)

// CalendarEvent is a flattened record with its times parsed back
type CalendarEvent struct {
	Calendar    string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time // zero when the event has no end
	CreatedAt   time.Time // DTSTAMP
}

// EventFromRecord converts rec and shifts every time back by offset, the
// amount the server clock runs ahead. The instants parsed by the flattener
// are used when present; otherwise the text fields are read in loc.
func EventFromRecord(rec flatten.Record, loc *time.Location, offset time.Duration) (*CalendarEvent, error) {
	if loc == nil {
		loc = time.Local
	}

	start := rec.StartTime
	if start.IsZero() {
		var err error
		start, err = time.ParseInLocation(flatten.DateTimeLayout, rec.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("parse start %q: %w", rec.Start, err)
		}
	}

	e := &CalendarEvent{
		Calendar:  rec.Calendar,
		StartTime: start.Add(-offset),
	}
	if rec.Summary != nil {
		e.Summary = *rec.Summary
	}
	if rec.Description != nil {
		e.Description = *rec.Description
	}
	if end := instant(rec.EndTime, rec.End, loc); !end.IsZero() {
		e.EndTime = end.Add(-offset)
	}
	if stamp := instant(rec.StampTime, rec.Datestamp, loc); !stamp.IsZero() {
		e.CreatedAt = stamp.Add(-offset)
	}
	return e, nil
}

func instant(t time.Time, text string, loc *time.Location) time.Time {
	if !t.IsZero() || text == "" {
		return t
	}
	parsed, err := time.ParseInLocation(flatten.DateTimeLayout, text, loc)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// Key identifies the event for deduplication
func (e *CalendarEvent) Key() string {
	return e.Summary + "@" + e.StartTime.UTC().Format(time.RFC3339)
}

// IsPast returns true if the event has both started and ended before now
func (e *CalendarEvent) IsPast(now time.Time) bool {
	return e.StartTime.Before(now) && e.EndTime.Before(now)
}

// IsToday returns true if event starts on the same day as now
func (e *CalendarEvent) IsToday(now time.Time) bool {
	start := e.StartTime.In(now.Location())
	return start.Year() == now.Year() && start.YearDay() == now.YearDay()
}

// FormatTime returns formatted time for display
func (e *CalendarEvent) FormatTime() string {
	if e.EndTime.IsZero() {
		return e.StartTime.Format("15:04")
	}
	return e.StartTime.Format("15:04") + "-" + e.EndTime.Format("15:04")
}

// FormatDateTime returns formatted date and time
func (e *CalendarEvent) FormatDateTime() string {
	return e.StartTime.Format("02.01.2006") + " " + e.FormatTime()
}
