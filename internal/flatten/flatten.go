// Package flatten turns parsed iCalendar components into flat,
// JSON-serializable event records.
package flatten

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// DateTimeLayout is the MM/DD/YYYY HH:MM layout used for every rendered date.
const DateTimeLayout = "01/02/2006 15:04"

const statusCancelled = "CANCELLED"

// Record is one flattened VEVENT
type Record struct {
	Calendar    string  `json:"calendar"`
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Start       string  `json:"start"`
	End         string  `json:"end,omitempty"`
	Datestamp   string  `json:"datestamp"`
	Duration    string  `json:"duration,omitempty"`
	RRule       *RRule  `json:"rrule,omitempty"`

	// Parsed instants behind Start, End and Datestamp. They are not
	// serialized; EndTime is zero when End is empty.
	StartTime time.Time `json:"-"`
	EndTime   time.Time `json:"-"`
	StampTime time.Time `json:"-"`
}

// RRule is the subset of a recurrence rule carried by a Record.
// Interval is nil when the source rule omits INTERVAL.
type RRule struct {
	Freq     string   `json:"freq"`
	Interval *int     `json:"interval"`
	Until    string   `json:"until,omitempty"`
	ByDay    []string `json:"byday,omitempty"`
}

var freqNames = map[rrule.Frequency]string{
	rrule.YEARLY:   "YEARLY",
	rrule.MONTHLY:  "MONTHLY",
	rrule.WEEKLY:   "WEEKLY",
	rrule.DAILY:    "DAILY",
	rrule.HOURLY:   "HOURLY",
	rrule.MINUTELY: "MINUTELY",
	rrule.SECONDLY: "SECONDLY",
}

var dayNames = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// Format renders t in its own location using DateTimeLayout.
func Format(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// Qualifies reports whether comp is a VEVENT that has not been cancelled.
func Qualifies(comp *ical.Component) bool {
	if comp == nil || comp.Name != ical.CompEvent {
		return false
	}
	if prop := comp.Props.Get(ical.PropStatus); prop != nil {
		return !strings.EqualFold(strings.TrimSpace(prop.Value), statusCancelled)
	}
	return true
}

// Flatten builds a Record for every qualifying component of cal, in order.
func Flatten(calendar string, cal *ical.Calendar, loc *time.Location) ([]Record, error) {
	if cal == nil || cal.Component == nil {
		return nil, nil
	}

	var records []Record
	for _, comp := range cal.Children {
		if !Qualifies(comp) {
			continue
		}
		rec, err := BuildRecord(comp, calendar, loc)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// BuildRecord flattens a single VEVENT. Floating date-times are read in loc;
// values with a TZID or a UTC suffix keep their own zone.
func BuildRecord(comp *ical.Component, calendar string, loc *time.Location) (*Record, error) {
	if loc == nil {
		loc = time.Local
	}

	rec := &Record{Calendar: calendar}

	var err error
	if rec.Summary, err = optionalText(comp, ical.PropSummary); err != nil {
		return nil, err
	}
	if rec.Description, err = optionalText(comp, ical.PropDescription); err != nil {
		return nil, err
	}

	start, err := requiredDateTime(comp, ical.PropDateTimeStart, loc)
	if err != nil {
		return nil, err
	}
	rec.Start = Format(start)
	rec.StartTime = start

	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil && prop.Value != "" {
		end, err := prop.DateTime(loc)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", ical.PropDateTimeEnd, err)
		}
		rec.End = Format(end)
		rec.EndTime = end
	}

	stamp, err := requiredDateTime(comp, ical.PropDateTimeStamp, loc)
	if err != nil {
		return nil, err
	}
	rec.Datestamp = Format(stamp)
	rec.StampTime = stamp

	if prop := comp.Props.Get(ical.PropDuration); prop != nil {
		if _, err := prop.Duration(); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ical.PropDuration, err)
		}
		rec.Duration = prop.Value
	}

	opt, err := comp.Props.RecurrenceRule()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ical.PropRecurrenceRule, err)
	}
	if opt != nil {
		rec.RRule = BuildRRule(opt)
	}

	return rec, nil
}

// BuildRRule keeps FREQ, INTERVAL, the first UNTIL and BYDAY.
// Every other rule part is dropped.
func BuildRRule(opt *rrule.ROption) *RRule {
	if opt == nil {
		return nil
	}

	rule := &RRule{Freq: freqNames[opt.Freq]}
	if opt.Interval != 0 {
		interval := opt.Interval
		rule.Interval = &interval
	}
	if !opt.Until.IsZero() {
		rule.Until = Format(opt.Until)
	}
	for _, wd := range opt.Byweekday {
		rule.ByDay = append(rule.ByDay, weekdayToken(wd))
	}
	return rule
}

func weekdayToken(wd rrule.Weekday) string {
	day := dayNames[wd.Day()%len(dayNames)]
	if n := wd.N(); n != 0 {
		return fmt.Sprintf("%d%s", n, day)
	}
	return day
}

func optionalText(comp *ical.Component, name string) (*string, error) {
	prop := comp.Props.Get(name)
	if prop == nil {
		return nil, nil
	}
	text, err := prop.Text()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &text, nil
}

func requiredDateTime(comp *ical.Component, name string, loc *time.Location) (time.Time, error) {
	prop := comp.Props.Get(name)
	if prop == nil || prop.Value == "" {
		return time.Time{}, fmt.Errorf("event has no %s", name)
	}
	t, err := prop.DateTime(loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return t, nil
}
