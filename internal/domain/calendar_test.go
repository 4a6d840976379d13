package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Truenya/caldav-daemon/internal/flatten"
)

func strPtr(s string) *string { return &s }

func TestEventFromRecord(t *testing.T) {
	rec := flatten.Record{
		Calendar:  "Work",
		Summary:   strPtr("Standup"),
		Start:     "03/15/2024 09:30",
		End:       "03/15/2024 09:45",
		Datestamp: "03/01/2024 12:00",
	}

	e, err := EventFromRecord(rec, time.UTC, 0)
	require.NoError(t, err)
	assert.Equal(t, "Work", e.Calendar)
	assert.Equal(t, "Standup", e.Summary)
	assert.Empty(t, e.Description)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), e.StartTime)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 45, 0, 0, time.UTC), e.EndTime)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), e.CreatedAt)
	assert.Equal(t, "15.03.2024 09:30-09:45", e.FormatDateTime())
}

func TestEventFromRecord_ZonedValuesKeepTheirInstant(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	doc := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:1@test",
		"DTSTAMP:20240301T120000Z",
		"DTSTART:20240315T093000Z",
		"DTEND;TZID=Europe/Berlin:20240315T113000",
		"SUMMARY:Standup",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	cal, err := ical.NewDecoder(strings.NewReader(doc)).Decode()
	require.NoError(t, err)

	rec, err := flatten.BuildRecord(cal.Children[0], "Work", moscow)
	require.NoError(t, err)
	require.Equal(t, "03/15/2024 09:30", rec.Start)

	e, err := EventFromRecord(*rec, moscow, 0)
	require.NoError(t, err)
	assert.True(t, e.StartTime.Equal(time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)), "start = %s", e.StartTime)
	assert.True(t, e.EndTime.Equal(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)), "end = %s", e.EndTime)
	assert.True(t, e.CreatedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestEventFromRecord_Offset(t *testing.T) {
	rec := flatten.Record{Start: "03/15/2024 12:30", Datestamp: "03/01/2024 12:00"}

	e, err := EventFromRecord(rec, time.UTC, 3*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), e.StartTime)
	assert.True(t, e.EndTime.IsZero())
	assert.Equal(t, "09:30", e.FormatTime())
}

func TestEventFromRecord_BadStart(t *testing.T) {
	_, err := EventFromRecord(flatten.Record{Start: "tomorrow"}, time.UTC, 0)
	assert.Error(t, err)
}

func TestCalendarEvent_IsPast(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{name: "future", start: now.Add(time.Hour), want: false},
		{name: "finished", start: now.Add(-2 * time.Hour), end: now.Add(-time.Hour), want: true},
		{name: "running", start: now.Add(-time.Hour), end: now.Add(time.Hour), want: false},
		{name: "started without end", start: now.Add(-time.Minute), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &CalendarEvent{StartTime: tt.start, EndTime: tt.end}
			assert.Equal(t, tt.want, e.IsPast(now))
		})
	}
}

func TestCalendarEvent_IsTodayAndKey(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	today := &CalendarEvent{Summary: "a", StartTime: now.Add(time.Hour)}
	tomorrow := &CalendarEvent{Summary: "a", StartTime: now.Add(24 * time.Hour)}

	assert.True(t, today.IsToday(now))
	assert.False(t, tomorrow.IsToday(now))
	assert.NotEqual(t, today.Key(), tomorrow.Key())
	assert.Equal(t, "a@2024-03-15T11:00:00Z", today.Key())
}
