package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/Truenya/caldav-daemon/config"
	"github.com/Truenya/caldav-daemon/internal/clients/caldav"
	"github.com/Truenya/caldav-daemon/internal/flatten"
)

// Source lists calendars and their raw event objects
type Source interface {
	Calendars(ctx context.Context) ([]caldav.Calendar, error)
	Events(ctx context.Context, cal caldav.Calendar) ([]*ical.Calendar, error)
}

// FetchService walks every calendar of a Source and flattens its events
type FetchService struct {
	source   Source
	timezone *time.Location
}

// NewFetchService creates a fetch service. tz is used for floating times.
func NewFetchService(source Source, tz *time.Location) *FetchService {
	if tz == nil {
		tz = time.Local
	}
	return &FetchService{
		source:   source,
		timezone: tz,
	}
}

// Records returns every qualifying event in calendar, event, component order.
// found is false when the source has no calendars at all.
func (s *FetchService) Records(ctx context.Context) (records []flatten.Record, found bool, err error) {
	calendars, err := s.source.Calendars(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(calendars) == 0 {
		return nil, false, nil
	}

	records = []flatten.Record{}
	for _, cal := range calendars {
		objects, err := s.source.Events(ctx, cal)
		if err != nil {
			return nil, true, err
		}
		for _, obj := range objects {
			recs, err := flatten.Flatten(cal.String(), obj, s.timezone)
			if err != nil {
				return nil, true, fmt.Errorf("calendar %s: %w", cal, err)
			}
			records = append(records, recs...)
		}
	}
	return records, true, nil
}

// Render writes all records to w as one indented JSON array. Nothing is
// written when there are no calendars or when any step fails.
func (s *FetchService) Render(ctx context.Context, w io.Writer) error {
	records, found, err := s.Records(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// FetchAndRender connects with cfg, renders every event to w and closes
// the session on all paths.
func FetchAndRender(ctx context.Context, cfg *config.Config, w io.Writer) error {
	client := caldav.NewClient(cfg.BaseURL, cfg.Username, cfg.Password)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	return NewFetchService(client, cfg.Timezone).Render(ctx, w)
}
