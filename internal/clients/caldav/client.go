package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

// ErrNotConnected is returned when the client is used before Connect.
var ErrNotConnected = errors.New("caldav client is not connected")

// Client is a CalDAV client bound to one principal
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client
	client     *caldav.Client
	homeSet    string
}

// NewClient creates a new CalDAV client
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// Connect opens the session and locates the principal's calendar home set.
// The session must be released with Close.
func (c *Client) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	c.httpClient = &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
			base:     http.DefaultTransport.(*http.Transport).Clone(),
		},
	}

	client, err := caldav.NewClient(c.httpClient, c.baseURL)
	if err != nil {
		return fmt.Errorf("connect to CalDAV: %w", err)
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return fmt.Errorf("find home set: %w", err)
	}

	c.client = client
	c.homeSet = homeSet
	return nil
}

// Close releases the connections held by the session. It is safe to call
// on a client that never connected.
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	c.client = nil
	c.httpClient = nil
	return nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
	base     *http.Transport
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

func (t *basicAuthTransport) CloseIdleConnections() {
	t.base.CloseIdleConnections()
}

// Calendars returns all calendars in the principal's home set
func (c *Client) Calendars(ctx context.Context) ([]Calendar, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	cals, err := c.client.FindCalendars(ctx, c.homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	result := make([]Calendar, 0, len(cals))
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			Name:        cal.Name,
			Description: cal.Description,
		})
	}
	return result, nil
}

// Events returns every event object stored in the calendar, unexpanded
func (c *Client) Events(ctx context.Context, cal Calendar) ([]*ical.Calendar, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, cal.Path, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar %s: %w", cal.Path, err)
	}

	result := make([]*ical.Calendar, 0, len(objects))
	for _, obj := range objects {
		if obj.Data == nil {
			return nil, fmt.Errorf("no data in calendar object %s", obj.Path)
		}
		result = append(result, obj.Data)
	}
	return result, nil
}
