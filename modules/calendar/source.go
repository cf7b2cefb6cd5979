package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
)

// defaultEndpoint lists the primary calendar's events.
const defaultEndpoint = "https://www.googleapis.com/calendar/v3/calendars/primary/events"

// defaultMaxEvents bounds how many upcoming events the screen shows.
const defaultMaxEvents = 10

// Source fetches upcoming events from the Google Calendar API using a
// token-file credential. When the token file is absent the source is simply
// not configured: Fetch returns an error, the manager tags it, and the
// screen shows its "set up calendar" state.
//
// Implements source.Fetcher.
type Source struct {
	cfg      *common.Config
	client   common.HttpClient
	auth     common.AuthClient // nil disables refresh
	endpoint string
}

// New constructs the calendar source. auth may be nil.
func New(cfg *common.Config, client common.HttpClient, auth common.AuthClient) *Source {
	return &Source{
		cfg:      cfg,
		client:   client,
		auth:     auth,
		endpoint: cfg.GetString("calendar.endpoint", defaultEndpoint),
	}
}

// Fetch returns the formatted upcoming events.
func (s *Source) Fetch(ctx context.Context) (interface{}, error) {
	tok, err := s.credentials()
	if err != nil {
		return nil, err
	}

	maxEvents := s.cfg.GetInt("calendar.max_events", defaultMaxEvents)

	q := url.Values{}
	q.Set("timeMin", time.Now().UTC().Format(time.RFC3339))
	q.Set("maxResults", fmt.Sprint(maxEvents))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &common.HTTPError{StatusCode: resp.StatusCode, Body: data}
	}

	var payload eventsResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding events response: %w", err)
	}

	events := make([]model.CalendarEvent, 0, len(payload.Items))
	for _, item := range payload.Items {
		ev, err := formatEvent(item, time.Now())
		if err != nil {
			log.Printf("calendar: skipping malformed event %q: %v", item.Summary, err)
			continue
		}
		events = append(events, ev)
	}

	return &model.CalendarEvents{
		Events:      events,
		TotalEvents: len(events),
	}, nil
}

// credentials loads the token file, refreshing it when expired and a
// refresher is configured.
func (s *Source) credentials() (*oauth2.Token, error) {
	path := s.cfg.GetString("calendar.token_file", "")
	if path == "" {
		return nil, fmt.Errorf("calendar credentials not configured")
	}
	tok, err := LoadTokenFile(path)
	if err != nil {
		return nil, fmt.Errorf("calendar credentials not configured: %w", err)
	}

	if tok.Valid() || s.auth == nil || tok.RefreshToken == "" {
		return tok, nil
	}

	fresh, err := s.auth.RefreshToken(tok.RefreshToken)
	if err != nil {
		return nil, err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	// Best effort; a refresh that cannot be persisted still works this run.
	if err := SaveTokenFile(path, fresh); err != nil {
		log.Printf("calendar: saving refreshed token: %v", err)
	}
	return fresh, nil
}

// eventsResponse mirrors the Calendar v3 events list shape.
type eventsResponse struct {
	Items []eventItem `json:"items"`
}

type eventItem struct {
	Summary  string    `json:"summary"`
	Location string    `json:"location"`
	Start    eventTime `json:"start"`
}

// eventTime carries either a dateTime (timed event) or a date (all-day).
type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

// formatEvent converts an API item into the display model. now is a
// parameter so tests can pin "today".
func formatEvent(item eventItem, now time.Time) (model.CalendarEvent, error) {
	ev := model.CalendarEvent{
		Summary:  item.Summary,
		Location: item.Location,
	}

	switch {
	case item.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return ev, fmt.Errorf("bad start time: %w", err)
		}
		ev.Start = start
		ev.When = formatWhen(start, now, false)
	case item.Start.Date != "":
		start, err := time.ParseInLocation("2006-01-02", item.Start.Date, now.Location())
		if err != nil {
			return ev, fmt.Errorf("bad start date: %w", err)
		}
		ev.Start = start
		ev.AllDay = true
		ev.When = formatWhen(start, now, true)
	default:
		return ev, fmt.Errorf("event has no start")
	}
	return ev, nil
}

// formatWhen renders the start relative to now: "Today 14:30",
// "Tomorrow 09:00", "Mon Jan 2 14:30", with the clock part dropped for
// all-day events.
func formatWhen(start, now time.Time, allDay bool) string {
	local := start.In(now.Location())
	var day string
	switch {
	case sameDay(local, now):
		day = "Today"
	case sameDay(local, now.AddDate(0, 0, 1)):
		day = "Tomorrow"
	default:
		day = local.Format("Mon Jan 2")
	}
	if allDay {
		return day
	}
	return day + " " + local.Format("15:04")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
