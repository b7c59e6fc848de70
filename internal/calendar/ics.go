// File path: internal/calendar/ics.go
package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// ICSSource reads booked sessions from a published iCalendar feed. Used for
// booking tools that expose an ICS URL rather than a Google calendar.
type ICSSource struct {
	feedURL string
	client  *http.Client
}

// NewICSSource creates a source for the given feed URL. A nil client falls
// back to a default with a conservative timeout.
func NewICSSource(feedURL string, client *http.Client) *ICSSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ICSSource{feedURL: feedURL, client: client}
}

func (s *ICSSource) Name() string {
	return "ics:" + s.feedURL
}

// ListEvents fetches and decodes the feed, keeping timed events whose start
// falls inside the window. Cancelled entries are dropped.
func (s *ICSSource) ListEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "BEGIN:VCALENDAR") {
		return nil, fmt.Errorf("feed is not iCalendar data")
	}

	decoder := ical.NewDecoder(strings.NewReader(string(body)))
	var events []Event
	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			ev, ok := parseComponent(comp)
			if !ok {
				continue
			}
			if ev.Start.Before(windowStart) || ev.Start.After(windowEnd) {
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

func parseComponent(comp *ical.Component) (Event, bool) {
	var ev Event
	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		ev.ID = prop.Value
	}
	if prop := comp.Props.Get(ical.PropSummary); prop != nil {
		ev.Title = prop.Value
	}
	if prop := comp.Props.Get(ical.PropDescription); prop != nil {
		ev.Description = prop.Value
	}
	if prop := comp.Props.Get(ical.PropLocation); prop != nil {
		ev.Location = prop.Value
	}
	if prop := comp.Props.Get(ical.PropStatus); prop != nil && prop.Value == "CANCELLED" {
		return Event{}, false
	}
	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			ev.Start = t
		}
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			ev.End = t
		}
	}
	if ev.ID == "" || ev.Start.IsZero() {
		return Event{}, false
	}
	return ev, true
}
