// File path: internal/calendar/google.go
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleSource reads booked sessions from a single Google calendar.
type GoogleSource struct {
	service    *gcal.Service
	calendarID string
}

// NewGoogleSource creates a calendar source using the provided authenticated
// HTTP client.
func NewGoogleSource(ctx context.Context, httpClient *http.Client, calendarID string) (*GoogleSource, error) {
	service, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleSource{service: service, calendarID: calendarID}, nil
}

func (s *GoogleSource) Name() string {
	return "google:" + s.calendarID
}

// ListEvents returns the events in the window. SingleEvents is set so
// recurring sessions are expanded into individual occurrences, each with a
// stable occurrence id.
func (s *GoogleSource) ListEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]Event, error) {
	list, err := s.service.Events.List(s.calendarID).
		TimeMin(windowStart.Format(time.RFC3339)).
		TimeMax(windowEnd.Format(time.RFC3339)).
		SingleEvents(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(list.Items))
	for _, item := range list.Items {
		ev := Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Location:    item.Location,
		}
		if item.Start != nil && item.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				ev.Start = t
			}
		}
		if item.End != nil && item.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				ev.End = t
			}
		}
		// All-day entries carry no session time and are never coaching
		// sessions; skip them.
		if ev.Start.IsZero() {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
