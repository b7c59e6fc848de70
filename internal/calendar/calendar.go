// File path: internal/calendar/calendar.go
package calendar

import (
	"context"
	"time"
)

// Event is the read-only view of a booked session the processing core
// consumes. IDs are stable and unique per source occurrence.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Source produces the events booked within a time window.
type Source interface {
	// Name identifies the source in logs and summaries.
	Name() string
	ListEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]Event, error)
}
