// File path: internal/notify/notify.go
package notify

import (
	"context"

	"github.com/crestlinecoaching/buildflow/internal/buildfile"
	"github.com/crestlinecoaching/buildflow/internal/calendar"
	"github.com/crestlinecoaching/buildflow/internal/lead"
)

// Notifier is the notification sink. Calls are fire-and-forget from the
// core's perspective; failures never abort the primary operation.
type Notifier interface {
	// NotifySuccess reports a freshly processed session to the admin.
	NotifySuccess(ctx context.Context, info lead.Info, artifact *buildfile.Artifact) error
	// NotifyFailure reports an event that could not be processed. info is
	// nil when extraction itself failed.
	NotifyFailure(ctx context.Context, ev calendar.Event, info *lead.Info, cause error) error
	// NotifyAdmin sends a free-form admin message (used by the payment
	// webhook).
	NotifyAdmin(ctx context.Context, subject, body string) error
}

// Noop discards all notifications. Used when email sending is disabled.
type Noop struct{}

func (Noop) NotifySuccess(context.Context, lead.Info, *buildfile.Artifact) error { return nil }
func (Noop) NotifyFailure(context.Context, calendar.Event, *lead.Info, error) error {
	return nil
}
func (Noop) NotifyAdmin(context.Context, string, string) error { return nil }
