// File path: internal/notify/gmail.go
package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/crestlinecoaching/buildflow/internal/buildfile"
	"github.com/crestlinecoaching/buildflow/internal/calendar"
	"github.com/crestlinecoaching/buildflow/internal/lead"
)

// GmailNotifier sends admin notifications through the Gmail API using the
// authenticated account ("me").
type GmailNotifier struct {
	service     *gmail.Service
	adminEmail  string
	senderEmail string
}

// NewGmailNotifier builds a notifier from an authenticated HTTP client.
func NewGmailNotifier(ctx context.Context, httpClient *http.Client, adminEmail, senderEmail string) (*GmailNotifier, error) {
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailNotifier{service: service, adminEmail: adminEmail, senderEmail: senderEmail}, nil
}

func (n *GmailNotifier) NotifySuccess(ctx context.Context, info lead.Info, artifact *buildfile.Artifact) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Build file ready for %s (%s).\r\n\r\n", info.FullName, info.Email)
	if info.Company != "" {
		fmt.Fprintf(&b, "Company: %s\r\n", info.Company)
	}
	fmt.Fprintf(&b, "Session: %s at %s\r\n", info.FormattedDate, info.FormattedTime)
	if artifact != nil {
		fmt.Fprintf(&b, "File: https://docs.google.com/spreadsheets/d/%s\r\n", artifact.ID)
	}
	return n.send(ctx, "Session processed: "+info.FullName, b.String())
}

func (n *GmailNotifier) NotifyFailure(ctx context.Context, ev calendar.Event, info *lead.Info, cause error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to process event %q (%s).\r\n\r\nError: %v\r\n", ev.Title, ev.ID, cause)
	if info != nil {
		fmt.Fprintf(&b, "\r\nLeader: %s <%s>\r\n", info.FullName, info.Email)
	}
	return n.send(ctx, "Processing failure: "+ev.Title, b.String())
}

func (n *GmailNotifier) NotifyAdmin(ctx context.Context, subject, body string) error {
	return n.send(ctx, subject, body)
}

func (n *GmailNotifier) send(ctx context.Context, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.senderEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", n.adminEmail)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	raw := base64.URLEncoding.EncodeToString([]byte(msg.String()))
	_, err := n.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send notification %q: %w", subject, err)
	}
	return nil
}
