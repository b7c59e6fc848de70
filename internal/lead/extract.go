// File path: internal/lead/extract.go
package lead

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/crestlinecoaching/buildflow/internal/calendar"
)

// Info is the lead detail extracted from a booked session. It is derived
// once per event and passed by value through the processing pipeline.
type Info struct {
	FirstName     string
	LastName      string
	FullName      string
	Email         string
	Company       string
	Phone         string
	FormattedDate string
	FormattedTime string
	ZoomLink      string
}

var (
	tagPattern = regexp.MustCompile(`<[^>]+>`)
	urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)
)

// Labels recognised in booking descriptions. Booking tools emit these as
// "Label: value" lines.
var fieldLabels = map[string]string{
	"first name":   "first",
	"last name":    "last",
	"name":         "full",
	"email":        "email",
	"company":      "company",
	"company name": "company",
	"phone":        "phone",
	"phone number": "phone",
}

// Extract derives lead info from an event. The email is required: an event
// without a plausible address is malformed and cannot be processed.
func Extract(ev calendar.Event) (Info, error) {
	info := Info{}
	fields := parseLabelledLines(ev.Description)

	info.FirstName = fields["first"]
	info.LastName = fields["last"]
	info.Email = fields["email"]
	info.Company = fields["company"]
	info.Phone = fields["phone"]

	if info.FirstName != "" || info.LastName != "" {
		info.FullName = strings.TrimSpace(info.FirstName + " " + info.LastName)
	} else if full := fields["full"]; full != "" {
		info.FullName = full
		parts := strings.Fields(full)
		if len(parts) > 0 {
			info.FirstName = parts[0]
			info.LastName = strings.Join(parts[1:], " ")
		}
	}

	if !ev.Start.IsZero() {
		info.FormattedDate = ev.Start.Format("January 2, 2006")
		info.FormattedTime = ev.Start.Format("3:04 PM MST")
	}
	info.ZoomLink = meetingLink(ev.Location, ev.Description)

	if info.Email == "" || !strings.Contains(info.Email, "@") {
		return Info{}, fmt.Errorf("no valid email in event %q", ev.ID)
	}
	if info.FullName == "" {
		return Info{}, fmt.Errorf("no leader name in event %q", ev.ID)
	}
	return info, nil
}

// LeaderKey normalises a full name into the deterministic identifier used
// to locate the leader's build artifact in storage.
func LeaderKey(fullName string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(fullName)), " ")
}

// parseLabelledLines reads "Label: value" lines out of a description that
// may contain HTML markup.
func parseLabelledLines(description string) map[string]string {
	text := tagPattern.ReplaceAllString(description, "\n")
	text = strings.NewReplacer("&amp;", "&", "&nbsp;", " ", "&lt;", "<", "&gt;", ">").Replace(text)

	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		key, ok := fieldLabels[label]
		if !ok || value == "" {
			continue
		}
		if _, exists := fields[key]; !exists {
			fields[key] = value
		}
	}
	return fields
}

func meetingLink(location, description string) string {
	for _, text := range []string{location, description} {
		if match := urlPattern.FindString(text); match != "" {
			return strings.TrimRight(match, ".,;")
		}
	}
	return ""
}
