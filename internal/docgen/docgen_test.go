// File path: internal/docgen/docgen_test.go
package docgen

import (
	"strings"
	"testing"
)

func TestNames(t *testing.T) {
	gen, err := New()
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	names := gen.Names()
	want := []string{"debrief", "reminder", "welcome"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestGenerateWelcome(t *testing.T) {
	gen, err := New()
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	doc, err := gen.Generate("welcome", Fields{
		LeaderName:  "Dana Reyes",
		FirstName:   "Dana",
		SessionDate: "March 10, 2026",
		SessionTime: "3:30 PM UTC",
		MeetingLink: "https://zoom.us/j/1",
		LoginCode:   "ABC123",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Subject != "Welcome, Dana Reyes" {
		t.Errorf("subject = %q", doc.Subject)
	}
	for _, fragment := range []string{"Hi Dana", "March 10, 2026", "ABC123", "https://zoom.us/j/1"} {
		if !strings.Contains(doc.Body, fragment) {
			t.Errorf("body missing %q:\n%s", fragment, doc.Body)
		}
	}
}

func TestGenerateMissingFieldsRenderEmpty(t *testing.T) {
	gen, err := New()
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	doc, err := gen.Generate("reminder", Fields{FirstName: "Dana"})
	if err != nil {
		t.Fatalf("generate with sparse fields: %v", err)
	}
	if !strings.Contains(doc.Body, "Hi Dana") {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestGenerateUnknownTemplate(t *testing.T) {
	gen, err := New()
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	if _, err := gen.Generate("missing", Fields{}); err == nil {
		t.Fatal("unknown template accepted")
	}
}
