// File path: internal/ledger/fingerprint_test.go
package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/crestlinecoaching/buildflow/internal/calendar"
)

func baseEvent() calendar.Event {
	return calendar.Event{
		ID:          "evt-1",
		Title:       "Phase 1 Kickoff",
		Description: "Name: Dana Reyes\nEmail: dana@example.com",
		Location:    "https://zoom.us/j/123",
		Start:       time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC),
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	if Fingerprint(baseEvent()) != Fingerprint(baseEvent()) {
		t.Fatal("identical events produced different fingerprints")
	}
}

func TestFingerprintSensitiveToSchedulingFields(t *testing.T) {
	original := Fingerprint(baseEvent())

	moved := baseEvent()
	moved.Start = moved.Start.Add(time.Hour)
	if Fingerprint(moved) == original {
		t.Error("start change not reflected in fingerprint")
	}

	relocated := baseEvent()
	relocated.Location = "https://meet.google.com/abc"
	if Fingerprint(relocated) == original {
		t.Error("location change not reflected in fingerprint")
	}

	reworded := baseEvent()
	reworded.Description = "Name: Someone Else\nEmail: other@example.com"
	if Fingerprint(reworded) == original {
		t.Error("description change not reflected in fingerprint")
	}
}

func TestFingerprintIgnoresDescriptionTail(t *testing.T) {
	prefix := strings.Repeat("a", 100)
	first := baseEvent()
	first.Description = prefix + "tail one"
	second := baseEvent()
	second.Description = prefix + "completely different tail"
	if Fingerprint(first) != Fingerprint(second) {
		t.Fatal("fingerprint varied on description content past the prefix")
	}
}

func TestFingerprintPrefixCountsRunes(t *testing.T) {
	// 98 ASCII runes plus a two-byte rune: the 100th rune sits past the
	// 100-byte mark, so a byte-based cut would drop it.
	prefix := strings.Repeat("a", 98) + "é"
	first := baseEvent()
	first.Description = prefix + "X"
	second := baseEvent()
	second.Description = prefix + "Y"
	if Fingerprint(first) == Fingerprint(second) {
		t.Fatal("change in the 100th rune of the description not reflected in fingerprint")
	}

	multibyte := strings.Repeat("ü", 100)
	third := baseEvent()
	third.Description = multibyte + "tail one"
	fourth := baseEvent()
	fourth.Description = multibyte + "another tail"
	if Fingerprint(third) != Fingerprint(fourth) {
		t.Fatal("fingerprint varied on content past a 100-rune multibyte prefix")
	}
}

func TestFingerprintTitleChangesIgnored(t *testing.T) {
	renamed := baseEvent()
	renamed.Title = "Renamed meeting"
	if Fingerprint(renamed) != Fingerprint(baseEvent()) {
		t.Fatal("title change altered fingerprint; only scheduling fields should")
	}
}
