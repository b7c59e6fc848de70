// File path: internal/ledger/fingerprint.go
package ledger

import (
	"encoding/hex"
	"hash/fnv"
	"time"

	"github.com/crestlinecoaching/buildflow/internal/calendar"
)

// descriptionPrefixLen bounds how much of the description participates in
// the fingerprint. Booking descriptions carry trailing boilerplate that
// changes without affecting the session details.
const descriptionPrefixLen = 100

// Fingerprint derives a stable hash of an event's mutable details: time
// window, location and the leading slice of the description. A changed
// fingerprint is the sole signal that a recorded event needs reprocessing.
// FNV-1a/64 keeps accidental collisions rare; a collision only costs a
// silently skipped reprocess, not data loss.
func Fingerprint(ev calendar.Event) string {
	hasher := fnv.New64a()
	write := func(parts ...string) {
		for _, part := range parts {
			_, _ = hasher.Write([]byte(part))
			_, _ = hasher.Write([]byte{0})
		}
	}

	// Truncate on runes: a byte cut could split a multibyte character.
	desc := ev.Description
	if runes := []rune(desc); len(runes) > descriptionPrefixLen {
		desc = string(runes[:descriptionPrefixLen])
	}
	write(
		ev.Start.UTC().Format(time.RFC3339),
		ev.End.UTC().Format(time.RFC3339),
		ev.Location,
		desc,
	)
	return hex.EncodeToString(hasher.Sum(nil))
}
