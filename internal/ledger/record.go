// File path: internal/ledger/record.go
package ledger

import "time"

// Phase identifies which kind of coaching session a ledger row records.
type Phase string

const (
	Phase1 Phase = "PHASE_1"
	Phase2 Phase = "PHASE_2"
)

// Record is one ledger row: the durable evidence that a calendar event has
// been processed. Rows are keyed by an opaque row id so in-place updates
// can never touch an unrelated row; EventID is unique across the ledger.
type Record struct {
	RowID         string    `db:"row_id"`
	EventID       string    `db:"event_id"`
	Fingerprint   string    `db:"fingerprint"`
	Phase         Phase     `db:"phase"`
	LeaderName    string    `db:"leader_name"`
	Company       string    `db:"company"`
	Email         string    `db:"email"`
	ArtifactID    string    `db:"build_artifact_id"`
	FolderID      string    `db:"build_folder_id"`
	EventDate     time.Time `db:"event_date"`
	ProcessedAt   time.Time `db:"processed_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

// Update carries the fields a successful processing run wants recorded.
// Email, ArtifactID and FolderID are optional: a Phase 2 update that mints
// no new artifact leaves them empty and the existing values stand.
type Update struct {
	LeaderName string
	Company    string
	Email      string
	ArtifactID string
	FolderID   string
}

// Stats summarises the ledger contents for the admin surface.
type Stats struct {
	Total        int `json:"total"`
	Phase1       int `json:"phase1"`
	Phase2       int `json:"phase2"`
	WithEmail    int `json:"with_email"`
	WithArtifact int `json:"with_artifact"`
}
