// File path: internal/ledger/tracker.go
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crestlinecoaching/buildflow/internal/calendar"
)

// Status is the trichotomy that drives deduplication:
//   - new event:       Processed=false, NeedsUpdate=false, Row=nil
//   - fully done:      Processed=true,  NeedsUpdate=false, Row set
//   - details changed: Processed=false, NeedsUpdate=true,  Row set (reuse it)
type Status struct {
	Processed   bool
	NeedsUpdate bool
	Row         *Record
}

// Tracker is the processed-events ledger. It owns the only durable state of
// the core: which calendar events have been handled, and with which details.
type Tracker struct {
	store         *Store
	logger        *slog.Logger
	dedupDisabled bool
	now           func() time.Time
}

// NewTracker wraps a store. With dedupDisabled every event is reported as
// new, which forces full reprocessing on every run.
func NewTracker(store *Store, logger *slog.Logger, dedupDisabled bool) *Tracker {
	return &Tracker{
		store:         store,
		logger:        logger,
		dedupDisabled: dedupDisabled,
		now:           time.Now,
	}
}

// IsProcessed looks up the event and compares fingerprints. A backing-store
// read failure is reported as "not processed": over-processing is safe,
// silently skipping an event is not.
func (t *Tracker) IsProcessed(ctx context.Context, ev calendar.Event) Status {
	if t.dedupDisabled {
		return Status{}
	}
	rec, err := t.store.GetByEventID(ctx, ev.ID)
	if err != nil {
		t.logger.Warn("ledger: read failed, treating event as unprocessed",
			"event_id", ev.ID, "error", err)
		return Status{}
	}
	if rec == nil {
		return Status{}
	}
	if rec.Fingerprint == Fingerprint(ev) {
		return Status{Processed: true, Row: rec}
	}
	return Status{NeedsUpdate: true, Row: rec}
}

// MarkProcessed upserts the ledger row for a successfully processed event.
// When row is non-nil its fields are overwritten in place, reusing the same
// row id; otherwise a new row is appended. Optional fields in upd keep
// their previous values when empty. Write failures always surface: losing
// a record is worse than reprocessing.
func (t *Tracker) MarkProcessed(ctx context.Context, ev calendar.Event, phase Phase, upd Update, row *Record) error {
	now := t.now().UTC()
	if row != nil {
		rec := *row
		rec.EventID = ev.ID
		rec.Fingerprint = Fingerprint(ev)
		rec.Phase = phase
		rec.LeaderName = upd.LeaderName
		rec.Company = upd.Company
		rec.EventDate = ev.Start.UTC()
		rec.ProcessedAt = now
		rec.LastUpdatedAt = now
		if upd.Email != "" {
			rec.Email = upd.Email
		}
		if upd.ArtifactID != "" {
			rec.ArtifactID = upd.ArtifactID
		}
		if upd.FolderID != "" {
			rec.FolderID = upd.FolderID
		}
		return t.store.UpdateRow(ctx, &rec)
	}
	rec := Record{
		RowID:         uuid.NewString(),
		EventID:       ev.ID,
		Fingerprint:   Fingerprint(ev),
		Phase:         phase,
		LeaderName:    upd.LeaderName,
		Company:       upd.Company,
		Email:         upd.Email,
		ArtifactID:    upd.ArtifactID,
		FolderID:      upd.FolderID,
		EventDate:     ev.Start.UTC(),
		ProcessedAt:   now,
		LastUpdatedAt: now,
	}
	return t.store.Insert(ctx, &rec)
}

// FindByEmail resolves the build artifact recorded for an address. Email is
// a fast index, not a unique one: a shared company inbox or a re-booking
// can leave several rows on the same address. Candidates are the rows that
// actually carry an artifact id. With several candidates the leader name is
// a soft tie-breaker; if it does not narrow to exactly one, the first
// candidate in ledger order wins and the ambiguity is logged. This method
// never fails Phase 2 outright over ambiguity, and a backing-store read
// failure degrades to "not found" so the structural fallback can run.
func (t *Tracker) FindByEmail(ctx context.Context, email, leaderName string) *Record {
	recs, err := t.store.FindByEmail(ctx, email)
	if err != nil {
		t.logger.Warn("ledger: email lookup failed, treating as not found",
			"email", email, "error", err)
		return nil
	}
	candidates := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if rec.ArtifactID != "" {
			candidates = append(candidates, rec)
		}
	}
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return &candidates[0]
	}

	if name := strings.TrimSpace(leaderName); name != "" {
		var matched []Record
		for _, rec := range candidates {
			if strings.EqualFold(rec.LeaderName, name) {
				matched = append(matched, rec)
			}
		}
		if len(matched) == 1 {
			return &matched[0]
		}
	}
	t.logger.Warn("ledger: ambiguous email match, using first candidate",
		"email", email, "leader_hint", leaderName, "candidates", len(candidates),
		"chosen_event", candidates[0].EventID)
	return &candidates[0]
}

// PruneOlderThan removes rows whose event date is older than the retention
// horizon and reports how many were removed.
func (t *Tracker) PruneOlderThan(ctx context.Context, horizon time.Duration) (int64, error) {
	cutoff := t.now().Add(-horizon)
	removed, err := t.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		t.logger.Info("ledger: pruned aged rows", "removed", removed,
			"cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return removed, nil
}

// Stats aggregates ledger contents.
func (t *Tracker) Stats(ctx context.Context) (Stats, error) {
	return t.store.Stats(ctx)
}

// Reset wipes the ledger. Every known event becomes new again and will be
// reprocessed; exposed only through the explicit admin endpoint.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.store.Reset(ctx); err != nil {
		return err
	}
	t.logger.Warn("ledger: full reset performed")
	return nil
}
