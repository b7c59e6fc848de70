// File path: internal/ledger/tracker_test.go
package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/crestlinecoaching/buildflow/internal/calendar"
)

func newTestTracker(t *testing.T, dedupDisabled bool) (*Tracker, *Store) {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(store, logger, dedupDisabled), store
}

func TestTrackerNewEvent(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	status := tracker.IsProcessed(context.Background(), baseEvent())
	if status.Processed || status.NeedsUpdate || status.Row != nil {
		t.Fatalf("unknown event reported as %+v, want all-zero status", status)
	}
}

func TestTrackerMarkThenProcessed(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	ctx := context.Background()
	ev := baseEvent()
	upd := Update{LeaderName: "Dana Reyes", Email: "dana@example.com", ArtifactID: "art-1", FolderID: "fold-1"}

	if err := tracker.MarkProcessed(ctx, ev, Phase1, upd, nil); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	status := tracker.IsProcessed(ctx, ev)
	if !status.Processed {
		t.Fatalf("marked event not reported processed: %+v", status)
	}
	if status.Row == nil || status.Row.ArtifactID != "art-1" {
		t.Fatalf("row not carried in status: %+v", status.Row)
	}
}

func TestTrackerStaleFingerprintReusesRow(t *testing.T) {
	tracker, store := newTestTracker(t, false)
	ctx := context.Background()
	ev := baseEvent()

	if err := tracker.MarkProcessed(ctx, ev, Phase1, Update{LeaderName: "Dana Reyes", Email: "dana@example.com", ArtifactID: "art-1"}, nil); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	original, err := store.GetByEventID(ctx, ev.ID)
	if err != nil || original == nil {
		t.Fatalf("read back row: rec=%v err=%v", original, err)
	}

	// Same event rescheduled: fingerprint no longer matches.
	moved := ev
	moved.Start = moved.Start.Add(2 * time.Hour)
	status := tracker.IsProcessed(ctx, moved)
	if status.Processed || !status.NeedsUpdate || status.Row == nil {
		t.Fatalf("rescheduled event status = %+v, want NeedsUpdate with row", status)
	}

	if err := tracker.MarkProcessed(ctx, moved, Phase1, Update{LeaderName: "Dana Reyes"}, status.Row); err != nil {
		t.Fatalf("remark processed: %v", err)
	}
	stats, err := tracker.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("row count after in-place update = %d, want 1", stats.Total)
	}
	updated, err := store.GetByEventID(ctx, ev.ID)
	if err != nil || updated == nil {
		t.Fatalf("read back updated row: rec=%v err=%v", updated, err)
	}
	if updated.RowID != original.RowID {
		t.Fatalf("row id changed on update: %s -> %s", original.RowID, updated.RowID)
	}
	if updated.Fingerprint != Fingerprint(moved) {
		t.Fatal("fingerprint not recomputed on update")
	}
	// Optional fields left empty in the update keep their prior values.
	if updated.ArtifactID != "art-1" || updated.Email != "dana@example.com" {
		t.Fatalf("empty optional fields overwrote stored values: %+v", updated)
	}
}

func TestTrackerDedupDisabled(t *testing.T) {
	tracker, _ := newTestTracker(t, true)
	ctx := context.Background()
	ev := baseEvent()
	if err := tracker.MarkProcessed(ctx, ev, Phase1, Update{LeaderName: "Dana Reyes", Email: "dana@example.com"}, nil); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	status := tracker.IsProcessed(ctx, ev)
	if status.Processed || status.NeedsUpdate {
		t.Fatalf("dedup-disabled tracker reported %+v, want unprocessed", status)
	}
}

func TestTrackerReadFailureTreatedAsUnprocessed(t *testing.T) {
	tracker, store := newTestTracker(t, false)
	store.Close()
	status := tracker.IsProcessed(context.Background(), baseEvent())
	if status.Processed || status.NeedsUpdate {
		t.Fatalf("broken store reported %+v, want unprocessed", status)
	}
}

func TestTrackerWriteFailureSurfaces(t *testing.T) {
	tracker, store := newTestTracker(t, false)
	store.Close()
	err := tracker.MarkProcessed(context.Background(), baseEvent(), Phase1, Update{}, nil)
	if err == nil {
		t.Fatal("mark against closed store succeeded, want error")
	}
}

func markEvent(t *testing.T, tracker *Tracker, id, leader, email, artifactID string) {
	t.Helper()
	ev := baseEvent()
	ev.ID = id
	if err := tracker.MarkProcessed(context.Background(), ev, Phase1, Update{
		LeaderName: leader,
		Email:      email,
		ArtifactID: artifactID,
	}, nil); err != nil {
		t.Fatalf("mark %s: %v", id, err)
	}
}

func TestFindByEmailSingleCandidate(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	markEvent(t, tracker, "evt-a", "Dana Reyes", "dana@example.com", "art-1")
	markEvent(t, tracker, "evt-b", "Dana Reyes", "dana@example.com", "") // no artifact: not a candidate

	rec := tracker.FindByEmail(context.Background(), "dana@example.com", "")
	if rec == nil || rec.ArtifactID != "art-1" {
		t.Fatalf("got %+v, want the single artifact-bearing row", rec)
	}
}

func TestFindByEmailCaseInsensitive(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	markEvent(t, tracker, "evt-a", "Dana Reyes", "Dana@Example.com", "art-1")
	rec := tracker.FindByEmail(context.Background(), "dana@example.com", "")
	if rec == nil {
		t.Fatal("case-differing address did not match")
	}
}

func TestFindByEmailNameDisambiguates(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	markEvent(t, tracker, "evt-a", "Dana Reyes", "office@example.com", "art-1")
	markEvent(t, tracker, "evt-b", "Sam Ortiz", "office@example.com", "art-2")

	rec := tracker.FindByEmail(context.Background(), "office@example.com", "sam ortiz")
	if rec == nil || rec.ArtifactID != "art-2" {
		t.Fatalf("got %+v, want the name-matched row", rec)
	}
}

func TestFindByEmailAmbiguousFallsBackToFirst(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	markEvent(t, tracker, "evt-a", "Dana Reyes", "office@example.com", "art-1")
	markEvent(t, tracker, "evt-b", "Sam Ortiz", "office@example.com", "art-2")

	// No usable name hint: the first candidate in ledger order wins.
	rec := tracker.FindByEmail(context.Background(), "office@example.com", "")
	if rec == nil || rec.ArtifactID != "art-1" {
		t.Fatalf("got %+v, want first candidate in ledger order", rec)
	}

	// A hint matching neither row also falls back rather than failing.
	rec = tracker.FindByEmail(context.Background(), "office@example.com", "Nobody Known")
	if rec == nil || rec.ArtifactID != "art-1" {
		t.Fatalf("got %+v, want first candidate for unmatched hint", rec)
	}
}

func TestFindByEmailNoCandidates(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	markEvent(t, tracker, "evt-a", "Dana Reyes", "dana@example.com", "")
	if rec := tracker.FindByEmail(context.Background(), "dana@example.com", ""); rec != nil {
		t.Fatalf("got %+v, want nil when no row carries an artifact", rec)
	}
}

func TestPruneOlderThan(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	ctx := context.Background()
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	old := baseEvent()
	old.ID = "evt-old"
	old.Start = fixed.AddDate(-2, 0, 0)
	recent := baseEvent()
	recent.ID = "evt-recent"
	recent.Start = fixed.AddDate(0, 0, -3)
	for _, ev := range []calendar.Event{old, recent} {
		if err := tracker.MarkProcessed(ctx, ev, Phase1, Update{LeaderName: "X", Email: "x@example.com"}, nil); err != nil {
			t.Fatalf("mark %s: %v", ev.ID, err)
		}
	}

	removed, err := tracker.PruneOlderThan(ctx, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	// Pruning again is a no-op.
	removed, err = tracker.PruneOlderThan(ctx, 365*24*time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("second prune removed=%d err=%v, want 0 and nil", removed, err)
	}
	stats, err := tracker.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("rows after prune = %d, want 1", stats.Total)
	}
}

func TestStatsAndReset(t *testing.T) {
	tracker, _ := newTestTracker(t, false)
	ctx := context.Background()

	stats, err := tracker.Stats(ctx)
	if err != nil {
		t.Fatalf("stats on empty ledger: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("empty ledger total = %d", stats.Total)
	}

	markEvent(t, tracker, "evt-a", "Dana Reyes", "dana@example.com", "art-1")
	p2 := baseEvent()
	p2.ID = "evt-b"
	if err := tracker.MarkProcessed(ctx, p2, Phase2, Update{LeaderName: "Dana Reyes", Email: "dana@example.com"}, nil); err != nil {
		t.Fatalf("mark phase 2: %v", err)
	}

	stats, err = tracker.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Phase1 != 1 || stats.Phase2 != 1 || stats.WithEmail != 2 || stats.WithArtifact != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if err := tracker.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	stats, err = tracker.Stats(ctx)
	if err != nil {
		t.Fatalf("stats after reset: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("rows after reset = %d, want 0", stats.Total)
	}
}
