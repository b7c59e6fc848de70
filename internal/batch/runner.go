// File path: internal/batch/runner.go
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/crestlinecoaching/buildflow/internal/calendar"
	"github.com/crestlinecoaching/buildflow/internal/config"
	"github.com/crestlinecoaching/buildflow/internal/lead"
	"github.com/crestlinecoaching/buildflow/internal/ledger"
	"github.com/crestlinecoaching/buildflow/internal/notify"
	"github.com/crestlinecoaching/buildflow/internal/phase"
)

// ErrRunActive is returned when a run is requested while another is still
// in flight. Batches are strictly sequential; overlapping runs are outside
// the supported envelope.
var ErrRunActive = errors.New("a batch run is already active")

// Summary reports one batch run. Errored is kept distinct from the skip
// counters so operators can tell "nothing to do" from "something is broken".
type Summary struct {
	RunID            string    `json:"run_id"`
	Started          time.Time `json:"started"`
	Finished         time.Time `json:"finished"`
	Events           int       `json:"events"`
	Processed        int       `json:"processed"`
	AlreadyProcessed int       `json:"already_processed"`
	Skipped          int       `json:"skipped"`
	Errored          int       `json:"errored"`
	SourceFailures   int       `json:"source_failures"`
	Pruned           int64     `json:"pruned"`
}

// Runner pulls the monitoring window from all calendar sources and drives
// each event through the state machine, isolating per-event failures.
type Runner struct {
	cfg      config.Config
	sources  []calendar.Source
	machine  *phase.Machine
	tracker  *ledger.Tracker
	notifier notify.Notifier
	logger   *slog.Logger

	active atomic.Bool
	now    func() time.Time
}

// NewRunner wires a batch runner.
func NewRunner(cfg config.Config, sources []calendar.Source, machine *phase.Machine, tracker *ledger.Tracker, notifier notify.Notifier, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		sources:  sources,
		machine:  machine,
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one full batch to completion. A second concurrent call fails
// with ErrRunActive instead of racing the first.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.active.CompareAndSwap(false, true) {
		return Summary{}, ErrRunActive
	}
	defer r.active.Store(false)

	now := r.now()
	summary := Summary{RunID: uuid.NewString(), Started: now}
	windowStart := now.AddDate(0, 0, -r.cfg.LookbackDays)
	windowEnd := now.AddDate(0, 0, r.cfg.LookaheadDays)

	r.logger.Info("batch: run started", "run_id", summary.RunID,
		"window_start", windowStart.Format(time.RFC3339),
		"window_end", windowEnd.Format(time.RFC3339),
		"sources", len(r.sources))

	var events []calendar.Event
	for _, source := range r.sources {
		listed, err := source.ListEvents(ctx, windowStart, windowEnd)
		if err != nil {
			summary.SourceFailures++
			r.logger.Error("batch: source listing failed", "source", source.Name(), "error", err)
			continue
		}
		events = append(events, listed...)
	}
	summary.Events = len(events)

	for _, ev := range events {
		r.handleEvent(ctx, ev, &summary)
	}

	if r.cfg.PruneAfterRun {
		horizon := time.Duration(r.cfg.RetentionDays) * 24 * time.Hour
		pruned, err := r.tracker.PruneOlderThan(ctx, horizon)
		if err != nil {
			r.logger.Error("batch: retention prune failed", "error", err)
		} else {
			summary.Pruned = pruned
		}
	}

	summary.Finished = r.now()
	r.logger.Info("batch: run finished", "run_id", summary.RunID,
		"events", summary.Events,
		"processed", summary.Processed,
		"already_processed", summary.AlreadyProcessed,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
		"source_failures", summary.SourceFailures,
		"pruned", summary.Pruned)
	return summary, nil
}

// handleEvent processes one event independently: a failure is counted,
// reported and never aborts the batch.
func (r *Runner) handleEvent(ctx context.Context, ev calendar.Event, summary *Summary) {
	phaseKind, ok := r.machine.Classify(ev)
	if !ok {
		summary.Skipped++
		return
	}

	status := r.tracker.IsProcessed(ctx, ev)
	if status.Processed {
		summary.AlreadyProcessed++
		return
	}
	if status.NeedsUpdate {
		r.logger.Info("batch: event details changed, reprocessing",
			"event_id", ev.ID, "phase", phaseKind)
	}

	var (
		outcome *phase.Outcome
		err     error
	)
	switch phaseKind {
	case ledger.Phase1:
		outcome, err = r.machine.ProcessPhase1(ctx, ev)
	case ledger.Phase2:
		outcome, err = r.machine.ProcessPhase2(ctx, ev)
	}
	if err != nil {
		r.reportFailure(ctx, ev, outcome, err, summary)
		return
	}

	upd := ledger.Update{
		LeaderName: outcome.Info.FullName,
		Company:    outcome.Info.Company,
		Email:      outcome.Info.Email,
	}
	// Only Phase 1 mints artifacts; its rows carry the artifact location.
	if phaseKind == ledger.Phase1 && outcome.Artifact != nil {
		upd.ArtifactID = outcome.Artifact.ID
		upd.FolderID = outcome.Artifact.FolderID
	}
	if err := r.tracker.MarkProcessed(ctx, ev, phaseKind, upd, status.Row); err != nil {
		// The artifact work succeeded but the ledger write did not; the
		// event stays unrecorded and reprocesses next run.
		r.reportFailure(ctx, ev, outcome, err, summary)
		return
	}
	summary.Processed++

	if r.cfg.NotifySuccess {
		if nerr := r.notifier.NotifySuccess(ctx, outcome.Info, outcome.Artifact); nerr != nil {
			r.logger.Warn("batch: success notification failed", "event_id", ev.ID, "error", nerr)
		}
	}
}

func (r *Runner) reportFailure(ctx context.Context, ev calendar.Event, outcome *phase.Outcome, cause error, summary *Summary) {
	summary.Errored++
	r.logger.Error("batch: event processing failed",
		"event_id", ev.ID, "title", ev.Title, "error", cause)
	if !r.cfg.NotifyFailure {
		return
	}
	if nerr := r.notifier.NotifyFailure(ctx, ev, leadInfoOf(outcome), cause); nerr != nil {
		r.logger.Warn("batch: failure notification failed", "event_id", ev.ID, "error", nerr)
	}
}

// leadInfoOf extracts whatever lead info the failed transition produced,
// nil when extraction itself was the failure.
func leadInfoOf(outcome *phase.Outcome) *lead.Info {
	if outcome == nil {
		return nil
	}
	info := outcome.Info
	return &info
}
