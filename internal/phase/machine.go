// File path: internal/phase/machine.go
package phase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crestlinecoaching/buildflow/internal/assessment"
	"github.com/crestlinecoaching/buildflow/internal/buildfile"
	"github.com/crestlinecoaching/buildflow/internal/calendar"
	"github.com/crestlinecoaching/buildflow/internal/config"
	"github.com/crestlinecoaching/buildflow/internal/lead"
	"github.com/crestlinecoaching/buildflow/internal/ledger"
)

// Outcome is what a successful transition hands back for ledger recording.
type Outcome struct {
	Info lead.Info
	// Artifact is the build file the transition touched. Phase 2 resolves
	// an existing artifact; only Phase 1 can mint one.
	Artifact *buildfile.Artifact
	// Created reports whether this run minted the artifact (and therefore
	// its login code).
	Created bool
}

// Machine classifies events and drives the idempotent create-or-update
// workflow for both session phases. It owns the decision of whether and how
// to call the external collaborators.
type Machine struct {
	cfg     config.Config
	builds  buildfile.Store
	links   assessment.Client
	tracker *ledger.Tracker
	logger  *slog.Logger
}

// NewMachine wires a state machine.
func NewMachine(cfg config.Config, builds buildfile.Store, links assessment.Client, tracker *ledger.Tracker, logger *slog.Logger) *Machine {
	return &Machine{cfg: cfg, builds: builds, links: links, tracker: tracker, logger: logger}
}

// Classify matches the event description against the two keyword sets.
// Phase 1 is checked first: an event whose text somehow matches both sets
// classifies as Phase 1. Unmatched events report ok=false and are skipped.
func (m *Machine) Classify(ev calendar.Event) (ledger.Phase, bool) {
	text := strings.ToLower(ev.Description)
	for _, kw := range m.cfg.Phase1Keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return ledger.Phase1, true
		}
	}
	for _, kw := range m.cfg.Phase2Keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return ledger.Phase2, true
		}
	}
	return "", false
}

// ProcessPhase1 runs the Phase 1 transition: create or update the leader's
// build artifact. The assessment link is minted only when the artifact is
// first created; an existing artifact's login code is never regenerated,
// since the link already sent to the client would be invalidated.
func (m *Machine) ProcessPhase1(ctx context.Context, ev calendar.Event) (*Outcome, error) {
	info, err := lead.Extract(ev)
	if err != nil {
		return nil, &ExtractionError{EventID: ev.ID, Err: err}
	}
	key := lead.LeaderKey(info.FullName)

	artifact, err := m.builds.FindArtifact(ctx, key, info.Company)
	if err != nil {
		return &Outcome{Info: info}, fmt.Errorf("locate artifact for %s: %w", key, err)
	}

	created := false
	if artifact == nil {
		artifact, err = m.builds.CreateArtifact(ctx, key, info.Company)
		if err != nil {
			return &Outcome{Info: info}, &ArtifactCreationError{LeaderKey: key, Err: err}
		}
		created = true
		m.logger.Info("phase: created build artifact", "leader", key, "artifact_id", artifact.ID)
	}

	layout := m.cfg.Layout.Phase1
	if err := m.writeSessionFields(ctx, artifact.ID, layout, info); err != nil {
		return &Outcome{Info: info}, err
	}

	if created {
		link, err := m.links.CreateLink(ctx, info)
		if err != nil {
			return &Outcome{Info: info}, &LinkGenerationError{LeaderKey: key, Err: err}
		}
		if err := m.builds.SetField(ctx, artifact.ID, layout.Sheet, layout.LoginCodeCell, link.LoginCode); err != nil {
			return &Outcome{Info: info}, fmt.Errorf("store login code for %s: %w", key, err)
		}
		if m.cfg.StoreResponseURL && layout.ResponseURLCell != "" {
			if err := m.builds.SetField(ctx, artifact.ID, layout.Sheet, layout.ResponseURLCell, link.ResponseURL); err != nil {
				return &Outcome{Info: info}, fmt.Errorf("store response url for %s: %w", key, err)
			}
		}
		// The Phase 2 section carries a copy of the code for the debrief
		// call; its absence there is recoverable, so this write is
		// best-effort.
		p2 := m.cfg.Layout.Phase2
		nonCritical(m.logger, "propagate login code", func() error {
			return m.builds.SetField(ctx, artifact.ID, p2.Sheet, p2.LoginCodeCell, link.LoginCode)
		})
		m.logger.Info("phase: assessment link minted", "leader", key)
	}

	if err := m.validatePhase1(ctx, artifact.ID, layout); err != nil {
		return &Outcome{Info: info}, err
	}
	return &Outcome{Info: info, Artifact: artifact, Created: created}, nil
}

// ProcessPhase2 runs the Phase 2 transition: resolve the artifact minted by
// the matching Phase 1 session and update its debrief fields. Resolution is
// two-tier: the ledger email index first, then the structural folder search.
func (m *Machine) ProcessPhase2(ctx context.Context, ev calendar.Event) (*Outcome, error) {
	info, err := lead.Extract(ev)
	if err != nil {
		return nil, &ExtractionError{EventID: ev.ID, Err: err}
	}
	key := lead.LeaderKey(info.FullName)

	var artifact *buildfile.Artifact
	if rec := m.tracker.FindByEmail(ctx, info.Email, info.FullName); rec != nil && rec.ArtifactID != "" {
		artifact, err = m.builds.ArtifactByID(ctx, rec.ArtifactID)
		if err != nil {
			return &Outcome{Info: info}, fmt.Errorf("fetch recorded artifact %s: %w", rec.ArtifactID, err)
		}
		if artifact == nil {
			m.logger.Warn("phase: recorded artifact id is stale, falling back to structural search",
				"leader", key, "artifact_id", rec.ArtifactID)
		}
	}
	if artifact == nil {
		artifact, err = m.builds.FindArtifact(ctx, key, info.Company)
		if err != nil {
			return &Outcome{Info: info}, fmt.Errorf("structural search for %s: %w", key, err)
		}
	}
	if artifact == nil {
		return &Outcome{Info: info}, &ArtifactNotFoundError{LeaderKey: key, Email: info.Email}
	}

	layout := m.cfg.Layout.Phase2
	if err := m.writeSessionFields(ctx, artifact.ID, layout, info); err != nil {
		return &Outcome{Info: info}, err
	}

	// Keep the debrief section's copy of the login code in sync with the
	// Phase 1 section.
	p1 := m.cfg.Layout.Phase1
	nonCritical(m.logger, "copy login code", func() error {
		code, err := m.builds.GetField(ctx, artifact.ID, p1.Sheet, p1.LoginCodeCell)
		if err != nil {
			return err
		}
		if code == "" {
			return nil
		}
		return m.builds.SetField(ctx, artifact.ID, layout.Sheet, layout.LoginCodeCell, code)
	})

	return &Outcome{Info: info, Artifact: artifact}, nil
}

// writeSessionFields updates the mutable session fields of one section:
// date, time, leader name, meeting link.
func (m *Machine) writeSessionFields(ctx context.Context, artifactID string, layout config.SectionLayout, info lead.Info) error {
	for _, field := range []struct {
		cell  string
		value string
	}{
		{layout.DateCell, info.FormattedDate},
		{layout.TimeCell, info.FormattedTime},
		{layout.LeaderCell, info.FullName},
		{layout.MeetingLinkCell, info.ZoomLink},
	} {
		if field.cell == "" {
			continue
		}
		if err := m.builds.SetField(ctx, artifactID, layout.Sheet, field.cell, field.value); err != nil {
			return err
		}
	}
	return nil
}

// validatePhase1 re-reads the critical fields after all writes. An empty
// critical field fails the whole operation so the ledger never records
// "processed" for an artifact Phase 2 could not complete against.
func (m *Machine) validatePhase1(ctx context.Context, artifactID string, layout config.SectionLayout) error {
	for _, field := range []struct {
		name string
		cell string
	}{
		{"date", layout.DateCell},
		{"time", layout.TimeCell},
		{"leader", layout.LeaderCell},
		{"meeting link", layout.MeetingLinkCell},
		{"login code", layout.LoginCodeCell},
	} {
		value, err := m.builds.GetField(ctx, artifactID, layout.Sheet, field.cell)
		if err != nil {
			return fmt.Errorf("validate %s: %w", field.name, err)
		}
		if strings.TrimSpace(value) == "" {
			return &ValidationError{ArtifactID: artifactID, Field: field.name}
		}
	}
	return nil
}
