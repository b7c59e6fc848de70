// File path: internal/ledger/store.go
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var errNilStore = errors.New("ledger store not initialised")

// Store is the durable backing table for processed events, wrapping a
// pooled sqlx.DB connection to SQLite. The schema is migrated on open.
type Store struct {
	db *sqlx.DB
}

const busyTimeout = 5 * time.Second

// Open constructs a Store backed by the SQLite database at the given path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		abs, int(busyTimeout/time.Millisecond))
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), busyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureReady() error {
	if s == nil || s.db == nil {
		return errNilStore
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`CREATE TABLE IF NOT EXISTS processed_events (
                row_id TEXT PRIMARY KEY,
                event_id TEXT NOT NULL UNIQUE,
                fingerprint TEXT NOT NULL,
                phase TEXT NOT NULL,
                leader_name TEXT NOT NULL DEFAULT '',
                company TEXT NOT NULL DEFAULT '',
                email TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
                build_artifact_id TEXT NOT NULL DEFAULT '',
                build_folder_id TEXT NOT NULL DEFAULT '',
                event_date DATETIME NOT NULL,
                processed_at DATETIME NOT NULL,
                last_updated_at DATETIME NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_processed_events_email ON processed_events(email);`,
	`CREATE INDEX IF NOT EXISTS idx_processed_events_event_date ON processed_events(event_date);`,
}

// GetByEventID returns the row for an event id, or nil when none exists.
func (s *Store) GetByEventID(ctx context.Context, eventID string) (*Record, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var rec Record
	err := s.db.GetContext(ctx, &rec,
		`SELECT * FROM processed_events WHERE event_id = ?`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup event %s: %w", eventID, err)
	}
	return &rec, nil
}

// Insert appends a new ledger row.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `
                INSERT INTO processed_events (
                        row_id, event_id, fingerprint, phase, leader_name, company,
                        email, build_artifact_id, build_folder_id,
                        event_date, processed_at, last_updated_at
                ) VALUES (
                        :row_id, :event_id, :fingerprint, :phase, :leader_name, :company,
                        :email, :build_artifact_id, :build_folder_id,
                        :event_date, :processed_at, :last_updated_at
                )`, rec)
	if err != nil {
		return fmt.Errorf("insert ledger row for event %s: %w", rec.EventID, err)
	}
	return nil
}

// UpdateRow overwrites an existing row, addressed by its opaque row id.
func (s *Store) UpdateRow(ctx context.Context, rec *Record) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
                UPDATE processed_events SET
                        event_id = :event_id,
                        fingerprint = :fingerprint,
                        phase = :phase,
                        leader_name = :leader_name,
                        company = :company,
                        email = :email,
                        build_artifact_id = :build_artifact_id,
                        build_folder_id = :build_folder_id,
                        event_date = :event_date,
                        processed_at = :processed_at,
                        last_updated_at = :last_updated_at
                WHERE row_id = :row_id`, rec)
	if err != nil {
		return fmt.Errorf("update ledger row %s: %w", rec.RowID, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("update ledger row %s: row not found", rec.RowID)
	}
	return nil
}

// FindByEmail returns all rows matching the address, in ledger order. The
// email column collates case-insensitively.
func (s *Store) FindByEmail(ctx context.Context, email string) ([]Record, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var recs []Record
	err := s.db.SelectContext(ctx, &recs,
		`SELECT * FROM processed_events WHERE email = ? ORDER BY rowid`, email)
	if err != nil {
		return nil, fmt.Errorf("lookup email %s: %w", email, err)
	}
	return recs, nil
}

// DeleteOlderThan removes rows whose event date precedes the cutoff and
// reports how many were removed. A single ranged delete, so repeated calls
// are naturally idempotent and no row is skipped or revisited.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE event_date < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return affected, nil
}

// Reset removes every ledger row. Only the explicit admin reset uses this.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM processed_events`); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}

// Stats aggregates the ledger in one scan.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := s.ensureReady(); err != nil {
		return Stats{}, err
	}
	row := struct {
		Total        int `db:"total"`
		Phase1       int `db:"phase1"`
		Phase2       int `db:"phase2"`
		WithEmail    int `db:"with_email"`
		WithArtifact int `db:"with_artifact"`
	}{}
	err := s.db.GetContext(ctx, &row, `
                SELECT
                        COUNT(*) AS total,
                        COALESCE(SUM(CASE WHEN phase = ? THEN 1 ELSE 0 END), 0) AS phase1,
                        COALESCE(SUM(CASE WHEN phase = ? THEN 1 ELSE 0 END), 0) AS phase2,
                        COALESCE(SUM(CASE WHEN email != '' THEN 1 ELSE 0 END), 0) AS with_email,
                        COALESCE(SUM(CASE WHEN build_artifact_id != '' THEN 1 ELSE 0 END), 0) AS with_artifact
                FROM processed_events`, Phase1, Phase2)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	return Stats{
		Total:        row.Total,
		Phase1:       row.Phase1,
		Phase2:       row.Phase2,
		WithEmail:    row.WithEmail,
		WithArtifact: row.WithArtifact,
	}, nil
}
