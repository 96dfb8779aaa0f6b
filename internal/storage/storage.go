// Package storage persists accepted snapshots and emitted diffs to SQLite.
//
// The database is an embedded single file (or :memory: in tests) opened
// through database/sql with the modernc.org/sqlite driver. Snapshots are
// rotated so the history cannot grow unbounded; the most recent accepted
// snapshot can reseed the in-memory store after a restart.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	published_at TEXT NOT NULL,
	accepted_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_records (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	settlement_date TEXT NOT NULL,
	settlement_period INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	publish_time TEXT NOT NULL,
	indicated_imbalance REAL NOT NULL,
	PRIMARY KEY (snapshot_id, settlement_date, settlement_period)
);

CREATE TABLE IF NOT EXISTS diffs (
	id TEXT PRIMARY KEY,
	cycle INTEGER NOT NULL,
	same_date INTEGER NOT NULL,
	previous_published_at TEXT NOT NULL,
	new_published_at TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	entries TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_accepted_at ON snapshots(accepted_at);
CREATE INDEX IF NOT EXISTS idx_diffs_generated_at ON diffs(generated_at);
`

// Store provides SQLite-backed history of accepted snapshots and diffs.
type Store struct {
	db           *sql.DB
	maxSnapshots int
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. Pass ":memory:" for an ephemeral store.
func New(dbPath string, maxSnapshots int) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and is enough
	// for a single-writer process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, maxSnapshots: maxSnapshots}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot persists an accepted snapshot and its records, then rotates
// history beyond the configured maximum.
func (s *Store) SaveSnapshot(snap models.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO snapshots (id, published_at, accepted_at) VALUES (?, ?, ?)`,
		snap.ID, formatTime(snap.PublishedAt), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	for _, rec := range snap.Records {
		_, err = tx.Exec(
			`INSERT INTO snapshot_records
				(snapshot_id, settlement_date, settlement_period, start_time, publish_time, indicated_imbalance)
			VALUES (?, ?, ?, ?, ?, ?)`,
			snap.ID, rec.SettlementDate, rec.SettlementPeriod,
			formatTime(rec.StartTime), formatTime(rec.PublishTime), rec.Value(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := s.rotate(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// rotate deletes all but the most recently accepted snapshots.
func (s *Store) rotate(tx *sql.Tx) error {
	const keep = `SELECT id FROM snapshots ORDER BY accepted_at DESC, id DESC LIMIT ?`

	if _, err := tx.Exec(
		`DELETE FROM snapshot_records WHERE snapshot_id NOT IN (`+keep+`)`,
		s.maxSnapshots,
	); err != nil {
		return fmt.Errorf("failed to rotate records: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM snapshots WHERE id NOT IN (`+keep+`)`,
		s.maxSnapshots,
	); err != nil {
		return fmt.Errorf("failed to rotate snapshots: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently accepted snapshot, or ok=false
// when the history is empty.
func (s *Store) LatestSnapshot() (models.Snapshot, bool, error) {
	var (
		snap        models.Snapshot
		publishedAt string
	)
	err := s.db.QueryRow(
		`SELECT id, published_at FROM snapshots ORDER BY accepted_at DESC, id DESC LIMIT 1`,
	).Scan(&snap.ID, &publishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, false, nil
	}
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("failed to query snapshot: %w", err)
	}
	if snap.PublishedAt, err = parseTime(publishedAt); err != nil {
		return models.Snapshot{}, false, err
	}

	rows, err := s.db.Query(
		`SELECT settlement_date, settlement_period, start_time, publish_time, indicated_imbalance
		FROM snapshot_records WHERE snapshot_id = ?
		ORDER BY settlement_date, settlement_period`,
		snap.ID,
	)
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec                    models.Record
			startTime, publishTime string
			value                  float64
		)
		if err := rows.Scan(&rec.SettlementDate, &rec.SettlementPeriod, &startTime, &publishTime, &value); err != nil {
			return models.Snapshot{}, false, fmt.Errorf("failed to scan record: %w", err)
		}
		if rec.StartTime, err = parseTime(startTime); err != nil {
			return models.Snapshot{}, false, err
		}
		if rec.PublishTime, err = parseTime(publishTime); err != nil {
			return models.Snapshot{}, false, err
		}
		rec.IndicatedImbalance = &value
		snap.Records = append(snap.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("failed to read records: %w", err)
	}

	return snap, true, nil
}

// SaveDiff persists an emitted diff. Entries are stored as a JSON blob; they
// are read back only for inspection, never joined against.
func (s *Store) SaveDiff(d models.Diff) error {
	entries, err := json.Marshal(d.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal diff entries: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO diffs (id, cycle, same_date, previous_published_at, new_published_at, generated_at, entries)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Cycle, boolToInt(d.SameDate),
		formatTime(d.PreviousPublishedAt), formatTime(d.NewPublishedAt),
		formatTime(d.GeneratedAt), string(entries),
	)
	if err != nil {
		return fmt.Errorf("failed to insert diff: %w", err)
	}
	return nil
}

// RecentDiffs returns up to n diffs, newest first.
func (s *Store) RecentDiffs(n int) ([]models.Diff, error) {
	rows, err := s.db.Query(
		`SELECT id, cycle, same_date, previous_published_at, new_published_at, generated_at, entries
		FROM diffs ORDER BY generated_at DESC, id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query diffs: %w", err)
	}
	defer rows.Close()

	var diffs []models.Diff
	for rows.Next() {
		var d models.Diff
		var sameDate int
		var prevPub, newPub, generated, entries string
		if err := rows.Scan(&d.ID, &d.Cycle, &sameDate, &prevPub, &newPub, &generated, &entries); err != nil {
			return nil, fmt.Errorf("failed to scan diff: %w", err)
		}
		d.SameDate = sameDate != 0
		if d.PreviousPublishedAt, err = parseTime(prevPub); err != nil {
			return nil, err
		}
		if d.NewPublishedAt, err = parseTime(newPub); err != nil {
			return nil, err
		}
		if d.GeneratedAt, err = parseTime(generated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(entries), &d.Entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diff entries: %w", err)
		}
		diffs = append(diffs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diffs: %w", err)
	}

	return diffs, nil
}

// Times are stored as RFC3339Nano UTC text to stay independent of driver
// time handling.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
