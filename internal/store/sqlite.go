package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"composeim/internal/session"
)

// Store is the SQLite usage store. It implements session.Recorder.
type Store struct {
	db *sql.DB
}

var _ session.Recorder = (*Store)(nil)

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the connection for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordCompose stores one finished compose run.
func (s *Store) RecordCompose(ev session.ComposeEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO compose_runs (timestamp_ns, sequence, outcome, output)
		VALUES (?, ?, ?, ?)`,
		ev.At.UnixNano(), ev.Sequence.String(), ev.Outcome.String(), ev.Text,
	)
	if err != nil {
		return fmt.Errorf("insert compose run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp_ns, sequence, outcome, output
		FROM compose_runs ORDER BY timestamp_ns DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.TimestampNs, &r.Sequence, &r.Outcome, &r.Output); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TopSequences returns matched sequences ordered by use count.
func (s *Store) TopSequences(limit int) ([]Usage, error) {
	rows, err := s.db.Query(`
		SELECT sequence, output, COUNT(*), MAX(timestamp_ns)
		FROM compose_runs
		WHERE outcome = 'matched'
		GROUP BY sequence, output
		ORDER BY COUNT(*) DESC, sequence ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var usage []Usage
	for rows.Next() {
		var u Usage
		var last int64
		if err := rows.Scan(&u.Sequence, &u.Output, &u.Count, &last); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		u.LastUsed = time.Unix(0, last)
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// OutcomeCounts returns the number of runs per outcome.
func (s *Store) OutcomeCounts() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM compose_runs GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Prune deletes runs older than before and returns how many were removed.
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM compose_runs WHERE timestamp_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// SaveSnapshot stores the counters of a stopping backend.
func (s *Store) SaveSnapshot(backend string, at time.Time, stats session.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO session_snapshots (timestamp_ns, backend, stats_json)
		VALUES (?, ?, ?)`,
		at.UnixNano(), backend, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of backend, or nil if none.
func (s *Store) LatestSnapshot(backend string) (*Snapshot, error) {
	var snap Snapshot
	var data string

	err := s.db.QueryRow(`
		SELECT id, timestamp_ns, backend, stats_json
		FROM session_snapshots WHERE backend = ?
		ORDER BY timestamp_ns DESC, id DESC LIMIT 1`, backend,
	).Scan(&snap.ID, &snap.TimestampNs, &snap.Backend, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &snap.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &snap, nil
}
