package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNoMigrations = errors.New("store: no migrations to roll back")

// Migration represents a database schema migration.
type Migration struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	Up          string `json:"-"`
	Down        string `json:"-"`
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Compose runs",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
	{
		Version:     2,
		Description: "Session counter snapshots",
		Up:          migrationV2Up,
		Down:        migrationV2Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS compose_runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp_ns    INTEGER NOT NULL,
    sequence        TEXT NOT NULL,
    outcome         TEXT NOT NULL,
    output          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON compose_runs(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_runs_sequence ON compose_runs(outcome, sequence);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_runs_sequence;
DROP INDEX IF EXISTS idx_runs_timestamp;
DROP TABLE IF EXISTS compose_runs;
`

const migrationV2Up = `
CREATE TABLE IF NOT EXISTS session_snapshots (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp_ns    INTEGER NOT NULL,
    backend         TEXT NOT NULL,
    stats_json      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_backend ON session_snapshots(backend, timestamp_ns);
`

const migrationV2Down = `
DROP INDEX IF EXISTS idx_snapshots_backend;
DROP TABLE IF EXISTS session_snapshots;
`

// MigrateDB applies all pending migrations to the database.
func MigrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	currentVersion, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

// RollbackMigration rolls back the last applied migration. The next Open
// reapplies it; rolling back is for handing the file to an older build.
func RollbackMigration(db *sql.DB) error {
	currentVersion, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if currentVersion == 0 {
		return ErrNoMigrations
	}

	var migration *Migration
	for i := range migrations {
		if migrations[i].Version == currentVersion {
			migration = &migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.Exec(migration.Down); err != nil {
		tx.Rollback()
		return fmt.Errorf("rollback migration %d: %w", currentVersion, err)
	}

	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", currentVersion); err != nil {
		tx.Rollback()
		return fmt.Errorf("remove migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollback: %w", err)
	}

	return nil
}

// MigrationStatus reports applied and pending migrations.
type MigrationStatus struct {
	CurrentVersion int                `json:"current_version"`
	LatestVersion  int                `json:"latest_version"`
	Pending        []Migration        `json:"pending,omitempty"`
	Applied        []AppliedMigration `json:"applied,omitempty"`
}

type AppliedMigration struct {
	Version     int       `json:"version"`
	AppliedAt   time.Time `json:"applied_at"`
	Description string    `json:"description"`
}

// GetMigrationStatus returns the current migration status.
func GetMigrationStatus(db *sql.DB) (*MigrationStatus, error) {
	status := &MigrationStatus{
		LatestVersion: migrations[len(migrations)-1].Version,
	}

	rows, err := db.Query("SELECT version, applied_at, description FROM schema_migrations ORDER BY version")
	if err != nil {
		// Table might not exist yet
		status.Pending = migrations
		return status, nil
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var am AppliedMigration
		var appliedAt int64
		if err := rows.Scan(&am.Version, &appliedAt, &am.Description); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		am.AppliedAt = time.Unix(0, appliedAt)
		status.Applied = append(status.Applied, am)
		applied[am.Version] = true
		status.CurrentVersion = max(status.CurrentVersion, am.Version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		if !applied[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}

	return status, nil
}

// ValidateSchema checks that all expected tables exist.
func ValidateSchema(db *sql.DB) error {
	requiredTables := []string{
		"compose_runs",
		"session_snapshots",
		"schema_migrations",
	}

	for _, table := range requiredTables {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("missing required table: %s", table)
		}
	}

	return nil
}
