// Package store provides SQLite-based compose usage statistics.
package store

import (
	"time"

	"composeim/internal/session"
)

// Run is one recorded compose run.
type Run struct {
	ID          int64
	TimestampNs int64
	Sequence    string
	Outcome     string
	Output      string
}

// Usage aggregates matched runs of one sequence.
type Usage struct {
	Sequence string
	Output   string
	Count    int64
	LastUsed time.Time
}

// Snapshot is a copy of session counters taken when a backend stops.
type Snapshot struct {
	ID          int64
	TimestampNs int64
	Backend     string
	Stats       session.Stats
}
