package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"balscan/internal/domain"

	_ "modernc.org/sqlite"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 1000
)

// Repository is the cycle ledger backed by an embedded SQLite file.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			addresses INTEGER NOT NULL,
			batches INTEGER NOT NULL,
			failed_batches INTEGER NOT NULL,
			hits INTEGER NOT NULL,
			new_hits INTEGER NOT NULL,
			emitted INTEGER NOT NULL,
			error TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS cycles_started_idx ON cycles (started_at)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) RecordCycle(ctx context.Context, summary domain.CycleSummary) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	emitted := 0
	if summary.Emitted {
		emitted = 1
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO cycles (id, mode, started_at, finished_at, addresses, batches, failed_batches, hits, new_hits, emitted, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			addresses = excluded.addresses,
			batches = excluded.batches,
			failed_batches = excluded.failed_batches,
			hits = excluded.hits,
			new_hits = excluded.new_hits,
			emitted = excluded.emitted,
			error = excluded.error`,
		summary.ID, summary.Mode, summary.StartedAt.UnixMilli(), summary.FinishedAt.UnixMilli(),
		summary.Addresses, summary.Batches, summary.FailedBatches, summary.Hits, summary.NewHits, emitted, summary.Error)
	return err
}

// RecentCycles returns the latest cycles, newest first.
func (r *Repository) RecentCycles(ctx context.Context, limit int) ([]domain.CycleSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > maxRecentLimit {
		limit = defaultRecentLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, mode, started_at, finished_at, addresses, batches, failed_batches, hits, new_hits, emitted, error
		FROM cycles ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []domain.CycleSummary
	for rows.Next() {
		var s domain.CycleSummary
		var started, finished int64
		var emitted int
		if err := rows.Scan(&s.ID, &s.Mode, &started, &finished, &s.Addresses, &s.Batches, &s.FailedBatches, &s.Hits, &s.NewHits, &emitted, &s.Error); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started).UTC()
		s.FinishedAt = time.UnixMilli(finished).UTC()
		s.Emitted = emitted != 0
		cycles = append(cycles, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
