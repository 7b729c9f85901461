package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"balscan/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 1000
)

// Repository is the cycle ledger backed by MySQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id VARCHAR(36) NOT NULL,
			mode VARCHAR(16) NOT NULL,
			started_at BIGINT NOT NULL,
			finished_at BIGINT NOT NULL,
			addresses INT UNSIGNED NOT NULL,
			batches INT UNSIGNED NOT NULL,
			failed_batches INT UNSIGNED NOT NULL,
			hits INT UNSIGNED NOT NULL,
			PRIMARY KEY (id),
			KEY cycles_started_idx (started_at)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	if err := ensureColumn(db, "cycles", "new_hits", "INT UNSIGNED NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := ensureColumn(db, "cycles", "emitted", "TINYINT(1) NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := ensureColumn(db, "cycles", "error", "TEXT NULL"); err != nil {
		return err
	}
	return nil
}

func ensureColumn(db *sql.DB, table, column, definition string) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`, table, column).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	_, err := db.Exec(stmt)
	return err
}

func (r *Repository) RecordCycle(ctx context.Context, summary domain.CycleSummary) error {
	ctx, span := startDBSpan(ctx, "mysql.RecordCycle", attribute.String("cycle.id", summary.ID))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO cycles (id, mode, started_at, finished_at, addresses, batches, failed_batches, hits, new_hits, emitted, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			finished_at = VALUES(finished_at),
			addresses = VALUES(addresses),
			batches = VALUES(batches),
			failed_batches = VALUES(failed_batches),
			hits = VALUES(hits),
			new_hits = VALUES(new_hits),
			emitted = VALUES(emitted),
			error = VALUES(error)`,
		summary.ID, summary.Mode, summary.StartedAt.UnixMilli(), summary.FinishedAt.UnixMilli(),
		summary.Addresses, summary.Batches, summary.FailedBatches, summary.Hits, summary.NewHits, summary.Emitted, summary.Error)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// RecentCycles returns the latest cycles, newest first.
func (r *Repository) RecentCycles(ctx context.Context, limit int) ([]domain.CycleSummary, error) {
	limit = normalizeRecentLimit(limit)
	ctx, span := startDBSpan(ctx, "mysql.RecentCycles", attribute.Int("limit", limit))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, mode, started_at, finished_at, addresses, batches, failed_batches, hits, new_hits, emitted, COALESCE(error, '')
		FROM cycles ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var cycles []domain.CycleSummary
	for rows.Next() {
		var s domain.CycleSummary
		var started, finished int64
		if err := rows.Scan(&s.ID, &s.Mode, &started, &finished, &s.Addresses, &s.Batches, &s.FailedBatches, &s.Hits, &s.NewHits, &s.Emitted, &s.Error); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started).UTC()
		s.FinishedAt = time.UnixMilli(finished).UTC()
		cycles = append(cycles, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
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

func normalizeRecentLimit(limit int) int {
	if limit <= 0 || limit > maxRecentLimit {
		return defaultRecentLimit
	}
	return limit
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("balscan/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
