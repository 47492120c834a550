package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Schema creates the tables used by SQLStore.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            UUID PRIMARY KEY,
	start_time    TIMESTAMPTZ NOT NULL,
	end_time      TIMESTAMPTZ NOT NULL,
	focus_ms      BIGINT NOT NULL,
	distracted_ms BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);

CREATE TABLE IF NOT EXISTS daily_stats (
	date                TEXT PRIMARY KEY,
	total_focus_ms      BIGINT NOT NULL DEFAULT 0,
	total_distracted_ms BIGINT NOT NULL DEFAULT 0,
	session_count       INTEGER NOT NULL DEFAULT 0,
	longest_focus_ms    BIGINT NOT NULL DEFAULT 0,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const (
	insertSessionQuery = `INSERT INTO sessions (id, start_time, end_time, focus_ms, distracted_ms) VALUES ($1, $2, $3, $4, $5)`

	upsertDailyQuery = `INSERT INTO daily_stats (date, total_focus_ms, total_distracted_ms, session_count, longest_focus_ms)
		VALUES ($1, $2, $3, 1, $2)
		ON CONFLICT (date) DO UPDATE SET
			total_focus_ms = daily_stats.total_focus_ms + EXCLUDED.total_focus_ms,
			total_distracted_ms = daily_stats.total_distracted_ms + EXCLUDED.total_distracted_ms,
			session_count = daily_stats.session_count + 1,
			longest_focus_ms = GREATEST(daily_stats.longest_focus_ms, EXCLUDED.longest_focus_ms),
			updated_at = now()`

	selectDailyColumns = `SELECT date, total_focus_ms, total_distracted_ms, session_count, longest_focus_ms FROM daily_stats`
)

// SQLStore keeps statistics in Postgres.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQL connects to Postgres and creates the schema.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Migrate creates the tables if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// RecordSession implements Store.
func (s *SQLStore) RecordSession(ctx context.Context, sess Session) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertSessionQuery,
		sess.ID, sess.Start, sess.End, sess.FocusMs, sess.DistractedMs,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, upsertDailyQuery,
		sess.Date(), sess.FocusMs, sess.DistractedMs,
	); err != nil {
		return fmt.Errorf("update daily stats: %w", err)
	}

	return tx.Commit()
}

// Today implements Store.
func (s *SQLStore) Today(ctx context.Context) (DailyStats, error) {
	return s.ByDate(ctx, Today(s.now()))
}

// ByDate implements Store.
func (s *SQLStore) ByDate(ctx context.Context, date string) (DailyStats, error) {
	var day DailyStats
	err := s.db.GetContext(ctx, &day, selectDailyColumns+` WHERE date = $1`, date)
	if errors.Is(err, sql.ErrNoRows) {
		return DailyStats{}, ErrNotFound
	}
	if err != nil {
		return DailyStats{}, fmt.Errorf("query daily stats: %w", err)
	}
	return day, nil
}

// Recent implements Store.
func (s *SQLStore) Recent(ctx context.Context, days int) ([]DailyStats, error) {
	out := []DailyStats{}
	if err := s.db.SelectContext(ctx, &out, selectDailyColumns+` ORDER BY date DESC LIMIT $1`, days); err != nil {
		return nil, fmt.Errorf("query recent stats: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
