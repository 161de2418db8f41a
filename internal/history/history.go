// Package history persists a record of every render in PostgreSQL.
//
// The table is created by [Migrate]. Recording is best effort from the
// caller's point of view: the render path logs a failed [Store.Record] and
// carries on.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by [Store.Get] when no render has the given id.
var ErrNotFound = errors.New("history: render not found")

// DefaultLimit is used by [Store.Recent] when limit is not positive.
const DefaultLimit = 50

// MaxLimit caps [Store.Recent].
const MaxLimit = 500

const ddlRenders = `
CREATE TABLE IF NOT EXISTS renders (
    id               UUID         PRIMARY KEY,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    success          BOOLEAN      NOT NULL,
    file_path        TEXT         NOT NULL DEFAULT '',
    language         TEXT         NOT NULL DEFAULT '',
    voice_type       TEXT         NOT NULL DEFAULT '',
    emotion          TEXT         NOT NULL DEFAULT '',
    speed            DOUBLE PRECISION NOT NULL DEFAULT 1,
    pitch            DOUBLE PRECISION NOT NULL DEFAULT 0,
    volume           DOUBLE PRECISION NOT NULL DEFAULT 0,
    audio_effect     TEXT         NOT NULL DEFAULT '',
    format           TEXT         NOT NULL DEFAULT '',
    duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    error            TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_renders_created_at
    ON renders (created_at DESC);
`

const selectColumns = `id, created_at, success, file_path, language, voice_type, emotion,
       speed, pitch, volume, audio_effect, format, duration_seconds, error`

// Entry is one row of the renders table.
type Entry struct {
	ID              uuid.UUID `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Success         bool      `json:"success"`
	FilePath        string    `json:"file_path,omitempty"`
	Language        string    `json:"language"`
	VoiceType       string    `json:"voice_type"`
	Emotion         string    `json:"emotion"`
	Speed           float64   `json:"speed"`
	Pitch           float64   `json:"pitch"`
	Volume          float64   `json:"volume"`
	AudioEffect     string    `json:"audio_effect"`
	Format          string    `json:"format"`
	DurationSeconds float64   `json:"duration_seconds"`
	Error           string    `json:"error,omitempty"`
}

// DB is the subset of [pgxpool.Pool] the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes render history. It is safe for concurrent use.
type Store struct {
	db   DB
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to the database at dsn, verifies the connection and runs
// [Migrate].
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	s := New(pool)
	s.pool = pool
	return s, nil
}

// New wraps an existing connection. The schema must already exist.
func New(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the renders table and its index if they do not exist.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, ddlRenders); err != nil {
		return fmt.Errorf("history: create renders table: %w", err)
	}
	return nil
}

// Record inserts e. A zero ID is replaced with a fresh UUID and a zero
// CreatedAt with the current time; the stored entry is returned.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	const q = `
		INSERT INTO renders
		    (id, created_at, success, file_path, language, voice_type, emotion,
		     speed, pitch, volume, audio_effect, format, duration_seconds, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.Exec(ctx, q,
		e.ID,
		e.CreatedAt,
		e.Success,
		e.FilePath,
		e.Language,
		e.VoiceType,
		e.Emotion,
		e.Speed,
		e.Pitch,
		e.Volume,
		e.AudioEffect,
		e.Format,
		e.DurationSeconds,
		e.Error,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("history: record: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	q := "SELECT " + selectColumns + "\nFROM renders\nORDER BY created_at DESC\nLIMIT $1"
	rows, err := s.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, fmt.Errorf("history: scan rows: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Get returns the entry with the given id or [ErrNotFound].
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	q := "SELECT " + selectColumns + "\nFROM renders\nWHERE id = $1"
	e, err := scanEntry(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return e, nil
}

// Ping checks the connection. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.db.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the pool opened by [Open]. It is a no-op for stores built
// with [New].
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID,
		&e.CreatedAt,
		&e.Success,
		&e.FilePath,
		&e.Language,
		&e.VoiceType,
		&e.Emotion,
		&e.Speed,
		&e.Pitch,
		&e.Volume,
		&e.AudioEffect,
		&e.Format,
		&e.DurationSeconds,
		&e.Error,
	)
	return e, err
}
