package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldsync/internal/domain/record"
	"fieldsync/internal/infrastructure/migration"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"
)

//go:embed migrations/*.sql
var migrations embed.FS

const busyTimeoutMS = 5000

// SQLiteStorage is the durable local store. Every collection lives in one SQLite file.
type SQLiteStorage struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// Option configures SQLiteStorage.
type Option func(*SQLiteStorage)

// WithClock overrides the time source used for created/updated/synced stamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) {
		s.now = now
	}
}

// NewSQLiteStorage opens (creating if needed) the database at path and applies migrations.
func NewSQLiteStorage(path string, log *slog.Logger, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	if err := migration.NewMigration(migrations, "migrations", "sqlite3://"+path, nil).Up(); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate", path, busyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping local store: %w", err)
	}

	s := &SQLiteStorage{
		db:  db,
		log: log.With(slog.String("component", "storage")),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Wipe deletes every local record, cache entry and sync metadata key.
func (s *SQLiteStorage) Wipe(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wipe: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{"reference_cache", "sync_meta"}
	for _, d := range record.AllDomains() {
		tables = append(tables, d.Table())
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wipe: %w", err)
	}

	s.log.Info("offline data cleared")
	return nil
}

func (s *SQLiteStorage) stamp() int64 {
	return s.now().UTC().UnixNano()
}

func tableFor(d record.Domain) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d.Table(), nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, record.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
