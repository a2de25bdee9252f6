package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fieldsync/internal/domain/record"
)

const (
	metaLastSyncedAt    = "lastSyncedAt"
	metaAutoSyncEnabled = "autoSyncEnabled"
)

func metaKey(name string, d record.Domain) string {
	return name + ":" + d.String()
}

// GetMeta reads a sync metadata value. A missing key returns ok=false.
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM sync_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta upserts a sync metadata value.
func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.stamp())
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// LastSyncedAt returns the zero time when the domain has never completed a sync.
func (s *SQLiteStorage) LastSyncedAt(ctx context.Context, d record.Domain) (time.Time, error) {
	v, ok, err := s.GetMeta(ctx, metaKey(metaLastSyncedAt, d))
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", metaKey(metaLastSyncedAt, d), err)
	}
	return t, nil
}

func (s *SQLiteStorage) SetLastSyncedAt(ctx context.Context, d record.Domain, t time.Time) error {
	return s.SetMeta(ctx, metaKey(metaLastSyncedAt, d), t.UTC().Format(time.RFC3339Nano))
}

// AutoSyncEnabled defaults to true for domains that were never configured.
func (s *SQLiteStorage) AutoSyncEnabled(ctx context.Context, d record.Domain) (bool, error) {
	v, ok, err := s.GetMeta(ctx, metaKey(metaAutoSyncEnabled, d))
	if err != nil || !ok {
		return true, err
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true, fmt.Errorf("parse %s: %w", metaKey(metaAutoSyncEnabled, d), err)
	}
	return enabled, nil
}

func (s *SQLiteStorage) SetAutoSyncEnabled(ctx context.Context, d record.Domain, enabled bool) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.SetMeta(ctx, metaKey(metaAutoSyncEnabled, d), strconv.FormatBool(enabled))
}
