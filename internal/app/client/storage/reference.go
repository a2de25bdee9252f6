package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldsync/internal/domain/record"
)

// GetReference returns a cached reference value and the time it was stored.
func (s *SQLiteStorage) GetReference(ctx context.Context, key string) (json.RawMessage, time.Time, error) {
	var (
		value    string
		cachedAt int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT value, cached_at FROM reference_cache WHERE key = ?", key).
		Scan(&value, &cachedAt)
	if err != nil {
		return nil, time.Time{}, notFound(err, fmt.Sprintf("get reference %s", key))
	}
	return json.RawMessage(value), time.Unix(0, cachedAt).UTC(), nil
}

// PutReference replaces the value stored under key.
func (s *SQLiteStorage) PutReference(ctx context.Context, key string, value json.RawMessage, at time.Time) error {
	if !json.Valid(value) {
		return fmt.Errorf("%w: reference %s is not valid JSON", record.ErrInvalidPayload, key)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reference_cache (key, value, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, cached_at = excluded.cached_at`,
		key, string(value), at.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("put reference %s: %w", key, err)
	}
	return nil
}

// ReferenceKeys lists every cached key.
func (s *SQLiteStorage) ReferenceKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM reference_cache ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list reference keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan reference key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
