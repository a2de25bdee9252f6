package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/record"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"
)

type IngestRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewIngestRepository(db *Storage, log *slog.Logger) *IngestRepository {
	return &IngestRepository{
		db:  db,
		log: log.With(slog.String("component", "ingest_repository")),
	}
}

const itemColumns = `domain, id, payload, created_at, updated_at`

func scanItem(row pgx.Row) (*ingest.Item, error) {
	var (
		it      ingest.Item
		domain  string
		payload []byte
	)
	if err := row.Scan(&domain, &it.ID, &payload, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.Domain = record.Domain(domain)
	it.Payload = payload
	return &it, nil
}

func (r *IngestRepository) Create(ctx context.Context, item *ingest.Item, key string) (*ingest.Item, bool, error) {
	const query = `
		INSERT INTO items (domain, id, payload, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, NULLIF($4, ''), $5, $6)
		ON CONFLICT (domain, idempotency_key) DO NOTHING
		RETURNING ` + itemColumns

	created, err := scanItem(r.db.Pool().QueryRow(ctx, query,
		item.Domain.String(), item.ID, string(item.Payload), key, item.CreatedAt, item.UpdatedAt))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error("failed to insert item", slog.String("domain", item.Domain.String()), slog.String("error", err.Error()))
		return nil, false, fmt.Errorf("insert item: %w", err)
	}

	existing, err := scanItem(r.db.Pool().QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE domain = $1 AND idempotency_key = $2`,
		item.Domain.String(), key))
	if err != nil {
		return nil, false, fmt.Errorf("load replayed item: %w", err)
	}
	return existing, false, nil
}

func (r *IngestRepository) Get(ctx context.Context, d record.Domain, id string) (*ingest.Item, error) {
	it, err := scanItem(r.db.Pool().QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE domain = $1 AND id = $2`, d.String(), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", d, id, ingest.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

func (r *IngestRepository) Update(ctx context.Context, item *ingest.Item, key string) (*ingest.Item, bool, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if key != "" {
		tag, err := tx.Exec(ctx,
			`INSERT INTO applied_updates (domain, key, item_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			item.Domain.String(), key, item.ID)
		if err != nil {
			return nil, false, fmt.Errorf("record update key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			cur, err := r.Get(ctx, item.Domain, item.ID)
			return cur, false, err
		}
	}

	updated, err := scanItem(tx.QueryRow(ctx, `
		UPDATE items SET payload = $3::jsonb, updated_at = $4
		WHERE domain = $1 AND id = $2
		RETURNING `+itemColumns,
		item.Domain.String(), item.ID, string(item.Payload), item.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("%s %s: %w", item.Domain, item.ID, ingest.ErrNotFound)
	}
	if err != nil {
		return nil, false, fmt.Errorf("update item: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit update: %w", err)
	}
	return updated, true, nil
}

func (r *IngestRepository) ListSince(ctx context.Context, d record.Domain, since time.Time) ([]*ingest.Item, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE domain = $1 AND updated_at >= $2
		ORDER BY created_at ASC, id ASC`, d.String(), since)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*ingest.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *IngestRepository) Reference(ctx context.Context, key string) (json.RawMessage, error) {
	var value []byte
	err := r.db.Pool().QueryRow(ctx, `SELECT value FROM reference_data WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return json.RawMessage(`[]`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reference %s: %w", key, err)
	}
	return value, nil
}

func (r *IngestRepository) PutReference(ctx context.Context, key string, value json.RawMessage) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO reference_data (key, value, updated_at) VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("put reference %s: %w", key, err)
	}
	return nil
}
