package ingest

import (
	"context"
	"encoding/json"
	"time"

	"fieldsync/internal/domain/record"
)

// Repository persists items. An idempotency key is scoped to the item's domain.
type Repository interface {
	// Create stores item unless key was already used for its domain, in which case the earlier
	// item is returned with created=false.
	Create(ctx context.Context, item *Item, key string) (*Item, bool, error)
	Get(ctx context.Context, d record.Domain, id string) (*Item, error)
	// Update replaces the payload of an existing item. A key that was already applied leaves
	// the item untouched and returns applied=false.
	Update(ctx context.Context, item *Item, key string) (*Item, bool, error)
	ListSince(ctx context.Context, d record.Domain, since time.Time) ([]*Item, error)

	Reference(ctx context.Context, key string) (json.RawMessage, error)
	PutReference(ctx context.Context, key string, value json.RawMessage) error
}
