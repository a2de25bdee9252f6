package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/record"
	"fieldsync/internal/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func item(id string, at time.Time) *ingest.Item {
	return &ingest.Item{
		ID:        id,
		Domain:    record.DomainSiteLogs,
		Payload:   json.RawMessage(`{"status":"ok"}`),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestStorage_CreateIsIdempotentPerKey(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, created, err := s.Create(ctx, item("a", t0), "local-1")
	require.NoError(t, err)
	assert.True(t, created)

	replay, created, err := s.Create(ctx, item("b", t0), "local-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replay.ID)

	other := item("c", t0)
	other.Domain = record.DomainAttendance
	_, created, err = s.Create(ctx, other, "local-1")
	require.NoError(t, err)
	assert.True(t, created, "keys are scoped per domain")

	_, err = s.Get(ctx, record.DomainSiteLogs, "b")
	assert.ErrorIs(t, err, ingest.ErrNotFound)
}

func TestStorage_UpdateAppliesKeyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _, err := s.Create(ctx, item("a", t0), "")
	require.NoError(t, err)

	upd := item("a", t0.Add(time.Hour))
	upd.Payload = json.RawMessage(`{"status":"critical"}`)
	got, applied, err := s.Update(ctx, upd, "upd-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.JSONEq(t, `{"status":"critical"}`, string(got.Payload))

	again := item("a", t0.Add(2*time.Hour))
	again.Payload = json.RawMessage(`{"status":"attention"}`)
	got, applied, err = s.Update(ctx, again, "upd-1")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.JSONEq(t, `{"status":"critical"}`, string(got.Payload))

	_, _, err = s.Update(ctx, item("zzz", t0), "")
	assert.ErrorIs(t, err, ingest.ErrNotFound)
}

func TestStorage_ListSince(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i, id := range []string{"old", "mid", "new"} {
		_, _, err := s.Create(ctx, item(id, t0.Add(time.Duration(i)*24*time.Hour)), "")
		require.NoError(t, err)
	}

	items, err := s.ListSince(ctx, record.DomainSiteLogs, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "mid", items[0].ID)
	assert.Equal(t, "new", items[1].ID)

	items, err = s.ListSince(ctx, record.DomainAttendance, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStorage_Reference(t *testing.T) {
	s := New()
	ctx := context.Background()

	v, err := s.Reference(ctx, "sites")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(v))

	require.NoError(t, s.PutReference(ctx, "sites", json.RawMessage(`[{"id":"site-1"}]`)))
	v, err = s.Reference(ctx, "sites")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"site-1"}]`, string(v))

	assert.Error(t, s.PutReference(ctx, "sites", json.RawMessage(`{`)))
}

func TestStorage_Sessions(t *testing.T) {
	repo := New().Sessions()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "tablet-7", "hash", t0.Add(time.Hour)))

	device, err := repo.Validate(ctx, "hash", t0)
	require.NoError(t, err)
	assert.Equal(t, "tablet-7", device)

	_, err = repo.Validate(ctx, "hash", t0.Add(time.Hour))
	assert.ErrorIs(t, err, session.ErrInvalidToken)

	_, err = repo.Validate(ctx, "other", t0)
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}
