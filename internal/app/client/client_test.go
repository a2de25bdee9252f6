package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fieldsync/internal/app/client/config"
	"fieldsync/internal/app/client/refcache"
	"fieldsync/internal/app/client/storage"
	"fieldsync/internal/app/client/syncer"
	"fieldsync/internal/domain/record"
	"fieldsync/internal/utils/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Path   string
	Auth   string
}

type fakeServer struct {
	mu     sync.Mutex
	calls  []recordedCall
	nextID int
	sites  string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")})
	f.nextID++
	id := f.nextID
	sites := f.sites
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/health":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Path == "/sites":
		_, _ = fmt.Fprintf(w, `{"success":true,"data":%s}`, sites)
	default:
		_, _ = fmt.Fprintf(w, `{"success":true,"data":{"id":"srv-%d"}}`, id)
	}
}

func (f *fakeServer) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestApp(t *testing.T) (*App, *fakeServer) {
	t.Helper()

	fake := &fakeServer{sites: `[{"id":"site-1"}]`}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		Env:                 "local",
		ServerAddress:       srv.URL,
		ConfigDir:           dir,
		DBPath:              filepath.Join(dir, "fieldsync.db"),
		TokenPath:           filepath.Join(dir, "token"),
		SyncCooldownSeconds: 30,
		HTTPTimeoutSeconds:  5,
		HTTPMaxAttempts:     3,
		HTTPBaseDelayMS:     1,
	}

	app, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() { _ = app.Close() })
	return app, fake
}

func attendanceJSON(remarks string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"userId":"u-1","siteId":"site-1","punchInAt":"2024-05-20T07:30:00Z","remarks":%q}`, remarks))
}

func TestApp_CreateLocalAndSync(t *testing.T) {
	app, fake := newTestApp(t)
	ctx := context.Background()

	rec, err := app.CreateLocal(ctx, record.DomainAttendance, attendanceJSON("first"))
	require.NoError(t, err)
	assert.False(t, rec.Synced)
	assert.Empty(t, fake.Calls(), "saving must not touch the network")

	n, err := app.GetPendingCount(ctx, record.DomainAttendance)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, app.SaveToken("secret"))

	report, err := app.SyncNow(ctx, syncer.ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced())

	got, err := app.Get(ctx, record.DomainAttendance, rec.LocalID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, "srv-2", got.ServerIDValue())

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/health", calls[0].Path)
	assert.Equal(t, "/attendance", calls[1].Path)
	assert.Equal(t, "Bearer secret", calls[1].Auth)

	st, err := app.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.Equal(t, syncer.StateIdle, st.State)
	require.Len(t, st.Domains, len(record.SyncOrder))
	assert.Equal(t, record.DomainAttendance, st.Domains[0].Domain)
	assert.Zero(t, st.Domains[0].Pending)
	assert.NotNil(t, st.Domains[0].LastSyncedAt)
	assert.True(t, st.Domains[0].AutoSync)
}

func TestApp_CreateLocalRejects(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	_, err := app.CreateLocal(ctx, record.DomainTickets, json.RawMessage(`{"title":"x","status":"open"}`))
	assert.ErrorIs(t, err, record.ErrReadOnlyDomain)

	_, err = app.CreateLocal(ctx, record.Domain("vehicles"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, record.ErrUnknownDomain)

	_, err = app.CreateLocal(ctx, record.DomainAttendance, json.RawMessage(`{"siteId":"site-1"}`))
	assert.ErrorIs(t, err, record.ErrInvalidPayload)
}

func TestApp_UpdateLocal(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	rec, err := app.CreateLocal(ctx, record.DomainAttendance, attendanceJSON("first"))
	require.NoError(t, err)

	updated, err := app.UpdateLocal(ctx, record.DomainAttendance, rec.LocalID, json.RawMessage(
		`{"userId":"u-1","siteId":"site-1","punchInAt":"2024-05-20T07:30:00Z","punchOutAt":"2024-05-20T16:00:00Z"}`))
	require.NoError(t, err)
	assert.Greater(t, updated.Version, rec.Version)
	assert.False(t, updated.Synced)

	_, err = app.UpdateLocal(ctx, record.DomainAttendance, rec.LocalID, json.RawMessage(
		`{"userId":"u-1","siteId":"site-1","punchInAt":"2024-05-20T08:00:00Z","punchOutAt":"2024-05-20T16:00:00Z"}`))
	assert.ErrorIs(t, err, record.ErrImmutableField)

	_, err = app.UpdateLocal(ctx, record.DomainAttendance, "missing", attendanceJSON("x"))
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestApp_QueueTicketUpdate(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	data := record.StatusTransition{Status: "in_progress"}
	_, err := app.QueueTicketUpdate(ctx, "nope", "u-1", data)
	assert.ErrorIs(t, err, ErrTicketNotFound)

	raw, idx, err := record.NewFactory().Encode(&record.Ticket{Title: "Leak", Status: "open"})
	require.NoError(t, err)
	ticket, _, err := app.store.ImportSynced(ctx, record.DomainTickets, "T-9", raw, idx, time.Time{})
	require.NoError(t, err)

	rec, err := app.QueueTicketUpdate(ctx, ticket.LocalID, "u-1", data)
	require.NoError(t, err)
	assert.Equal(t, record.DomainTicketUpdates, rec.Domain)

	pending, err := app.Pending(ctx, record.DomainTicketUpdates)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = app.UpdateLocal(ctx, record.DomainTicketUpdates, rec.LocalID, rec.Payload)
	assert.ErrorIs(t, err, record.ErrReadOnlyDomain)
}

func TestApp_ReferenceCache(t *testing.T) {
	app, fake := newTestApp(t)
	ctx := context.Background()

	_, err := app.GetCached(ctx, "sites")
	assert.ErrorIs(t, err, refcache.ErrMiss)

	require.NoError(t, app.SaveToken("secret"))
	entry, err := app.RefreshCache(ctx, "sites")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"site-1"}]`, string(entry.Value))

	fake.mu.Lock()
	fake.sites = `[{"id":"site-1"},{"id":"site-2"}]`
	fake.mu.Unlock()

	cached, err := app.GetCached(ctx, "sites")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"site-1"}]`, string(cached.Value))

	keys, err := app.CachedKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sites"}, keys)

	require.NoError(t, app.ClearOfflineData(ctx))
	_, err = app.GetCached(ctx, "sites")
	assert.ErrorIs(t, err, refcache.ErrMiss)
}

func TestApp_ClearOfflineData(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	_, err := app.CreateLocal(ctx, record.DomainAttendance, attendanceJSON("first"))
	require.NoError(t, err)
	require.NoError(t, app.SetAutoSync(ctx, record.DomainSiteLogs, false))

	require.NoError(t, app.ClearOfflineData(ctx))

	recs, err := app.Query(ctx, record.DomainAttendance, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	enabled, err := app.store.AutoSyncEnabled(ctx, record.DomainSiteLogs)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestApp_SetAutoSyncRejectsTickets(t *testing.T) {
	app, _ := newTestApp(t)
	err := app.SetAutoSync(context.Background(), record.DomainTickets, false)
	assert.ErrorIs(t, err, record.ErrReadOnlyDomain)
}

func TestFileTokenProvider(t *testing.T) {
	p := NewFileTokenProvider(filepath.Join(t.TempDir(), "nested", "token"))
	ctx := context.Background()

	tok, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	assert.Error(t, p.Save("  "))
	require.NoError(t, p.Save("abc\n"))

	tok, err = p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, p.Clear())
	require.NoError(t, p.Clear())
	tok, err = p.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}
