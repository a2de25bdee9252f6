package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fieldsync/internal/app/client/storage"
	"fieldsync/internal/app/client/transport"
	"fieldsync/internal/domain/record"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type apiCall struct {
	Method         string
	Path           string
	Query          string
	Body           string
	Token          string
	IdempotencyKey string
	UpdateType     string
}

// remarks extracts the remarks field tests use to tell records apart.
func (c apiCall) remarks() string {
	var v struct {
		Remarks string `json:"remarks"`
	}
	_ = json.Unmarshal([]byte(c.Body), &v)
	return v.Remarks
}

// responder answers a call; n counts earlier calls with the same method and path.
type responder func(c apiCall, n int) (int, string)

type stubAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	respond responder
}

func (s *stubAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c := apiCall{
		Method:         r.Method,
		Path:           r.URL.Path,
		Query:          r.URL.RawQuery,
		Body:           string(body),
		Token:          r.Header.Get("Authorization"),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		UpdateType:     r.Header.Get("X-Update-Type"),
	}

	s.mu.Lock()
	n := 0
	for _, prev := range s.calls {
		if prev.Method == c.Method && prev.Path == c.Path {
			n++
		}
	}
	s.calls = append(s.calls, c)
	respond := s.respond
	s.mu.Unlock()

	status, resp := okWithID(fmt.Sprintf("srv-%d", n+1))
	if respond != nil {
		status, resp = respond(c, n)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (s *stubAPI) setResponder(fn responder) {
	s.mu.Lock()
	s.respond = fn
	s.mu.Unlock()
}

func (s *stubAPI) Calls() []apiCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apiCall(nil), s.calls...)
}

func okWithID(id string) (int, string) {
	return http.StatusOK, fmt.Sprintf(`{"success":true,"data":{"id":%q}}`, id)
}

func failWith(status int, msg string) (int, string) {
	return status, fmt.Sprintf(`{"success":false,"error":%q}`, msg)
}

type fakeTokens struct {
	mu        sync.Mutex
	token     string
	refreshed string
	refreshes int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshed != "" {
		f.token = f.refreshed
	}
	return f.token, nil
}

func (f *fakeTokens) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type switchReach struct {
	online atomic.Bool
}

func newSwitchReach(online bool) *switchReach {
	r := &switchReach{}
	r.online.Store(online)
	return r
}

func (r *switchReach) Reachable(context.Context) bool {
	return r.online.Load()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// storeClock advances one millisecond per call so creation order is strict.
func storeClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

type harness struct {
	store  *storage.SQLiteStorage
	api    *stubAPI
	tokens *fakeTokens
	reach  *switchReach
	clock  *testClock
	orch   *Orchestrator
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	log := discardLogger()

	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "fieldsync.db"), log, storage.WithClock(storeClock()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	api := &stubAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tcfg := transport.DefaultConfig(srv.URL)
	tcfg.BaseDelay = time.Millisecond
	client := transport.New(tcfg, log)

	h := &harness{
		store:  st,
		api:    api,
		tokens: &fakeTokens{token: "tok-1"},
		reach:  newSwitchReach(true),
		clock:  &testClock{now: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)},
	}

	h.orch, err = New(cfg, Deps{
		Store:        st,
		Transport:    client,
		Reachability: h.reach,
		Tokens:       h.tokens,
		Log:          log,
		Now:          h.clock.Now,
	})
	require.NoError(t, err)
	require.NoError(t, h.orch.Initialize(context.Background()))
	t.Cleanup(h.orch.Cleanup)
	return h
}

func (h *harness) punchIn(t *testing.T, remarks string) *record.Record {
	t.Helper()
	at := time.Date(2024, 5, 20, 7, 30, 0, 0, time.UTC)
	raw, idx, err := record.NewFactory().Encode(&record.Attendance{
		UserID:    "u-1",
		SiteID:    "site-1",
		PunchInAt: &at,
		Remarks:   remarks,
	})
	require.NoError(t, err)

	rec, err := h.store.Create(context.Background(), record.DomainAttendance, raw, idx)
	require.NoError(t, err)
	return rec
}

func (h *harness) siteLog(t *testing.T) *record.Record {
	t.Helper()
	at := time.Date(2024, 5, 20, 7, 45, 0, 0, time.UTC)
	raw, idx, err := record.NewFactory().Encode(&record.SiteLog{
		UserID:   "u-1",
		SiteID:   "site-1",
		Status:   "ok",
		LoggedAt: &at,
	})
	require.NoError(t, err)

	rec, err := h.store.Create(context.Background(), record.DomainSiteLogs, raw, idx)
	require.NoError(t, err)
	return rec
}

func (h *harness) get(t *testing.T, d record.Domain, localID string) *record.Record {
	t.Helper()
	rec, err := h.store.Get(context.Background(), d, localID)
	require.NoError(t, err)
	return rec
}

func (h *harness) pending(t *testing.T, d record.Domain) int {
	t.Helper()
	n, err := h.store.PendingCount(context.Background(), d)
	require.NoError(t, err)
	return n
}

func callsTo(calls []apiCall, method, path string) []apiCall {
	var out []apiCall
	for _, c := range calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}
