package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fieldsync/internal/app/client/config"
	"fieldsync/internal/app/client/refcache"
	"fieldsync/internal/app/client/storage"
	"fieldsync/internal/app/client/syncer"
	"fieldsync/internal/app/client/transport"
	"fieldsync/internal/domain/record"

	"golang.org/x/exp/slog"
)

// ErrTicketNotFound is returned when an update targets a ticket that is not stored locally.
var ErrTicketNotFound = errors.New("ticket not found locally")

// App composes the local store, the reference cache and the sync orchestrator and exposes
// the operations the UI layer calls.
type App struct {
	cfg       *config.Config
	log       *slog.Logger
	now       func() time.Time
	store     *storage.SQLiteStorage
	transport *transport.Client
	tokens    *FileTokenProvider
	cache     *refcache.Cache
	sync      *syncer.Orchestrator
	factory   *record.Factory
}

// Option configures App.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func New(cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath, log, storage.WithClock(o.now))
	if err != nil {
		return nil, fmt.Errorf("init local store: %w", err)
	}

	tcfg := transport.DefaultConfig(cfg.BaseURL())
	tcfg.Timeout = cfg.HTTPTimeout()
	tcfg.MaxAttempts = cfg.HTTPMaxAttempts
	tcfg.BaseDelay = cfg.HTTPBaseDelay()
	httpClient := transport.New(tcfg, log)

	tokens := NewFileTokenProvider(cfg.TokenPath)

	orch, err := syncer.New(syncer.Config{
		Cooldown:        cfg.SyncCooldown(),
		BatchSize:       cfg.SyncBatchSize,
		RetentionPeriod: cfg.Retention(),
	}, syncer.Deps{
		Store:        store,
		Transport:    httpClient,
		Reachability: httpClient,
		Tokens:       tokens,
		Log:          log,
		Now:          o.now,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init sync orchestrator: %w", err)
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		now:       o.now,
		store:     store,
		transport: httpClient,
		tokens:    tokens,
		sync:      orch,
		factory:   record.NewFactory(),
	}
	a.cache = refcache.New(store, &referenceFetcher{client: httpClient, tokens: tokens}, log, refcache.WithClock(o.now))
	return a, nil
}

// Initialize starts the sync orchestrator.
func (a *App) Initialize(ctx context.Context) error {
	return a.sync.Initialize(ctx)
}

// Cleanup stops background work: in-flight sync passes and cache refreshes.
func (a *App) Cleanup() {
	a.sync.Cleanup()
	a.cache.Wait()
}

// Close cleans up and closes the local store.
func (a *App) Close() error {
	a.Cleanup()
	return a.store.Close()
}

// CreateLocal validates raw against the domain's payload type and stores it as a pending
// record. It never touches the network.
func (a *App) CreateLocal(ctx context.Context, d record.Domain, raw json.RawMessage) (*record.Record, error) {
	if err := a.writable(d); err != nil {
		return nil, err
	}
	p, err := a.factory.Parse(d, raw)
	if err != nil {
		return nil, err
	}
	return a.Save(ctx, d, p)
}

// Save stores a typed payload as a pending record.
func (a *App) Save(ctx context.Context, d record.Domain, p record.Payload) (*record.Record, error) {
	if err := a.writable(d); err != nil {
		return nil, err
	}
	if u, ok := p.(*record.PendingUpdate); ok {
		if err := a.requireTicket(ctx, u.TargetLocalID); err != nil {
			return nil, err
		}
	}

	payload, idx, err := a.factory.Encode(p)
	if err != nil {
		return nil, err
	}
	rec, err := a.store.Create(ctx, d, payload, idx)
	if err != nil {
		return nil, err
	}
	a.log.Info("record saved locally", slog.String("domain", d.String()), slog.String("local_id", rec.LocalID))
	return rec, nil
}

// UpdateLocal replaces the payload of a record and re-queues it. Event timestamps that are
// already set cannot change.
func (a *App) UpdateLocal(ctx context.Context, d record.Domain, localID string, raw json.RawMessage) (*record.Record, error) {
	if err := a.writable(d); err != nil {
		return nil, err
	}
	if d == record.DomainTicketUpdates {
		return nil, fmt.Errorf("%w: queue a new ticket update instead", record.ErrReadOnlyDomain)
	}

	next, err := a.factory.Parse(d, raw)
	if err != nil {
		return nil, err
	}

	return a.store.Update(ctx, d, localID, storage.UserMutation, func(r *record.Record) error {
		prev, err := a.factory.Create(d)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(r.Payload, prev); err != nil {
			return fmt.Errorf("%w: stored payload: %v", record.ErrInvalidPayload, err)
		}
		if err := record.CheckImmutable(prev, next); err != nil {
			return err
		}
		r.Payload, r.Index, err = a.factory.Encode(next)
		return err
	})
}

// QueueTicketUpdate records a change to a server-owned ticket for upload.
func (a *App) QueueTicketUpdate(ctx context.Context, ticketLocalID, requestedBy string, data record.UpdateData) (*record.Record, error) {
	u, err := record.NewPendingUpdate(ticketLocalID, requestedBy, data, a.now().UTC())
	if err != nil {
		return nil, err
	}
	return a.Save(ctx, record.DomainTicketUpdates, u)
}

func (a *App) requireTicket(ctx context.Context, localID string) error {
	_, err := a.store.Get(ctx, record.DomainTickets, localID)
	if errors.Is(err, record.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrTicketNotFound, localID)
	}
	return err
}

func (a *App) writable(d record.Domain) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if !d.Uploadable() {
		return fmt.Errorf("%w: %s", record.ErrReadOnlyDomain, d)
	}
	return nil
}

func (a *App) Get(ctx context.Context, d record.Domain, localID string) (*record.Record, error) {
	return a.store.Get(ctx, d, localID)
}

// Query lists records, newest first.
func (a *App) Query(ctx context.Context, d record.Domain, f storage.Filter) ([]*record.Record, error) {
	return a.store.Query(ctx, d, f)
}

// GetPendingCount is the badge count for a domain.
func (a *App) GetPendingCount(ctx context.Context, d record.Domain) (int, error) {
	return a.store.PendingCount(ctx, d)
}

// Pending lists the sync queue of a domain in upload order.
func (a *App) Pending(ctx context.Context, d record.Domain) ([]*record.Record, error) {
	return a.store.Pending(ctx, d, 0)
}

// TriggerSync is fire-and-forget; observe the outcome through OnStatus or Status.
func (a *App) TriggerSync(reason syncer.Reason) error {
	return a.sync.TriggerSync(reason)
}

func (a *App) SyncNow(ctx context.Context, reason syncer.Reason) (*syncer.Report, error) {
	return a.sync.SyncNow(ctx, reason)
}

// WaitSync blocks until background passes have finished.
func (a *App) WaitSync() {
	a.sync.Wait()
}

func (a *App) OnStatus(fn func(syncer.Status)) {
	a.sync.OnStatus(fn)
}

func (a *App) OnSessionInvalid(fn func()) {
	a.sync.OnSessionInvalid(fn)
}

// Pull bootstraps the local store with the server's records since from.
func (a *App) Pull(ctx context.Context, d record.Domain, from time.Time) (*syncer.PullReport, error) {
	return a.sync.Pull(ctx, d, from)
}

// Monitor returns a reachability monitor that drives this app's sync triggers.
func (a *App) Monitor(onChange func(online bool)) *syncer.Monitor {
	return syncer.NewMonitor(a.sync, a.transport, syncer.MonitorConfig{
		ProbeInterval: a.cfg.ProbeInterval(),
		SyncInterval:  a.cfg.SyncInterval(),
		OnChange:      onChange,
	}, a.log)
}

// GetCached returns the cached reference value without any network access.
// It returns refcache.ErrMiss when nothing is cached.
func (a *App) GetCached(ctx context.Context, key string) (*refcache.Entry, error) {
	return a.cache.Get(ctx, key)
}

// GetCachedAndRefresh returns the cached value and refreshes it in the background.
func (a *App) GetCachedAndRefresh(ctx context.Context, key string) (*refcache.Entry, error) {
	return a.cache.GetAndRefresh(ctx, key)
}

// RefreshCache fetches key from the server and overwrites the cached value.
func (a *App) RefreshCache(ctx context.Context, key string) (*refcache.Entry, error) {
	return a.cache.Refresh(ctx, key)
}

// CachedKeys lists the reference keys stored locally.
func (a *App) CachedKeys(ctx context.Context) ([]string, error) {
	return a.store.ReferenceKeys(ctx)
}

// ClearOfflineData wipes every local record, cached reference and sync setting.
func (a *App) ClearOfflineData(ctx context.Context) error {
	if err := a.store.Wipe(ctx); err != nil {
		return err
	}
	a.cache.Reset()
	return nil
}

// Prune deletes synced records older than the given age from every domain.
func (a *App) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	before := a.now().Add(-olderThan)
	var total int64
	for _, d := range record.AllDomains() {
		n, err := a.store.Prune(ctx, d, before)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (a *App) SetAutoSync(ctx context.Context, d record.Domain, enabled bool) error {
	if !d.Uploadable() {
		return fmt.Errorf("%w: %s", record.ErrReadOnlyDomain, d)
	}
	return a.store.SetAutoSyncEnabled(ctx, d, enabled)
}

// DomainStatus is the per-domain part of Status.
type DomainStatus struct {
	Domain       record.Domain `json:"domain"`
	Pending      int           `json:"pending"`
	LastSyncedAt *time.Time    `json:"lastSyncedAt,omitempty"`
	AutoSync     bool          `json:"autoSync"`
}

// Status is the sync indicator model for the UI.
type Status struct {
	syncer.Status
	Authenticated bool           `json:"authenticated"`
	Domains       []DomainStatus `json:"domains"`
}

func (a *App) Status(ctx context.Context) (*Status, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Status: a.sync.Status(), Authenticated: token != ""}

	for _, d := range record.SyncOrder {
		ds := DomainStatus{Domain: d}
		if ds.Pending, err = a.store.PendingCount(ctx, d); err != nil {
			return nil, err
		}
		last, err := a.store.LastSyncedAt(ctx, d)
		if err != nil {
			return nil, err
		}
		if !last.IsZero() {
			ds.LastSyncedAt = &last
		}
		if ds.AutoSync, err = a.store.AutoSyncEnabled(ctx, d); err != nil {
			return nil, err
		}
		st.Domains = append(st.Domains, ds)
	}
	return st, nil
}

// SaveToken stores a new bearer token and ends any invalid-session episode.
func (a *App) SaveToken(token string) error {
	if err := a.tokens.Save(token); err != nil {
		return err
	}
	a.sync.SessionRestored()
	return nil
}

func (a *App) ClearToken() error {
	return a.tokens.Clear()
}

// CheckConnection probes the server health endpoint.
func (a *App) CheckConnection(ctx context.Context) error {
	return a.transport.HealthCheck(ctx)
}

// referenceFetcher loads reference lists from GET /{key}.
type referenceFetcher struct {
	client *transport.Client
	tokens *FileTokenProvider
}

func (f *referenceFetcher) FetchReference(ctx context.Context, key string) (json.RawMessage, error) {
	token, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	res := f.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/" + key,
		Token:  token,
	})
	if !res.OK() {
		return nil, fmt.Errorf("fetch %s: %w", key, res.Err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("fetch %s: %w: empty data", key, transport.ErrMalformed)
	}
	return res.Data, nil
}
