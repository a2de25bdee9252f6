package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fieldsync/internal/app/client/transport"
	"fieldsync/internal/domain/record"

	"golang.org/x/exp/slog"
)

const DefaultCooldown = 30 * time.Second

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrCooldown       = errors.New("sync cooldown has not elapsed")
	ErrOffline        = errors.New("server is not reachable")
	ErrNoToken        = errors.New("no auth token")
	ErrSessionInvalid = errors.New("session is no longer valid")
	ErrNotInitialized = errors.New("sync orchestrator is not running")
	ErrNotPullable    = errors.New("domain cannot be pulled")
)

// Store is the part of the local store the orchestrator drives.
type Store interface {
	Get(ctx context.Context, d record.Domain, localID string) (*record.Record, error)
	Pending(ctx context.Context, d record.Domain, limit int) ([]*record.Record, error)
	MarkUploaded(ctx context.Context, d record.Domain, localID, serverID string, version int64) (bool, error)
	ImportSynced(ctx context.Context, d record.Domain, serverID string, payload json.RawMessage, idx record.Index, createdAt time.Time) (*record.Record, bool, error)
	Prune(ctx context.Context, d record.Domain, before time.Time) (int64, error)
	AutoSyncEnabled(ctx context.Context, d record.Domain) (bool, error)
	SetLastSyncedAt(ctx context.Context, d record.Domain, t time.Time) error
}

// Transport sends one API call, retrying transient failures internally.
type Transport interface {
	Do(ctx context.Context, req transport.Request) transport.Result
}

// Reachability probes the server.
type Reachability interface {
	Reachable(ctx context.Context) bool
}

// TokenProvider supplies the bearer token. An empty token means the user is signed out.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	// Cooldown is the minimum gap between automatic passes.
	Cooldown time.Duration
	// BatchSize caps the records drained per domain in one pass. Zero drains everything.
	BatchSize int
	// RetentionPeriod prunes synced records older than this after a pass. Zero keeps everything.
	RetentionPeriod time.Duration
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Store        Store
	Transport    Transport
	Reachability Reachability
	Tokens       TokenProvider
	Log          *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator decides when to sync and drives the upload loop. One instance lives for the
// whole process.
type Orchestrator struct {
	store     Store
	transport Transport
	reach     Reachability
	tokens    TokenProvider
	log       *slog.Logger
	now       func() time.Time
	cfg       Config

	mu          sync.Mutex
	running     bool
	state       State
	reason      Reason
	lastAttempt time.Time
	lastReport  *Report
	listeners   []func(Status)
	onInvalid   []func()

	sessionInvalid atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Store == nil || deps.Transport == nil || deps.Reachability == nil || deps.Tokens == nil {
		return nil, errors.New("syncer: store, transport, reachability and tokens are required")
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	return &Orchestrator{
		store:     deps.Store,
		transport: deps.Transport,
		reach:     deps.Reachability,
		tokens:    deps.Tokens,
		log:       deps.Log.With(slog.String("component", "syncer")),
		now:       deps.Now,
		cfg:       cfg,
	}, nil
}

// Initialize starts the orchestrator. Background passes run on a context derived from ctx
// that Cleanup cancels.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return nil
	}
	o.ctx, o.cancel = context.WithCancel(context.WithoutCancel(ctx))
	o.running = true
	o.log.Info("sync orchestrator started", slog.Duration("cooldown", o.cfg.Cooldown))
	return nil
}

// Cleanup stops accepting triggers and waits for an in-flight pass to return.
func (o *Orchestrator) Cleanup() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
	o.log.Info("sync orchestrator stopped")
}

// OnStatus registers a listener called on every state change.
func (o *Orchestrator) OnStatus(fn func(Status)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// OnSessionInvalid registers fn for the session-invalid signal. It fires once per episode.
func (o *Orchestrator) OnSessionInvalid(fn func()) {
	o.mu.Lock()
	o.onInvalid = append(o.onInvalid, fn)
	o.mu.Unlock()
}

// SessionRestored ends the current invalid-session episode, typically after a new sign-in.
func (o *Orchestrator) SessionRestored() {
	o.sessionInvalid.Store(false)
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	return Status{
		State:          o.state,
		Reason:         o.reason,
		LastAttempt:    o.lastAttempt,
		LastReport:     o.lastReport,
		SessionInvalid: o.sessionInvalid.Load(),
	}
}

// TriggerSync starts a pass in the background. A trigger that finds a pass running, or an
// automatic trigger inside the cooldown window, is dropped and reported through the error.
func (o *Orchestrator) TriggerSync(reason Reason) error {
	ctx, err := o.begin(reason)
	if err != nil {
		o.log.Debug("sync trigger dropped", slog.String("reason", reason.String()), slog.String("cause", err.Error()))
		return err
	}

	go func() {
		defer o.wg.Done()
		if _, err := o.run(ctx, reason); err != nil && !errors.Is(err, ErrOffline) {
			o.log.Warn("sync pass ended early", slog.String("reason", reason.String()), slog.String("error", err.Error()))
		}
	}()
	return nil
}

// SyncNow runs a pass on the caller's goroutine and returns its report.
func (o *Orchestrator) SyncNow(ctx context.Context, reason Reason) (*Report, error) {
	if _, err := o.begin(reason); err != nil {
		return nil, err
	}
	defer o.wg.Done()
	return o.run(ctx, reason)
}

// Wait blocks until background passes started so far have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// begin is the test-and-set of the Syncing state. On success the caller owns one wg slot.
func (o *Orchestrator) begin(reason Reason) (context.Context, error) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if o.state == StateSyncing {
		o.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	if reason.Automatic() && !o.lastAttempt.IsZero() && o.now().Sub(o.lastAttempt) < o.cfg.Cooldown {
		o.mu.Unlock()
		return nil, ErrCooldown
	}
	o.state = StateSyncing
	o.reason = reason
	o.wg.Add(1)
	status := o.statusLocked()
	ctx := o.ctx
	o.mu.Unlock()

	o.notify(status)
	return ctx, nil
}

func (o *Orchestrator) finish(report *Report) {
	o.mu.Lock()
	o.state = StateIdle
	if report != nil {
		o.lastReport = report
	}
	status := o.statusLocked()
	o.mu.Unlock()

	o.notify(status)
}

func (o *Orchestrator) notify(status Status) {
	o.mu.Lock()
	listeners := append([]func(Status){}, o.listeners...)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

func (o *Orchestrator) signalSessionInvalid() {
	if !o.sessionInvalid.CompareAndSwap(false, true) {
		return
	}
	o.log.Warn("session invalid, re-authentication required")

	o.mu.Lock()
	handlers := append([]func(){}, o.onInvalid...)
	o.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (o *Orchestrator) run(ctx context.Context, reason Reason) (report *Report, err error) {
	startedAt := o.now()
	defer func() {
		if report != nil {
			report.FinishedAt = o.now()
			if err != nil {
				report.Error = err.Error()
			}
		}
		o.finish(report)
	}()

	if !o.reach.Reachable(ctx) {
		return nil, ErrOffline
	}

	o.mu.Lock()
	o.lastAttempt = startedAt
	o.mu.Unlock()

	token, err := o.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
	}
	if token == "" {
		return nil, ErrNoToken
	}

	report = &Report{Reason: reason, StartedAt: startedAt}
	p := &pass{o: o, token: token, report: report}

	o.log.Info("sync pass started", slog.String("reason", reason.String()))

	for _, d := range record.SyncOrder {
		if ctx.Err() != nil {
			break
		}

		if reason.Automatic() {
			enabled, err := o.store.AutoSyncEnabled(ctx, d)
			if err != nil {
				o.log.Error("read auto-sync setting", slog.String("domain", d.String()), slog.String("error", err.Error()))
			}
			if !enabled {
				report.Domains = append(report.Domains, DomainReport{Domain: d, Skipped: true})
				continue
			}
		}

		dr := p.drain(ctx, d)
		report.Domains = append(report.Domains, dr)

		if p.aborted {
			report.Aborted = true
			break
		}
		if dr.Complete() {
			if err := o.store.SetLastSyncedAt(ctx, d, o.now()); err != nil {
				o.log.Error("store last sync time", slog.String("domain", d.String()), slog.String("error", err.Error()))
			}
		}
	}

	if !p.aborted && ctx.Err() == nil {
		report.Pruned = o.prune(ctx)
	}

	o.log.Info("sync pass finished",
		slog.String("reason", reason.String()),
		slog.Int("synced", report.Synced()),
		slog.Int("failed", report.Failed()),
		slog.Int("requests", report.Requests),
		slog.Bool("aborted", report.Aborted),
	)

	if p.aborted {
		return report, ErrSessionInvalid
	}
	return report, ctx.Err()
}

func (o *Orchestrator) prune(ctx context.Context) int64 {
	if o.cfg.RetentionPeriod <= 0 {
		return 0
	}
	before := o.now().Add(-o.cfg.RetentionPeriod)

	var total int64
	for _, d := range record.AllDomains() {
		n, err := o.store.Prune(ctx, d, before)
		if err != nil {
			o.log.Error("prune synced records", slog.String("domain", d.String()), slog.String("error", err.Error()))
			continue
		}
		total += n
	}
	return total
}
