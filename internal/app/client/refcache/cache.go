package refcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldsync/internal/domain/record"

	"github.com/go-redis/cache/v9"
	"golang.org/x/exp/slog"
)

// ErrMiss is returned by Get when nothing is cached under the key.
var ErrMiss = errors.New("reference data not cached")

const (
	frontSize = 256
	frontTTL  = 10 * time.Minute
)

// Entry is one cached reference value.
type Entry struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	CachedAt time.Time       `json:"cachedAt"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// IsStale is a helper for callers that apply their own freshness rule.
func (e *Entry) IsStale(now time.Time, maxAge time.Duration) bool {
	return e.Age(now) > maxAge
}

// Store is the durable tier.
type Store interface {
	GetReference(ctx context.Context, key string) (json.RawMessage, time.Time, error)
	PutReference(ctx context.Context, key string, value json.RawMessage, at time.Time) error
}

// Fetcher loads fresh reference data from the network.
type Fetcher interface {
	FetchReference(ctx context.Context, key string) (json.RawMessage, error)
}

// Cache serves reference data from local storage and never touches the network on reads.
// An in-process TinyLFU tier sits in front of the durable store; the store stays authoritative.
type Cache struct {
	store   Store
	fetcher Fetcher
	log     *slog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	front *cache.Cache

	wg sync.WaitGroup
}

// Option configures Cache.
type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(store Store, fetcher Fetcher, log *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		fetcher: fetcher,
		log:     log.With(slog.String("component", "refcache")),
		now:     time.Now,
		front:   newFront(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newFront() *cache.Cache {
	return cache.New(&cache.Options{
		LocalCache: cache.NewTinyLFU(frontSize, frontTTL),
	})
}

func (c *Cache) frontTier() *cache.Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.front
}

// Get returns the cached entry regardless of its age, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	front := c.frontTier()

	var b []byte
	if err := front.Get(ctx, key, &b); err == nil {
		var e Entry
		if err := json.Unmarshal(b, &e); err == nil {
			return &e, nil
		}
		_ = front.Delete(ctx, key)
	}

	value, at, err := c.store.GetReference(ctx, key)
	if errors.Is(err, record.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if err != nil {
		return nil, err
	}

	e := &Entry{Key: key, Value: value, CachedAt: at}
	c.remember(ctx, e)
	return e, nil
}

// Put replaces the value under key and stamps the current time.
func (c *Cache) Put(ctx context.Context, key string, value json.RawMessage) (*Entry, error) {
	e := &Entry{Key: key, Value: value, CachedAt: c.now().UTC()}
	if err := c.store.PutReference(ctx, key, value, e.CachedAt); err != nil {
		return nil, err
	}
	c.remember(ctx, e)
	return e, nil
}

// Refresh fetches key from the network and overwrites the cache on success.
// On failure the existing entry is left untouched.
func (c *Cache) Refresh(ctx context.Context, key string) (*Entry, error) {
	if c.fetcher == nil {
		return nil, errors.New("no reference fetcher configured")
	}
	value, err := c.fetcher.FetchReference(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", key, err)
	}
	e, err := c.Put(ctx, key, value)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", key, err)
	}
	c.log.Debug("reference data refreshed", slog.String("key", key))
	return e, nil
}

// GetAndRefresh returns the cached entry immediately (or ErrMiss) and refreshes it in the background.
func (c *Cache) GetAndRefresh(ctx context.Context, key string) (*Entry, error) {
	e, err := c.Get(ctx, key)
	c.RefreshAsync(context.WithoutCancel(ctx), key)
	return e, err
}

// RefreshAsync refreshes key in the background. Failures are logged and the cache keeps its value.
func (c *Cache) RefreshAsync(ctx context.Context, key string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.Refresh(ctx, key); err != nil {
			c.log.Info("background refresh failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until background refreshes finish.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Reset drops the in-process tier. Used after the durable store is wiped.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.front = newFront()
}

func (c *Cache) remember(ctx context.Context, e *Entry) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.frontTier().Set(&cache.Item{Ctx: ctx, Key: e.Key, Value: b}); err != nil {
		c.log.Debug("front cache set failed", slog.String("key", e.Key), slog.String("error", err.Error()))
	}
}
