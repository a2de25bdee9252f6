package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/record"
	"fieldsync/internal/domain/session"
)

type itemKey struct {
	domain record.Domain
	id     string
}

type idemKey struct {
	domain record.Domain
	key    string
}

type sessionEntry struct {
	deviceID  string
	expiresAt time.Time
}

// Storage keeps everything in process memory. It backs the dev server when no database is configured.
type Storage struct {
	mu       sync.RWMutex
	items    map[itemKey]*ingest.Item
	created  map[idemKey]string
	applied  map[idemKey]bool
	refs     map[string]json.RawMessage
	sessions map[string]sessionEntry
}

func New() *Storage {
	return &Storage{
		items:    make(map[itemKey]*ingest.Item),
		created:  make(map[idemKey]string),
		applied:  make(map[idemKey]bool),
		refs:     make(map[string]json.RawMessage),
		sessions: make(map[string]sessionEntry),
	}
}

func (s *Storage) Close() error {
	return nil
}

func clone(it *ingest.Item) *ingest.Item {
	c := *it
	c.Payload = append(json.RawMessage(nil), it.Payload...)
	return &c
}

func (s *Storage) Create(_ context.Context, item *ingest.Item, key string) (*ingest.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if id, ok := s.created[idemKey{item.Domain, key}]; ok {
			return clone(s.items[itemKey{item.Domain, id}]), false, nil
		}
	}
	k := itemKey{item.Domain, item.ID}
	if _, ok := s.items[k]; ok {
		return nil, false, fmt.Errorf("%s %s already exists", item.Domain, item.ID)
	}
	s.items[k] = clone(item)
	if key != "" {
		s.created[idemKey{item.Domain, key}] = item.ID
	}
	return clone(item), true, nil
}

func (s *Storage) Get(_ context.Context, d record.Domain, id string) (*ingest.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[itemKey{d, id}]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", d, id, ingest.ErrNotFound)
	}
	return clone(it), nil
}

func (s *Storage) Update(_ context.Context, item *ingest.Item, key string) (*ingest.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := itemKey{item.Domain, item.ID}
	cur, ok := s.items[k]
	if !ok {
		return nil, false, fmt.Errorf("%s %s: %w", item.Domain, item.ID, ingest.ErrNotFound)
	}
	if key != "" {
		if s.applied[idemKey{item.Domain, key}] {
			return clone(cur), false, nil
		}
		s.applied[idemKey{item.Domain, key}] = true
	}

	next := clone(cur)
	next.Payload = append(json.RawMessage(nil), item.Payload...)
	next.UpdatedAt = item.UpdatedAt
	s.items[k] = next
	return clone(next), true, nil
}

func (s *Storage) ListSince(_ context.Context, d record.Domain, since time.Time) ([]*ingest.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ingest.Item
	for k, it := range s.items {
		if k.domain == d && !it.UpdatedAt.Before(since) {
			out = append(out, clone(it))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Storage) Reference(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.refs[key]
	if !ok {
		return json.RawMessage(`[]`), nil
	}
	return append(json.RawMessage(nil), v...), nil
}

func (s *Storage) PutReference(_ context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("reference %s: value is not valid JSON", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[key] = append(json.RawMessage(nil), value...)
	return nil
}

// Sessions returns the session.Repository view of the store.
func (s *Storage) Sessions() session.Repository {
	return sessions{s}
}

type sessions struct {
	s *Storage
}

func (r sessions) Create(_ context.Context, deviceID, tokenHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[tokenHash] = sessionEntry{deviceID: deviceID, expiresAt: expiresAt}
	return nil
}

func (r sessions) Validate(_ context.Context, tokenHash string, now time.Time) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.sessions[tokenHash]
	if !ok || !now.Before(e.expiresAt) {
		return "", session.ErrInvalidToken
	}
	return e.deviceID, nil
}
