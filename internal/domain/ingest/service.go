package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldsync/internal/domain/record"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Servicer is the server side of the sync wire contract.
type Servicer interface {
	Submit(ctx context.Context, d record.Domain, raw json.RawMessage, key string) (*Item, error)
	Replace(ctx context.Context, d record.Domain, id string, raw json.RawMessage, key string) (*Item, error)
	UpdateTicket(ctx context.Context, id string, t record.UpdateType, raw json.RawMessage, key string) (*Item, error)
	List(ctx context.Context, d record.Domain, from time.Time) ([]*Item, error)
	Reference(ctx context.Context, key string) (json.RawMessage, error)
	SeedTicket(ctx context.Context, t *record.Ticket) (*Item, error)
}

type Service struct {
	repo    Repository
	factory *record.Factory
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		factory: record.NewFactory(),
		now:     time.Now,
		log:     log.With(slog.String("component", "ingest")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Writable reports whether clients may POST or PUT items of d directly.
func Writable(d record.Domain) bool {
	switch d {
	case record.DomainAttendance, record.DomainSiteLogs, record.DomainChillerReadings:
		return true
	}
	return false
}

// Submit validates and stores a new item. Replays with the same key return the first item.
func (s *Service) Submit(ctx context.Context, d record.Domain, raw json.RawMessage, key string) (*Item, error) {
	if !Writable(d) {
		return nil, fmt.Errorf("%w: %s", ErrNotWritable, d)
	}
	if _, err := s.factory.Parse(d, raw); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item, created, err := s.repo.Create(ctx, &Item{
		ID:        uuid.NewString(),
		Domain:    d,
		Payload:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}, key)
	if err != nil {
		return nil, fmt.Errorf("store %s item: %w", d, err)
	}

	if created {
		s.log.Info("item created", slog.String("domain", d.String()), slog.String("id", item.ID))
	} else {
		s.log.Info("replayed create", slog.String("domain", d.String()), slog.String("id", item.ID), slog.String("key", key))
	}
	return item, nil
}

// Replace overwrites the payload of an existing item. Event timestamps cannot change.
func (s *Service) Replace(ctx context.Context, d record.Domain, id string, raw json.RawMessage, key string) (*Item, error) {
	if !Writable(d) {
		return nil, fmt.Errorf("%w: %s", ErrNotWritable, d)
	}
	next, err := s.factory.Parse(d, raw)
	if err != nil {
		return nil, err
	}

	cur, err := s.repo.Get(ctx, d, id)
	if err != nil {
		return nil, err
	}
	prev, err := s.factory.Create(d)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cur.Payload, prev); err != nil {
		return nil, fmt.Errorf("decode stored %s %s: %w", d, id, err)
	}
	if err := record.CheckImmutable(prev, next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}

	upd := *cur
	upd.Payload = raw
	upd.UpdatedAt = s.now().UTC()
	item, applied, err := s.repo.Update(ctx, &upd, key)
	if err != nil {
		return nil, fmt.Errorf("update %s item: %w", d, err)
	}
	if applied {
		s.log.Info("item replaced", slog.String("domain", d.String()), slog.String("id", id))
	}
	return item, nil
}

// UpdateTicket applies a queued ticket update. Re-applying the same key is a no-op.
func (s *Service) UpdateTicket(ctx context.Context, id string, t record.UpdateType, raw json.RawMessage, key string) (*Item, error) {
	data, err := record.ParseUpdateData(t, raw)
	if err != nil {
		return nil, err
	}

	cur, err := s.repo.Get(ctx, record.DomainTickets, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payload, err := applyUpdate(cur.Payload, data, now)
	if err != nil {
		return nil, err
	}

	upd := *cur
	upd.Payload = payload
	upd.UpdatedAt = now
	item, applied, err := s.repo.Update(ctx, &upd, key)
	if err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", id, err)
	}
	if applied {
		s.log.Info("ticket updated", slog.String("id", id), slog.String("update_type", t.String()))
	}
	return item, nil
}

// List returns items of d updated on or after from.
func (s *Service) List(ctx context.Context, d record.Domain, from time.Time) ([]*Item, error) {
	if d == record.DomainTicketUpdates {
		return nil, fmt.Errorf("%w: %s", record.ErrUnknownDomain, d)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListSince(ctx, d, from)
}

func (s *Service) Reference(ctx context.Context, key string) (json.RawMessage, error) {
	for _, k := range ReferenceKeys {
		if k == key {
			return s.repo.Reference(ctx, key)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReference, key)
}

// SeedTicket creates a server-owned ticket so clients have something to update.
func (s *Service) SeedTicket(ctx context.Context, t *record.Ticket) (*Item, error) {
	now := s.now().UTC()
	if t.OpenedAt == nil {
		t.OpenedAt = &now
	}
	payload, _, err := s.factory.Encode(t)
	if err != nil {
		return nil, err
	}
	item, _, err := s.repo.Create(ctx, &Item{
		ID:        uuid.NewString(),
		Domain:    record.DomainTickets,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("seed ticket: %w", err)
	}
	return item, nil
}
