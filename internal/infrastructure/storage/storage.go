package storage

import (
	"context"
	"fmt"

	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/session"
	"fieldsync/internal/infrastructure/storage/memory"
	"fieldsync/internal/infrastructure/storage/postgres"

	"golang.org/x/exp/slog"
)

// Backend bundles the repositories of the dev server.
type Backend struct {
	Kind     string
	Ingest   ingest.Repository
	Sessions session.Repository
	close    func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects to PostgreSQL when databaseURI is set and falls back to process memory otherwise.
func Open(ctx context.Context, databaseURI string, log *slog.Logger) (*Backend, error) {
	if databaseURI == "" {
		mem := memory.New()
		for key, value := range ingest.DefaultReferences {
			if err := mem.PutReference(ctx, key, value); err != nil {
				return nil, err
			}
		}
		log.Warn("DATABASE_URI is not set, data is kept in memory only")
		return &Backend{Kind: "memory", Ingest: mem, Sessions: mem.Sessions(), close: mem.Close}, nil
	}

	pg, err := postgres.New(ctx, databaseURI, log)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Backend{
		Kind:     "postgres",
		Ingest:   postgres.NewIngestRepository(pg, log),
		Sessions: postgres.NewSessionRepository(pg, log),
		close:    pg.Close,
	}, nil
}
