package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldsync/internal/domain/session"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"
)

type SessionRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSessionRepository(db *Storage, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log.With(slog.String("component", "session_repository")),
	}
}

func (r *SessionRepository) Create(ctx context.Context, deviceID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sessions (token_hash, device_id, expires_at) VALUES ($1, $2, $3)`,
		tokenHash, deviceID, expiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Validate(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var deviceID string
	err := r.db.Pool().QueryRow(ctx,
		`SELECT device_id FROM sessions WHERE token_hash = $1 AND expires_at > $2`,
		tokenHash, now).Scan(&deviceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", session.ErrInvalidToken
	}
	if err != nil {
		r.log.Error("failed to validate session", slog.String("error", err.Error()))
		return "", fmt.Errorf("validate session: %w", err)
	}
	return deviceID, nil
}
