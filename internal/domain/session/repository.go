package session

import (
	"context"
	"time"
)

// Repository stores issued device tokens by hash. Validate returns ErrInvalidToken for unknown
// or expired tokens.
type Repository interface {
	Create(ctx context.Context, deviceID, tokenHash string, expiresAt time.Time) error
	Validate(ctx context.Context, tokenHash string, now time.Time) (string, error)
}
