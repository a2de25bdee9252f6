package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

// DefaultTTL is the lifetime of an issued device token.
const DefaultTTL = 30 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid session")
	ErrEmptyDevice  = errors.New("device id is required")
)

type Servicer interface {
	Create(ctx context.Context, deviceID string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
}

// StaticVerifier checks tokens configured out of band. It returns the caller name on success.
type StaticVerifier interface {
	Verify(token string) (string, bool)
}

// Service issues device tokens and validates bearer tokens. Static tokens are checked first,
// then issued tokens by the sha256 of their value.
type Service struct {
	repo   Repository
	static StaticVerifier
	ttl    time.Duration
	now    func() time.Time
	log    *slog.Logger
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, static StaticVerifier, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		static: static,
		ttl:    DefaultTTL,
		now:    time.Now,
		log:    log.With(slog.String("component", "session")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new token for deviceID.
func (s *Service) Create(ctx context.Context, deviceID string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", ErrEmptyDevice
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	expiresAt := s.now().Add(s.ttl)
	if err := s.repo.Create(ctx, deviceID, hashToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	s.log.Info("device token issued", slog.String("device_id", deviceID), slog.Time("expires_at", expiresAt))
	return token, nil
}

// Validate returns the caller the token belongs to.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	if s.static != nil {
		if caller, ok := s.static.Verify(token); ok {
			return caller, nil
		}
	}
	if s.repo == nil {
		return "", ErrInvalidToken
	}
	return s.repo.Validate(ctx, hashToken(token), s.now())
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
