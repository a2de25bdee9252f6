package auth

import (
	"context"
	"net/http"
	"strings"

	"fieldsync/internal/domain/session"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Auth struct {
	session session.Servicer
	log     *slog.Logger
}

func New(session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		session: session,
		log:     log.With(slog.String("component", "auth_middleware")),
	}
}

type contextKey string

const CallerKey contextKey = "caller"

// Middleware rejects requests without a valid bearer token and stores the caller in the context.
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			a.log.Debug("missing bearer token", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx)
			return
		}

		caller, err := a.session.Validate(ctx.Context(), token)
		if err != nil {
			a.log.Warn("token rejected", slog.String("path", ctx.URL().Path), slog.String("error", err.Error()))
			a.unauthorized(ctx)
			return
		}

		newCtx := context.WithValue(ctx.Context(), CallerKey, caller)
		next(huma.WithContext(ctx, newCtx))
	}
}

func (a *Auth) unauthorized(ctx huma.Context) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)
	if _, err := ctx.BodyWriter().Write([]byte(`{"success":false,"error":"unauthorized"}` + "\n")); err != nil {
		a.log.Error("write unauthorized response", slog.String("error", err.Error()))
	}
}

// Caller returns the authenticated caller stored by Middleware.
func Caller(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(CallerKey).(string)
	return caller, ok
}
