// Package api wires the development sync server.
//
//	GET  /api/v1/health                 # reachability probe (public)
//	POST /api/v1/sessions               # issue a device token
//	POST /api/v1/{attendance|site-logs|chiller-readings}
//	PUT  /api/v1/{attendance|site-logs|chiller-readings}/{id}
//	PUT  /api/v1/tickets/{id}           # apply a queued ticket update
//	GET  /api/v1/{resource}?fromDate=   # bulk pull
//	GET  /api/v1/{sites|asset-areas|ticket-categories}
package api

import (
	"net/http"

	"fieldsync/internal/app/server/api/http/envelope"
	healthAPI "fieldsync/internal/app/server/api/http/health"
	"fieldsync/internal/app/server/api/http/middleware"
	"fieldsync/internal/app/server/api/http/middleware/auth"
	"fieldsync/internal/app/server/api/http/middleware/logger"
	recordAPI "fieldsync/internal/app/server/api/http/record"
	sessionAPI "fieldsync/internal/app/server/api/http/session"
	syncAPI "fieldsync/internal/app/server/api/http/sync"
	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/session"
	"fieldsync/internal/infrastructure/storage"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health  *healthAPI.Handler
	Session *sessionAPI.Handler
	Record  *recordAPI.Handler
	Sync    *syncAPI.Handler
}

// Services are the domain services behind the API.
type Services struct {
	Ingest  ingest.Servicer
	Session session.Servicer
}

// NewServices builds the domain services over a storage backend.
func NewServices(backend *storage.Backend, static session.StaticVerifier, log *slog.Logger, opts ...session.Option) *Services {
	return &Services{
		Ingest:  ingest.NewService(backend.Ingest, log),
		Session: session.NewService(backend.Sessions, static, log, opts...),
	}
}

// New creates the *chi.Mux with every operation registered through huma.
func New(services *Services, storageKind string, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		_ = envelope.Write(w, http.StatusNotFound, "not found")
	})

	API := humachi.New(mux, envelope.Config("FieldSync API", "1.0.0"))

	h := handlers(services, storageKind, log)
	h.Health.SetupRoutes(API)
	h.Session.SetupRoutes(API)
	h.Record.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(services *Services, storageKind string, log *slog.Logger) *Handlers {
	authMW := auth.New(services.Session, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(storageKind, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	sessionHandler := sessionAPI.NewHandler(services.Session, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	recordHandler := recordAPI.NewHandler(services.Ingest, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	syncHandler := syncAPI.NewHandler(services.Ingest, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:  healthHandler,
		Session: sessionHandler,
		Record:  recordHandler,
		Sync:    syncHandler,
	}
}

