package health

import (
	"context"
	"time"

	"fieldsync/internal/app/server/api/http/envelope"
	"fieldsync/internal/domain/record"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	storage    string
	domains    []string
	now        func() time.Time
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(storage string, log *slog.Logger, middleware huma.Middlewares) *Handler {
	domains := make([]string, 0, len(record.SyncOrder))
	for _, d := range record.SyncOrder {
		domains = append(domains, d.String())
	}
	return &Handler{
		storage:    storage,
		domains:    domains,
		now:        time.Now,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.reachabilityOp(), h.reachability)
}

func (h *Handler) reachability(_ context.Context, _ *Input) (*Output, error) {
	h.log.Debug("reachability check", slog.String("storage", h.storage))

	return &Output{
		Body: envelope.OK(Status{
			Status:     "OK",
			Storage:    h.storage,
			ServerTime: h.now().UTC(),
			Domains:    h.domains,
		}),
	}, nil
}
