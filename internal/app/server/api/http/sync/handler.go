package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldsync/internal/app/server/api/http/envelope"
	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/record"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Pullable domains are served at GET /{resource}.
var Pullable = []record.Domain{
	record.DomainAttendance,
	record.DomainSiteLogs,
	record.DomainChillerReadings,
	record.DomainTickets,
}

type Handler struct {
	service    ingest.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service ingest.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	for _, d := range Pullable {
		huma.Register(api, h.listOp(d), h.list(d))
	}
	for _, key := range ingest.ReferenceKeys {
		huma.Register(api, h.referenceOp(key), h.reference(key))
	}
}

func (h *Handler) list(d record.Domain) func(context.Context, *listInput) (*output, error) {
	return func(ctx context.Context, input *listInput) (*output, error) {
		from, err := parseFromDate(input.FromDate)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		items, err := h.service.List(ctx, d, from)
		if err != nil {
			return nil, envelope.FromError(err)
		}

		docs := make([]json.RawMessage, 0, len(items))
		for _, it := range items {
			doc, err := it.Document()
			if err != nil {
				h.log.Error("render item", slog.String("domain", d.String()), slog.String("error", err.Error()))
				return nil, envelope.FromError(err)
			}
			docs = append(docs, doc)
		}
		return &output{Body: envelope.OK(docs)}, nil
	}
}

func (h *Handler) reference(key string) func(context.Context, *referenceInput) (*output, error) {
	return func(ctx context.Context, _ *referenceInput) (*output, error) {
		value, err := h.service.Reference(ctx, key)
		if err != nil {
			return nil, envelope.FromError(err)
		}
		return &output{Body: envelope.OK(value)}, nil
	}
}

func parseFromDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fromDate %q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return t, nil
}
