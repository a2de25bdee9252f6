package record

import (
	"context"
	"encoding/json"

	"fieldsync/internal/app/server/api/http/envelope"
	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/record"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Writable domains accept POST and PUT.
var Writable = []record.Domain{record.DomainAttendance, record.DomainSiteLogs, record.DomainChillerReadings}

type Handler struct {
	service    ingest.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service ingest.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	for _, d := range Writable {
		huma.Register(api, h.submitOp(d), h.submit(d))
		huma.Register(api, h.replaceOp(d), h.replace(d))
	}
	huma.Register(api, h.ticketUpdateOp(), h.updateTicket)
}

func (h *Handler) submit(d record.Domain) func(context.Context, *submitInput) (*output, error) {
	return func(ctx context.Context, input *submitInput) (*output, error) {
		item, err := h.service.Submit(ctx, d, json.RawMessage(input.RawBody), input.IdempotencyKey)
		if err != nil {
			return nil, envelope.FromError(err)
		}
		return h.respond(item)
	}
}

func (h *Handler) replace(d record.Domain) func(context.Context, *replaceInput) (*output, error) {
	return func(ctx context.Context, input *replaceInput) (*output, error) {
		item, err := h.service.Replace(ctx, d, input.ID, json.RawMessage(input.RawBody), input.IdempotencyKey)
		if err != nil {
			return nil, envelope.FromError(err)
		}
		return h.respond(item)
	}
}

func (h *Handler) updateTicket(ctx context.Context, input *ticketUpdateInput) (*output, error) {
	item, err := h.service.UpdateTicket(ctx, input.ID, record.UpdateType(input.UpdateType),
		json.RawMessage(input.RawBody), input.IdempotencyKey)
	if err != nil {
		return nil, envelope.FromError(err)
	}
	return h.respond(item)
}

func (h *Handler) respond(item *ingest.Item) (*output, error) {
	doc, err := item.Document()
	if err != nil {
		h.log.Error("render item", slog.String("error", err.Error()))
		return nil, envelope.FromError(err)
	}
	return &output{Body: envelope.OK(doc)}, nil
}
