package session

import (
	"context"

	"fieldsync/internal/app/server/api/http/envelope"
	"fieldsync/internal/app/server/api/http/middleware/auth"
	"fieldsync/internal/domain/session"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		session:    session,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.createOp(), h.create)
}

func (h *Handler) create(ctx context.Context, input *createInput) (*output, error) {
	token, err := h.session.Create(ctx, input.Body.DeviceID)
	if err != nil {
		return nil, envelope.FromError(err)
	}

	caller, _ := auth.Caller(ctx)
	h.log.Info("device token issued over API", slog.String("device_id", input.Body.DeviceID), slog.String("issued_by", caller))

	return &output{
		Body: envelope.OK(createResponse{Token: token, DeviceID: input.Body.DeviceID}),
	}, nil
}
