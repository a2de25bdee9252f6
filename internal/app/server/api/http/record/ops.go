package record

import (
	"net/http"

	"fieldsync/internal/domain/record"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) submitOp(d record.Domain) huma.Operation {
	return huma.Operation{
		OperationID:   "submit-" + d.String(),
		Method:        http.MethodPost,
		Path:          "/api/v1/" + d.Resource(),
		Summary:       "Create " + d.DisplayName(),
		Description:   "Stores a record captured offline. The Idempotency-Key header makes retries safe.",
		Tags:          []string{d.Resource()},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
	}
}

func (h *Handler) replaceOp(d record.Domain) huma.Operation {
	return huma.Operation{
		OperationID: "replace-" + d.String(),
		Method:      http.MethodPut,
		Path:        "/api/v1/" + d.Resource() + "/{id}",
		Summary:     "Replace " + d.DisplayName(),
		Description: "Overwrites a record edited on the device after it was first uploaded.",
		Tags:        []string{d.Resource()},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) ticketUpdateOp() huma.Operation {
	return huma.Operation{
		OperationID: "update-ticket",
		Method:      http.MethodPut,
		Path:        "/api/v1/tickets/{id}",
		Summary:     "Apply a ticket update",
		Description: "Applies a status transition, detail edit or comment to a server-owned ticket.",
		Tags:        []string{"tickets"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
