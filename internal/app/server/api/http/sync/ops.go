package sync

import (
	"net/http"

	"fieldsync/internal/domain/record"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp(d record.Domain) huma.Operation {
	return huma.Operation{
		OperationID: "list-" + d.String(),
		Method:      http.MethodGet,
		Path:        "/api/v1/" + d.Resource(),
		Summary:     "List " + d.DisplayName(),
		Description: "Bulk pull used to bootstrap a device, oldest first.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) referenceOp(key string) huma.Operation {
	return huma.Operation{
		OperationID: "reference-" + key,
		Method:      http.MethodGet,
		Path:        "/api/v1/" + key,
		Summary:     "Reference list " + key,
		Tags:        []string{"reference"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
