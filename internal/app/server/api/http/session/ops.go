package session

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "session-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Issue a device token",
		Description:   "An authenticated operator issues a bearer token for a field device.",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
	}
}
