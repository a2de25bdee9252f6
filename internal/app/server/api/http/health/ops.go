package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) reachabilityOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-server-reachability",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Sync server reachability",
		Description: "Devices call this before a sync pass. Any non-200 answer means the pass is skipped and the queues stay intact.",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
