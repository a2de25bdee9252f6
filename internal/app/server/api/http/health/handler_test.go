package health

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"fieldsync/internal/app/server/api/http/envelope"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestHandler_reachability(t *testing.T) {
	handler := NewHandler("memory", slog.Default(), huma.Middlewares{})
	at := time.Date(2024, 5, 20, 9, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	handler.now = func() time.Time { return at }

	output, err := handler.reachability(context.Background(), &Input{})

	require.NoError(t, err)
	assert.True(t, output.Body.Success)
	assert.Equal(t, Status{
		Status:     "OK",
		Storage:    "memory",
		ServerTime: at.UTC(),
		Domains:    []string{"attendance", "ticket-updates", "site-logs", "chiller-readings"},
	}, output.Body.Data)
}

func TestHandler_Route(t *testing.T) {
	_, api := humatest.New(t, envelope.Config("test", "1.0.0"))
	NewHandler("postgres", slog.Default(), nil).SetupRoutes(api)

	resp := api.Get("/api/v1/health")

	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Success bool   `json:"success"`
		Data    Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "OK", body.Data.Status)
	assert.Equal(t, "postgres", body.Data.Storage)
	assert.False(t, body.Data.ServerTime.IsZero())
	assert.Contains(t, body.Data.Domains, "attendance")
}
