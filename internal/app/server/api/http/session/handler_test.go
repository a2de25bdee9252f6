package session

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"fieldsync/internal/app/server/api/http/envelope"
	"fieldsync/internal/app/server/api/http/middleware/auth"
	"fieldsync/internal/domain/session"
	"fieldsync/internal/infrastructure/storage/memory"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type staticTokens map[string]string

func (s staticTokens) Verify(token string) (string, bool) {
	caller, ok := s[token]
	return caller, ok
}

func TestHandler_IssueAndUseDeviceToken(t *testing.T) {
	svc := session.NewService(memory.New().Sessions(), staticTokens{"ops": "operator"}, slog.Default())
	authMW := auth.New(svc, slog.Default())

	_, api := humatest.New(t, envelope.Config("test", "1.0.0"))
	NewHandler(svc, slog.Default(), huma.Middlewares{authMW.Middleware()}).SetupRoutes(api)

	resp := api.Post("/api/v1/sessions", strings.NewReader(`{"deviceId":"tablet-7"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, resp.Body.String())

	resp = api.Post("/api/v1/sessions", "Authorization: Bearer ops", strings.NewReader(`{"deviceId":"tablet-7"}`))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var r struct {
		Success bool           `json:"success"`
		Data    createResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &r))
	assert.True(t, r.Success)
	assert.Equal(t, "tablet-7", r.Data.DeviceID)
	require.NotEmpty(t, r.Data.Token)

	// the issued token authenticates on its own
	resp = api.Post("/api/v1/sessions", "Authorization: Bearer "+r.Data.Token, strings.NewReader(`{"deviceId":"tablet-8"}`))
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestHandler_ValidationError(t *testing.T) {
	svc := session.NewService(memory.New().Sessions(), nil, slog.Default())

	_, api := humatest.New(t, envelope.Config("test", "1.0.0"))
	NewHandler(svc, slog.Default(), nil).SetupRoutes(api)

	resp := api.Post("/api/v1/sessions", strings.NewReader(`{"deviceId":""}`))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	var body envelope.ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Details)
}
