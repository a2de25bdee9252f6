package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

const baseURL = "http://fieldsync.test/api/v1"

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	cfg := DefaultConfig(baseURL)
	cfg.BaseDelay = time.Millisecond

	c := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mt := httpmock.NewMockTransport()
	c.client.Transport = mt
	return c, mt
}

// sequence answers with the given statuses in order, repeating the last one.
func sequence(statuses ...int) httpmock.Responder {
	i := 0
	return func(*http.Request) (*http.Response, error) {
		status := statuses[len(statuses)-1]
		if i < len(statuses) {
			status = statuses[i]
		}
		i++
		if status >= 200 && status < 300 {
			return httpmock.NewStringResponse(status, `{"success":true,"data":{"id":"srv-1"}}`), nil
		}
		return httpmock.NewStringResponse(status, `{"success":false,"error":"boom"}`), nil
	}
}

func TestClient_Do_Classification(t *testing.T) {
	tests := []struct {
		name         string
		responder    httpmock.Responder
		wantKind     Kind
		wantAttempts int
		wantErr      error
	}{
		{
			name:         "503 twice then 200",
			responder:    sequence(503, 503, 200),
			wantKind:     KindOK,
			wantAttempts: 3,
		},
		{
			name:         "404 is not retried",
			responder:    sequence(404),
			wantKind:     KindPermanent,
			wantAttempts: 1,
			wantErr:      ErrPermanent,
		},
		{
			name:         "401 is not retried",
			responder:    sequence(401),
			wantKind:     KindUnauthorized,
			wantAttempts: 1,
			wantErr:      ErrUnauthorized,
		},
		{
			name:         "5xx exhausts attempts",
			responder:    sequence(500),
			wantKind:     KindTransient,
			wantAttempts: 3,
			wantErr:      ErrTransient,
		},
		{
			name:         "network error is retried",
			responder:    httpmock.NewErrorResponder(errors.New("connection reset")),
			wantKind:     KindTransient,
			wantAttempts: 3,
			wantErr:      ErrTransient,
		},
		{
			name:         "success false in 2xx",
			responder:    httpmock.NewStringResponder(200, `{"success":false,"error":"duplicate punch"}`),
			wantKind:     KindRejected,
			wantAttempts: 1,
			wantErr:      ErrRejected,
		},
		{
			name:         "unparseable 2xx body",
			responder:    httpmock.NewStringResponder(200, `<html>`),
			wantKind:     KindPermanent,
			wantAttempts: 1,
			wantErr:      ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := newTestClient(t)
			mt.RegisterResponder(http.MethodPost, baseURL+"/attendance", tt.responder)

			res := c.Do(context.Background(), Request{
				Method: http.MethodPost,
				Path:   "/attendance",
				Body:   json.RawMessage(`{"userId":"u1"}`),
			})

			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.wantAttempts, res.Attempts)
			assert.Equal(t, tt.wantAttempts, mt.GetTotalCallCount())
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
			} else {
				assert.NoError(t, res.Err)
			}
		})
	}
}

func TestClient_Do_Headers(t *testing.T) {
	c, mt := newTestClient(t)

	mt.RegisterResponder(http.MethodPut, baseURL+"/tickets/T-7", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
		assert.Equal(t, "local-1", req.Header.Get("Idempotency-Key"))
		assert.Equal(t, "status", req.Header.Get("X-Update-Type"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"resolved"}`, string(body))

		return httpmock.NewStringResponse(200, `{"success":true,"data":{"id":42}}`), nil
	})

	res := c.Do(context.Background(), Request{
		Method:         http.MethodPut,
		Path:           "tickets/T-7",
		Body:           json.RawMessage(`{"status":"resolved"}`),
		Token:          "tok-1",
		IdempotencyKey: "local-1",
		Header:         http.Header{"X-Update-Type": []string{"status"}},
	})
	require.True(t, res.OK(), res.Err)

	id, err := res.ServerID()
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestClient_Do_Query(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, baseURL+"/site-logs", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "2024-05-01", req.URL.Query().Get("fromDate"))
		return httpmock.NewStringResponse(200, `{"success":true,"data":[]}`), nil
	})

	res := c.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/site-logs",
		Query:  url.Values{"fromDate": []string{"2024-05-01"}},
	})
	require.True(t, res.OK(), res.Err)
	assert.JSONEq(t, `[]`, string(res.Data))
}

func TestClient_Do_ContextCancelledStopsRetries(t *testing.T) {
	c, mt := newTestClient(t)
	c.cfg.BaseDelay = time.Hour
	mt.RegisterResponder(http.MethodPost, baseURL+"/site-logs", sequence(503))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := c.Do(ctx, Request{Method: http.MethodPost, Path: "/site-logs", Body: json.RawMessage(`{}`)})
	assert.Equal(t, KindTransient, res.Kind)
	assert.Equal(t, 1, res.Attempts)
}

func TestServerID(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"id":"srv-1"}`, "srv-1"},
		{`{"id":1234}`, "1234"},
		{`{"id":null}`, ""},
		{`{"name":"x"}`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		got, err := ServerID(json.RawMessage(tt.data))
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.want, got, tt.data)
	}

	_, err := ServerID(json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClient_HealthCheck(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, baseURL+"/health", httpmock.NewStringResponder(200, `{"status":"OK"}`))
	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.True(t, c.Reachable(context.Background()))

	down, dmt := newTestClient(t)
	dmt.RegisterResponder(http.MethodGet, baseURL+"/health", httpmock.NewStringResponder(503, ``))
	assert.Error(t, down.HealthCheck(context.Background()))
	assert.False(t, down.Reachable(context.Background()))
}
