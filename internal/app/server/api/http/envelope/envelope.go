// Package envelope renders every API response as {success, data, error}.
package envelope

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/domain/record"
	"fieldsync/internal/domain/session"

	"github.com/danielgtaylor/huma/v2"
)

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// ErrorBody is the error form of the envelope. It replaces huma's problem+json errors.
type ErrorBody struct {
	status  int
	Success bool     `json:"success"`
	Message string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (e *ErrorBody) Error() string {
	return e.Message
}

func (e *ErrorBody) GetStatus() int {
	return e.status
}

var installOnce sync.Once

// Install makes huma build ErrorBody values for every error it reports, including
// request validation failures.
func Install() {
	installOnce.Do(func() {
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			body := &ErrorBody{status: status, Message: msg}
			for _, err := range errs {
				if err != nil {
					body.Details = append(body.Details, err.Error())
				}
			}
			return body
		}
	})
}

// Write renders an error envelope outside of a huma handler, e.g. from middleware.
func Write(w http.ResponseWriter, status int, msg string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(ErrorBody{Success: false, Message: msg})
}

// Config returns the huma configuration for an envelope API: bearer security scheme, no
// $schema links in bodies, and envelope errors installed.
func Config(title, version string) huma.Config {
	Install()
	cfg := huma.DefaultConfig(title, version)
	cfg.CreateHooks = nil
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}
	return cfg
}

// FromError maps a domain error to an HTTP error.
func FromError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ingest.ErrNotFound), errors.Is(err, ingest.ErrUnknownReference):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, ingest.ErrConflict), errors.Is(err, record.ErrImmutableField):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, record.ErrInvalidPayload), errors.Is(err, record.ErrUnknownUpdate),
		errors.Is(err, record.ErrUnknownDomain), errors.Is(err, ingest.ErrNotWritable),
		errors.Is(err, session.ErrEmptyDevice):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, session.ErrInvalidToken):
		return huma.Error401Unauthorized(err.Error())
	default:
		return huma.Error500InternalServerError("internal error")
	}
}
