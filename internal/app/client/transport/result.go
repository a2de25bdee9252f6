package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies the outcome of a call.
type Kind int

const (
	KindOK Kind = iota
	// KindTransient covers 5xx, timeouts and network errors. It is retried.
	KindTransient
	// KindPermanent covers 4xx other than 401 and malformed responses.
	KindPermanent
	// KindUnauthorized is a 401. Token refresh is the caller's job.
	KindUnauthorized
	// KindRejected is a 2xx whose envelope reports success=false.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindUnauthorized:
		return "unauthorized"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var (
	ErrTransient    = errors.New("transient failure")
	ErrPermanent    = errors.New("permanent failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRejected     = errors.New("rejected by server")
	ErrMalformed    = errors.New("malformed response")
)

// Envelope is the body shape of every server response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Result is the typed outcome of Do. Err is nil only for KindOK.
type Result struct {
	Kind       Kind
	StatusCode int
	Data       json.RawMessage
	Message    string
	Attempts   int
	Err        error
}

func (r Result) OK() bool {
	return r.Kind == KindOK
}

// ServerID extracts data.id, accepting strings and numbers.
func (r Result) ServerID() (string, error) {
	return ServerID(r.Data)
}

// ServerID extracts the id field of a JSON object.
func ServerID(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	raw := strings.TrimSpace(string(obj.ID))
	switch {
	case raw == "" || raw == "null":
		return "", nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(obj.ID, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(obj.ID, &n); err != nil {
			return "", fmt.Errorf("%w: id is neither string nor number", ErrMalformed)
		}
		return n.String(), nil
	}
}

func classify(status int, body []byte) Result {
	res := Result{StatusCode: status}

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)
	res.Message = env.Error
	if res.Message == "" && status >= 300 {
		res.Message = http.StatusText(status)
	}

	switch {
	case status >= 500:
		res.Kind = KindTransient
		res.Err = fmt.Errorf("%w: status %d: %s", ErrTransient, status, res.Message)
	case status == http.StatusUnauthorized:
		res.Kind = KindUnauthorized
		res.Err = fmt.Errorf("%w: %s", ErrUnauthorized, res.Message)
	case status >= 400:
		res.Kind = KindPermanent
		res.Err = fmt.Errorf("%w: status %d: %s", ErrPermanent, status, res.Message)
	case status >= 200 && status < 300:
		if decodeErr != nil {
			res.Kind = KindPermanent
			res.Err = fmt.Errorf("%w: %v", ErrMalformed, decodeErr)
			return res
		}
		if !env.Success {
			res.Kind = KindRejected
			res.Err = fmt.Errorf("%w: %s", ErrRejected, env.Error)
			return res
		}
		res.Kind = KindOK
		res.Data = env.Data
	default:
		res.Kind = KindPermanent
		res.Err = fmt.Errorf("%w: unexpected status %d", ErrPermanent, status)
	}
	return res
}
