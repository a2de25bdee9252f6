package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/exp/slog"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second

	maxResponseBytes = 8 << 20
	healthTimeout    = 10 * time.Second
)

// Config tunes the HTTP transport.
type Config struct {
	BaseURL string
	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxAttempts counts the first try.
	MaxAttempts int
	// BaseDelay is the wait after the first failed attempt; it doubles on each retry.
	BaseDelay time.Duration
	UserAgent string
}

// DefaultConfig returns the production retry policy for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		UserAgent:   "FieldSync-Client/1.0",
	}
}

// Request describes one API call. Path is relative to Config.BaseURL.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Body           json.RawMessage
	Token          string
	IdempotencyKey string
	Header         http.Header
}

// Client performs API calls with timeout and retry. It never returns a Go error for a failed
// call; every outcome is a Result.
type Client struct {
	client *http.Client
	cfg    Config
	log    *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		cfg: cfg,
		log: log.With(slog.String("component", "transport")),
	}
}

// Do sends req, retrying transient failures with exponential backoff.
func (c *Client) Do(ctx context.Context, req Request) Result {
	var (
		res      Result
		attempts int
	)

	op := func() error {
		attempts++
		res = c.attempt(ctx, req)
		switch res.Kind {
		case KindOK:
			return nil
		case KindTransient:
			return res.Err
		default:
			return backoff.Permanent(res.Err)
		}
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn("request failed, retrying",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil && res.Err == nil {
		// The context ended before the first attempt completed.
		res = Result{Kind: KindTransient, Err: fmt.Errorf("%w: %v", ErrTransient, err)}
	}
	res.Attempts = attempts
	return res
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = c.cfg.BaseDelay << uint(c.cfg.MaxAttempts)
	eb.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.MaxAttempts-1)), ctx)
}

func (c *Client) attempt(ctx context.Context, req Request) Result {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.url(req.Path, req.Query), body)
	if err != nil {
		return Result{Kind: KindPermanent, Err: fmt.Errorf("%w: build request: %v", ErrPermanent, err)}
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{Kind: KindTransient, Err: fmt.Errorf("%w: %v", ErrTransient, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{Kind: KindTransient, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: read body: %v", ErrTransient, err)}
	}

	c.log.Debug("HTTP request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return classify(resp.StatusCode, data)
}

func (c *Client) url(path string, query url.Values) string {
	u := c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// HealthCheck probes GET /health without retries.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health", nil), nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Reachable reports whether the server answers the health probe.
func (c *Client) Reachable(ctx context.Context) bool {
	err := c.HealthCheck(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Debug("server not reachable", slog.String("error", err.Error()))
	}
	return err == nil
}
