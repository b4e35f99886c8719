// Package homeassistant is the HTTP adapter for the Home Assistant core API and
// the supervisor API.
//
// Every call carries the configured bearer token, is bounded by a timeout and
// returns either a decoded payload or a normalized *HTTPError / *TimeoutError.
// The adapter keeps no state between calls and never retries.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultCoreURL       = "http://supervisor/core/api"
	DefaultSupervisorURL = "http://supervisor"
	DefaultTimeout       = 30 * time.Second

	maxResponseBytes = 16 << 20
)

// Base selects one of the two upstream API roots.
type Base int

const (
	BaseCore Base = iota
	BaseSupervisor
)

// Config is the read-only configuration of a Client.
type Config struct {
	CoreURL       string
	SupervisorURL string
	Token         string
	Timeout       time.Duration
	// HTTPClient overrides the transport. Tests substitute an httptest client.
	HTTPClient *http.Client
}

// Request describes a single upstream call.
type Request struct {
	Base   Base
	Path   string
	Method string
	Body   any
	// Timeout bounds the whole call; zero uses the client default.
	Timeout time.Duration
	// RawText returns the body as a string regardless of the declared
	// content type. Some endpoints label plain text as JSON.
	RawText bool
}

type Client struct {
	coreURL       string
	supervisorURL string
	token         string
	timeout       time.Duration
	httpClient    *http.Client
}

func New(cfg Config) *Client {
	c := &Client{
		coreURL:       strings.TrimRight(strings.TrimSpace(cfg.CoreURL), "/"),
		supervisorURL: strings.TrimRight(strings.TrimSpace(cfg.SupervisorURL), "/"),
		token:         strings.TrimSpace(cfg.Token),
		timeout:       cfg.Timeout,
		httpClient:    cfg.HTTPClient,
	}
	if c.coreURL == "" {
		c.coreURL = DefaultCoreURL
	}
	if c.supervisorURL == "" {
		c.supervisorURL = DefaultSupervisorURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

// HasToken reports whether a credential was configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Do issues req and decodes the response. JSON responses decode into any
// (map[string]any, []any, ...); other content types return a string.
func (c *Client) Do(ctx context.Context, req Request) (any, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	endpointURL := c.baseURL(req.Base) + joinPath(req.Path)

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, endpointURL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, req.Path, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept", "application/json, text/plain;q=0.9")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Method: method, Path: req.Path, Timeout: timeout}
		}
		return nil, fmt.Errorf("%s %s request failed: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &HTTPError{
			Method:     method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       truncateErrorBody(string(payload)),
		}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Method: method, Path: req.Path, Timeout: timeout}
		}
		return nil, fmt.Errorf("read %s %s response: %w", method, req.Path, err)
	}

	if req.RawText || !isJSONContentType(resp.Header.Get("Content-Type")) {
		return string(payload), nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode %s %s response: %w", method, req.Path, err)
	}
	return out, nil
}

func (c *Client) baseURL(b Base) string {
	if b == BaseSupervisor {
		return c.supervisorURL
	}
	return c.coreURL
}

func joinPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func isJSONContentType(v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
