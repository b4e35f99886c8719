package homeassistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	maxErrorBodyBytes   = 64 << 10
	maxErrorExcerptSize = 256
)

// HTTPError is returned for any upstream response outside 2xx.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	verb := strings.ToUpper(strings.TrimSpace(e.Method))
	if verb == "" {
		verb = "REQUEST"
	}
	base := fmt.Sprintf("%s %s returned status %d", verb, e.Path, e.StatusCode)
	switch e.StatusCode {
	case http.StatusUnauthorized:
		base = fmt.Sprintf("authentication failed for %s %s (status 401; check the supervisor token)", verb, e.Path)
	case http.StatusForbidden:
		base = fmt.Sprintf("authorization denied for %s %s (status 403)", verb, e.Path)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		base = fmt.Sprintf("Home Assistant is unavailable for %s %s (status %d)", verb, e.Path, e.StatusCode)
	}
	if e.Body == "" {
		return base
	}
	return base + ": " + e.Body
}

// IsStatus reports whether err is an *HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == code
}

// TimeoutError is returned when the upstream does not answer within the
// request timeout.
type TimeoutError struct {
	Method  string
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s timed out after %s", e.Method, e.Path, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

func truncateErrorBody(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= maxErrorExcerptSize {
		return s
	}
	return s[:maxErrorExcerptSize] + "..."
}
