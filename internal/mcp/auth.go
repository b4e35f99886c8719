package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Authorizer decides whether an HTTP request may reach the MCP endpoint.
type Authorizer func(r *http.Request) bool

// BearerTokenAuthorizer accepts requests carrying one of tokens as a bearer
// credential. With no non-empty tokens every request is accepted.
func BearerTokenAuthorizer(tokens ...string) Authorizer {
	allowed := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		allowed = append(allowed, []byte(t))
	}

	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}

		h := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(h, prefix) {
			return false
		}
		got := strings.TrimSpace(strings.TrimPrefix(h, prefix))
		if got == "" {
			return false
		}
		gb := []byte(got)
		for _, want := range allowed {
			if subtle.ConstantTimeCompare(gb, want) == 1 {
				return true
			}
		}
		return false
	}
}

// WithHTTPAuthorizer guards POST /mcp. The health endpoint stays open.
func WithHTTPAuthorizer(a Authorizer) Option {
	return func(s *Server) {
		s.authorize = a
	}
}

func requireAuthorized(authorize Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authorize == nil || authorize(c.Request) {
			c.Next()
			return
		}
		c.Header("WWW-Authenticate", `Bearer realm="hamcp"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}
