package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPHandler serves the same JSON-RPC surface over HTTP. POST /mcp carries
// exactly one message per request; notifications are answered with 202.
// GET /healthz reports liveness without authorization.
func (s *Server) HTTPHandler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", s.handleHealthz)
	engine.POST("/mcp", requireAuthorized(s.authorize), s.handleHTTPMessage)
	return otelhttp.NewHandler(engine, "hamcp.mcp")
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tools":  len(s.catalog.Descriptors()),
	})
}

func (s *Server) handleHTTPMessage(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, parseErrorResponse())
			return
		}
		c.JSON(http.StatusBadRequest, parseErrorResponse())
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusOK, parseErrorResponse())
		return
	}

	resp := s.handleRequest(c.Request.Context(), req)
	if resp == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.JSON(http.StatusOK, resp)
}
