// Package mcp exposes the operation catalog as a Model Context Protocol tool
// server. Messages are JSON-RPC 2.0, read from a byte stream framed either
// with Content-Length headers or one message per line.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/tools"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "home-assistant"
	maxMessageBytes = 8 << 20

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Catalog is the read-only view of the operation registry used by the server.
type Catalog interface {
	Descriptors() []tools.Descriptor
	Lookup(name string) (tools.Descriptor, bool)
}

type Server struct {
	In  io.Reader
	Out io.Writer

	catalog   Catalog
	schemas   map[string]*gojsonschema.Schema
	logger    *slog.Logger
	version   string
	authorize Authorizer

	writeMu sync.Mutex
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version reported in the initialize handshake.
func WithVersion(version string) Option {
	return func(s *Server) {
		if v := strings.TrimSpace(version); v != "" {
			s.version = v
		}
	}
}

// NewServer builds a server over catalog. Argument schemas are compiled once;
// a descriptor whose schema does not compile is served without validation.
func NewServer(in io.Reader, out io.Writer, catalog Catalog, opts ...Option) *Server {
	s := &Server{
		In:      in,
		Out:     out,
		catalog: catalog,
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  slog.New(slog.DiscardHandler),
		version: "0.0.0-dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if catalog != nil {
		for _, d := range catalog.Descriptors() {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.InputSchema))
			if err != nil {
				s.logger.Error("tool_schema_invalid", "tool", d.Name, "err", err)
				continue
			}
			s.schemas[d.Name] = schema
		}
	}
	return s
}

// Serve reads requests until the input is exhausted or ctx is cancelled,
// including while a read is blocked. tools/call requests run concurrently;
// Serve returns only after every in-flight call has written its response.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("nil mcp server")
	}
	if s.In == nil {
		return errors.New("nil input reader")
	}
	if s.Out == nil {
		return errors.New("nil output writer")
	}
	if s.catalog == nil {
		return errors.New("nil tool catalog")
	}

	var inflight conc.WaitGroup
	defer inflight.Wait()

	done := make(chan struct{})
	defer close(done)
	messages := s.readMessages(done)

	for {
		var msg inbound
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			msg = m
		}

		payload, fr := msg.payload, msg.framing
		if msg.err != nil {
			var fe *frameError
			if !errors.As(msg.err, &fe) {
				if errors.Is(msg.err, io.EOF) {
					return nil
				}
				return msg.err
			}
			s.logger.Warn("mcp_frame_invalid", "err", msg.err)
			if werr := s.write(parseErrorResponse(), fr); werr != nil {
				return werr
			}
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			if werr := s.write(parseErrorResponse(), fr); werr != nil {
				return werr
			}
			continue
		}

		if req.Method == "tools/call" && req.ID != nil {
			inflight.Go(func() {
				resp := s.handleRequest(ctx, req)
				if err := s.write(resp, fr); err != nil {
					s.logger.Error("mcp_write_failed", "method", req.Method, "err", err)
				}
			})
			continue
		}

		resp := s.handleRequest(ctx, req)
		if resp == nil {
			continue
		}
		if err := s.write(resp, fr); err != nil {
			return err
		}
	}
}

type inbound struct {
	payload []byte
	framing framing
	err     error
}

// readMessages reads from s.In on its own goroutine so a blocked read does not
// hold up cancellation. The channel closes after the first error that is not
// a frameError, or once done is closed.
func (s *Server) readMessages(done <-chan struct{}) <-chan inbound {
	out := make(chan inbound)
	go func() {
		defer close(out)
		r := bufio.NewReaderSize(s.In, 64<<10)
		for {
			payload, fr, err := readMessage(r)
			select {
			case out <- inbound{payload: payload, framing: fr, err: err}:
			case <-done:
				return
			}
			var fe *frameError
			if err != nil && !errors.As(err, &fe) {
				return
			}
		}
	}()
	return out
}

func (s *Server) write(resp *rpcResponse, fr framing) error {
	if resp == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeMessage(s.Out, resp, fr)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []toolDescriptor `json:"tools"`
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type toolsCallResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) handleRequest(ctx context.Context, req rpcRequest) *rpcResponse {
	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}

	switch req.Method {
	case "initialize":
		return &rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: initializeResult{
				ProtocolVersion: protocolVersion,
				Capabilities: map[string]any{
					"tools": map[string]any{},
				},
				ServerInfo: serverInfo{
					Name:    serverName,
					Version: s.version,
				},
			},
		}
	case "notifications/initialized":
		return nil
	case "ping":
		if req.ID == nil {
			return nil
		}
		return &rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]any{},
		}
	case "tools/list":
		if req.ID == nil {
			return nil
		}
		return &rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  toolsListResult{Tools: s.toolDescriptors()},
		}
	case "tools/call":
		if req.ID == nil {
			return nil
		}
		var params toolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.errorResponse(req.ID, codeInvalidParams, "invalid params")
		}
		name := strings.TrimSpace(params.Name)
		if name == "" {
			return s.errorResponse(req.ID, codeInvalidParams, "invalid params: missing tool name")
		}
		d, ok := s.catalog.Lookup(name)
		if !ok {
			return s.errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("unknown tool %q", name))
		}
		if params.Arguments == nil {
			params.Arguments = map[string]any{}
		}
		if problems := s.validateArguments(name, params.Arguments); len(problems) > 0 {
			s.logger.Info("tool_call_rejected", "tool", name, "problems", problems)
			resp := s.errorResponse(req.ID, codeInvalidParams, "invalid params: "+strings.Join(problems, "; "))
			resp.Error.Data = map[string]any{"tool": name, "errors": problems}
			return resp
		}

		return &rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  s.callTool(ctx, d, params.Arguments),
		}
	default:
		if req.ID == nil {
			return nil
		}
		return s.errorResponse(req.ID, codeMethodNotFound, "method not found")
	}
}

func (s *Server) errorResponse(id any, code int, msg string) *rpcResponse {
	return &rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &rpcError{
			Code:    code,
			Message: msg,
		},
	}
}

func parseErrorResponse() *rpcResponse {
	return &rpcResponse{
		JSONRPC: "2.0",
		Error:   &rpcError{Code: codeParseError, Message: "parse error"},
	}
}

// validateArguments returns one message per schema violation.
func (s *Server) validateArguments(name string, args map[string]any) []string {
	schema, ok := s.schemas[name]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return []string{err.Error()}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems
}

func (s *Server) callTool(ctx context.Context, d tools.Descriptor, args map[string]any) (result toolsCallResult) {
	invocationID := uuid.NewString()
	started := time.Now()

	ctx, span := otel.Tracer("hamcp/mcp").Start(ctx, "tools/call "+d.Name)
	span.SetAttributes(
		attribute.String("mcp.tool", d.Name),
		attribute.String("mcp.invocation_id", invocationID),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("tool_call_panic", "invocation_id", invocationID, "tool", d.Name, "panic", fmt.Sprint(rec))
			span.SetStatus(codes.Error, "panic")
			result = toolErrorf("internal error in %s", d.Name)
		}
	}()

	text, err := d.Handler(ctx, args)
	elapsed := time.Since(started)
	if err != nil {
		s.logger.Warn("tool_call",
			"invocation_id", invocationID,
			"tool", d.Name,
			"duration_ms", elapsed.Milliseconds(),
			"result", "error",
			"err", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return toolErrorf("%v", err)
	}
	s.logger.Info("tool_call",
		"invocation_id", invocationID,
		"tool", d.Name,
		"duration_ms", elapsed.Milliseconds(),
		"result", "success",
	)
	return toolSuccess(text)
}

func toolSuccess(text string) toolsCallResult {
	return toolsCallResult{
		Content: []toolContent{
			{Type: "text", Text: text},
		},
	}
}

func toolErrorf(format string, args ...any) toolsCallResult {
	msg := fmt.Sprintf(format, args...)
	return toolsCallResult{
		Content: []toolContent{
			{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func (s *Server) toolDescriptors() []toolDescriptor {
	ds := s.catalog.Descriptors()
	out := make([]toolDescriptor, 0, len(ds))
	for _, d := range ds {
		out = append(out, toolDescriptor{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return out
}

// framing records how a request arrived so the reply can use the same form.
type framing int

const (
	framingLine framing = iota
	framingHeader
)

// frameError reports a malformed or oversized message. The stream is still
// positioned at the next message.
type frameError struct {
	msg string
}

func (e *frameError) Error() string { return e.msg }

// readMessage returns the next message payload. A line that starts like a
// header ("Content-Length: 42") begins a header-framed message; any other
// non-blank line is a whole message on its own.
func readMessage(r *bufio.Reader) ([]byte, framing, error) {
	for {
		line, err := readLine(r)
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return nil, framingLine, err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !isHeaderLine(trimmed) {
			return []byte(trimmed), framingLine, nil
		}
		payload, err := readFrame(r, trimmed)
		return payload, framingHeader, err
	}
}

// readLine returns the next line including its terminator. A line longer than
// maxMessageBytes is discarded chunk by chunk and reported as a frameError.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > maxMessageBytes {
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = r.ReadSlice('\n')
			}
			return "", &frameError{msg: "message too large"}
		}
		buf = append(buf, chunk...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return string(buf), err
		}
	}
}

func isHeaderLine(line string) bool {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return false
	}
	return !strings.ContainsAny(line[:colon], " \t{[\"")
}

// readFrame reads the remaining headers after first and the payload they
// announce.
func readFrame(r *bufio.Reader, first string) ([]byte, error) {
	contentLength := -1
	line := first
	for {
		colon := strings.IndexByte(line, ':')
		if colon > 0 {
			key := strings.TrimSpace(line[:colon])
			val := strings.TrimSpace(line[colon+1:])
			if strings.EqualFold(key, "Content-Length") {
				n, err := strconv.Atoi(val)
				if err != nil || n < 0 {
					return nil, &frameError{msg: "invalid content length"}
				}
				contentLength = n
			}
		}

		next, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		line = strings.TrimRight(next, "\r\n")
		if line == "" {
			break
		}
	}
	if contentLength < 0 {
		return nil, &frameError{msg: "missing content length"}
	}
	if contentLength > maxMessageBytes {
		return nil, &frameError{msg: fmt.Sprintf("content length %d exceeds limit", contentLength)}
	}
	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &frameError{msg: "truncated message"}
		}
		return nil, err
	}
	return payload, nil
}

func writeMessage(w io.Writer, msg any, fr framing) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if fr == framingLine {
		payload = append(payload, '\n')
		_, err = w.Write(payload)
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
