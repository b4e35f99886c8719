// Package tools holds the fixed catalog of Home Assistant operations exposed
// to agents. Each operation is a Descriptor: a JSON Schema for its arguments,
// a handler that composes upstream calls, and a text formatter.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/homeassistant"
)

// ErrNotFound marks lookups the upstream could not satisfy.
var ErrNotFound = errors.New("not found")

// Upstream is the subset of *homeassistant.Client used by handlers.
type Upstream interface {
	Do(ctx context.Context, req homeassistant.Request) (any, error)
}

// Handler executes one operation and returns the formatted result text.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Descriptor describes one operation of the catalog.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

type Registry struct {
	upstream Upstream
	now      func() time.Time
	tools    map[string]Descriptor
}

type Option func(*Registry)

// WithClock overrides the time source used for relative time windows.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(upstream Upstream, opts ...Option) *Registry {
	r := &Registry{
		upstream: upstream,
		now:      time.Now,
		tools:    make(map[string]Descriptor),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, d := range []Descriptor{
		r.getEntitiesTool(),
		r.getEntityStateTool(),
		r.callServiceTool(),
		r.getAreasTool(),
		r.getDevicesTool(),
		r.getAutomationsTool(),
		r.getIntegrationsTool(),
		r.restartTool(),
		r.reloadConfigTool(),
		r.getLogsTool(),
		r.getHistoryTool(),
		r.fireEventTool(),
		r.renderTemplateTool(),
	} {
		r.register(d)
	}
	return r
}

func (r *Registry) register(d Descriptor) {
	if _, exists := r.tools[d.Name]; exists {
		panic(fmt.Sprintf("tools: duplicate operation %q", d.Name))
	}
	r.tools[d.Name] = d
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// Descriptors returns the catalog ordered by name.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named operation. Arguments are expected to be schema-valid;
// handlers still reject values of the wrong type.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	d, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return d.Handler(ctx, args)
}

func (r *Registry) core(ctx context.Context, method, path string, body any) (any, error) {
	return r.upstream.Do(ctx, homeassistant.Request{
		Base:   homeassistant.BaseCore,
		Method: method,
		Path:   path,
		Body:   body,
	})
}

func (r *Registry) coreText(ctx context.Context, method, path string, body any) (string, error) {
	out, err := r.upstream.Do(ctx, homeassistant.Request{
		Base:    homeassistant.BaseCore,
		Method:  method,
		Path:    path,
		Body:    body,
		RawText: true,
	})
	if err != nil {
		return "", err
	}
	return textFromAny(out), nil
}

func (r *Registry) supervisorText(ctx context.Context, path string) (string, error) {
	out, err := r.upstream.Do(ctx, homeassistant.Request{
		Base:    homeassistant.BaseSupervisor,
		Method:  http.MethodGet,
		Path:    path,
		RawText: true,
	})
	if err != nil {
		return "", err
	}
	return textFromAny(out), nil
}

func textFromAny(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// decodeInto re-decodes a generic JSON value into a typed destination.
func decodeInto(v any, dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
