package tools

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	defaultLogLines = 100
	maxLogLines     = 10000
)

type coreConfig struct {
	Version    string   `json:"version"`
	Components []string `json:"components"`
}

func (r *Registry) getIntegrationsTool() Descriptor {
	return Descriptor{
		Name:        "get_integrations",
		Description: "List the integrations loaded by Home Assistant and the platform version",
		InputSchema: objectSchema(map[string]any{}),
		Handler:     r.getIntegrations,
	}
}

// integrationNames reduces component identifiers such as "light.hue" to their
// integration ("light"), deduplicated and sorted.
func integrationNames(components []string) []string {
	seen := make(map[string]struct{}, len(components))
	out := make([]string, 0, len(components))
	for _, c := range components {
		name, _, _ := strings.Cut(strings.TrimSpace(c), ".")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) getIntegrations(ctx context.Context, _ map[string]any) (string, error) {
	out, err := r.core(ctx, http.MethodGet, "/config", nil)
	if err != nil {
		return "", err
	}
	var cfg coreConfig
	if err := decodeInto(out, &cfg); err != nil {
		return "", fmt.Errorf("unexpected /config response: %w", err)
	}

	names := integrationNames(cfg.Components)
	version := cfg.Version
	if version == "" {
		version = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Home Assistant version: %s\n", version)
	fmt.Fprintf(&b, "Loaded integrations (%d):", len(names))
	for _, n := range names {
		b.WriteString("\n- ")
		b.WriteString(n)
	}
	return b.String(), nil
}

func (r *Registry) getLogsTool() Descriptor {
	return Descriptor{
		Name:        "get_logs",
		Description: "Get the most recent lines of the Home Assistant core log",
		InputSchema: objectSchema(map[string]any{
			"lines": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     maxLogLines,
				"description": fmt.Sprintf("Number of trailing log lines to return (default %d)", defaultLogLines),
			},
		}),
		Handler: r.getLogs,
	}
}

// tailLines returns the last n lines of text. A trailing newline does not
// count as an empty final line.
func tailLines(text string, n int) []string {
	text = strings.TrimRight(text, "\r\n")
	if text == "" || n <= 0 {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func (r *Registry) getLogs(ctx context.Context, args map[string]any) (string, error) {
	n, err := parseIntArg(args, "lines", defaultLogLines, 1, maxLogLines)
	if err != nil {
		return "", err
	}
	text, err := r.supervisorText(ctx, "/core/logs")
	if err != nil {
		return "", err
	}
	lines := tailLines(text, n)
	if len(lines) == 0 {
		return "No log entries.", nil
	}
	return strings.Join(lines, "\n"), nil
}
