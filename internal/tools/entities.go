package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/homeassistant"
)

const (
	defaultEntityLimit = 200
	maxEntityLimit     = 10000
	defaultHistoryHrs  = 24
	maxHistoryHrs      = 24 * 30
)

type entityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

func (s entityState) friendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && strings.TrimSpace(name) != "" {
		return name
	}
	return s.EntityID
}

func entityDomain(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}

func (r *Registry) states(ctx context.Context) ([]entityState, error) {
	out, err := r.core(ctx, http.MethodGet, "/states", nil)
	if err != nil {
		return nil, err
	}
	var states []entityState
	if err := decodeInto(out, &states); err != nil {
		return nil, fmt.Errorf("unexpected /states response: %w", err)
	}
	return states, nil
}

func (r *Registry) getEntitiesTool() Descriptor {
	return Descriptor{
		Name:        "get_entities",
		Description: "List Home Assistant entities with their current state, optionally filtered by domain (e.g. light, switch, sensor)",
		InputSchema: objectSchema(map[string]any{
			"domain": map[string]any{
				"type":        "string",
				"description": "Entity domain to filter by, e.g. light",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     maxEntityLimit,
				"description": fmt.Sprintf("Maximum number of entities to return (default %d)", defaultEntityLimit),
			},
		}),
		Handler: r.getEntities,
	}
}

func (r *Registry) getEntities(ctx context.Context, args map[string]any) (string, error) {
	domain, err := parseString(args, "domain")
	if err != nil {
		return "", err
	}
	limit, err := parseIntArg(args, "limit", defaultEntityLimit, 1, maxEntityLimit)
	if err != nil {
		return "", err
	}

	states, err := r.states(ctx)
	if err != nil {
		return "", err
	}

	filtered := states
	if domain != "" {
		filtered = make([]entityState, 0, len(states))
		for _, s := range states {
			if entityDomain(s.EntityID) == domain {
				filtered = append(filtered, s)
			}
		}
	}

	label := "entities"
	if domain != "" {
		label = domain + " entities"
	}

	lines := make([]string, 0, min(len(filtered), limit)+2)
	lines = append(lines, fmt.Sprintf("Total entities: %d", len(states)))
	switch {
	case len(filtered) == 0:
		lines = append(lines, fmt.Sprintf("No %s found.", label))
		return strings.Join(lines, "\n"), nil
	case len(filtered) > limit:
		lines = append(lines, fmt.Sprintf("Found %d %s (showing first %d):", len(filtered), label, limit))
		filtered = filtered[:limit]
	default:
		lines = append(lines, fmt.Sprintf("Found %d %s:", len(filtered), label))
	}
	for _, s := range filtered {
		lines = append(lines, fmt.Sprintf("%s — %s (%s)", s.EntityID, s.State, s.friendlyName()))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Registry) getEntityStateTool() Descriptor {
	return Descriptor{
		Name:        "get_entity_state",
		Description: "Get the current state and all attributes of a single entity",
		InputSchema: objectSchema(map[string]any{
			"entity_id": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Entity ID, e.g. light.living_room",
			},
		}, "entity_id"),
		Handler: r.getEntityState,
	}
}

func (r *Registry) getEntityState(ctx context.Context, args map[string]any) (string, error) {
	entityID, err := parseRequiredString(args, "entity_id")
	if err != nil {
		return "", err
	}

	out, err := r.core(ctx, http.MethodGet, "/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		var httpErr *homeassistant.HTTPError
		if errors.As(err, &httpErr) {
			return "", fmt.Errorf("entity %q %w: %w", entityID, ErrNotFound, err)
		}
		return "", err
	}
	var s entityState
	if err := decodeInto(out, &s); err != nil {
		return "", fmt.Errorf("unexpected state response for %q: %w", entityID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Entity: %s\n", s.EntityID)
	fmt.Fprintf(&b, "State: %s\n", s.State)
	if s.LastChanged != "" {
		fmt.Fprintf(&b, "Last changed: %s\n", s.LastChanged)
	}
	if s.LastUpdated != "" {
		fmt.Fprintf(&b, "Last updated: %s\n", s.LastUpdated)
	}
	if len(s.Attributes) == 0 {
		b.WriteString("Attributes: (none)")
		return b.String(), nil
	}
	b.WriteString("Attributes:")
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, jsonText(s.Attributes[k]))
	}
	return b.String(), nil
}

func (r *Registry) getAutomationsTool() Descriptor {
	return Descriptor{
		Name:        "get_automations",
		Description: "List all automations with their state and when they last triggered",
		InputSchema: objectSchema(map[string]any{}),
		Handler:     r.getAutomations,
	}
}

func (r *Registry) getAutomations(ctx context.Context, _ map[string]any) (string, error) {
	states, err := r.states(ctx)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0)
	for _, s := range states {
		if !strings.HasPrefix(s.EntityID, "automation.") {
			continue
		}
		lastTriggered := "never"
		if v, ok := s.Attributes["last_triggered"].(string); ok && strings.TrimSpace(v) != "" {
			lastTriggered = v
		}
		lines = append(lines, fmt.Sprintf("- %s — %s (%s), last triggered: %s", s.EntityID, s.State, s.friendlyName(), lastTriggered))
	}
	if len(lines) == 0 {
		return "No automations found.", nil
	}
	return fmt.Sprintf("Found %d automations:\n%s", len(lines), strings.Join(lines, "\n")), nil
}

func (r *Registry) getHistoryTool() Descriptor {
	return Descriptor{
		Name:        "get_history",
		Description: "Get the state history of an entity over the last N hours",
		InputSchema: objectSchema(map[string]any{
			"entity_id": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Entity ID, e.g. sensor.outdoor_temperature",
			},
			"hours": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     maxHistoryHrs,
				"description": fmt.Sprintf("How many hours back to look (default %d)", defaultHistoryHrs),
			},
		}, "entity_id"),
		Handler: r.getHistory,
	}
}

// historyStart is the start of a window of the given size ending at now,
// truncated to the second.
func historyStart(now time.Time, hours int) time.Time {
	return now.UTC().Add(-time.Duration(hours) * time.Hour).Truncate(time.Second)
}

func historyPath(entityID string, start time.Time) string {
	q := url.Values{}
	q.Set("filter_entity_id", entityID)
	return "/history/period/" + start.Format(time.RFC3339) + "?" + q.Encode() + "&minimal_response&no_attributes"
}

func (r *Registry) getHistory(ctx context.Context, args map[string]any) (string, error) {
	entityID, err := parseRequiredString(args, "entity_id")
	if err != nil {
		return "", err
	}
	hours, err := parseIntArg(args, "hours", defaultHistoryHrs, 1, maxHistoryHrs)
	if err != nil {
		return "", err
	}

	start := historyStart(r.now(), hours)
	out, err := r.core(ctx, http.MethodGet, historyPath(entityID, start), nil)
	if err != nil {
		return "", err
	}

	empty := fmt.Sprintf("No history found for %s in the last %d hours.", entityID, hours)
	var series [][]entityState
	if err := decodeInto(out, &series); err != nil || len(series) == 0 || len(series[0]) == 0 {
		return empty, nil
	}

	changes := series[0]
	lines := make([]string, 0, len(changes)+1)
	lines = append(lines, fmt.Sprintf("History for %s since %s (%d changes):", entityID, start.Format(time.RFC3339), len(changes)))
	for _, c := range changes {
		ts := c.LastChanged
		if ts == "" {
			ts = c.LastUpdated
		}
		lines = append(lines, fmt.Sprintf("%s: %s", ts, c.State))
	}
	return strings.Join(lines, "\n"), nil
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
