package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/reload"
)

var serviceTargetKeys = []string{"entity_id", "area_id", "device_id"}

func (r *Registry) callServiceTool() Descriptor {
	idOrList := map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
	return Descriptor{
		Name:        "call_service",
		Description: "Call a Home Assistant service (e.g. light.turn_on) against entities, areas or devices",
		InputSchema: objectSchema(map[string]any{
			"domain": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Service domain, e.g. light",
			},
			"service": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Service name, e.g. turn_on",
			},
			"target": map[string]any{
				"type":        "object",
				"description": "Service target",
				"properties": map[string]any{
					"entity_id": idOrList,
					"area_id":   idOrList,
					"device_id": idOrList,
				},
			},
			"data": map[string]any{
				"type":        "object",
				"description": "Service data, e.g. {\"brightness_pct\": 50}",
			},
		}, "domain", "service"),
		Handler: r.callService,
	}
}

// serviceBody merges the target selectors and the service data into a single
// request body. Keys present in data override target keys.
func serviceBody(target, data map[string]any) map[string]any {
	body := make(map[string]any, len(serviceTargetKeys)+len(data))
	for _, key := range serviceTargetKeys {
		if v, ok := target[key]; ok && v != nil {
			body[key] = v
		}
	}
	for k, v := range data {
		body[k] = v
	}
	return body
}

func (r *Registry) callService(ctx context.Context, args map[string]any) (string, error) {
	domain, err := parseRequiredString(args, "domain")
	if err != nil {
		return "", err
	}
	service, err := parseRequiredString(args, "service")
	if err != nil {
		return "", err
	}
	target, err := parseObject(args, "target")
	if err != nil {
		return "", err
	}
	data, err := parseObject(args, "data")
	if err != nil {
		return "", err
	}

	path := "/services/" + url.PathEscape(domain) + "/" + url.PathEscape(service)
	out, err := r.core(ctx, http.MethodPost, path, serviceBody(target, data))
	if err != nil {
		return "", err
	}

	changed := 0
	if list, ok := out.([]any); ok {
		changed = len(list)
	}
	return fmt.Sprintf("Called %s.%s successfully. %d entities changed.", domain, service, changed), nil
}

func (r *Registry) restartTool() Descriptor {
	return Descriptor{
		Name:        "restart",
		Description: "Restart Home Assistant. Requires confirm=true; without it nothing happens",
		InputSchema: objectSchema(map[string]any{
			"confirm": map[string]any{
				"type":        "boolean",
				"description": "Must be true to perform the restart",
			},
		}, "confirm"),
		Handler: r.restart,
	}
}

func (r *Registry) restart(ctx context.Context, args map[string]any) (string, error) {
	confirm, err := parseBool(args, "confirm")
	if err != nil {
		return "", err
	}
	if !confirm {
		return "Restart not performed. Call restart again with confirm=true to restart Home Assistant; it will be unavailable until it comes back up.", nil
	}
	if _, err := r.core(ctx, http.MethodPost, "/services/homeassistant/restart", nil); err != nil {
		return "", err
	}
	return "Home Assistant restart initiated.", nil
}

func (r *Registry) reloadConfigTool() Descriptor {
	return Descriptor{
		Name: "reload_config",
		Description: "Reload the configuration of one domain without restarting. Valid domains: " +
			strings.Join(reload.Names(), ", "),
		InputSchema: objectSchema(map[string]any{
			"domain": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Configuration domain to reload, e.g. automation or core",
			},
		}, "domain"),
		Handler: r.reloadConfig,
	}
}

func (r *Registry) reloadConfig(ctx context.Context, args map[string]any) (string, error) {
	raw, err := parseRequiredString(args, "domain")
	if err != nil {
		return "", err
	}
	domain, ok := reload.Lookup(raw)
	if !ok {
		return fmt.Sprintf("Unknown domain %q. Valid domains: %s", raw, strings.Join(reload.Names(), ", ")), nil
	}
	path, _ := reload.Path(domain)
	if _, err := r.core(ctx, http.MethodPost, path, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reloaded %s configuration.", domain), nil
}

func (r *Registry) fireEventTool() Descriptor {
	return Descriptor{
		Name:        "fire_event",
		Description: "Fire a custom event on the Home Assistant event bus",
		InputSchema: objectSchema(map[string]any{
			"event_type": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Event type, e.g. my_custom_event",
			},
			"event_data": map[string]any{
				"type":        "object",
				"description": "Optional event payload",
			},
		}, "event_type"),
		Handler: r.fireEvent,
	}
}

func (r *Registry) fireEvent(ctx context.Context, args map[string]any) (string, error) {
	eventType, err := parseRequiredString(args, "event_type")
	if err != nil {
		return "", err
	}
	data, err := parseObject(args, "event_data")
	if err != nil {
		return "", err
	}

	var body any
	if len(data) > 0 {
		body = data
	}
	if _, err := r.core(ctx, http.MethodPost, "/events/"+url.PathEscape(eventType), body); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return fmt.Sprintf("Event %q fired.", eventType), nil
	}
	return fmt.Sprintf("Event %q fired with data: %s", eventType, jsonText(data)), nil
}
