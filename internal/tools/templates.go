package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Areas and devices are not exposed by the REST API, so both listings are
// rendered server-side by the template engine.
const (
	areasTemplate = `{%- for a in areas() -%}
{{ area_name(a) }} (id: {{ a }}): {{ area_entities(a) | count }} entities, {{ area_devices(a) | count }} devices
{% endfor -%}`

	areaDevicesTemplate = `{%- for d in area_devices(__AREA__) -%}
{{ device_attr(d, 'name_by_user') or device_attr(d, 'name') }} (id: {{ d }}, manufacturer: {{ device_attr(d, 'manufacturer') or 'unknown' }}, model: {{ device_attr(d, 'model') or 'unknown' }})
{% endfor -%}`

	allDevicesTemplate = `{%- set ns = namespace(seen=[]) -%}
{%- for a in areas() -%}
{%- for d in area_devices(a) if d not in ns.seen -%}
{%- set ns.seen = ns.seen + [d] -%}
{{ device_attr(d, 'name_by_user') or device_attr(d, 'name') }} (id: {{ d }}, area: {{ area_name(a) }}, manufacturer: {{ device_attr(d, 'manufacturer') or 'unknown' }})
{% endfor -%}
{%- endfor -%}`
)

func (r *Registry) renderTemplateTool() Descriptor {
	return Descriptor{
		Name:        "render_template",
		Description: "Render a Home Assistant (Jinja2) template against live state and return the result",
		InputSchema: objectSchema(map[string]any{
			"template": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Template source, e.g. {{ states('sun.sun') }}",
			},
		}, "template"),
		Handler: r.renderTemplateHandler,
	}
}

// renderTemplate posts tpl to the template endpoint and returns the rendered
// text unmodified.
func (r *Registry) renderTemplate(ctx context.Context, tpl string) (string, error) {
	return r.coreText(ctx, http.MethodPost, "/template", map[string]any{"template": tpl})
}

func (r *Registry) renderTemplateHandler(ctx context.Context, args map[string]any) (string, error) {
	raw, ok := args["template"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("template is required")
	}
	out, err := r.renderTemplate(ctx, raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "Template rendered an empty result.", nil
	}
	return out, nil
}

func (r *Registry) getAreasTool() Descriptor {
	return Descriptor{
		Name:        "get_areas",
		Description: "List all areas (rooms/zones) with their entity and device counts",
		InputSchema: objectSchema(map[string]any{}),
		Handler:     r.getAreas,
	}
}

func (r *Registry) getAreas(ctx context.Context, _ map[string]any) (string, error) {
	out, err := r.renderTemplate(ctx, areasTemplate)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "No areas defined", nil
	}
	return out, nil
}

func (r *Registry) getDevicesTool() Descriptor {
	return Descriptor{
		Name:        "get_devices",
		Description: "List devices, either in one area or across all areas with their area and manufacturer",
		InputSchema: objectSchema(map[string]any{
			"area_id": map[string]any{
				"type":        "string",
				"description": "Area ID to list devices for; omit to list all devices",
			},
		}),
		Handler: r.getDevices,
	}
}

func devicesTemplate(areaID string) (string, error) {
	if areaID == "" {
		return allDevicesTemplate, nil
	}
	// A JSON string literal is also a valid template string literal.
	lit, err := json.Marshal(areaID)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(areaDevicesTemplate, "__AREA__", string(lit)), nil
}

func (r *Registry) getDevices(ctx context.Context, args map[string]any) (string, error) {
	areaID, err := parseString(args, "area_id")
	if err != nil {
		return "", err
	}
	tpl, err := devicesTemplate(areaID)
	if err != nil {
		return "", err
	}
	out, err := r.renderTemplate(ctx, tpl)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		if areaID != "" {
			return fmt.Sprintf("No devices found in area %q", areaID), nil
		}
		return "No devices found", nil
	}
	return out, nil
}
