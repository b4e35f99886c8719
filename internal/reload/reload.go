// Package reload maps Home Assistant configuration domains to the service
// endpoints that reload them without a full restart.
package reload

import "sort"

// Domain is a reloadable configuration domain.
type Domain string

const (
	Automation    Domain = "automation"
	Script        Domain = "script"
	Scene         Domain = "scene"
	Group         Domain = "group"
	InputBoolean  Domain = "input_boolean"
	InputNumber   Domain = "input_number"
	InputSelect   Domain = "input_select"
	InputText     Domain = "input_text"
	InputDatetime Domain = "input_datetime"
	InputButton   Domain = "input_button"
	Timer         Domain = "timer"
	Counter       Domain = "counter"
	Zone          Domain = "zone"
	Person        Domain = "person"
	Template      Domain = "template"
	Schedule      Domain = "schedule"
	Core          Domain = "core"
)

var all = []Domain{
	Automation,
	Script,
	Scene,
	Group,
	InputBoolean,
	InputNumber,
	InputSelect,
	InputText,
	InputDatetime,
	InputButton,
	Timer,
	Counter,
	Zone,
	Person,
	Template,
	Schedule,
	Core,
}

// Path returns the core API path that reloads d. The second result is false
// for domains outside the table.
func Path(d Domain) (string, bool) {
	switch d {
	case Core:
		return "/services/homeassistant/reload_core_config", true
	case Automation, Script, Scene, Group,
		InputBoolean, InputNumber, InputSelect, InputText, InputDatetime, InputButton,
		Timer, Counter, Zone, Person, Template, Schedule:
		return "/services/" + string(d) + "/reload", true
	default:
		return "", false
	}
}

// Lookup resolves a raw domain keyword.
func Lookup(raw string) (Domain, bool) {
	d := Domain(raw)
	if _, ok := Path(d); !ok {
		return "", false
	}
	return d, true
}

// Domains returns every declared domain, sorted.
func Domains() []Domain {
	out := make([]Domain, len(all))
	copy(out, all)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Names is Domains as plain strings.
func Names() []string {
	ds := Domains()
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}
