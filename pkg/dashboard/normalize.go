package dashboard

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Documented normalization defaults. A widget whose payload carries no
// usable value for a field receives these instead of failing.
const (
	DefaultX = 0
	DefaultY = 0
	DefaultW = 4
	DefaultH = 4

	// DefaultBreakpoint is the layout breakpoint assumed when none is given.
	DefaultBreakpoint = "lg"
)

// RawWidget is an un-normalized widget payload as it arrives from the agent
// or the remote store. Field names and value types vary across tool
// versions: identity may be "id" or "i", position may be nested or
// flattened onto the entry, and numbers may arrive as strings.
type RawWidget map[string]any

// NormalizeWidgets converts raw widget payloads into canonical widgets.
// Entries without a usable identity are dropped; every other malformation
// degrades to defaults. The function is total: it never fails and never
// yields a widget with non-finite or sub-minimum position fields.
func NormalizeWidgets(raw []RawWidget) []Widget {
	if len(raw) == 0 {
		return []Widget{}
	}
	widgets := make([]Widget, 0, len(raw))
	for _, rw := range raw {
		w, ok := normalizeWidget(rw)
		if !ok {
			continue
		}
		widgets = append(widgets, w)
	}
	return widgets
}

// normalizeWidget converts a single raw entry. Returns false when the entry
// has no identity under either "id" or "i".
func normalizeWidget(rw RawWidget) (Widget, bool) {
	if rw == nil {
		return Widget{}, false
	}

	id, ok := widgetIdentity(rw)
	if !ok {
		return Widget{}, false
	}

	w := Widget{
		ID:            id,
		ComponentType: ComponentTypeChart,
		Position:      normalizePosition(rw),
		Props:         map[string]any{},
		Breakpoint:    DefaultBreakpoint,
	}

	if ct, ok := stringValue(rw["componentType"]); ok && ct != "" {
		w.ComponentType = ComponentType(ct)
	}
	if bp, ok := stringValue(rw["breakpoint"]); ok && bp != "" {
		w.Breakpoint = bp
	}
	if props, ok := rw["props"].(map[string]any); ok {
		w.Props = cloneProps(props)
	}

	// A chart widget without an explicit sub-component would be ambiguous
	// downstream, so default it to the standard time-series chart.
	if w.ComponentType == ComponentTypeChart {
		if pc, ok := stringValue(w.Props["persesComponent"]); !ok || pc == "" {
			w.Props["persesComponent"] = ChartComponentTimeSeries
		}
	}

	return w, true
}

// widgetIdentity resolves the widget ID, preferring "id" over the legacy
// "i" field. Numeric IDs are stringified.
func widgetIdentity(rw RawWidget) (string, bool) {
	for _, key := range []string{"id", "i"} {
		v, present := rw[key]
		if !present || v == nil {
			continue
		}
		if s, ok := stringValue(v); ok {
			return s, true
		}
	}
	return "", false
}

// normalizePosition resolves the position from a nested "position" object,
// falling back to flattened x/y/w/h siblings on the entry itself (legacy
// shape tolerance), and finally to defaults.
func normalizePosition(rw RawWidget) Position {
	source := rw
	if pos, ok := rw["position"].(map[string]any); ok {
		source = pos
	}
	p := Position{
		X: SafeNumber(source["x"], DefaultX),
		Y: SafeNumber(source["y"], DefaultY),
		W: SafeNumber(source["w"], DefaultW),
		H: SafeNumber(source["h"], DefaultH),
	}
	if p.W < 1 {
		p.W = 1
	}
	if p.H < 1 {
		p.H = 1
	}
	return p
}

// SafeNumber coerces a value of unknown type to an integer coordinate.
// Finite numbers (including numeric strings) are used as-is, truncated
// toward zero; anything else yields the fallback. NaN and infinities are
// never propagated into the grid.
func SafeNumber(v any, fallback int) int {
	n, ok := CoerceNumber(v)
	if !ok {
		return fallback
	}
	return n
}

// CoerceNumber attempts to interpret a JSON-decoded value as a finite
// integer coordinate. Returns false when the value is absent, non-numeric,
// or non-finite.
func CoerceNumber(v any) (int, bool) {
	switch tv := v.(type) {
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return 0, false
		}
		return int(tv), true
	case int:
		return tv, true
	case int64:
		return int(tv), true
	case json.Number:
		f, err := tv.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// stringValue renders scalar identity-ish values as strings. Maps, slices
// and nil are rejected.
func stringValue(v any) (string, bool) {
	switch tv := v.(type) {
	case string:
		return tv, true
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return "", false
		}
		if tv == math.Trunc(tv) {
			return strconv.FormatInt(int64(tv), 10), true
		}
		return strconv.FormatFloat(tv, 'f', -1, 64), true
	case int:
		return strconv.Itoa(tv), true
	case int64:
		return strconv.FormatInt(tv, 10), true
	case json.Number:
		return tv.String(), true
	case bool:
		return strconv.FormatBool(tv), true
	default:
		return "", false
	}
}
