package toolstream

import (
	"bytes"
	"encoding/json"

	"github.com/genie-dash/genie/pkg/dashboard"
)

// Classify inspects an opaque envelope and extracts a typed event.
// Returns (nil, false) for envelopes that are not tool events: a missing or
// non-object token, a token without a tool name, an unrecognized tool name,
// or a payload that fails to decode. Classification has no side effects and
// callers silently ignore rejected envelopes.
func Classify(env *Envelope) (*Event, bool) {
	if env == nil || env.Data == nil {
		return nil, false
	}

	tok, ok := decodeToken(env.Data.Token)
	if !ok || tok.ToolName == "" {
		return nil, false
	}

	hasResponse := jsonPresent(tok.Response)
	hasArguments := jsonPresent(tok.Arguments)

	ev := &Event{
		MessageID: env.Data.ID,
		ToolName:  tok.ToolName,
	}

	switch tok.ToolName {
	case ToolCreateDashboard:
		if !hasResponse {
			return nil, false
		}
		var resp dashboard.CreateDashboardResponse
		if err := json.Unmarshal(tok.Response, &resp); err != nil {
			return nil, false
		}
		ev.Kind = KindDashboardCreated
		ev.Variant = VariantResponse
		ev.CreateDashboard = &resp
		return ev, true

	case ToolAddWidget:
		if !hasResponse {
			return nil, false
		}
		var resp dashboard.AddWidgetResponse
		if err := json.Unmarshal(tok.Response, &resp); err != nil {
			return nil, false
		}
		ev.Kind = KindWidgetAdded
		ev.Variant = VariantResponse
		ev.AddWidget = &resp
		return ev, true

	case ToolManipulateWidget:
		// The response variant wins when both fields are present: it is the
		// completed form of the same call.
		if hasResponse {
			var m dashboard.Manipulation
			if err := json.Unmarshal(tok.Response, &m); err != nil {
				return nil, false
			}
			ev.Kind = KindManipulationResult
			ev.Variant = VariantResponse
			ev.Manipulation = &m
			return ev, true
		}
		if hasArguments {
			intent, ok := decodeIntent(tok.Arguments)
			if !ok {
				return nil, false
			}
			ev.Kind = KindManipulationIntent
			ev.Variant = VariantArguments
			ev.Intent = intent
			return ev, true
		}
		return nil, false

	default:
		// Forward compatible: unknown tools are inert, never an error.
		return nil, false
	}
}

// decodeToken unmarshals the raw token, rejecting non-object values.
func decodeToken(raw json.RawMessage) (*Token, bool) {
	if !jsonPresent(raw) {
		return nil, false
	}
	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, false
	}
	return &tok, true
}

// decodeIntent extracts the manipulation argument fields, tolerating both
// string and numeric coordinate values.
func decodeIntent(raw json.RawMessage) (*ManipulationIntent, bool) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, false
	}
	widgetID, _ := args["widget_id"].(string)
	if widgetID == "" {
		return nil, false
	}
	operation, _ := args["operation"].(string)
	return &ManipulationIntent{
		WidgetID:  widgetID,
		Operation: operation,
		X:         args["x"],
		Y:         args["y"],
		W:         args["w"],
		H:         args["h"],
	}, true
}

// jsonPresent reports whether a raw JSON field carries an actual value.
func jsonPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
