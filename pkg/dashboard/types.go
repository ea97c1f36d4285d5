// Package dashboard provides the canonical data model for Genie dashboards:
// widgets, layouts, and the manipulation records produced by the agent's
// tool calls. The widget map maintained by the session reducer is the single
// source of truth for "what widgets exist and where they are"; everything
// the rendering layer sees is derived from the types in this package.
//
// Payloads arriving from the agent are produced by an LLM-driven backend and
// are expected to be malformed some of the time. Every conversion in this
// package degrades to documented defaults instead of failing.
package dashboard

import (
	"fmt"
)

// Position is a widget's placement on the dashboard grid.
// After normalization all four fields are finite and W and H are >= 1.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ComponentType identifies the kind of panel a widget renders.
type ComponentType string

const (
	// ComponentTypeText is a static text panel
	ComponentTypeText ComponentType = "text"

	// ComponentTypeChart is a chart panel; the concrete chart is selected
	// by the "persesComponent" prop (TimeSeriesChart, Table, PieChart)
	ComponentTypeChart ComponentType = "chart"
)

// Known reports whether the component type is one this version understands.
// Unknown types are still carried through the model so that new widget kinds
// degrade to a fallback rendering instead of being dropped.
func (ct ComponentType) Known() bool {
	switch ct {
	case ComponentTypeText, ComponentTypeChart:
		return true
	default:
		return false
	}
}

// Chart sub-components recognized by the rendering layer.
const (
	ChartComponentTimeSeries = "TimeSeriesChart"
	ChartComponentTable      = "Table"
	ChartComponentPieChart   = "PieChart"
)

// Widget is a positioned, typed panel on a dashboard grid.
// Identity is the string ID, stable across events. Within one dashboard
// IDs are unique.
type Widget struct {
	ID            string         `json:"id"`
	ComponentType ComponentType  `json:"componentType"`
	Position      Position       `json:"position"`
	Props         map[string]any `json:"props"`
	Breakpoint    string         `json:"breakpoint"` // layout breakpoint tag, default "lg"
}

// Clone returns a deep copy of the widget. The props bag is copied
// recursively so callers can hand clones to the rendering layer without
// aliasing the canonical map.
func (w Widget) Clone() Widget {
	c := w
	c.Props = cloneProps(w.Props)
	return c
}

// cloneProps deep-copies a props bag. Nested maps and slices are copied,
// scalar values are shared.
func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneProps(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Layout identifies one stored dashboard layout.
type Layout struct {
	ID          string `json:"id,omitempty"`
	LayoutID    string `json:"layoutId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Snapshot is a normalized view of one dashboard as returned by the remote
// store or a create_dashboard tool result: the active layout identity plus
// its widgets, already normalized.
type Snapshot struct {
	ActiveLayoutID string   `json:"activeLayoutId"`
	Layout         Layout   `json:"layout"`
	Widgets        []Widget `json:"widgets"`
}

// LayoutItem is the wire shape the grid reports after user interaction and
// the shape update_widget_positions accepts: react-grid-layout's {i,x,y,w,h}.
type LayoutItem struct {
	I string `json:"i"`
	X int    `json:"x"`
	Y int    `json:"y"`
	W int    `json:"w"`
	H int    `json:"h"`
}

// ChangeAction is the per-widget action tag in a manipulation result.
type ChangeAction string

const (
	ChangeActionMoved        ChangeAction = "moved"
	ChangeActionRepositioned ChangeAction = "repositioned"
	ChangeActionResized      ChangeAction = "resized"
	ChangeActionRemoved      ChangeAction = "removed"
	ChangeActionAdded        ChangeAction = "added"
)

// Validate checks if the ChangeAction is a valid enum value.
func (ca ChangeAction) Validate() error {
	switch ca {
	case ChangeActionMoved, ChangeActionRepositioned, ChangeActionResized,
		ChangeActionRemoved, ChangeActionAdded:
		return nil
	default:
		return fmt.Errorf("unknown change action: %q", ca)
	}
}

// WidgetChange is one widget's position change inside a manipulation.
type WidgetChange struct {
	WidgetID      string       `json:"widgetId"`
	Action        ChangeAction `json:"action"`
	Breakpoint    string       `json:"breakpoint"`
	WasTargeted   bool         `json:"wasTargeted"`
	Reason        string       `json:"reason"`
	PreviousState Position     `json:"previousState"`
	NewState      Position     `json:"newState"`
}

// ManipulationSummary carries the upstream server's accounting for one
// manipulation. Retained for audit output, never interpreted by the core.
type ManipulationSummary struct {
	TotalAffected     int            `json:"totalAffected"`
	Targeted          int            `json:"targeted"`
	CollateralChanges int            `json:"collateralChanges"`
	Operations        map[string]int `json:"operations"`
	Reasons           map[string]int `json:"reasons"`
}

// Manipulation is a batch of widget position/size changes derived from one
// completed manipulate_widget tool invocation. Its identity is derived
// deterministically from (layout ID, server timestamp) so re-delivery of
// the same upstream event never produces a duplicate queue entry.
type Manipulation struct {
	Success             bool                `json:"success"`
	Operation           string              `json:"operation"`
	LayoutID            string              `json:"layoutId"`
	TargetedWidgets     []string            `json:"targetedWidgets"`
	Changes             []WidgetChange      `json:"allChanges"`
	Summary             ManipulationSummary `json:"summary"`
	Message             string              `json:"message"`
	AffectedBreakpoints []string            `json:"affectedBreakpoints"`
	Timestamp           string              `json:"timestamp"`
	Widgets             []Widget            `json:"widgets,omitempty"`
}

// Identity returns the deduplication key for this manipulation.
func (m *Manipulation) Identity() string {
	return fmt.Sprintf("%s-%s", m.LayoutID, m.Timestamp)
}
