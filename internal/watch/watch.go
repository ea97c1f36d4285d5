package watch

import (
	"fmt"
	"strings"

	"github.com/genie-dash/genie/pkg/dashboard"
	"github.com/genie-dash/genie/pkg/toolstream"
)

// Describe renders a classified tool-call event as a single human-readable
// line for the live feed. Events the classifier rejects never reach here.
func Describe(e *toolstream.Event) string {
	switch e.Kind {
	case toolstream.KindDashboardCreated:
		snap := dashboard.SnapshotFromCreate(e.CreateDashboard)
		return fmt.Sprintf("dashboard %q created with %d widget(s)", snap.Layout.Name, len(snap.Widgets))

	case toolstream.KindWidgetAdded:
		if e.AddWidget != nil {
			if widgets := dashboard.NormalizeWidgets(e.AddWidget.Widgets); len(widgets) > 0 {
				parts := make([]string, 0, len(widgets))
				for _, w := range widgets {
					parts = append(parts, DescribeWidget(w))
				}
				return fmt.Sprintf("widget added: %s", strings.Join(parts, ", "))
			}
		}
		return "widget added"

	case toolstream.KindManipulationIntent:
		return fmt.Sprintf("manipulation requested: %s %s", e.Intent.Operation, e.Intent.WidgetID)

	case toolstream.KindManipulationResult:
		return describeResult(e.Manipulation)

	default:
		return fmt.Sprintf("tool call: %s", e.ToolName)
	}
}

// DescribeWidget summarises one widget for the feed. Unknown component
// types still get a line so new widget kinds never hide from the feed.
func DescribeWidget(w dashboard.Widget) string {
	pos := fmt.Sprintf("(%d,%d %dx%d)", w.Position.X, w.Position.Y, w.Position.W, w.Position.H)

	switch w.ComponentType {
	case dashboard.ComponentTypeChart:
		return fmt.Sprintf("%s chart %q %s", chartKind(w), w.ID, pos)
	case dashboard.ComponentTypeText:
		return fmt.Sprintf("text widget %q %s", w.ID, pos)
	default:
		return fmt.Sprintf("%s widget %q %s", w.ComponentType, w.ID, pos)
	}
}

func chartKind(w dashboard.Widget) string {
	kind, _ := w.Props["persesComponent"].(string)
	switch kind {
	case dashboard.ChartComponentTable:
		return "table"
	case dashboard.ChartComponentPieChart:
		return "pie"
	case dashboard.ChartComponentTimeSeries, "":
		return "time series"
	default:
		return kind
	}
}

func describeResult(m *dashboard.Manipulation) string {
	if m == nil {
		return "manipulation completed"
	}
	changes := make([]string, 0, len(m.Changes))
	for _, c := range m.Changes {
		changes = append(changes, fmt.Sprintf("%s %s", c.WidgetID, c.Action))
	}
	if len(changes) == 0 {
		return fmt.Sprintf("manipulation %s completed", m.Identity())
	}
	return fmt.Sprintf("manipulation %s: %s", m.Identity(), strings.Join(changes, ", "))
}
