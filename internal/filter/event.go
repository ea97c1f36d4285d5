package filter

import (
	"path/filepath"

	"github.com/genie-dash/genie/pkg/dashboard"
	"github.com/genie-dash/genie/pkg/toolstream"
)

// Criteria defines filtering criteria for tool-call events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	ToolGlob string // Glob pattern for tool name, empty = no filter
	WidgetID string // Exact match on the manipulated widget, empty = no filter
	Kind     string // Exact match on event kind, empty = no filter
}

// Matches returns true if the event matches all filter criteria.
// Empty criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(e *toolstream.Event) bool {
	if c.ToolGlob != "" {
		matched, err := filepath.Match(c.ToolGlob, e.ToolName)
		if err != nil || !matched {
			return false
		}
	}

	if c.Kind != "" && string(e.Kind) != c.Kind {
		return false
	}

	// Widget filtering only applies to manipulation events; other events
	// affect many widgets at once and always pass
	if c.WidgetID != "" {
		switch e.Kind {
		case toolstream.KindManipulationIntent:
			if e.Intent == nil || e.Intent.WidgetID != c.WidgetID {
				return false
			}
		case toolstream.KindManipulationResult:
			if e.Manipulation == nil || !manipulationTouches(e.Manipulation.Changes, c.WidgetID) {
				return false
			}
		}
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.ToolGlob != "" || c.WidgetID != "" || c.Kind != ""
}

func manipulationTouches(changes []dashboard.WidgetChange, widgetID string) bool {
	for _, change := range changes {
		if change.WidgetID == widgetID {
			return true
		}
	}
	return false
}
