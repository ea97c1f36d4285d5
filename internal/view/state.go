// Package view owns the rendering-facing copy of the widget collection.
// It is a derived structure, rebuilt from the canonical map on every
// authoritative update, and the only writable path the rendering layer has:
// reads return copies, all writes flow back through MergePatches /
// UpdatePosition, preserving single-writer discipline.
package view

import (
	"sync"

	"github.com/genie-dash/genie/pkg/dashboard"
)

// State is the merged widget list the grid renders from, plus the last
// externally-fetched baseline used by Reset.
type State struct {
	mu       sync.Mutex
	widgets  []dashboard.Widget
	baseline []dashboard.Widget
}

// NewState creates view state seeded with the given widgets, which also
// become the initial baseline.
func NewState(initial []dashboard.Widget) *State {
	s := &State{}
	s.SetBaseline(initial)
	s.Reset()
	return s
}

// SetBaseline replaces the externally-fetched baseline without touching the
// current merged list. Call Reset to adopt it.
func (s *State) SetBaseline(widgets []dashboard.Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = cloneWidgets(widgets)
}

// Reset restores the merged list to the baseline, discarding all local
// merges. Used when the conversation creates an entirely new dashboard:
// widgets from the previous dashboard must not leak into the new one.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgets = cloneWidgets(s.baseline)
}

// MergePatches merges incoming widget updates into the current list.
// For each incoming patch with a known ID the existing widget is overlaid
// shallowly, with the props bag and position bag merged deeply, so a
// partial position update never erases untouched fields and view-only prop
// augmentations survive a position-only sync. Unknown IDs are materialized
// with defaults. Widgets present locally but absent from the incoming set
// are retained and appended after the merged set: position-sync passes
// never delete.
func (s *State) MergePatches(patches []dashboard.WidgetPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]dashboard.Widget, len(s.widgets))
	for _, w := range s.widgets {
		existing[w.ID] = w
	}

	merged := make([]dashboard.Widget, 0, len(patches)+len(s.widgets))
	incoming := make(map[string]struct{}, len(patches))
	for _, p := range patches {
		incoming[p.ID] = struct{}{}
		if w, ok := existing[p.ID]; ok {
			w.ApplyPatch(p)
			merged = append(merged, w)
			continue
		}
		merged = append(merged, p.Widget())
	}

	for _, w := range s.widgets {
		if _, ok := incoming[w.ID]; !ok {
			merged = append(merged, w)
		}
	}

	s.widgets = merged
}

// MergeWidgets is MergePatches for an authoritative full-widget list, as
// published by the session reducer.
func (s *State) MergeWidgets(widgets []dashboard.Widget) {
	patches := make([]dashboard.WidgetPatch, 0, len(widgets))
	for _, w := range widgets {
		patches = append(patches, dashboard.PatchFromWidget(w))
	}
	s.MergePatches(patches)
}

// UpdatePosition overlays position fields onto a single widget, leaving
// everything else untouched. Returns false when the widget is unknown.
func (s *State) UpdatePosition(id string, patch dashboard.PositionPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.widgets {
		if s.widgets[i].ID == id {
			patch.ApplyTo(&s.widgets[i].Position)
			return true
		}
	}
	return false
}

// Widgets returns a deep copy of the merged list for rendering. The view
// never hands out aliases into its own state.
func (s *State) Widgets() []dashboard.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWidgets(s.widgets)
}

// Widget returns a copy of one widget by ID.
func (s *State) Widget(id string) (dashboard.Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.widgets {
		if w.ID == id {
			return w.Clone(), true
		}
	}
	return dashboard.Widget{}, false
}

func cloneWidgets(widgets []dashboard.Widget) []dashboard.Widget {
	out := make([]dashboard.Widget, len(widgets))
	for i, w := range widgets {
		out[i] = w.Clone()
	}
	return out
}
