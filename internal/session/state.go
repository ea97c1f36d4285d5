// Package session holds the per-conversation dashboard state: the reducer
// that folds the classified tool-call stream into one canonical widget map,
// and the engine that wires the stream, the manipulation queue, the view
// state, and the remote store together.
package session

import (
	"github.com/genie-dash/genie/pkg/dashboard"
	"github.com/genie-dash/genie/pkg/toolstream"
)

// State is the canonical dashboard state for one session. It exclusively
// owns the widget map and the dashboard list; mutations happen only through
// Apply, PatchWidget, and SetBaseline. Not safe for concurrent use on its
// own; the engine serializes access.
type State struct {
	dashboards []dashboard.Layout
	active     string // activeLayoutId from the most recent create event or the baseline

	widgets map[string]*dashboard.Widget
	order   []string // widget IDs in creation order

	seen map[string]struct{} // event identities already applied

	baseline *dashboard.Snapshot // fetched once from the store at session start
}

// NewState creates empty session state.
func NewState() *State {
	return &State{
		widgets: make(map[string]*dashboard.Widget),
		seen:    make(map[string]struct{}),
	}
}

// Outcome describes the effect one event had on the state.
type Outcome struct {
	// Applied is false when the event was a duplicate or a no-op
	// (e.g. an intent targeting an unknown widget)
	Applied bool

	// Duplicate is true when the event identity had been seen before
	Duplicate bool

	// WidgetsChanged is true when the widget map was mutated
	WidgetsChanged bool

	// DashboardCreated is true when the event replaced the whole widget map
	DashboardCreated bool

	// Manipulation is set when the event recorded a completed manipulation
	// to be drained through the queue
	Manipulation *dashboard.Manipulation
}

// SetBaseline installs the dashboard fetched from the external store at
// session start. When no dashboard has been created in this conversation
// yet, the baseline also seeds the widget map and the active layout.
func (s *State) SetBaseline(snap *dashboard.Snapshot) {
	if snap == nil {
		return
	}
	s.baseline = snap
	if len(s.dashboards) == 0 {
		s.replaceWidgets(snap.Widgets)
		s.active = snap.ActiveLayoutID
	}
}

// Apply folds one classified event into the state. Duplicate identities are
// skipped entirely; a malformed or irrelevant event never reaches this
// point (the classifier drops it). Apply never fails: unknown widget
// references degrade to a no-op and the event is still marked processed.
func (s *State) Apply(ev *toolstream.Event) Outcome {
	identity := ev.Identity()
	if _, dup := s.seen[identity]; dup {
		return Outcome{Duplicate: true}
	}
	s.seen[identity] = struct{}{}

	switch ev.Kind {
	case toolstream.KindDashboardCreated:
		return s.applyDashboardCreated(ev.CreateDashboard)
	case toolstream.KindWidgetAdded:
		return s.applyWidgetAdded(ev.AddWidget)
	case toolstream.KindManipulationResult:
		return s.applyManipulationResult(ev.Manipulation)
	case toolstream.KindManipulationIntent:
		return s.applyManipulationIntent(ev.Intent)
	default:
		return Outcome{}
	}
}

// applyDashboardCreated appends the new dashboard and replaces the entire
// widget map with the event's normalized widgets. Full replacement, not
// merge: a new dashboard supersedes prior widgets.
func (s *State) applyDashboardCreated(resp *dashboard.CreateDashboardResponse) Outcome {
	if resp == nil {
		return Outcome{}
	}
	snap := dashboard.SnapshotFromCreate(resp)
	s.dashboards = append(s.dashboards, snap.Layout)
	s.active = snap.ActiveLayoutID
	s.replaceWidgets(snap.Widgets)
	return Outcome{Applied: true, WidgetsChanged: true, DashboardCreated: true}
}

// applyWidgetAdded upserts each normalized widget into the existing map by
// ID. Added widgets never replace the whole map.
func (s *State) applyWidgetAdded(resp *dashboard.AddWidgetResponse) Outcome {
	if resp == nil {
		return Outcome{}
	}
	widgets := dashboard.NormalizeWidgets(resp.Widgets)
	if len(widgets) == 0 {
		return Outcome{Applied: true}
	}
	for _, w := range widgets {
		s.upsertWidget(w)
	}
	return Outcome{Applied: true, WidgetsChanged: true}
}

// applyManipulationResult records the completed manipulation for the queue.
// The widget mutation for this path happens later, when the view
// acknowledges execution, not here: the queue guarantees it is applied to
// the rendered grid exactly once, independent of re-render timing.
func (s *State) applyManipulationResult(m *dashboard.Manipulation) Outcome {
	if m == nil {
		return Outcome{}
	}
	return Outcome{Applied: true, Manipulation: m}
}

// applyManipulationIntent patches the target widget's position immediately:
// no separate result event is guaranteed to follow an eager intent. An
// intent for an unknown widget ID is silently dropped; its identity stays
// marked as processed so a late duplicate cannot apply it either.
func (s *State) applyManipulationIntent(intent *toolstream.ManipulationIntent) Outcome {
	if intent == nil {
		return Outcome{}
	}
	w, ok := s.widgets[intent.WidgetID]
	if !ok {
		return Outcome{}
	}
	patch := intent.PositionPatch()
	if patch.IsEmpty() {
		return Outcome{Applied: true}
	}
	patch.ApplyTo(&w.Position)
	return Outcome{Applied: true, WidgetsChanged: true}
}

// PatchWidget overlays position fields onto one widget in the canonical
// map. Returns false when the widget is unknown. Used by the engine when a
// queued manipulation is executed and for no other write path.
func (s *State) PatchWidget(id string, patch dashboard.PositionPatch) bool {
	w, ok := s.widgets[id]
	if !ok {
		return false
	}
	patch.ApplyTo(&w.Position)
	return true
}

// Widgets returns the widget map as a slice in creation order. Entries are
// deep copies; callers can never mutate the canonical map through them.
func (s *State) Widgets() []dashboard.Widget {
	out := make([]dashboard.Widget, 0, len(s.order))
	for _, id := range s.order {
		if w, ok := s.widgets[id]; ok {
			out = append(out, w.Clone())
		}
	}
	return out
}

// Widget returns a copy of one widget by ID.
func (s *State) Widget(id string) (dashboard.Widget, bool) {
	w, ok := s.widgets[id]
	if !ok {
		return dashboard.Widget{}, false
	}
	return w.Clone(), true
}

// Dashboards returns the dashboards created during this session, in
// creation order.
func (s *State) Dashboards() []dashboard.Layout {
	out := make([]dashboard.Layout, len(s.dashboards))
	copy(out, s.dashboards)
	return out
}

// ActiveDashboard returns the authoritative dashboard for rendering: the
// most recently created one, falling back to the session-start baseline.
// Last write wins, not reference counted.
func (s *State) ActiveDashboard() (dashboard.Layout, bool) {
	if len(s.dashboards) > 0 {
		return s.dashboards[len(s.dashboards)-1], true
	}
	if s.baseline != nil {
		return s.baseline.Layout, true
	}
	return dashboard.Layout{}, false
}

// ActiveLayoutID returns the layout ID drag persistence should write to.
func (s *State) ActiveLayoutID() string {
	if s.active != "" {
		return s.active
	}
	if layout, ok := s.ActiveDashboard(); ok {
		return layout.LayoutID
	}
	return ""
}

func (s *State) replaceWidgets(widgets []dashboard.Widget) {
	s.widgets = make(map[string]*dashboard.Widget, len(widgets))
	s.order = s.order[:0]
	for _, w := range widgets {
		s.upsertWidget(w)
	}
}

func (s *State) upsertWidget(w dashboard.Widget) {
	c := w.Clone()
	if _, exists := s.widgets[w.ID]; !exists {
		s.order = append(s.order, w.ID)
	}
	s.widgets[w.ID] = &c
}
