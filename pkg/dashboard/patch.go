package dashboard

// PositionPatch is a partial position update. Nil fields are left untouched
// when the patch is applied, so a patch carrying only X and Y never erases
// an existing width or height.
type PositionPatch struct {
	X *int
	Y *int
	W *int
	H *int
}

// IsEmpty reports whether the patch carries no fields at all.
func (p PositionPatch) IsEmpty() bool {
	return p.X == nil && p.Y == nil && p.W == nil && p.H == nil
}

// ApplyTo overlays the patch onto pos, field by field.
func (p PositionPatch) ApplyTo(pos *Position) {
	if p.X != nil {
		pos.X = *p.X
	}
	if p.Y != nil {
		pos.Y = *p.Y
	}
	if p.W != nil {
		pos.W = *p.W
	}
	if p.H != nil {
		pos.H = *p.H
	}
}

// FullPositionPatch returns a patch that sets all four fields to pos.
func FullPositionPatch(pos Position) PositionPatch {
	x, y, w, h := pos.X, pos.Y, pos.W, pos.H
	return PositionPatch{X: &x, Y: &y, W: &w, H: &h}
}

// SafePositionPatch returns a patch that always applies X and Y but carries
// W and H only when they are at least 1. Recorded states that arrive without
// size fields decode to zero and must not collapse a widget below 1x1.
func SafePositionPatch(pos Position) PositionPatch {
	x, y := pos.X, pos.Y
	p := PositionPatch{X: &x, Y: &y}
	if pos.W >= 1 {
		w := pos.W
		p.W = &w
	}
	if pos.H >= 1 {
		h := pos.H
		p.H = &h
	}
	return p
}

// WidgetPatch is a partial widget update used by the view-state merger.
// Empty ComponentType/Breakpoint mean "unchanged"; Props are deep-merged
// on top of the existing bag; Position is applied field by field.
type WidgetPatch struct {
	ID            string
	ComponentType ComponentType
	Position      PositionPatch
	Props         map[string]any
	Breakpoint    string
}

// PatchFromWidget converts a full widget into the equivalent full patch.
func PatchFromWidget(w Widget) WidgetPatch {
	return WidgetPatch{
		ID:            w.ID,
		ComponentType: w.ComponentType,
		Position:      FullPositionPatch(w.Position),
		Props:         cloneProps(w.Props),
		Breakpoint:    w.Breakpoint,
	}
}

// ApplyPatch overlays a patch onto the widget: shallow overlay for the
// scalar fields, deep merge for the props bag, field-by-field merge for
// the position. A position-only patch leaves view-only props intact.
func (w *Widget) ApplyPatch(p WidgetPatch) {
	if p.ComponentType != "" {
		w.ComponentType = p.ComponentType
	}
	if p.Breakpoint != "" {
		w.Breakpoint = p.Breakpoint
	}
	p.Position.ApplyTo(&w.Position)
	if len(p.Props) > 0 {
		if w.Props == nil {
			w.Props = map[string]any{}
		}
		for k, v := range p.Props {
			w.Props[k] = cloneValue(v)
		}
	}
}

// Widget materializes a patch into a standalone widget with safe defaults
// for every field the patch does not carry. Used when the merger sees an
// ID it has no existing widget for.
func (p WidgetPatch) Widget() Widget {
	raw := RawWidget{"id": p.ID}
	if p.ComponentType != "" {
		raw["componentType"] = string(p.ComponentType)
	}
	if p.Breakpoint != "" {
		raw["breakpoint"] = p.Breakpoint
	}
	if len(p.Props) > 0 {
		props := map[string]any{}
		for k, v := range p.Props {
			props[k] = cloneValue(v)
		}
		raw["props"] = props
	}
	w, _ := normalizeWidget(raw)
	p.Position.ApplyTo(&w.Position)
	if w.Position.W < 1 {
		w.Position.W = 1
	}
	if w.Position.H < 1 {
		w.Position.H = 1
	}
	return w
}
