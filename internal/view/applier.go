package view

import (
	"github.com/genie-dash/genie/internal/manip"
)

// ManipulationSource is the slice of the session engine the apply loop
// needs: peek the next unapplied manipulation and acknowledge execution.
type ManipulationSource interface {
	NextManipulation() (manip.Entry, bool)
	ExecuteManipulation(id string) bool
}

// Applier drives the view's apply loop: at most one manipulation per render
// pass, acknowledged exactly once.
//
// The queue's remove-on-execute alone cannot prevent double-apply, because
// the grid re-renders asynchronously and a stale pass may observe the same
// pending entry between Next and Execute. The applier therefore keeps its
// own record of IDs it has already triggered and checks it before
// triggering again.
type Applier struct {
	source    ManipulationSource
	triggered map[string]struct{}
}

// NewApplier creates an applier over the given manipulation source.
func NewApplier(source ManipulationSource) *Applier {
	return &Applier{
		source:    source,
		triggered: make(map[string]struct{}),
	}
}

// RunOnce performs one render pass worth of work: if an unapplied,
// un-triggered manipulation is pending, it is executed. Returns the
// executed ID and true, or "" and false when there was nothing to do.
func (a *Applier) RunOnce() (string, bool) {
	entry, ok := a.source.NextManipulation()
	if !ok {
		return "", false
	}
	id := entry.ID
	if _, seen := a.triggered[id]; seen {
		// A stale render pass already triggered this one; the engine-side
		// acknowledgement has simply not landed yet.
		return "", false
	}
	a.triggered[id] = struct{}{}
	if !a.source.ExecuteManipulation(id) {
		return "", false
	}
	return id, true
}
