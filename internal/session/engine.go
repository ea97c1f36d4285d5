package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/genie-dash/genie/internal/debounce"
	"github.com/genie-dash/genie/internal/manip"
	"github.com/genie-dash/genie/internal/view"
	"github.com/genie-dash/genie/pkg/dashboard"
	"github.com/genie-dash/genie/pkg/toolstream"
)

// Store is the remote dashboard store boundary the engine consumes.
// Persistence is entirely delegated to it; the engine keeps no local state
// beyond the in-memory session.
type Store interface {
	GetActiveDashboard(ctx context.Context) (*dashboard.Snapshot, error)
	GetDashboard(ctx context.Context, id string) (*dashboard.Snapshot, error)
	UpdateWidgetPositions(ctx context.Context, layoutID string, items []dashboard.LayoutItem) error
}

// persistTimeout bounds one debounced write to the store.
const persistTimeout = 10 * time.Second

// DefaultPersistDelay is the trailing-edge debounce window for layout
// persistence during interactive dragging.
const DefaultPersistDelay = 500 * time.Millisecond

// Config configures a session engine.
type Config struct {
	// SessionName scopes the tool-call event channel
	SessionName string

	// DashboardID optionally pins the session-start fetch to one stored
	// dashboard instead of the store's active one
	DashboardID string

	// PersistDelay is the layout-change debounce window;
	// zero means DefaultPersistDelay
	PersistDelay time.Duration
}

// Engine is the session core: it consumes the tool-call event stream,
// folds it through the reducer, publishes merged widgets to the view, and
// drains layout manipulations through the queue. All reducer and queue
// operations run to completion under one mutex before the next event is
// processed; suspension happens only at the store boundary and the
// persistence debounce timer.
type Engine struct {
	cfg    Config
	stream *toolstream.Client
	store  Store

	mu    sync.Mutex
	state *State
	queue *manip.Queue
	view  *view.State

	persist *debounce.Debouncer

	healthMu  sync.Mutex
	storeErr  error
	storeSeen bool
}

// NewEngine creates a session engine over the given stream and store.
func NewEngine(cfg Config, stream *toolstream.Client, store Store) *Engine {
	delay := cfg.PersistDelay
	if delay <= 0 {
		delay = DefaultPersistDelay
	}
	return &Engine{
		cfg:     cfg,
		stream:  stream,
		store:   store,
		state:   NewState(),
		queue:   manip.NewQueue(),
		view:    view.NewState(nil),
		persist: debounce.New(delay),
	}
}

// Run fetches the session-start baseline, subscribes to tool-call events,
// and processes them until the context is cancelled. A failed baseline
// fetch degrades the session (empty dashboard, connectivity flag) instead
// of failing it.
func (e *Engine) Run(ctx context.Context) error {
	defer e.persist.Stop()

	log.Printf("[Session] Starting for session '%s'", e.cfg.SessionName)

	e.fetchBaseline(ctx)

	subscription, err := e.stream.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to tool events: %w", err)
	}
	defer subscription.Close()

	log.Printf("[Session] Subscribed to %s", toolstream.EventsChannel(e.cfg.SessionName))

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Session] Shutting down...")
			return nil

		case env, ok := <-subscription.Events():
			if !ok {
				log.Printf("[Session] Subscription closed")
				return nil
			}
			e.HandleEnvelope(env)

		case err, ok := <-subscription.Errors():
			if !ok {
				log.Printf("[Session] Error channel closed")
				return nil
			}
			// Non-fatal: the malformed message was skipped.
			log.Printf("[Session] Subscription error: %v", err)
		}
	}
}

// fetchBaseline loads the active dashboard (or the pinned one) from the
// store once at session start.
func (e *Engine) fetchBaseline(ctx context.Context) {
	var snap *dashboard.Snapshot
	var err error
	if e.cfg.DashboardID != "" {
		snap, err = e.store.GetDashboard(ctx, e.cfg.DashboardID)
	} else {
		snap, err = e.store.GetActiveDashboard(ctx)
	}
	e.setStoreErr(err)
	if err != nil {
		log.Printf("[Session] Error fetching active dashboard: %v", err)
		return
	}
	if snap == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.SetBaseline(snap)
	e.view.SetBaseline(e.state.Widgets())
	e.view.Reset()

	e.logEvent("baseline_loaded", map[string]interface{}{
		"layout_id": snap.Layout.LayoutID,
		"widgets":   len(snap.Widgets),
	})
}

// HandleEnvelope classifies and applies a single envelope. Malformed or
// irrelevant envelopes are dropped with no state change; nothing here is
// fatal to the session. Exported so transports other than the Redis
// subscription (tests, bridges) can feed the engine directly.
func (e *Engine) HandleEnvelope(env *toolstream.Envelope) {
	ev, ok := toolstream.Classify(env)
	if !ok {
		return
	}

	e.mu.Lock()
	outcome := e.state.Apply(ev)

	if outcome.Duplicate {
		e.mu.Unlock()
		e.logEvent("event_duplicate", map[string]interface{}{
			"identity": ev.Identity(),
		})
		return
	}

	switch {
	case outcome.DashboardCreated:
		// A new dashboard supersedes everything the view accumulated.
		e.view.SetBaseline(e.state.Widgets())
		e.view.Reset()
	case outcome.WidgetsChanged:
		e.view.MergeWidgets(e.state.Widgets())
	}
	e.mu.Unlock()

	if outcome.Manipulation != nil {
		for _, change := range outcome.Manipulation.Changes {
			// Unknown action tags are carried through, flagged for the audit
			// trail only.
			if err := change.Action.Validate(); err != nil {
				e.logEvent("manipulation_action_unknown", map[string]interface{}{
					"manipulation_id": outcome.Manipulation.Identity(),
					"widget_id":       change.WidgetID,
					"action":          string(change.Action),
				})
			}
		}
		added := e.queue.Add(*outcome.Manipulation)
		e.logEvent("manipulation_recorded", map[string]interface{}{
			"manipulation_id": outcome.Manipulation.Identity(),
			"changes":         len(outcome.Manipulation.Changes),
			"queued":          added,
		})
	}

	e.logEvent("event_applied", map[string]interface{}{
		"identity": ev.Identity(),
		"kind":     string(ev.Kind),
		"applied":  outcome.Applied,
	})
}

// Widgets returns the merged widget list for layout rendering.
func (e *Engine) Widgets() []dashboard.Widget {
	return e.view.Widgets()
}

// ActiveDashboard returns the authoritative dashboard for rendering.
func (e *Engine) ActiveDashboard() (dashboard.Layout, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ActiveDashboard()
}

// LayoutChange is the sink the view calls after user interaction. The new
// positions are applied to the view immediately; the write to the remote
// store is debounced so interactive dragging coalesces into one persisted
// write. Each call cancels any pending write before scheduling its own.
func (e *Engine) LayoutChange(items []dashboard.LayoutItem) {
	if len(items) == 0 {
		return
	}

	for _, item := range items {
		e.view.UpdatePosition(item.I, dashboard.FullPositionPatch(dashboard.Position{
			X: item.X, Y: item.Y, W: item.W, H: item.H,
		}))
	}

	e.mu.Lock()
	layoutID := e.state.ActiveLayoutID()
	e.mu.Unlock()
	if layoutID == "" {
		return
	}

	persisted := make([]dashboard.LayoutItem, len(items))
	copy(persisted, items)

	e.persist.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		err := e.store.UpdateWidgetPositions(ctx, layoutID, persisted)
		e.setStoreErr(err)
		if err != nil {
			// Local state was never advanced past the failed write;
			// nothing to roll back.
			log.Printf("[Session] Error persisting layout %s: %v", layoutID, err)
			return
		}
		e.logEvent("layout_persisted", map[string]interface{}{
			"layout_id": layoutID,
			"widgets":   len(persisted),
		})
	})
}

// NextManipulation returns the first manipulation still pending, strict
// FIFO. The view applies at most one per render cycle.
func (e *Engine) NextManipulation() (manip.Entry, bool) {
	return e.queue.Next()
}

// ExecuteManipulation marks a manipulation executed and applies its
// recorded changes to the canonical widget map and the view. This is the
// single point where queued manipulations mutate widget state, so each is
// applied exactly once regardless of re-render timing. Returns false when
// the ID is not pending (never queued, or already executed).
func (e *Engine) ExecuteManipulation(id string) bool {
	entry, ok := e.queue.Get(id)
	if !ok {
		return false
	}
	if !e.queue.Execute(id) {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, change := range entry.Manipulation.Changes {
		if change.Action == dashboard.ChangeActionRemoved {
			// Widgets are never deleted outside full dashboard replacement.
			continue
		}
		// Size fields missing from the recorded state decode to zero and
		// must not shrink the widget; position fields always apply.
		patch := dashboard.SafePositionPatch(change.NewState)
		e.state.PatchWidget(change.WidgetID, patch)
		e.view.UpdatePosition(change.WidgetID, patch)
	}

	e.logEvent("manipulation_executed", map[string]interface{}{
		"manipulation_id": id,
		"changes":         len(entry.Manipulation.Changes),
	})
	return true
}

// PendingManipulations returns the number of manipulations awaiting the
// view's apply loop.
func (e *Engine) PendingManipulations() int {
	return e.queue.PendingCount()
}

// Connected reports the best-effort store connectivity indicator: true
// until a store call fails, true again after one succeeds. It never blocks
// interaction.
func (e *Engine) Connected() bool {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()
	return !e.storeSeen || e.storeErr == nil
}

func (e *Engine) setStoreErr(err error) {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()
	e.storeSeen = true
	e.storeErr = err
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "session"
	data["event_type"] = eventType
	data["session"] = e.cfg.SessionName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Session] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
