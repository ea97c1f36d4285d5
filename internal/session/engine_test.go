package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genie-dash/genie/pkg/dashboard"
	"github.com/genie-dash/genie/pkg/toolstream"
)

// fakeStore is an in-memory Store with scriptable failures.
type fakeStore struct {
	mu sync.Mutex

	active     *dashboard.Snapshot
	byID       map[string]*dashboard.Snapshot
	fetchErr   error
	persistErr error

	persisted [][]dashboard.LayoutItem
	layoutIDs []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]*dashboard.Snapshot)}
}

func (f *fakeStore) GetActiveDashboard(ctx context.Context) (*dashboard.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.active, nil
}

func (f *fakeStore) GetDashboard(ctx context.Context, id string) (*dashboard.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snap, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("dashboard %s not found", id)
	}
	return snap, nil
}

func (f *fakeStore) UpdateWidgetPositions(ctx context.Context, layoutID string, items []dashboard.LayoutItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = append(f.persisted, items)
	f.layoutIDs = append(f.layoutIDs, layoutID)
	return nil
}

func (f *fakeStore) persistCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.persisted)
}

func setupEngine(t *testing.T, store Store) (*Engine, *toolstream.Client) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	stream, err := toolstream.NewClient(&redis.Options{Addr: mr.Addr()}, "test-session")
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })

	engine := NewEngine(Config{
		SessionName:  "test-session",
		PersistDelay: 20 * time.Millisecond,
	}, stream, store)
	return engine, stream
}

func toolEnvelope(t *testing.T, messageID int64, toolName string, response any) *toolstream.Envelope {
	t.Helper()
	respRaw, err := json.Marshal(response)
	require.NoError(t, err)
	tokRaw, err := json.Marshal(toolstream.Token{ToolName: toolName, Response: respRaw})
	require.NoError(t, err)
	return &toolstream.Envelope{
		Event: toolstream.EventTypeToolCall,
		Data:  &toolstream.Message{ID: messageID, Role: toolstream.RoleToolExecution, Token: tokRaw},
	}
}

func TestHandleEnvelope(t *testing.T) {
	t.Run("create then add builds the widget list", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())

		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolCreateDashboard, dashboard.CreateDashboardResponse{
			Success:        true,
			ActiveLayoutID: "layout-1",
			Widgets:        []dashboard.RawWidget{{"id": "w1"}},
		}))
		engine.HandleEnvelope(toolEnvelope(t, 2, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Success: true,
			Widgets: []dashboard.RawWidget{{"id": "w2"}},
		}))

		widgets := engine.Widgets()
		require.Len(t, widgets, 2)
		assert.Equal(t, "w1", widgets[0].ID)
		assert.Equal(t, "w2", widgets[1].ID)

		active, ok := engine.ActiveDashboard()
		require.True(t, ok)
		assert.Equal(t, "layout-1", active.LayoutID)
	})

	t.Run("duplicate envelope is a no-op", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		env := toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		})
		engine.HandleEnvelope(env)
		engine.HandleEnvelope(env)
		assert.Len(t, engine.Widgets(), 1)
	})

	t.Run("new dashboard resets the view", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "old"}},
		}))
		engine.HandleEnvelope(toolEnvelope(t, 2, toolstream.ToolCreateDashboard, dashboard.CreateDashboardResponse{
			ActiveLayoutID: "layout-2",
			Widgets:        []dashboard.RawWidget{{"id": "fresh"}},
		}))

		widgets := engine.Widgets()
		require.Len(t, widgets, 1)
		assert.Equal(t, "fresh", widgets[0].ID)
	})

	t.Run("malformed envelope is silently dropped", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		engine.HandleEnvelope(&toolstream.Envelope{Event: "noise"})
		engine.HandleEnvelope(nil)
		assert.Empty(t, engine.Widgets())
	})
}

func TestManipulationFlow(t *testing.T) {
	manipulationResponse := dashboard.Manipulation{
		Success:   true,
		Operation: "move",
		LayoutID:  "layout-1",
		Timestamp: "ts1",
		Changes: []dashboard.WidgetChange{{
			WidgetID: "w1",
			Action:   dashboard.ChangeActionMoved,
			NewState: dashboard.Position{X: 5, Y: 2, W: 4, H: 4},
		}},
	}

	t.Run("result queues and executes exactly once", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		}))
		engine.HandleEnvelope(toolEnvelope(t, 2, toolstream.ToolManipulateWidget, manipulationResponse))

		require.Equal(t, 1, engine.PendingManipulations())

		// widget untouched until execution
		w := engine.Widgets()[0]
		assert.Equal(t, 0, w.Position.X)

		entry, ok := engine.NextManipulation()
		require.True(t, ok)
		assert.True(t, engine.ExecuteManipulation(entry.ID))

		w = engine.Widgets()[0]
		assert.Equal(t, dashboard.Position{X: 5, Y: 2, W: 4, H: 4}, w.Position)

		// second execution attempt fails, position unchanged
		assert.False(t, engine.ExecuteManipulation(entry.ID))
		assert.Equal(t, 0, engine.PendingManipulations())
	})

	t.Run("re-delivered result does not re-queue", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		}))

		env := toolEnvelope(t, 2, toolstream.ToolManipulateWidget, manipulationResponse)
		engine.HandleEnvelope(env)
		entry, ok := engine.NextManipulation()
		require.True(t, ok)
		require.True(t, engine.ExecuteManipulation(entry.ID))

		// same upstream event again, different message ID (stream re-sync)
		engine.HandleEnvelope(toolEnvelope(t, 99, toolstream.ToolManipulateWidget, manipulationResponse))
		assert.Equal(t, 0, engine.PendingManipulations())
	})

	t.Run("removed actions are skipped", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		}))
		engine.HandleEnvelope(toolEnvelope(t, 2, toolstream.ToolManipulateWidget, dashboard.Manipulation{
			LayoutID:  "layout-1",
			Timestamp: "ts2",
			Changes: []dashboard.WidgetChange{{
				WidgetID: "w1",
				Action:   dashboard.ChangeActionRemoved,
				NewState: dashboard.Position{X: 9, Y: 9, W: 1, H: 1},
			}},
		}))

		entry, ok := engine.NextManipulation()
		require.True(t, ok)
		require.True(t, engine.ExecuteManipulation(entry.ID))

		// widget still present and unmoved
		widgets := engine.Widgets()
		require.Len(t, widgets, 1)
		assert.Equal(t, 0, widgets[0].Position.X)
	})

	t.Run("recorded state without size keeps widget dimensions", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		}))
		engine.HandleEnvelope(toolEnvelope(t, 2, toolstream.ToolManipulateWidget, dashboard.Manipulation{
			Success:   true,
			Operation: "move",
			LayoutID:  "layout-1",
			Timestamp: "ts3",
			Changes: []dashboard.WidgetChange{{
				WidgetID: "w1",
				Action:   dashboard.ChangeActionMoved,
				NewState: dashboard.Position{X: 5, Y: 2},
			}},
		}))

		entry, ok := engine.NextManipulation()
		require.True(t, ok)
		require.True(t, engine.ExecuteManipulation(entry.ID))

		// coordinates applied, default 4x4 size retained
		w := engine.Widgets()[0]
		assert.Equal(t, dashboard.Position{X: 5, Y: 2, W: 4, H: 4}, w.Position)
	})

	t.Run("unknown action tags are carried through", func(t *testing.T) {
		engine, _ := setupEngine(t, newFakeStore())
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		}))
		engine.HandleEnvelope(toolEnvelope(t, 2, toolstream.ToolManipulateWidget, dashboard.Manipulation{
			LayoutID:  "layout-1",
			Timestamp: "ts4",
			Changes: []dashboard.WidgetChange{{
				WidgetID: "w1",
				Action:   dashboard.ChangeAction("teleported"),
				NewState: dashboard.Position{X: 2, Y: 2, W: 3, H: 3},
			}},
		}))

		require.Equal(t, 1, engine.PendingManipulations())
		entry, ok := engine.NextManipulation()
		require.True(t, ok)
		require.True(t, engine.ExecuteManipulation(entry.ID))
		assert.Equal(t, dashboard.Position{X: 2, Y: 2, W: 3, H: 3}, engine.Widgets()[0].Position)
	})
}

func TestLayoutChange(t *testing.T) {
	items := []dashboard.LayoutItem{{I: "w1", X: 3, Y: 1, W: 4, H: 4}}

	t.Run("updates view immediately and persists after debounce", func(t *testing.T) {
		store := newFakeStore()
		engine, _ := setupEngine(t, store)
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolCreateDashboard, dashboard.CreateDashboardResponse{
			ActiveLayoutID: "layout-1",
			Widgets:        []dashboard.RawWidget{{"id": "w1"}},
		}))

		engine.LayoutChange(items)

		w := engine.Widgets()[0]
		assert.Equal(t, 3, w.Position.X)

		assert.Eventually(t, func() bool {
			return store.persistCount() == 1
		}, time.Second, 10*time.Millisecond)

		store.mu.Lock()
		assert.Equal(t, "layout-1", store.layoutIDs[0])
		store.mu.Unlock()
	})

	t.Run("rapid changes coalesce into one write", func(t *testing.T) {
		store := newFakeStore()
		engine, _ := setupEngine(t, store)
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolCreateDashboard, dashboard.CreateDashboardResponse{
			ActiveLayoutID: "layout-1",
			Widgets:        []dashboard.RawWidget{{"id": "w1"}},
		}))

		for x := 0; x < 5; x++ {
			engine.LayoutChange([]dashboard.LayoutItem{{I: "w1", X: x, Y: 0, W: 4, H: 4}})
			time.Sleep(5 * time.Millisecond)
		}

		assert.Eventually(t, func() bool {
			return store.persistCount() == 1
		}, time.Second, 10*time.Millisecond)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, store.persistCount())

		store.mu.Lock()
		last := store.persisted[0]
		store.mu.Unlock()
		require.Len(t, last, 1)
		assert.Equal(t, 4, last[0].X)
	})

	t.Run("no active layout means no persistence", func(t *testing.T) {
		store := newFakeStore()
		engine, _ := setupEngine(t, store)

		engine.LayoutChange(items)
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, 0, store.persistCount())
	})

	t.Run("failed write flips the connectivity flag", func(t *testing.T) {
		store := newFakeStore()
		store.persistErr = fmt.Errorf("store offline")
		engine, _ := setupEngine(t, store)
		engine.HandleEnvelope(toolEnvelope(t, 1, toolstream.ToolCreateDashboard, dashboard.CreateDashboardResponse{
			ActiveLayoutID: "layout-1",
			Widgets:        []dashboard.RawWidget{{"id": "w1"}},
		}))

		assert.True(t, engine.Connected())
		engine.LayoutChange(items)

		assert.Eventually(t, func() bool {
			return !engine.Connected()
		}, time.Second, 10*time.Millisecond)

		// interaction still works while degraded
		engine.LayoutChange([]dashboard.LayoutItem{{I: "w1", X: 8, Y: 0, W: 4, H: 4}})
		assert.Equal(t, 8, engine.Widgets()[0].Position.X)
	})
}

func TestEngineRun(t *testing.T) {
	t.Run("consumes published envelopes", func(t *testing.T) {
		store := newFakeStore()
		store.active = &dashboard.Snapshot{
			ActiveLayoutID: "stored-1",
			Layout:         dashboard.Layout{LayoutID: "stored-1", Name: "Stored"},
			Widgets: []dashboard.Widget{{
				ID: "b1", ComponentType: dashboard.ComponentTypeChart,
				Position: dashboard.Position{W: 4, H: 4}, Props: map[string]any{}, Breakpoint: "lg",
			}},
		}
		engine, stream := setupEngine(t, store)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- engine.Run(ctx) }()

		// baseline lands before events are consumed
		require.Eventually(t, func() bool {
			return len(engine.Widgets()) == 1
		}, time.Second, 10*time.Millisecond)

		env := toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		})
		// re-publishing is safe: the reducer dedups by event identity
		require.Eventually(t, func() bool {
			require.NoError(t, stream.Publish(ctx, env))
			return len(engine.Widgets()) == 2
		}, time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("engine did not shut down")
		}
	})

	t.Run("baseline fetch failure degrades instead of failing", func(t *testing.T) {
		store := newFakeStore()
		store.fetchErr = fmt.Errorf("store unreachable")
		engine, stream := setupEngine(t, store)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- engine.Run(ctx) }()

		require.Eventually(t, func() bool {
			return !engine.Connected()
		}, time.Second, 10*time.Millisecond)

		// session still processes events
		env := toolEnvelope(t, 1, toolstream.ToolAddWidget, dashboard.AddWidgetResponse{
			Widgets: []dashboard.RawWidget{{"id": "w1"}},
		})
		require.Eventually(t, func() bool {
			require.NoError(t, stream.Publish(ctx, env))
			return len(engine.Widgets()) == 1
		}, time.Second, 10*time.Millisecond)

		cancel()
		<-done
	})

	t.Run("pinned dashboard ID is fetched instead of active", func(t *testing.T) {
		store := newFakeStore()
		store.byID["pinned-1"] = &dashboard.Snapshot{
			ActiveLayoutID: "pinned-1",
			Layout:         dashboard.Layout{LayoutID: "pinned-1", Name: "Pinned"},
		}

		mr := miniredis.NewMiniRedis()
		require.NoError(t, mr.Start())
		t.Cleanup(mr.Close)
		stream, err := toolstream.NewClient(&redis.Options{Addr: mr.Addr()}, "test-session")
		require.NoError(t, err)
		t.Cleanup(func() { stream.Close() })

		engine := NewEngine(Config{
			SessionName: "test-session",
			DashboardID: "pinned-1",
		}, stream, store)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- engine.Run(ctx) }()

		require.Eventually(t, func() bool {
			active, ok := engine.ActiveDashboard()
			return ok && active.Name == "Pinned"
		}, time.Second, 10*time.Millisecond)

		cancel()
		<-done
	})
}
