package toolstream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-session")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-session", client.SessionName())
	})

	t.Run("rejects empty session name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "session name cannot be empty")
	})
}

func TestEventsChannel(t *testing.T) {
	assert.Equal(t, "genie:demo:tool_events", EventsChannel("demo"))
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("round trips an envelope", func(t *testing.T) {
		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		env := &Envelope{
			Event: EventTypeToolCall,
			Data: &Message{
				ID:    42,
				Role:  RoleToolExecution,
				Token: json.RawMessage(`{"tool_name":"add_widget","response":{"widgets":[{"id":"w1"}]}}`),
			},
		}
		require.NoError(t, client.Publish(ctx, env))

		select {
		case received := <-sub.Events():
			require.NotNil(t, received.Data)
			assert.Equal(t, int64(42), received.Data.ID)
			assert.Equal(t, RoleToolExecution, received.Data.Role)

			ev, ok := Classify(received)
			require.True(t, ok)
			assert.Equal(t, KindWidgetAdded, ev.Kind)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for envelope")
		}
	})

	t.Run("malformed payload surfaces on error channel", func(t *testing.T) {
		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, client.rdb.Publish(ctx, EventsChannel("test-session"), "not json").Err())

		select {
		case err := <-sub.Errors():
			assert.Error(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for error")
		}
	})

	t.Run("handles multiple subscribers", func(t *testing.T) {
		sub1, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub1.Close()

		sub2, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub2.Close()

		env := &Envelope{Event: EventTypeToolCall, Data: &Message{ID: 7}}
		require.NoError(t, client.Publish(ctx, env))

		for _, sub := range []*Subscription{sub1, sub2} {
			select {
			case received := <-sub.Events():
				assert.Equal(t, int64(7), received.Data.ID)
			case <-time.After(1 * time.Second):
				t.Fatal("timeout waiting for envelope")
			}
		}
	})

	t.Run("close stops delivery", func(t *testing.T) {
		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		require.NoError(t, sub.Close())
		// Safe to close twice
		require.NoError(t, sub.Close())

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(1 * time.Second):
			t.Fatal("events channel was not closed")
		}
	})

	t.Run("context cancellation closes the subscription", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		sub, err := client.Subscribe(cancelCtx)
		require.NoError(t, err)
		defer sub.Close()

		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(1 * time.Second):
			t.Fatal("events channel was not closed")
		}
	})
}

func TestSessionIsolation(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	clientA, err := NewClient(&redis.Options{Addr: mr.Addr()}, "session-a")
	require.NoError(t, err)
	t.Cleanup(func() { clientA.Close() })

	clientB, err := NewClient(&redis.Options{Addr: mr.Addr()}, "session-b")
	require.NoError(t, err)
	t.Cleanup(func() { clientB.Close() })

	ctx := context.Background()
	subB, err := clientB.Subscribe(ctx)
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, clientA.Publish(ctx, &Envelope{Event: EventTypeToolCall, Data: &Message{ID: 1}}))

	select {
	case env := <-subB.Events():
		t.Fatalf("session-b received session-a's envelope: %+v", env)
	case <-time.After(200 * time.Millisecond):
		// expected: no crosstalk
	}
}
