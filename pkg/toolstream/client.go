package toolstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// EventsChannel returns the Pub/Sub channel name for a session's tool-call
// events. Channels are namespaced by session name so multiple Genie
// sessions can safely share one Redis server.
// Pattern: genie:{session_name}:tool_events
func EventsChannel(sessionName string) string {
	return fmt.Sprintf("genie:%s:tool_events", sessionName)
}

// Client provides session-scoped access to the tool-call event channel.
// The client is thread-safe and can be used concurrently from multiple
// goroutines.
type Client struct {
	rdb         *redis.Client
	sessionName string
}

// NewClient creates a tool-stream client for the specified session.
// Returns an error if sessionName is empty.
func NewClient(redisOpts *redis.Options, sessionName string) (*Client, error) {
	if sessionName == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}
	return &Client{
		rdb:         redis.NewClient(redisOpts),
		sessionName: sessionName,
	}, nil
}

// SessionName returns the session this client is scoped to.
func (c *Client) SessionName() string {
	return c.sessionName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for startup checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish sends one envelope to the session's event channel. Used by the
// chat transport bridge, the replay CLI, and tests; the session engine only
// consumes.
func (c *Client) Publish(ctx context.Context, env *Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := c.rdb.Publish(ctx, EventsChannel(c.sessionName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish tool event: %w", err)
	}
	return nil
}

// Subscription is an active Pub/Sub subscription to tool-call envelopes.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Envelope
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of envelopes. The channel is closed when the
// subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Envelope {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal:
// a malformed message is skipped and the subscription continues.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to the session's tool-call events.
// Envelopes are delivered on a buffered channel (size 10); if the consumer
// is too slow, Redis Pub/Sub may drop messages (at-most-once delivery),
// which the reducer's dedup and the store baseline are designed to absorb.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.sessionName))

	eventsChan := make(chan *Envelope, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal tool event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &env:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
