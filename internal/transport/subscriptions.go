package transport

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/wire"
)

// Subscription is a live topic subscription. Subscriptions do not survive a
// reconnect; restore callbacks re-establish them.
type Subscription struct {
	id          string
	destination string
	handler     Handler
	client      *Client
}

// Destination returns the subscribed topic.
func (s *Subscription) Destination() string { return s.destination }

// ID returns the subscription identifier sent to the server.
func (s *Subscription) ID() string { return s.id }

// Subscribe opens a topic subscription. Fails with ErrNotConnected when no
// live connection exists.
func (c *Client) Subscribe(destination string, h Handler) (*Subscription, error) {
	c.mu.Lock()
	if !c.connected || c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	sub := &Subscription{
		id:          uuid.NewString(),
		destination: destination,
		handler:     h,
		client:      c,
	}
	c.subs[destination] = append(c.subs[destination], sub)
	c.mu.Unlock()

	f := wire.Frame{Type: wire.FrameSubscribe, ID: sub.id, Destination: destination}
	if err := conn.WriteJSON(f); err != nil {
		c.removeSub(sub)
		return nil, &TransportError{Op: "subscribe", Err: err}
	}
	log.Debug().Str("destination", destination).Str("subscription_id", sub.id).Msg("subscribed")
	return sub, nil
}

// Unsubscribe tears the subscription down. The local handler is always
// removed, even when notifying the server fails.
func (s *Subscription) Unsubscribe() error {
	c := s.client
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	c.removeSub(s)
	if !connected || conn == nil {
		return nil
	}
	f := wire.Frame{Type: wire.FrameUnsubscribe, ID: s.id, Destination: s.destination}
	if err := conn.WriteJSON(f); err != nil {
		return &TransportError{Op: "unsubscribe", Err: err}
	}
	log.Debug().Str("destination", s.destination).Str("subscription_id", s.id).Msg("unsubscribed")
	return nil
}

func (c *Client) removeSub(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.subs[sub.destination]
	for i, s := range list {
		if s == sub {
			c.subs[sub.destination] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(c.subs[sub.destination]) == 0 {
		delete(c.subs, sub.destination)
	}
}

// restoreCallback pairs a registered function with its identity key; functions
// are deduplicated by code pointer.
type restoreCallback struct {
	key uintptr
	fn  func()
}

// RegisterRestoreCallback records a zero-argument callback invoked, in
// registration order, after a successful reconnect. Registering the same
// function twice or registering nil is a no-op.
func (c *Client) RegisterRestoreCallback(fn func()) {
	if fn == nil {
		return
	}
	key := reflect.ValueOf(fn).Pointer()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cb := range c.restoreCallbacks {
		if cb.key == key {
			return
		}
	}
	c.restoreCallbacks = append(c.restoreCallbacks, restoreCallback{key: key, fn: fn})
}

// UnregisterRestoreCallback removes a previously registered callback.
// Unregistering an unknown or nil function is a no-op.
func (c *Client) UnregisterRestoreCallback(fn func()) {
	if fn == nil {
		return
	}
	key := reflect.ValueOf(fn).Pointer()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cb := range c.restoreCallbacks {
		if cb.key == key {
			c.restoreCallbacks = append(c.restoreCallbacks[:i], c.restoreCallbacks[i+1:]...)
			return
		}
	}
}
