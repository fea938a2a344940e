// Package bus is a small typed in-process event bus used for cross-component
// signaling: connection lifecycle, room deletion, kicks and API errors travel
// here instead of through direct dependencies between components.
package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType identifies a process-wide notification.
type EventType string

const (
	EventReconnecting    EventType = "connection.reconnecting"
	EventReconnected     EventType = "connection.reconnected"
	EventReconnectFailed EventType = "connection.reconnect_failed"
	EventTransportError  EventType = "connection.error"
	EventWelcome         EventType = "connection.welcome"
	EventPersonalError   EventType = "player.error"
	EventRoomDeleted     EventType = "room.deleted"
	EventPlayerKicked    EventType = "player.kicked"
	EventAPIError        EventType = "api.error"
)

// Event pairs a type with its payload.
type Event struct {
	Type    EventType
	Payload any
}

const subscriptionBuffer = 16

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that falls behind loses events, mirroring the fire-and-forget semantics of
// the notifications this replaces.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscription receives events of the requested types on C until Close.
type Subscription struct {
	bus    *Bus
	types  map[EventType]struct{}
	ch     chan Event
	closed bool
}

// Subscribe registers interest in the given event types. With no types the
// subscription receives everything.
func (b *Bus) Subscribe(types ...EventType) *Subscription {
	s := &Subscription{
		bus: b,
		ch:  make(chan Event, subscriptionBuffer),
	}
	if len(types) > 0 {
		s.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s
}

// C is the receive channel for the subscription.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	close(s.ch)
}

// Publish delivers the event to every matching subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.types != nil {
			if _, ok := s.types[e.Type]; !ok {
				continue
			}
		}
		select {
		case s.ch <- e:
		default:
			log.Warn().Str("event_type", string(e.Type)).Msg("bus subscriber buffer full, dropping event")
		}
	}
}

// ReconnectingPayload accompanies EventReconnecting.
type ReconnectingPayload struct {
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
}

// TransportErrorPayload accompanies EventTransportError and EventPersonalError.
type TransportErrorPayload struct {
	Op      string
	Message string
}

// RoomDeletedPayload accompanies EventRoomDeleted.
type RoomDeletedPayload struct {
	RoomCode string
}

// PlayerKickedPayload accompanies EventPlayerKicked.
type PlayerKickedPayload struct {
	RoomCode string
	PlayerID string
	Reason   string
}

// APIErrorPayload accompanies EventAPIError.
type APIErrorPayload struct {
	Status  int
	Message string
	URL     string
}
