// Package room groups the topic subscriptions that make up a client's view of
// one room and re-broadcasts room-level lifecycle events on the bus.
package room

import (
	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/transport"
	"github.com/quizrally/client/internal/wire"
)

// Manager opens and tears down per-room subscription sets.
type Manager struct {
	client *transport.Client
	bus    *bus.Bus
}

// NewManager returns a manager bound to the given connection.
func NewManager(client *transport.Client, b *bus.Bus) *Manager {
	return &Manager{client: client, bus: b}
}

// SubscribeRoom opens the room's update, error and deleted topics, plus the
// per-player kicked topic when a player identity is supplied. Subscriptions
// that fail to open are omitted from the result; the caller proceeds with
// whichever succeeded.
func (m *Manager) SubscribeRoom(
	roomCode string,
	onUpdate func(*wire.Room),
	onError func(wire.RoomError),
	playerID string,
) []*transport.Subscription {
	subs := make([]*transport.Subscription, 0, 4)

	add := func(destination string, h transport.Handler) {
		sub, err := m.client.Subscribe(destination, h)
		if err != nil {
			log.Warn().Err(err).Str("destination", destination).Msg("room subscription failed")
			return
		}
		subs = append(subs, sub)
	}

	add(wire.RoomTopic(roomCode), func(data []byte) {
		update, err := wire.ParseRoom(data)
		if err != nil {
			log.Warn().Err(err).Str("room_code", roomCode).Msg("dropping malformed room update")
			return
		}
		if onUpdate != nil {
			onUpdate(update)
		}
	})

	add(wire.RoomErrorTopic(roomCode), func(data []byte) {
		e := wire.ParseRoomError(data)
		log.Error().Str("room_code", roomCode).Str("message", e.Message).Msg("room error")
		if onError != nil {
			onError(e)
		}
	})

	add(wire.RoomDeletedTopic(roomCode), func(data []byte) {
		log.Warn().Str("room_code", roomCode).Msg("room deleted")
		m.bus.Publish(bus.Event{
			Type:    bus.EventRoomDeleted,
			Payload: bus.RoomDeletedPayload{RoomCode: roomCode},
		})
	})

	if playerID != "" {
		add(wire.PlayerKickedTopic(playerID), func(data []byte) {
			var notice wire.KickNotice
			if err := wire.ParseInto(data, &notice); err != nil {
				notice = wire.KickNotice{RoomCode: roomCode, PlayerID: playerID}
			}
			log.Warn().Str("player_id", playerID).Str("reason", notice.Reason).Msg("kicked from room")
			m.bus.Publish(bus.Event{
				Type: bus.EventPlayerKicked,
				Payload: bus.PlayerKickedPayload{
					RoomCode: notice.RoomCode,
					PlayerID: playerID,
					Reason:   notice.Reason,
				},
			})
		})
	}

	return subs
}

// UnsubscribeAll tears down every subscription in the set, tolerating
// individual failures.
func (m *Manager) UnsubscribeAll(subs []*transport.Subscription) {
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("destination", sub.Destination()).Msg("unsubscribe failed, continuing")
		}
	}
}
