// Package session composes the transport, room subscriptions, countdown and
// submission state into the gameplay and waiting-room flows: each room update
// is reconciled against local state and drives navigation transitions.
package session

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/api"
	"github.com/quizrally/client/internal/wire"
)

// Navigator receives view transitions. The UI decides what a "view" is; a
// headless client can simply log them.
type Navigator interface {
	ToGame(roomCode string)
	ToWait(roomCode string)
	ToResults(roomCode string)
	ToFinder()
}

// RoomService fetches the authoritative room snapshot over HTTP, used to
// resync after connecting or reconnecting.
type RoomService interface {
	GetRoom(ctx context.Context, roomCode string, opts ...api.CallOption) (*wire.Room, error)
}

// RoomCache persists the last known room snapshot between page loads.
type RoomCache interface {
	SaveRoom(r *wire.Room)
	ClearRoom()
}

// LogNavigator logs transitions instead of rendering views.
type LogNavigator struct{}

func (LogNavigator) ToGame(roomCode string) {
	log.Info().Str("room_code", roomCode).Msg("navigate: game view")
}

func (LogNavigator) ToWait(roomCode string) {
	log.Info().Str("room_code", roomCode).Msg("navigate: waiting room")
}

func (LogNavigator) ToResults(roomCode string) {
	log.Info().Str("room_code", roomCode).Msg("navigate: results view")
}

func (LogNavigator) ToFinder() {
	log.Info().Msg("navigate: room finder")
}
