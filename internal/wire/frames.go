package wire

import (
	"encoding/json"
	"fmt"
)

// FrameType identifies the kind of frame travelling over the socket.
type FrameType string

const (
	// Client -> server.
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameSend        FrameType = "send"

	// Server -> client.
	FrameConnected FrameType = "connected"
	FrameMessage   FrameType = "message"
	FrameError     FrameType = "error"
)

// Frame is the envelope for every message exchanged on the realtime channel.
// Body carries the frame-specific payload and is left raw so that transport
// code never has to know about domain types.
type Frame struct {
	Type        FrameType       `json:"type"`
	ID          string          `json:"id,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// Inbound topic destinations.
func RoomTopic(code string) string        { return fmt.Sprintf("room/%s", code) }
func RoomErrorTopic(code string) string   { return fmt.Sprintf("room/%s/error", code) }
func RoomDeletedTopic(code string) string { return fmt.Sprintf("room/%s/deleted", code) }
func PlayerKickedTopic(id string) string  { return fmt.Sprintf("player/%s/kicked", id) }

const (
	QueueErrorTopic   = "queue/error"
	QueueWelcomeTopic = "queue/welcome"
)

// Outbound command destinations.
const (
	CommandJoin   = "join"
	CommandStart  = "start"
	CommandSubmit = "submit"
	CommandReady  = "ready"
	CommandLeave  = "leave"
)

// JoinRequest asks the server to add a player to a room.
type JoinRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// StartRequest asks the server to start the game in a room.
type StartRequest struct {
	RoomCode string `json:"roomCode"`
}

// SubmitRequest carries an answer for the current question. Force marks a
// submission made by the countdown rather than the player.
type SubmitRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Choice   string `json:"choice"`
	Force    bool   `json:"force"`
}

// ReadyRequest toggles a player's ready flag in the waiting room.
type ReadyRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

// LeaveRequest removes a player from a room.
type LeaveRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}
