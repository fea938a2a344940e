package wire

import (
	"encoding/json"
	"strings"
	"time"
)

// RoomStatus is the lifecycle phase of a room.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "WAITING"
	StatusPlaying  RoomStatus = "PLAYING"
	StatusFinished RoomStatus = "FINISHED"
)

// QuestionType distinguishes the answer shapes the backend supports.
type QuestionType string

const (
	QuestionChoice QuestionType = "CHOICE"
	QuestionBid    QuestionType = "BID"
)

// Option is a single answer choice for a CHOICE question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is the current question payload pushed inside room updates.
// Min and Max bound the allowed value for BID questions.
type Question struct {
	ID      int64        `json:"id"`
	Type    QuestionType `json:"type"`
	Text    string       `json:"text"`
	Options []Option     `json:"options,omitempty"`
	Min     int          `json:"min,omitempty"`
	Max     int          `json:"max,omitempty"`
}

// Player is a room roster entry.
type Player struct {
	ID        string `json:"playerId"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Spectator bool   `json:"spectator"`
	Score     int    `json:"score"`
}

// Room is the server-pushed aggregate snapshot of a game session.
// CurrentIndex is a pointer because partial updates may omit it entirely,
// which must be distinguishable from index zero.
type Room struct {
	RoomCode           string     `json:"roomCode"`
	Status             RoomStatus `json:"status"`
	CurrentIndex       *int       `json:"currentIndex,omitempty"`
	CurrentQuestion    *Question  `json:"currentQuestion,omitempty"`
	QuestionStartTime  *time.Time `json:"questionStartTime,omitempty"`
	TimeLimitSeconds   int        `json:"timeLimit,omitempty"`
	Finished           bool       `json:"finished"`
	Players            []Player   `json:"players,omitempty"`
	SubmittedPlayerIDs []string   `json:"submittedPlayerIds,omitempty"`
}

// ParseRoom decodes a room snapshot from a raw topic payload.
func ParseRoom(data []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RoomError is the payload delivered on a room's error topic.
type RoomError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
}

// RoomGone reports whether the error means the room no longer exists, as
// opposed to a transient room-level failure.
func (e RoomError) RoomGone() bool {
	if e.Code == "ROOM_NOT_FOUND" {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no longer exists")
}

// ParseRoomError decodes an error payload, falling back to the raw text when
// the body is not structured.
func ParseRoomError(data []byte) RoomError {
	var e RoomError
	if err := json.Unmarshal(data, &e); err != nil || (e.Code == "" && e.Message == "") {
		return RoomError{Message: string(data)}
	}
	return e
}

// ParseInto decodes a raw topic payload into the given target.
func ParseInto(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// KickNotice is the payload delivered on a player's kicked topic.
type KickNotice struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason,omitempty"`
}
