package wire

import "time"

// AuthResponse is returned by the register, login and guest-login endpoints.
type AuthResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
	UserID   string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// RoomSettings is the configurable part of a room, used on create and update.
type RoomSettings struct {
	MaxPlayers       int   `json:"maxPlayers,omitempty"`
	QuestionCount    int   `json:"questionCount,omitempty"`
	TimeLimitSeconds int   `json:"timeLimit,omitempty"`
	TagIDs           []int `json:"tagIds,omitempty"`
}

// PlayerResult is one row of a finished game's scoreboard.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// Tag is a question category.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GameHistorySummary is one entry in a player's history listing.
type GameHistorySummary struct {
	GameID     string    `json:"gameId"`
	RoomCode   string    `json:"roomCode"`
	PlayedAt   time.Time `json:"playedAt"`
	Score      int       `json:"score"`
	Rank       int       `json:"rank"`
	PlayerLeft bool      `json:"playerLeft,omitempty"`
}

// GameHistoryDetail is the full record of one finished game.
type GameHistoryDetail struct {
	GameID   string           `json:"gameId"`
	RoomCode string           `json:"roomCode"`
	PlayedAt time.Time        `json:"playedAt"`
	Results  []PlayerResult   `json:"results"`
	Rounds   []QuestionResult `json:"rounds,omitempty"`
}

// QuestionResult records the outcome of a single question.
type QuestionResult struct {
	Index         int            `json:"index"`
	QuestionID    int64          `json:"questionId"`
	Text          string         `json:"text"`
	CorrectChoice string         `json:"correctChoice,omitempty"`
	Answers       map[string]int `json:"answers,omitempty"`
}
