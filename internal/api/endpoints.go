package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quizrally/client/internal/wire"
)

// Rooms.

func (c *Client) CreateRoom(ctx context.Context, settings wire.RoomSettings, opts ...CallOption) (*wire.Room, error) {
	var room wire.Room
	if err := c.do(ctx, http.MethodPost, "/rooms", nil, settings, &room, opts); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomCode, playerID, playerName string, opts ...CallOption) (*wire.Room, error) {
	q := url.Values{"playerId": {playerID}, "playerName": {playerName}}
	var room wire.Room
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/join", roomCode), q, nil, &room, opts); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) StartGame(ctx context.Context, roomCode string, opts ...CallOption) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/start", roomCode), nil, nil, nil, opts)
}

func (c *Client) SubmitAnswer(ctx context.Context, roomCode, playerID, choice string, force bool, opts ...CallOption) error {
	q := url.Values{
		"playerId": {playerID},
		"choice":   {choice},
		"force":    {strconv.FormatBool(force)},
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/submit", roomCode), q, nil, nil, opts)
}

func (c *Client) SetPlayerReady(ctx context.Context, roomCode, playerID string, ready bool, opts ...CallOption) error {
	q := url.Values{"ready": {strconv.FormatBool(ready)}}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/rooms/%s/players/%s/ready", roomCode, playerID), q, nil, nil, opts)
}

func (c *Client) GetRoom(ctx context.Context, roomCode string, opts ...CallOption) (*wire.Room, error) {
	var room wire.Room
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%s", roomCode), nil, nil, &room, opts); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) GetResults(ctx context.Context, roomCode string, opts ...CallOption) ([]wire.PlayerResult, error) {
	var results []wire.PlayerResult
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%s/results", roomCode), nil, nil, &results, opts); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) DeleteRoom(ctx context.Context, roomCode string, opts ...CallOption) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/rooms/%s", roomCode), nil, nil, nil, opts)
}

func (c *Client) ListRooms(ctx context.Context, opts ...CallOption) ([]wire.Room, error) {
	var rooms []wire.Room
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, nil, &rooms, opts); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) UpdateRoomSettings(ctx context.Context, roomCode string, settings wire.RoomSettings, opts ...CallOption) (*wire.Room, error) {
	var room wire.Room
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/rooms/%s/settings", roomCode), nil, settings, &room, opts); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) KickPlayer(ctx context.Context, roomCode, playerID string, opts ...CallOption) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/rooms/%s/players/%s", roomCode, playerID), nil, nil, nil, opts)
}

// Players.

func (c *Client) CreatePlayer(ctx context.Context, playerID, name string, opts ...CallOption) (*wire.Player, error) {
	q := url.Values{"playerId": {playerID}, "name": {name}}
	var player wire.Player
	if err := c.do(ctx, http.MethodPost, "/players", q, nil, &player, opts); err != nil {
		return nil, err
	}
	return &player, nil
}

func (c *Client) ListPlayers(ctx context.Context, opts ...CallOption) ([]wire.Player, error) {
	var players []wire.Player
	if err := c.do(ctx, http.MethodGet, "/players", nil, nil, &players, opts); err != nil {
		return nil, err
	}
	return players, nil
}

func (c *Client) GetPlayer(ctx context.Context, playerID string, opts ...CallOption) (*wire.Player, error) {
	var player wire.Player
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/players/%s", playerID), nil, nil, &player, opts); err != nil {
		return nil, err
	}
	return &player, nil
}

func (c *Client) UpdatePlayerReady(ctx context.Context, playerID string, ready bool, opts ...CallOption) error {
	q := url.Values{"ready": {strconv.FormatBool(ready)}}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/players/%s/ready", playerID), q, nil, nil, opts)
}

func (c *Client) DeletePlayer(ctx context.Context, playerID string, opts ...CallOption) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/players/%s", playerID), nil, nil, nil, opts)
}

// Authentication.

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (c *Client) Register(ctx context.Context, username, password, name string, opts ...CallOption) (*wire.AuthResponse, error) {
	var auth wire.AuthResponse
	body := credentials{Username: username, Password: password, Name: name}
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, body, &auth, opts); err != nil {
		return nil, err
	}
	return &auth, nil
}

func (c *Client) Login(ctx context.Context, username, password string, opts ...CallOption) (*wire.AuthResponse, error) {
	var auth wire.AuthResponse
	body := credentials{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &auth, opts); err != nil {
		return nil, err
	}
	return &auth, nil
}

func (c *Client) GuestLogin(ctx context.Context, name string, opts ...CallOption) (*wire.AuthResponse, error) {
	var auth wire.AuthResponse
	body := struct {
		Name string `json:"name"`
	}{Name: name}
	if err := c.do(ctx, http.MethodPost, "/auth/guest", nil, body, &auth, opts); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Questions and tags.

func (c *Client) AllQuestions(ctx context.Context, opts ...CallOption) ([]wire.Question, error) {
	var questions []wire.Question
	if err := c.do(ctx, http.MethodGet, "/question", nil, nil, &questions, opts); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *Client) RandomQuestions(ctx context.Context, count int, opts ...CallOption) ([]wire.Question, error) {
	q := url.Values{"count": {strconv.Itoa(count)}}
	var questions []wire.Question
	if err := c.do(ctx, http.MethodGet, "/question/random", q, nil, &questions, opts); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *Client) SuitableQuestions(ctx context.Context, playerCount, questionCount int, opts ...CallOption) ([]wire.Question, error) {
	q := url.Values{
		"playerCount":   {strconv.Itoa(playerCount)},
		"questionCount": {strconv.Itoa(questionCount)},
	}
	var questions []wire.Question
	if err := c.do(ctx, http.MethodGet, "/questions/suitable", q, nil, &questions, opts); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *Client) ListTags(ctx context.Context, opts ...CallOption) ([]wire.Tag, error) {
	var tags []wire.Tag
	if err := c.do(ctx, http.MethodGet, "/tags", nil, nil, &tags, opts); err != nil {
		return nil, err
	}
	return tags, nil
}

// Game history.

func (c *Client) RoomHistory(ctx context.Context, roomCode string, opts ...CallOption) ([]wire.GameHistorySummary, error) {
	var history []wire.GameHistorySummary
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%s/history", roomCode), nil, nil, &history, opts); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *Client) HistoryList(ctx context.Context, playerID string, days int, opts ...CallOption) ([]wire.GameHistorySummary, error) {
	q := url.Values{"playerId": {playerID}}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var history []wire.GameHistorySummary
	if err := c.do(ctx, http.MethodGet, "/games/history", q, nil, &history, opts); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *Client) HistoryDetail(ctx context.Context, gameID string, opts ...CallOption) (*wire.GameHistoryDetail, error) {
	var detail wire.GameHistoryDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/games/history/%s", gameID), nil, nil, &detail, opts); err != nil {
		return nil, err
	}
	return &detail, nil
}
