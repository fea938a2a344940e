package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quizrally/client/internal/api"
	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/wire"
)

func TestGetRoomDecodesSnapshot(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodGet || r.URL.Path != "/api/rooms/ABCD" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(wire.Room{RoomCode: "ABCD", Status: wire.StatusWaiting})
	}))
	defer srv.Close()

	c := api.New(srv.URL+"/api", bus.New(), func() string { return "tok-1" })
	room, err := c.GetRoom(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if room.RoomCode != "ABCD" || room.Status != wire.StatusWaiting {
		t.Fatalf("room = %+v", room)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestJoinRoomSendsIdentityQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms/ABCD/join" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("playerId") != "p1" || q.Get("playerName") != "Ada" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(wire.Room{RoomCode: "ABCD"})
	}))
	defer srv.Close()

	c := api.New(srv.URL+"/api", bus.New(), nil)
	if _, err := c.JoinRoom(context.Background(), "ABCD", "p1", "Ada"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
}

func TestErrorPublishesAndClassifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "room ABCD not found"})
	}))
	defer srv.Close()

	b := bus.New()
	events := b.Subscribe(bus.EventAPIError)
	defer events.Close()

	c := api.New(srv.URL+"/api", b, nil)
	_, err := c.GetRoom(context.Background(), "ABCD")
	if !api.IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "room ABCD not found" {
		t.Fatalf("err = %v, want extracted message", err)
	}

	select {
	case e := <-events.C():
		p, ok := e.Payload.(bus.APIErrorPayload)
		if !ok || p.Status != http.StatusNotFound || p.URL != "/rooms/ABCD" {
			t.Fatalf("payload = %+v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no api error event")
	}
}

func TestSilentErrorSuppressesBusEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	b := bus.New()
	events := b.Subscribe(bus.EventAPIError)
	defer events.Close()

	c := api.New(srv.URL+"/api", b, nil)
	if _, err := c.GetRoom(context.Background(), "ABCD", api.SilentError()); !api.IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}

	select {
	case e := <-events.C():
		t.Fatalf("silent call published %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGuestLoginRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/guest" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(wire.AuthResponse{Token: "tok-guest", PlayerID: "p-guest", Name: body.Name})
	}))
	defer srv.Close()

	c := api.New(srv.URL+"/api", bus.New(), nil)
	auth, err := c.GuestLogin(context.Background(), "Ada")
	if err != nil {
		t.Fatalf("GuestLogin: %v", err)
	}
	if auth.Token != "tok-guest" || auth.PlayerID != "p-guest" || auth.Name != "Ada" {
		t.Fatalf("auth = %+v", auth)
	}
}

func TestSubmitAnswerQueryEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("playerId") != "p1" || q.Get("choice") != "B" || q.Get("force") != "true" {
			t.Errorf("query = %v", q)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := api.New(srv.URL+"/api", bus.New(), nil)
	if err := c.SubmitAnswer(context.Background(), "ABCD", "p1", "B", true); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
}
