package room_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/room"
	"github.com/quizrally/client/internal/transport"
	"github.com/quizrally/client/internal/transport/transporttest"
	"github.com/quizrally/client/internal/wire"
)

func newConnectedManager(t *testing.T) (*room.Manager, *transporttest.Conn, *bus.Bus) {
	t.Helper()
	b := bus.New()
	dialer := transporttest.NewDialer()
	client := transport.New(transport.DefaultConfig("ws://test/ws"), b, clockwork.NewFakeClock(), dialer)
	if err := client.Connect(context.Background(), "p1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return room.NewManager(client, b), dialer.Conn(0), b
}

func TestSubscribeRoomOpensAllTopics(t *testing.T) {
	m, conn, _ := newConnectedManager(t)

	updates := make(chan *wire.Room, 4)
	errs := make(chan wire.RoomError, 4)
	subs := m.SubscribeRoom("ABCD",
		func(r *wire.Room) { updates <- r },
		func(e wire.RoomError) { errs <- e },
		"p1",
	)
	if len(subs) != 4 {
		t.Fatalf("subscriptions = %d, want 4", len(subs))
	}
	for _, topic := range []string{"room/ABCD", "room/ABCD/error", "room/ABCD/deleted", "player/p1/kicked"} {
		if len(conn.WritesTo(topic)) != 1 {
			t.Fatalf("no subscribe frame for %s", topic)
		}
	}

	conn.Deliver(transporttest.Message("room/ABCD", wire.Room{RoomCode: "ABCD", Status: wire.StatusPlaying}))
	select {
	case r := <-updates:
		if r.RoomCode != "ABCD" || r.Status != wire.StatusPlaying {
			t.Fatalf("update = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no room update delivered")
	}

	conn.Deliver(transporttest.Message("room/ABCD/error", wire.RoomError{Code: "ROOM_NOT_FOUND", Message: "room not found"}))
	select {
	case e := <-errs:
		if !e.RoomGone() {
			t.Fatalf("error = %+v, want room-gone", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no room error delivered")
	}
}

func TestMalformedUpdateDropped(t *testing.T) {
	m, conn, _ := newConnectedManager(t)

	updates := make(chan *wire.Room, 1)
	m.SubscribeRoom("ABCD", func(r *wire.Room) { updates <- r }, nil, "")

	conn.Deliver(wire.Frame{Type: wire.FrameMessage, Destination: "room/ABCD", Body: []byte(`"not a room"`)})
	select {
	case r := <-updates:
		t.Fatalf("malformed update delivered: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeletedAndKickedReachTheBus(t *testing.T) {
	m, conn, b := newConnectedManager(t)
	events := b.Subscribe(bus.EventRoomDeleted, bus.EventPlayerKicked)
	defer events.Close()

	m.SubscribeRoom("ABCD", nil, nil, "p1")

	conn.Deliver(transporttest.Message("room/ABCD/deleted", map[string]string{"roomCode": "ABCD"}))
	select {
	case e := <-events.C():
		p, ok := e.Payload.(bus.RoomDeletedPayload)
		if e.Type != bus.EventRoomDeleted || !ok || p.RoomCode != "ABCD" {
			t.Fatalf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no room-deleted event")
	}

	conn.Deliver(transporttest.Message("player/p1/kicked", wire.KickNotice{RoomCode: "ABCD", PlayerID: "p1", Reason: "host removed you"}))
	select {
	case e := <-events.C():
		p, ok := e.Payload.(bus.PlayerKickedPayload)
		if e.Type != bus.EventPlayerKicked || !ok {
			t.Fatalf("event = %+v", e)
		}
		if p.PlayerID != "p1" || p.Reason != "host removed you" {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("no player-kicked event")
	}
}

func TestKickedTopicSkippedWithoutIdentity(t *testing.T) {
	m, conn, _ := newConnectedManager(t)

	subs := m.SubscribeRoom("ABCD", nil, nil, "")
	if len(subs) != 3 {
		t.Fatalf("subscriptions = %d, want 3 without identity", len(subs))
	}
	for _, f := range conn.Writes() {
		if f.Type == wire.FrameSubscribe && f.Destination == "player//kicked" {
			t.Fatal("kicked topic subscribed without identity")
		}
	}
}

func TestFailedSubscriptionsOmitted(t *testing.T) {
	m, conn, _ := newConnectedManager(t)
	conn.FailWrites(true)

	subs := m.SubscribeRoom("ABCD", nil, nil, "p1")
	if len(subs) != 0 {
		t.Fatalf("subscriptions = %d, want 0 when every write fails", len(subs))
	}
}

func TestUnsubscribeAllToleratesFailures(t *testing.T) {
	m, conn, _ := newConnectedManager(t)

	updates := make(chan *wire.Room, 1)
	subs := m.SubscribeRoom("ABCD", func(r *wire.Room) { updates <- r }, nil, "p1")
	conn.FailWrites(true)
	m.UnsubscribeAll(subs)     // write failures are logged, not fatal
	m.UnsubscribeAll(nil)      // empty set
	m.UnsubscribeAll(subs[:1]) // repeat is harmless
	conn.FailWrites(false)

	// Handlers are gone locally even though the server was never told.
	conn.Deliver(transporttest.Message("room/ABCD", wire.Room{RoomCode: "ABCD"}))
	select {
	case r := <-updates:
		t.Fatalf("handler invoked after UnsubscribeAll: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}
