package bus

import (
	"testing"
	"time"
)

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	b := New()
	all := b.Subscribe()
	defer all.Close()
	kicks := b.Subscribe(EventPlayerKicked)
	defer kicks.Close()

	b.Publish(Event{Type: EventRoomDeleted, Payload: RoomDeletedPayload{RoomCode: "ABCD"}})
	b.Publish(Event{Type: EventPlayerKicked, Payload: PlayerKickedPayload{PlayerID: "p1"}})

	got := 0
	for got < 2 {
		select {
		case <-all.C():
			got++
		case <-time.After(time.Second):
			t.Fatalf("wildcard subscriber got %d of 2 events", got)
		}
	}

	select {
	case e := <-kicks.C():
		if e.Type != EventPlayerKicked {
			t.Fatalf("event = %v", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("typed subscriber missed its event")
	}
	select {
	case e := <-kicks.C():
		t.Fatalf("typed subscriber got non-matching event %v", e.Type)
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	s := b.Subscribe(EventWelcome)
	defer s.Close()

	// Nobody draining; overflow events are dropped, not deadlocked on.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer*2; i++ {
			b.Publish(Event{Type: EventWelcome})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	drained := 0
	for {
		select {
		case <-s.C():
			drained++
		default:
			if drained != subscriptionBuffer {
				t.Fatalf("drained %d, want %d buffered events", drained, subscriptionBuffer)
			}
			return
		}
	}
}

func TestCloseDetachesSubscriber(t *testing.T) {
	b := New()
	s := b.Subscribe(EventWelcome)
	s.Close()
	s.Close() // idempotent

	b.Publish(Event{Type: EventWelcome})
	if _, ok := <-s.C(); ok {
		t.Fatal("expected closed channel")
	}
}
