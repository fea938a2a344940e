package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizrally/client/internal/wire"
)

func newTestStore(t *testing.T, clock clockwork.Clock) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "quizrally.json")
	s, err := Open(path, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestAuthRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, path := newTestStore(t, clock)

	s.SetAuth(wire.AuthResponse{
		Token:    "tok-1",
		PlayerID: "p1",
		UserID:   "u1",
		Name:     "Ada",
		Username: "ada",
	})
	if s.Token() != "tok-1" || s.PlayerID() != "p1" || s.PlayerName() != "Ada" {
		t.Fatal("auth not recorded")
	}

	// A new store over the same file sees the persisted identity.
	reopened, err := Open(path, clock)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Token() != "tok-1" || reopened.PlayerID() != "p1" {
		t.Fatal("auth not persisted")
	}

	reopened.ClearAuth()
	if reopened.Token() != "" || reopened.PlayerID() != "" {
		t.Fatal("auth not cleared")
	}
}

func TestRoomCacheTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, path := newTestStore(t, clock)

	s.SaveRoom(&wire.Room{RoomCode: "ABCD", Status: wire.StatusPlaying})
	clock.Advance(RoomTTL - time.Minute)
	if r := s.LoadRoom(); r == nil || r.RoomCode != "ABCD" {
		t.Fatalf("room = %+v, want fresh snapshot", r)
	}

	clock.Advance(2 * time.Minute)
	if r := s.LoadRoom(); r != nil {
		t.Fatalf("room = %+v, want nil after TTL", r)
	}
	// Expiry clears the persisted record, not just the returned value.
	reopened, err := Open(path, clock)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.LoadRoom() != nil {
		t.Fatal("expired room survived on disk")
	}
}

func TestClearRoom(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, _ := newTestStore(t, clock)

	s.ClearRoom() // nothing cached, no-op
	s.SaveRoom(&wire.Room{RoomCode: "ABCD"})
	s.ClearRoom()
	if s.LoadRoom() != nil {
		t.Fatal("room survived ClearRoom")
	}
}

func TestSaveNilRoomIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, _ := newTestStore(t, clock)
	s.SaveRoom(nil)
	if s.LoadRoom() != nil {
		t.Fatal("nil snapshot was cached")
	}
}

func TestSubmissionFlags(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, path := newTestStore(t, clock)

	key := "submission_ABCD_2"
	if s.HasSubmitted(key) {
		t.Fatal("flag set on empty store")
	}
	s.MarkSubmitted(key)
	if !s.HasSubmitted(key) {
		t.Fatal("flag not set")
	}

	reopened, err := Open(path, clock)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.HasSubmitted(key) {
		t.Fatal("flag not persisted")
	}

	reopened.ClearSubmitted(key)
	reopened.ClearSubmitted(key) // absent, no-op
	if reopened.HasSubmitted(key) {
		t.Fatal("flag not cleared")
	}
}

func TestOpenToleratesCorruptFile(t *testing.T) {
	clock := clockwork.NewFakeClock()
	path := filepath.Join(t.TempDir(), "quizrally.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Token() != "" || s.LoadRoom() != nil {
		t.Fatal("corrupt file produced state")
	}
	// The store must be writable again after discarding the corrupt file.
	s.MarkSubmitted("submission_ABCD_0")
	if !s.HasSubmitted("submission_ABCD_0") {
		t.Fatal("store unusable after corrupt file")
	}
}
