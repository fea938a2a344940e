package countdown

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func advanceBy(clock *clockwork.FakeClock, total time.Duration) {
	// Step in tick-sized increments so the run loop observes the passage of
	// time instead of one coalesced jump.
	for elapsed := time.Duration(0); elapsed < total; elapsed += tickInterval {
		clock.Advance(tickInterval)
		time.Sleep(time.Millisecond)
	}
}

func TestExpiresExactlyOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 8)
	e := New(clock, func() { fired <- struct{}{} })

	e.Start(clock.Now(), 2)
	if got := e.Remaining(); got != 2 {
		t.Fatalf("Remaining = %d, want 2", got)
	}
	if e.State() != StateRunning {
		t.Fatalf("state = %v, want running", e.State())
	}

	advanceBy(clock, 2500*time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("countdown did not fire")
	}
	select {
	case <-fired:
		t.Fatal("countdown fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
	if e.State() != StateExpired {
		t.Fatalf("state = %v, want expired", e.State())
	}
	if got := e.Remaining(); got != 0 {
		t.Fatalf("Remaining after expiry = %d, want 0", got)
	}
}

func TestRemainingRecomputesFromAnchor(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := New(clock, nil)

	e.Start(clock.Now(), 30)
	advanceBy(clock, 5*time.Second)
	if got := e.Remaining(); got != 25 {
		t.Fatalf("Remaining = %d, want 25", got)
	}
}

func TestStartInThePastFiresImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 1)
	e := New(clock, func() { fired <- struct{}{} })

	// Rejoining mid-game with the deadline already behind us.
	e.Start(clock.Now().Add(-time.Minute), 30)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expired anchor did not fire")
	}
	if e.State() != StateExpired {
		t.Fatalf("state = %v, want expired", e.State())
	}
}

func TestClockJumpStillExpiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 8)
	e := New(clock, func() { fired <- struct{}{} })

	e.Start(clock.Now(), 3)
	clock.BlockUntil(1)
	// One big jump, as after a laptop resume.
	clock.Advance(10 * time.Minute)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("countdown did not fire after clock jump")
	}
	select {
	case <-fired:
		t.Fatal("countdown fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResetStormFiresForLastAnchorOnly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 8)
	e := New(clock, func() { fired <- struct{}{} })

	e.Start(clock.Now(), 1)
	e.Reset(clock.Now(), 1)
	e.Reset(clock.Now(), 2)

	advanceBy(clock, 2500*time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("countdown did not fire")
	}
	select {
	case <-fired:
		t.Fatal("superseded countdowns fired as well")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClearStopsWithoutFiring(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 1)
	e := New(clock, func() { fired <- struct{}{} })

	e.Start(clock.Now(), 1)
	e.Clear()
	if e.State() != StateIdle {
		t.Fatalf("state = %v, want idle", e.State())
	}

	advanceBy(clock, 2*time.Second)
	select {
	case <-fired:
		t.Fatal("cleared countdown fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "idle" || StateRunning.String() != "running" || StateExpired.String() != "expired" {
		t.Fatal("unexpected state strings")
	}
}
