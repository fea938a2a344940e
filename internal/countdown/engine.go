// Package countdown runs the per-question timer. Remaining time is always
// recomputed from the wall-clock question start, never decremented, so the
// value stays correct across tab suspension and timer jitter.
package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State is the engine's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExpired:
		return "expired"
	default:
		return "idle"
	}
}

const tickInterval = 100 * time.Millisecond

// Engine drives one question's countdown and fires the expiry callback
// exactly once per started question.
type Engine struct {
	clock    clockwork.Clock
	onExpire func()

	mu        sync.Mutex
	state     State
	gen       int
	start     time.Time
	limitSecs int
	remaining int
	stop      chan struct{}
}

// New builds an engine. onExpire is invoked from the engine's goroutine when
// the countdown reaches zero.
func New(clock clockwork.Clock, onExpire func()) *Engine {
	return &Engine{clock: clock, onExpire: onExpire}
}

// Start anchors the countdown to an absolute question start time and begins
// periodic recomputation. Any previous countdown is stopped first.
func (e *Engine) Start(questionStart time.Time, limitSeconds int) {
	e.mu.Lock()
	e.stopLocked()
	e.gen++
	gen := e.gen
	e.state = StateRunning
	e.start = questionStart
	e.limitSecs = limitSeconds
	e.remaining = e.computeLocked()
	stop := make(chan struct{})
	e.stop = stop
	e.mu.Unlock()

	log.Debug().Time("question_start", questionStart).Int("limit_seconds", limitSeconds).Msg("countdown started")

	// Already past the deadline (reload mid-question, clock skew).
	if e.fireIfExpired(gen) {
		return
	}
	go e.run(gen, stop)
}

// Reset stops any running countdown and starts over at the new anchor.
func (e *Engine) Reset(questionStart time.Time, limitSeconds int) {
	e.Start(questionStart, limitSeconds)
}

// Clear stops recomputation without restarting, returning the engine to idle.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.stopLocked()
	e.gen++
	e.state = StateIdle
	e.mu.Unlock()
}

// Remaining returns the seconds left, recomputed from the clock while running.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.remaining = e.computeLocked()
	}
	return e.remaining
}

// State returns the engine's current phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// stopLocked halts the running loop, if any. Caller holds e.mu.
func (e *Engine) stopLocked() {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

func (e *Engine) computeLocked() int {
	elapsed := int(e.clock.Since(e.start) / time.Second)
	remaining := e.limitSecs - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *Engine) run(gen int, stop chan struct{}) {
	ticker := e.clock.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if e.fireIfExpired(gen) {
				return
			}
		}
	}
}

// fireIfExpired recomputes the remaining time and, at zero, transitions to
// expired and invokes the callback. Returns true when the loop should stop.
// The generation check makes stale loops and duplicate fires impossible.
func (e *Engine) fireIfExpired(gen int) bool {
	e.mu.Lock()
	if e.gen != gen || e.state != StateRunning {
		e.mu.Unlock()
		return true
	}
	e.remaining = e.computeLocked()
	if e.remaining > 0 {
		e.mu.Unlock()
		return false
	}
	e.state = StateExpired
	e.stopLocked()
	cb := e.onExpire
	e.mu.Unlock()

	log.Debug().Msg("countdown expired")
	if cb != nil {
		cb()
	}
	return true
}
