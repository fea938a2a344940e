// Package submission enforces at-most-one answer per question per player,
// persists that fact across reloads, and reconciles local belief against the
// server's submitted-player list.
package submission

import (
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/notify"
	"github.com/quizrally/client/internal/wire"
)

// RejectReason classifies why a submission was refused locally.
type RejectReason string

const (
	ReasonSpectator        RejectReason = "spectator"
	ReasonAlreadySubmitted RejectReason = "already_submitted"
	ReasonNoQuestion       RejectReason = "no_question"
)

// RejectedError is a business-rule refusal; it never reaches the server.
type RejectedError struct {
	Reason RejectReason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// Recorder persists per-question submitted flags.
type Recorder interface {
	HasSubmitted(key string) bool
	MarkSubmitted(key string)
	ClearSubmitted(key string)
}

// Sender dispatches the submit command.
type Sender interface {
	SendSubmit(req wire.SubmitRequest) error
}

// Controller tracks submission state for the current question of one room.
type Controller struct {
	roomCode  string
	playerID  string
	spectator bool
	store     Recorder
	sender    Sender
	sink      notify.Sink

	mu           sync.Mutex
	hasSubmitted bool
	question     *wire.Question
	index        *int
}

// NewController builds a controller for one player in one room.
func NewController(roomCode, playerID string, spectator bool, store Recorder, sender Sender, sink notify.Sink) *Controller {
	return &Controller{
		roomCode:  roomCode,
		playerID:  playerID,
		spectator: spectator,
		store:     store,
		sender:    sender,
		sink:      sink,
	}
}

// SetCurrent adopts the question payload and index from a room update.
func (c *Controller) SetCurrent(q *wire.Question, index *int) {
	c.mu.Lock()
	c.question = q
	c.index = index
	c.mu.Unlock()
}

// HasSubmitted reports the in-memory flag for the current question.
func (c *Controller) HasSubmitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasSubmitted
}

// Key derives the persisted-record key for the current question.
func (c *Controller) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyLocked()
}

// KeyFor derives the persisted-record key for an arbitrary question index.
func (c *Controller) KeyFor(index int) string {
	return fmt.Sprintf("submission_%s_%d", c.roomCode, index)
}

func (c *Controller) keyLocked() string {
	if c.index == nil {
		return fmt.Sprintf("submission_%s_unknown", c.roomCode)
	}
	return fmt.Sprintf("submission_%s_%d", c.roomCode, *c.index)
}

// Choose submits the player's explicit answer. The submitted mark is set and
// persisted optimistically before dispatch; a dispatch failure rolls both
// back.
func (c *Controller) Choose(choice string) error {
	c.mu.Lock()
	if c.spectator {
		c.mu.Unlock()
		c.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Spectator mode", Detail: "spectators cannot submit answers"})
		return &RejectedError{Reason: ReasonSpectator}
	}
	if c.hasSubmitted {
		c.mu.Unlock()
		c.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Already submitted", Detail: "you already answered this question"})
		return &RejectedError{Reason: ReasonAlreadySubmitted}
	}
	if c.question == nil || c.question.ID == 0 {
		c.mu.Unlock()
		c.sink.Notify(notify.Notification{Level: notify.LevelError, Summary: "Cannot submit", Detail: "question data is missing"})
		return &RejectedError{Reason: ReasonNoQuestion}
	}
	key := c.keyLocked()
	c.hasSubmitted = true
	c.mu.Unlock()

	c.store.MarkSubmitted(key)

	err := c.sender.SendSubmit(wire.SubmitRequest{
		RoomCode: c.roomCode,
		PlayerID: c.playerID,
		Choice:   choice,
	})
	if err != nil {
		c.rollback(key)
		c.sink.Notify(notify.Notification{Level: notify.LevelError, Summary: "Submit failed", Detail: "network error, please retry"})
		return fmt.Errorf("send submit: %w", err)
	}
	c.sink.Notify(notify.Notification{Level: notify.LevelSuccess, Summary: "Submitted", Detail: "answer submitted"})
	return nil
}

// AutoSubmit fires when the countdown expires: same guards as Choose but
// silent for spectators and already-submitted players, and the answer is the
// deterministic default for the question type.
func (c *Controller) AutoSubmit() {
	c.mu.Lock()
	if c.spectator || c.hasSubmitted {
		c.mu.Unlock()
		return
	}
	if c.question == nil || c.question.ID == 0 {
		c.mu.Unlock()
		log.Error().Str("room_code", c.roomCode).Msg("no question available for auto-submit")
		return
	}
	choice := defaultChoice(c.question)
	key := c.keyLocked()
	c.hasSubmitted = true
	c.mu.Unlock()

	c.store.MarkSubmitted(key)

	err := c.sender.SendSubmit(wire.SubmitRequest{
		RoomCode: c.roomCode,
		PlayerID: c.playerID,
		Choice:   choice,
		Force:    true,
	})
	if err != nil {
		log.Error().Err(err).Msg("auto-submit failed")
		c.rollback(key)
		return
	}
	c.sink.Notify(notify.Notification{Level: notify.LevelInfo, Summary: "Time is up", Detail: "default answer submitted"})
}

// defaultChoice picks the forced answer: first option for choice questions,
// minimum allowed value for bid questions.
func defaultChoice(q *wire.Question) string {
	switch q.Type {
	case wire.QuestionBid:
		return strconv.Itoa(q.Min)
	default:
		if len(q.Options) > 0 {
			return q.Options[0].Key
		}
		return "A"
	}
}

func (c *Controller) rollback(key string) {
	c.mu.Lock()
	c.hasSubmitted = false
	c.mu.Unlock()
	c.store.ClearSubmitted(key)
}

// Reset clears the in-memory flag when the question advances. Persisted
// records for other questions are untouched.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.hasSubmitted = false
	c.mu.Unlock()
}

// Restore re-hydrates the in-memory flag from the persisted record for the
// current question, covering reloads and reconnects mid-question.
func (c *Controller) Restore() {
	c.mu.Lock()
	key := c.keyLocked()
	c.mu.Unlock()
	if c.store.HasSubmitted(key) {
		c.mu.Lock()
		c.hasSubmitted = true
		c.mu.Unlock()
	}
}

// Cleanup removes the persisted record for the current question.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	key := c.keyLocked()
	c.mu.Unlock()
	c.store.ClearSubmitted(key)
}

// CleanupIndex removes the persisted record for a past question index.
func (c *Controller) CleanupIndex(index int) {
	c.store.ClearSubmitted(c.KeyFor(index))
}

// Verify reconciles local belief against the server's authoritative
// submitted-player list for the current question. Spectators are exempt.
func (c *Controller) Verify(submittedPlayerIDs []string) {
	if c.spectator {
		return
	}
	c.mu.Lock()
	key := c.keyLocked()
	c.mu.Unlock()

	local := c.store.HasSubmitted(key)
	remote := slices.Contains(submittedPlayerIDs, c.playerID)

	switch Reconcile(local, remote) {
	case OutcomeClearLocal:
		log.Warn().Str("key", key).Msg("local submission not recorded by server, clearing")
		c.store.ClearSubmitted(key)
		c.mu.Lock()
		c.hasSubmitted = false
		c.mu.Unlock()
		c.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Submission state updated", Detail: "your answer did not go through, please resubmit"})
	case OutcomeAdoptRemote:
		log.Info().Str("key", key).Msg("server recorded a submission missing locally, adopting")
		c.store.MarkSubmitted(key)
		c.mu.Lock()
		c.hasSubmitted = true
		c.mu.Unlock()
	}
}
