package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/api"
	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/countdown"
	"github.com/quizrally/client/internal/notify"
	"github.com/quizrally/client/internal/room"
	"github.com/quizrally/client/internal/submission"
	"github.com/quizrally/client/internal/transport"
	"github.com/quizrally/client/internal/wire"
)

const defaultTimeLimitSeconds = 30

// GameConfig tunes the gameplay orchestrator's navigation delays.
type GameConfig struct {
	// ResultsDelay is how long to linger before navigating after a terminal
	// room transition.
	ResultsDelay time.Duration

	// FinderDelay is how long to linger before returning to the room finder
	// after the room disappears or the connection dies for good.
	FinderDelay time.Duration
}

// DefaultGameConfig returns the production delays.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		ResultsDelay: time.Second,
		FinderDelay:  3 * time.Second,
	}
}

// Game orchestrates one player's gameplay session in one room.
type Game struct {
	cfg      GameConfig
	roomCode string
	playerID string

	client    *transport.Client
	rooms     *room.Manager
	api       RoomService
	submit    *submission.Controller
	countdown *countdown.Engine
	nav       Navigator
	cache     RoomCache
	sink      notify.Sink
	bus       *bus.Bus
	clock     clockwork.Clock

	mu          sync.Mutex
	room        *wire.Room
	subs        []*transport.Subscription
	ended       bool
	waitPending bool
}

// NewGame wires a gameplay orchestrator. The countdown engine must already be
// bound to the submission controller's AutoSubmit.
func NewGame(
	cfg GameConfig,
	roomCode, playerID string,
	client *transport.Client,
	rooms *room.Manager,
	apiClient RoomService,
	submit *submission.Controller,
	engine *countdown.Engine,
	nav Navigator,
	cache RoomCache,
	sink notify.Sink,
	b *bus.Bus,
	clock clockwork.Clock,
) *Game {
	return &Game{
		cfg:       cfg,
		roomCode:  roomCode,
		playerID:  playerID,
		client:    client,
		rooms:     rooms,
		api:       apiClient,
		submit:    submit,
		countdown: engine,
		nav:       nav,
		cache:     cache,
		sink:      sink,
		bus:       b,
		clock:     clock,
	}
}

// Start connects if necessary, subscribes to the room, resyncs over HTTP and
// begins watching connection-level events. It returns once the session is
// established; events are handled on background goroutines until Stop.
func (g *Game) Start(ctx context.Context) error {
	if !g.client.IsConnected() {
		if err := g.client.Connect(ctx, g.playerID); err != nil {
			g.sink.Notify(notify.Notification{Level: notify.LevelError, Summary: "Connection failed", Detail: err.Error(), Sticky: true})
			return err
		}
	}
	g.subscribe()
	g.client.RegisterRestoreCallback(g.restoreSubscriptions)
	go g.watchBus(ctx)
	g.Refresh(ctx)
	return nil
}

// Stop tears down subscriptions and timers. Safe to call more than once.
func (g *Game) Stop() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()
	g.rooms.UnsubscribeAll(subs)
	g.client.UnregisterRestoreCallback(g.restoreSubscriptions)
	g.countdown.Clear()
}

// Room returns the last adopted snapshot.
func (g *Game) Room() *wire.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.room
}

func (g *Game) subscribe() {
	g.mu.Lock()
	old := g.subs
	g.mu.Unlock()
	if len(old) > 0 {
		g.rooms.UnsubscribeAll(old)
	}
	subs := g.rooms.SubscribeRoom(g.roomCode, g.HandleRoomUpdate, g.HandleRoomError, g.playerID)
	g.mu.Lock()
	g.subs = subs
	g.mu.Unlock()
}

// restoreSubscriptions re-establishes the room subscription set after a
// reconnect and resyncs state that may have been missed while offline.
func (g *Game) restoreSubscriptions() {
	log.Info().Str("room_code", g.roomCode).Msg("restoring room subscriptions after reconnect")
	g.subscribe()
	g.Refresh(context.Background())
}

// Refresh pulls the authoritative snapshot over HTTP and feeds it through the
// same path as a pushed update.
func (g *Game) Refresh(ctx context.Context) {
	snapshot, err := g.api.GetRoom(ctx, g.roomCode, api.SilentError())
	if err != nil {
		log.Warn().Err(err).Str("room_code", g.roomCode).Msg("room refresh failed")
		if api.IsNotFound(err) {
			g.HandleRoomError(wire.RoomError{Code: "ROOM_NOT_FOUND", Message: "room not found"})
		}
		return
	}
	g.HandleRoomUpdate(snapshot)
}

// HandleRoomUpdate reconciles one pushed (or fetched) room snapshot with
// local state. A changed question index resets the countdown and submission
// state; an unchanged index only adopts the payload so partial updates, such
// as roster changes, do not disturb timers.
func (g *Game) HandleRoomUpdate(update *wire.Room) {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		return
	}
	var oldIndex *int
	if g.room != nil {
		oldIndex = g.room.CurrentIndex
	}
	g.room = update
	g.mu.Unlock()

	newIndex := update.CurrentIndex
	indexChanged := newIndex != nil && (oldIndex == nil || *oldIndex != *newIndex)

	if indexChanged {
		log.Info().
			Str("room_code", g.roomCode).
			Int("new_index", *newIndex).
			Msg("question advanced")
		if oldIndex != nil {
			g.submit.CleanupIndex(*oldIndex)
		}
		g.countdown.Clear()
		g.submit.Reset()
		g.submit.SetCurrent(update.CurrentQuestion, newIndex)
		g.submit.Restore()
		if update.QuestionStartTime != nil {
			limit := update.TimeLimitSeconds
			if limit <= 0 {
				limit = defaultTimeLimitSeconds
			}
			g.countdown.Reset(*update.QuestionStartTime, limit)
		}
	} else {
		g.submit.SetCurrent(update.CurrentQuestion, newIndex)
	}

	g.cache.SaveRoom(update)

	// A nil list means the update did not carry submission info at all;
	// only reconcile against an actual server-reported list.
	if update.SubmittedPlayerIDs != nil {
		g.submit.Verify(update.SubmittedPlayerIDs)
	}

	if update.Finished || update.Status == wire.StatusFinished {
		g.endSession()
		g.sink.Notify(notify.Notification{Level: notify.LevelInfo, Summary: "Game over", Detail: "moving to results"})
		g.clock.AfterFunc(g.cfg.ResultsDelay, func() { g.nav.ToResults(g.roomCode) })
		return
	}
	if update.Status == wire.StatusWaiting {
		// Roster churn pushes repeated WAITING snapshots; hand off once.
		g.mu.Lock()
		already := g.waitPending
		g.waitPending = true
		g.mu.Unlock()
		if already {
			return
		}
		g.sink.Notify(notify.Notification{Level: notify.LevelInfo, Summary: "Game not started", Detail: "returning to waiting room"})
		g.clock.AfterFunc(g.cfg.ResultsDelay, func() { g.nav.ToWait(g.roomCode) })
		return
	}
	g.mu.Lock()
	g.waitPending = false
	g.mu.Unlock()
}

// HandleRoomError distinguishes a vanished room from a transient room error.
func (g *Game) HandleRoomError(e wire.RoomError) {
	if e.RoomGone() {
		g.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Room closed", Detail: "the room was deleted or the game ended"})
		g.cache.ClearRoom()
		g.endSession()
		g.clock.AfterFunc(g.cfg.FinderDelay, func() { g.nav.ToFinder() })
		return
	}
	g.sink.Notify(notify.Notification{Level: notify.LevelError, Summary: "Room error", Detail: e.Message})
}

// endSession stops the countdown and ignores any further updates.
func (g *Game) endSession() {
	g.mu.Lock()
	g.ended = true
	g.mu.Unlock()
	g.countdown.Clear()
}

// watchBus reacts to connection-level and room-lifecycle notifications.
func (g *Game) watchBus(ctx context.Context) {
	sub := g.bus.Subscribe(
		bus.EventReconnecting,
		bus.EventReconnectFailed,
		bus.EventRoomDeleted,
		bus.EventPlayerKicked,
	)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			g.handleBusEvent(e)
		}
	}
}

func (g *Game) handleBusEvent(e bus.Event) {
	switch e.Type {
	case bus.EventReconnecting:
		p, _ := e.Payload.(bus.ReconnectingPayload)
		g.sink.Notify(notify.Notification{
			Level:   notify.LevelWarn,
			Summary: "Connection lost",
			Detail:  reconnectDetail(p),
		})
	case bus.EventReconnectFailed:
		g.sink.Notify(notify.Notification{
			Level:   notify.LevelError,
			Summary: "Connection failed",
			Detail:  "automatic recovery gave up, please rejoin",
			Sticky:  true,
		})
		g.endSession()
		g.clock.AfterFunc(g.cfg.FinderDelay, func() { g.nav.ToFinder() })
	case bus.EventRoomDeleted:
		g.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Room disbanded", Detail: "the host closed the room"})
		g.cache.ClearRoom()
		g.endSession()
		g.clock.AfterFunc(g.cfg.FinderDelay, func() { g.nav.ToFinder() })
	case bus.EventPlayerKicked:
		p, _ := e.Payload.(bus.PlayerKickedPayload)
		if p.PlayerID != "" && p.PlayerID != g.playerID {
			return
		}
		g.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Removed from room", Detail: p.Reason})
		g.cache.ClearRoom()
		g.endSession()
		g.clock.AfterFunc(g.cfg.FinderDelay, func() { g.nav.ToFinder() })
	}
}
