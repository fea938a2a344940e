package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/notify"
	"github.com/quizrally/client/internal/room"
	"github.com/quizrally/client/internal/transport"
	"github.com/quizrally/client/internal/wire"
)

// WaitRoom orchestrates the pre-game lobby: it tracks the roster, reacts to
// the room starting or disappearing, and survives reconnects.
type WaitRoom struct {
	roomCode    string
	playerID    string
	client      *transport.Client
	rooms       *room.Manager
	api         RoomService
	nav         Navigator
	cache       RoomCache
	sink        notify.Sink
	bus         *bus.Bus
	clock       clockwork.Clock
	finderDelay time.Duration

	mu      sync.Mutex
	room    *wire.Room
	subs    []*transport.Subscription
	started bool
}

// NewWaitRoom wires a lobby orchestrator.
func NewWaitRoom(
	roomCode, playerID string,
	client *transport.Client,
	rooms *room.Manager,
	apiClient RoomService,
	nav Navigator,
	cache RoomCache,
	sink notify.Sink,
	b *bus.Bus,
	clock clockwork.Clock,
) *WaitRoom {
	return &WaitRoom{
		roomCode:    roomCode,
		playerID:    playerID,
		client:      client,
		rooms:       rooms,
		api:         apiClient,
		nav:         nav,
		cache:       cache,
		sink:        sink,
		bus:         b,
		clock:       clock,
		finderDelay: DefaultGameConfig().FinderDelay,
	}
}

// Start connects, subscribes and resyncs. Events are handled on background
// goroutines until Stop.
func (w *WaitRoom) Start(ctx context.Context) error {
	if !w.client.IsConnected() {
		if err := w.client.Connect(ctx, w.playerID); err != nil {
			w.sink.Notify(notify.Notification{Level: notify.LevelError, Summary: "Connection failed", Detail: err.Error(), Sticky: true})
			return err
		}
	}
	w.subscribe()
	w.client.RegisterRestoreCallback(w.restoreSubscriptions)
	go w.watchBus(ctx)
	w.refresh(ctx)
	return nil
}

// Stop tears down subscriptions. Safe to call more than once.
func (w *WaitRoom) Stop() {
	w.mu.Lock()
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()
	w.rooms.UnsubscribeAll(subs)
	w.client.UnregisterRestoreCallback(w.restoreSubscriptions)
}

// Room returns the last adopted snapshot.
func (w *WaitRoom) Room() *wire.Room {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.room
}

func (w *WaitRoom) subscribe() {
	w.mu.Lock()
	old := w.subs
	w.mu.Unlock()
	if len(old) > 0 {
		w.rooms.UnsubscribeAll(old)
	}
	subs := w.rooms.SubscribeRoom(w.roomCode, w.HandleRoomUpdate, w.HandleRoomError, w.playerID)
	w.mu.Lock()
	w.subs = subs
	w.mu.Unlock()
}

func (w *WaitRoom) restoreSubscriptions() {
	log.Info().Str("room_code", w.roomCode).Msg("restoring lobby subscriptions after reconnect")
	w.subscribe()
	w.refresh(context.Background())
}

func (w *WaitRoom) refresh(ctx context.Context) {
	snapshot, err := w.api.GetRoom(ctx, w.roomCode)
	if err != nil {
		log.Warn().Err(err).Str("room_code", w.roomCode).Msg("lobby refresh failed")
		return
	}
	w.HandleRoomUpdate(snapshot)
}

// HandleRoomUpdate adopts the roster and moves to the game view once the
// game starts.
func (w *WaitRoom) HandleRoomUpdate(update *wire.Room) {
	w.mu.Lock()
	w.room = update
	alreadyStarted := w.started
	if update.Status == wire.StatusPlaying {
		w.started = true
	}
	w.mu.Unlock()

	w.cache.SaveRoom(update)

	if update.Status == wire.StatusPlaying && !alreadyStarted {
		w.sink.Notify(notify.Notification{Level: notify.LevelInfo, Summary: "Game started", Detail: "entering the game"})
		w.nav.ToGame(w.roomCode)
	}
}

// HandleRoomError surfaces lobby-level errors.
func (w *WaitRoom) HandleRoomError(e wire.RoomError) {
	if e.RoomGone() {
		w.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Room closed", Detail: "the room no longer exists"})
		w.cache.ClearRoom()
		w.clock.AfterFunc(w.finderDelay, func() { w.nav.ToFinder() })
		return
	}
	w.sink.Notify(notify.Notification{Level: notify.LevelError, Summary: "Room error", Detail: e.Message})
}

func (w *WaitRoom) watchBus(ctx context.Context) {
	sub := w.bus.Subscribe(
		bus.EventReconnecting,
		bus.EventReconnected,
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
			w.handleBusEvent(e)
		}
	}
}

func (w *WaitRoom) handleBusEvent(e bus.Event) {
	switch e.Type {
	case bus.EventReconnecting:
		p, _ := e.Payload.(bus.ReconnectingPayload)
		w.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Connection lost", Detail: reconnectDetail(p)})
	case bus.EventReconnected:
		w.sink.Notify(notify.Notification{Level: notify.LevelSuccess, Summary: "Reconnected", Detail: "connection restored"})
	case bus.EventReconnectFailed:
		w.sink.Notify(notify.Notification{
			Level:   notify.LevelError,
			Summary: "Connection failed",
			Detail:  "automatic recovery gave up, returning to room list",
			Sticky:  true,
		})
		w.clock.AfterFunc(w.finderDelay, func() { w.nav.ToFinder() })
	case bus.EventRoomDeleted:
		w.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Room disbanded", Detail: "the host left, room was closed"})
		w.cache.ClearRoom()
		w.clock.AfterFunc(w.finderDelay, func() { w.nav.ToFinder() })
	case bus.EventPlayerKicked:
		p, _ := e.Payload.(bus.PlayerKickedPayload)
		if p.PlayerID != "" && p.PlayerID != w.playerID {
			return
		}
		w.sink.Notify(notify.Notification{Level: notify.LevelWarn, Summary: "Removed from room", Detail: p.Reason})
		w.cache.ClearRoom()
		w.clock.AfterFunc(w.finderDelay, func() { w.nav.ToFinder() })
	}
}

func reconnectDetail(p bus.ReconnectingPayload) string {
	return fmt.Sprintf("reconnecting (%d/%d) in %s", p.Attempt, p.MaxAttempts, p.Delay)
}
