package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quizrally/client/internal/api"
	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/countdown"
	"github.com/quizrally/client/internal/notify"
	"github.com/quizrally/client/internal/room"
	"github.com/quizrally/client/internal/session"
	"github.com/quizrally/client/internal/store"
	"github.com/quizrally/client/internal/submission"
	"github.com/quizrally/client/internal/transport"
	"github.com/quizrally/client/internal/wire"
)

func newWatchCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <room-code>",
		Short: "Join a room and follow the game until it ends.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cfg, args[0])
		},
	}
}

// navEvent is a view transition signalled by the session orchestrators.
type navEvent string

const (
	navWait    navEvent = "wait"
	navGame    navEvent = "game"
	navResults navEvent = "results"
	navFinder  navEvent = "finder"
)

// watchNavigator turns session.Navigator callbacks into a phase channel the
// watch loop consumes.
type watchNavigator struct {
	events chan navEvent
}

func newWatchNavigator() *watchNavigator {
	return &watchNavigator{events: make(chan navEvent, 4)}
}

func (n *watchNavigator) send(e navEvent) {
	select {
	case n.events <- e:
	default:
	}
}

func (n *watchNavigator) ToGame(string)    { n.send(navGame) }
func (n *watchNavigator) ToWait(string)    { n.send(navWait) }
func (n *watchNavigator) ToResults(string) { n.send(navResults) }
func (n *watchNavigator) ToFinder()        { n.send(navFinder) }

// next blocks until a transition arrives or the context ends.
func (n *watchNavigator) next(ctx context.Context) navEvent {
	select {
	case e := <-n.events:
		return e
	case <-ctx.Done():
		return navFinder
	}
}

func runWatch(parent context.Context, cfg *config, roomCode string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()
	st, err := store.Open(cfg.statePath(), clock)
	if err != nil {
		return err
	}

	b := bus.New()
	apiClient := api.New(cfg.apiBase(), b, st.Token)

	if st.Token() == "" {
		name := cfg.playerName
		if name == "" {
			name = "guest"
		}
		auth, err := apiClient.GuestLogin(ctx, name)
		if err != nil {
			return fmt.Errorf("guest login: %w", err)
		}
		st.SetAuth(*auth)
		log.Info().Str("player_id", auth.PlayerID).Str("name", auth.Name).Msg("logged in as guest")
	}
	playerID := st.PlayerID()

	client := transport.New(
		transport.DefaultConfig(cfg.wsEndpoint()),
		b, clock,
		transport.NewWebsocketDialer(0, 0),
	)
	defer client.Disconnect(true)
	defer func() {
		log.Info().Msg("leaving room")
		if err := client.SendLeave(wire.LeaveRequest{RoomCode: roomCode, PlayerID: playerID}); err != nil {
			log.Warn().Err(err).Msg("leave failed")
		}
	}()

	rooms := room.NewManager(client, b)
	sink := notify.LogSink{}
	ctrl := submission.NewController(roomCode, playerID, cfg.spectator, st, client, sink)
	engine := countdown.New(clock, ctrl.AutoSubmit)
	nav := newWatchNavigator()

	if _, err := apiClient.JoinRoom(ctx, roomCode, playerID, st.PlayerName()); err != nil && !api.IsNotFound(err) {
		log.Warn().Err(err).Msg("join over http failed, continuing with realtime join")
	}

	sendJoin := func() {
		if err := client.SendJoin(wire.JoinRequest{
			RoomCode:   roomCode,
			PlayerID:   playerID,
			PlayerName: st.PlayerName(),
		}); err != nil {
			log.Warn().Err(err).Msg("realtime join failed")
		}
	}

	// The lobby orchestrator owns the WAITING phase; the game orchestrator
	// takes over once the room starts.
	phase := navWait
	if snapshot, err := apiClient.GetRoom(ctx, roomCode, api.SilentError()); err == nil && snapshot.Status == wire.StatusPlaying {
		phase = navGame
	}

	joined := false
	for ctx.Err() == nil {
		switch phase {
		case navWait:
			lobby := session.NewWaitRoom(
				roomCode, playerID,
				client, rooms, apiClient,
				nav, st, sink, b, clock,
			)
			if err := lobby.Start(ctx); err != nil {
				return err
			}
			if !joined {
				joined = true
				sendJoin()
			}
			phase = nav.next(ctx)
			lobby.Stop()
		case navGame:
			game := session.NewGame(
				session.DefaultGameConfig(),
				roomCode, playerID,
				client, rooms, apiClient, ctrl, engine,
				nav, st, sink, b, clock,
			)
			if err := game.Start(ctx); err != nil {
				return err
			}
			if !joined {
				joined = true
				sendJoin()
			}
			phase = nav.next(ctx)
			game.Stop()
		case navResults:
			printResults(ctx, apiClient, roomCode)
			return nil
		case navFinder:
			return nil
		}
	}
	return nil
}

func printResults(ctx context.Context, apiClient *api.Client, roomCode string) {
	results, err := apiClient.GetResults(ctx, roomCode, api.SilentError())
	if err != nil {
		log.Warn().Err(err).Msg("could not fetch results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tSCORE")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\n", r.Rank, r.Name, r.Score)
	}
	w.Flush()
}
