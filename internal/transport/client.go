// Package transport owns the single realtime connection to the game server:
// connect/disconnect lifecycle, exponential-backoff reconnection, topic
// subscriptions and outbound commands.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/wire"
)

// Config holds connection tuning knobs.
type Config struct {
	// URL is the realtime endpoint, e.g. ws://host/ws.
	URL string

	// HandshakeTimeout bounds a whole connect attempt.
	HandshakeTimeout time.Duration

	// PendingStaleAfter is how long a pending connect attempt may be reused
	// by concurrent callers before it is considered wedged and discarded.
	PendingStaleAfter time.Duration

	// BaseReconnectDelay is doubled on each successive reconnect attempt.
	BaseReconnectDelay   time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig returns the production connection settings.
func DefaultConfig(endpoint string) Config {
	return Config{
		URL:                  endpoint,
		HandshakeTimeout:     15 * time.Second,
		PendingStaleAfter:    10 * time.Second,
		BaseReconnectDelay:   time.Second,
		MaxReconnectAttempts: 5,
	}
}

// Handler receives the body of a message frame. When the body is not valid
// JSON it is still delivered unchanged, never dropped.
type Handler func(data []byte)

// pendingConnect lets concurrent Connect calls share one in-flight handshake.
type pendingConnect struct {
	startedAt time.Time
	done      chan struct{}
	err       error
	once      sync.Once
}

func (p *pendingConnect) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Client is the process-wide realtime connection. Exactly one underlying
// socket is live at a time; connecting as a different player tears down the
// previous connection first.
type Client struct {
	cfg    Config
	bus    *bus.Bus
	clock  clockwork.Clock
	dialer Dialer

	mu                sync.Mutex
	conn              Conn
	gen               int
	connected         bool
	playerID          string
	pending           *pendingConnect
	reconnectAttempts int
	reconnecting      bool
	needsRestore      bool
	manualDisconnect  bool
	reconnectTimer    clockwork.Timer
	subs              map[string][]*Subscription
	restoreCallbacks  []restoreCallback
}

// New builds a client. Nothing connects until Connect is called.
func New(cfg Config, b *bus.Bus, clock clockwork.Clock, dialer Dialer) *Client {
	return &Client{
		cfg:    cfg,
		bus:    b,
		clock:  clock,
		dialer: dialer,
		subs:   make(map[string][]*Subscription),
	}
}

// State is a snapshot of the connection for display and diagnostics.
type State struct {
	Connected         bool
	ReconnectAttempts int
	MaxAttempts       int
	PlayerID          string
}

// ConnectionState reports the current connection snapshot.
func (c *Client) ConnectionState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Connected:         c.connected,
		ReconnectAttempts: c.reconnectAttempts,
		MaxAttempts:       c.cfg.MaxReconnectAttempts,
		PlayerID:          c.playerID,
	}
}

// IsConnected reports whether a live connection exists.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil
}

// CurrentPlayerID returns the identity of the current or last connection.
func (c *Client) CurrentPlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Connect establishes the connection for the given player. Reentrant: already
// connected as the same player resolves immediately; a fresh attempt joins an
// in-flight one unless that attempt has gone stale; connecting as a different
// player tears down the existing connection first.
func (c *Client) Connect(ctx context.Context, playerID string) error {
	if playerID == "" {
		return ErrNoIdentity
	}

	c.mu.Lock()
	if c.connected && c.conn != nil && c.playerID == playerID {
		c.mu.Unlock()
		log.Debug().Str("player_id", playerID).Msg("reusing existing connection")
		return nil
	}

	if p := c.pending; p != nil {
		if c.clock.Since(p.startedAt) <= c.cfg.PendingStaleAfter {
			c.mu.Unlock()
			log.Debug().Msg("connect already in flight, waiting")
			select {
			case <-p.done:
				return p.err
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		log.Error().Msg("pending connect went stale, discarding")
		c.pending = nil
		p.finish(ErrConnectTimeout)
		c.teardownLocked()
	}

	if c.connected && c.playerID != playerID {
		log.Info().
			Str("old_player", c.playerID).
			Str("new_player", playerID).
			Msg("switching player, tearing down old connection")
		c.teardownLocked()
	}

	c.playerID = playerID
	c.manualDisconnect = false
	p := &pendingConnect{startedAt: c.clock.Now(), done: make(chan struct{})}
	c.pending = p
	c.mu.Unlock()

	return c.dialAndHandshake(ctx, playerID, p)
}

// teardownLocked closes the current socket and invalidates its read loop.
// Caller holds c.mu.
func (c *Client) teardownLocked() {
	c.gen++
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.subs = make(map[string][]*Subscription)
}

func (c *Client) connectURL(playerID string) string {
	return c.cfg.URL + "?playerId=" + url.QueryEscape(playerID)
}

type dialResult struct {
	conn Conn
	err  error
}

func (c *Client) dialAndHandshake(ctx context.Context, playerID string, p *pendingConnect) error {
	resCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(ctx, c.connectURL(playerID))
		if err != nil {
			resCh <- dialResult{err: err}
			return
		}
		// The server acknowledges the session with a connected frame before
		// any topic traffic.
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				conn.Close()
				resCh <- dialResult{err: err}
				return
			}
			var f wire.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			switch f.Type {
			case wire.FrameConnected:
				resCh <- dialResult{conn: conn}
				return
			case wire.FrameError:
				conn.Close()
				resCh <- dialResult{err: fmt.Errorf("server rejected handshake: %s", f.Body)}
				return
			}
		}
	}()

	select {
	case r := <-resCh:
		if r.err != nil {
			return c.failConnect(p, &TransportError{Op: "connect", Err: r.err})
		}
		return c.finishConnect(p, r.conn)
	case <-c.clock.After(c.cfg.HandshakeTimeout):
		log.Error().Dur("timeout", c.cfg.HandshakeTimeout).Msg("connect handshake timed out")
		go drainLateDial(resCh)
		return c.failConnect(p, ErrConnectTimeout)
	case <-ctx.Done():
		go drainLateDial(resCh)
		return c.failConnect(p, ctx.Err())
	}
}

// drainLateDial closes a connection that completed after the attempt was
// abandoned.
func drainLateDial(resCh <-chan dialResult) {
	if r := <-resCh; r.conn != nil {
		r.conn.Close()
	}
}

func (c *Client) failConnect(p *pendingConnect, err error) error {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
	p.finish(err)
	c.bus.Publish(bus.Event{
		Type:    bus.EventTransportError,
		Payload: bus.TransportErrorPayload{Op: "connect", Message: err.Error()},
	})
	return err
}

func (c *Client) finishConnect(p *pendingConnect, conn Conn) error {
	c.mu.Lock()
	// A manually disconnected client, or an attempt that was discarded as
	// stale and superseded by a newer one, must not install its socket: the
	// server may answer a wedged dial late, after a replacement connection
	// is already live.
	if c.manualDisconnect || c.pending != p {
		c.mu.Unlock()
		conn.Close()
		p.finish(&TransportError{Op: "connect", Err: fmt.Errorf("connect attempt abandoned")})
		return p.err
	}
	c.conn = conn
	c.connected = true
	c.gen++
	gen := c.gen
	c.reconnectAttempts = 0
	c.reconnecting = false
	needsRestore := c.needsRestore
	c.needsRestore = false
	if c.pending == p {
		c.pending = nil
	}
	callbacks := make([]restoreCallback, len(c.restoreCallbacks))
	copy(callbacks, c.restoreCallbacks)
	playerID := c.playerID
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	c.subscribePersonal()

	log.Info().Str("player_id", playerID).Msg("connected")
	p.finish(nil)

	if needsRestore {
		c.bus.Publish(bus.Event{Type: bus.EventReconnected})
		for _, cb := range callbacks {
			cb.fn()
		}
	}
	return nil
}

// subscribePersonal opens the per-player queues that exist on every session.
func (c *Client) subscribePersonal() {
	if _, err := c.Subscribe(wire.QueueErrorTopic, func(data []byte) {
		log.Error().RawJSON("payload", jsonOrQuote(data)).Msg("personal error message")
		c.bus.Publish(bus.Event{
			Type:    bus.EventPersonalError,
			Payload: bus.TransportErrorPayload{Op: "personal", Message: string(data)},
		})
	}); err != nil {
		log.Warn().Err(err).Msg("failed to subscribe personal error queue")
	}
	if _, err := c.Subscribe(wire.QueueWelcomeTopic, func(data []byte) {
		c.bus.Publish(bus.Event{Type: bus.EventWelcome, Payload: string(data)})
	}); err != nil {
		log.Warn().Err(err).Msg("failed to subscribe welcome queue")
	}
}

func (c *Client) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}
		var f wire.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Str("raw", string(data)).Msg("unparseable frame")
			continue
		}
		switch f.Type {
		case wire.FrameMessage:
			c.dispatch(f)
		case wire.FrameError:
			log.Error().RawJSON("body", jsonOrQuote(f.Body)).Msg("server error frame")
			c.bus.Publish(bus.Event{
				Type:    bus.EventTransportError,
				Payload: bus.TransportErrorPayload{Op: "frame", Message: string(f.Body)},
			})
		default:
			log.Debug().Str("frame_type", string(f.Type)).Msg("ignoring frame")
		}
	}
}

func (c *Client) dispatch(f wire.Frame) {
	c.mu.Lock()
	handlers := make([]Handler, 0, 2)
	for _, s := range c.subs[f.Destination] {
		handlers = append(handlers, s.handler)
	}
	c.mu.Unlock()

	if len(handlers) == 0 {
		log.Debug().Str("destination", f.Destination).Msg("message with no subscriber")
		return
	}
	body := []byte(f.Body)
	if len(body) > 0 && !json.Valid(body) {
		log.Warn().Str("destination", f.Destination).Msg("undecodable payload, delivering raw")
	}
	for _, h := range handlers {
		h(body)
	}
}

func (c *Client) handleReadError(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		// A newer connection replaced this one; nothing to do.
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	manual := c.manualDisconnect
	c.mu.Unlock()

	if manual {
		log.Info().Msg("disconnected")
		return
	}
	log.Warn().Err(err).Msg("connection lost")
	c.scheduleReconnect()
}

// scheduleReconnect arms the next backoff attempt, or emits the terminal
// failure once the attempt cap is exceeded.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.manualDisconnect {
		c.mu.Unlock()
		return
	}
	if c.reconnectAttempts >= c.cfg.MaxReconnectAttempts {
		c.reconnecting = false
		c.mu.Unlock()
		log.Error().Int("max_attempts", c.cfg.MaxReconnectAttempts).Msg("reconnect attempts exhausted")
		c.bus.Publish(bus.Event{Type: bus.EventReconnectFailed})
		return
	}
	attempt := c.reconnectAttempts + 1
	delay := c.cfg.BaseReconnectDelay << (attempt - 1)
	c.reconnectAttempts = attempt
	c.reconnecting = true
	c.needsRestore = true
	c.reconnectTimer = c.clock.AfterFunc(delay, func() {
		if err := c.Reconnect(context.Background()); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
			c.scheduleReconnect()
		}
	})
	maxAttempts := c.cfg.MaxReconnectAttempts
	c.mu.Unlock()

	log.Info().
		Int("attempt", attempt).
		Int("max_attempts", maxAttempts).
		Dur("delay", delay).
		Msg("scheduling reconnect")
	c.bus.Publish(bus.Event{
		Type:    bus.EventReconnecting,
		Payload: bus.ReconnectingPayload{Attempt: attempt, MaxAttempts: maxAttempts, Delay: delay},
	})
}

// Reconnect re-establishes the connection with the last known identity.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	playerID := c.playerID
	c.mu.Unlock()
	if playerID == "" {
		return ErrNoIdentity
	}
	return c.Connect(ctx, playerID)
}

// Disconnect closes the connection and suppresses auto-reconnect. Idempotent.
// With force, registered restore callbacks are discarded as well.
func (c *Client) Disconnect(force bool) {
	c.mu.Lock()
	c.manualDisconnect = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnecting = false
	c.needsRestore = false
	c.reconnectAttempts = 0
	if p := c.pending; p != nil {
		c.pending = nil
		p.finish(&TransportError{Op: "connect", Err: fmt.Errorf("disconnected")})
	}
	c.teardownLocked()
	c.playerID = ""
	if force {
		c.restoreCallbacks = nil
	}
	c.mu.Unlock()
	log.Info().Bool("force", force).Msg("disconnected manually")
}

// Publish sends a command. Commands issued while disconnected are dropped
// with a logged skip, not queued.
func (c *Client) Publish(destination string, payload any) error {
	c.mu.Lock()
	if !c.connected || c.conn == nil {
		c.mu.Unlock()
		log.Warn().Str("destination", destination).Msg("not connected, command skipped")
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Op: "publish", Err: err}
	}
	f := wire.Frame{Type: wire.FrameSend, Destination: destination, Body: body}
	if err := conn.WriteJSON(f); err != nil {
		return &TransportError{Op: "publish", Err: err}
	}
	log.Debug().Str("destination", destination).Msg("command sent")
	return nil
}

// Typed command helpers.

func (c *Client) SendJoin(req wire.JoinRequest) error { return c.Publish(wire.CommandJoin, req) }

func (c *Client) SendStart(req wire.StartRequest) error { return c.Publish(wire.CommandStart, req) }

func (c *Client) SendSubmit(req wire.SubmitRequest) error { return c.Publish(wire.CommandSubmit, req) }

func (c *Client) SendReady(req wire.ReadyRequest) error { return c.Publish(wire.CommandReady, req) }

func (c *Client) SendLeave(req wire.LeaveRequest) error { return c.Publish(wire.CommandLeave, req) }

// jsonOrQuote makes arbitrary bytes safe for RawJSON logging.
func jsonOrQuote(data []byte) []byte {
	if json.Valid(data) && len(data) > 0 {
		return data
	}
	quoted, err := json.Marshal(string(data))
	if err != nil {
		return []byte(`""`)
	}
	return quoted
}
