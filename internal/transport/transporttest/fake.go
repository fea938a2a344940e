// Package transporttest provides in-memory Conn and Dialer implementations
// for exercising the realtime client without a network.
package transporttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/quizrally/client/internal/transport"
	"github.com/quizrally/client/internal/wire"
)

// Conn is an in-memory transport.Conn fed by the test.
type Conn struct {
	in chan []byte

	mu         sync.Mutex
	writes     []wire.Frame
	failWrites bool

	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn returns an open connection with room for buffered inbound frames.
func NewConn() *Conn {
	return &Conn{
		in:     make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (c *Conn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("write failed")
	}
	f, ok := v.(wire.Frame)
	if !ok {
		return fmt.Errorf("unexpected write type %T", v)
	}
	c.writes = append(c.writes, f)
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// CloseFromServer simulates an unplanned drop.
func (c *Conn) CloseFromServer() {
	c.Close()
}

// FailWrites makes subsequent writes error.
func (c *Conn) FailWrites(fail bool) {
	c.mu.Lock()
	c.failWrites = fail
	c.mu.Unlock()
}

// Writes returns a copy of every frame written so far.
func (c *Conn) Writes() []wire.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wire.Frame, len(c.writes))
	copy(out, c.writes)
	return out
}

// WritesTo returns the frames written to a destination.
func (c *Conn) WritesTo(destination string) []wire.Frame {
	var out []wire.Frame
	for _, f := range c.Writes() {
		if f.Destination == destination {
			out = append(out, f)
		}
	}
	return out
}

// Deliver feeds a frame to the client's read loop.
func (c *Conn) Deliver(f wire.Frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	c.DeliverRaw(raw)
}

// DeliverRaw feeds arbitrary bytes to the client's read loop.
func (c *Conn) DeliverRaw(data []byte) {
	c.in <- data
}

// Message builds a message frame for a topic with a JSON-encoded body.
func Message(destination string, body any) wire.Frame {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return wire.Frame{Type: wire.FrameMessage, Destination: destination, Body: raw}
}

// Dialer hands out Conns, optionally failing dials or withholding the
// handshake acknowledgement.
type Dialer struct {
	mu    sync.Mutex
	conns []*Conn
	dials int

	// FailDials makes that many upcoming dials return an error.
	FailDials int

	// NoHandshake withholds the connected frame so the handshake hangs.
	NoHandshake bool
}

func NewDialer() *Dialer {
	return &Dialer{}
}

func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	d.dials++
	if d.FailDials > 0 {
		d.FailDials--
		d.mu.Unlock()
		return nil, errors.New("dial refused")
	}
	c := NewConn()
	d.conns = append(d.conns, c)
	noHandshake := d.NoHandshake
	d.mu.Unlock()

	if !noHandshake {
		c.Deliver(wire.Frame{Type: wire.FrameConnected})
	}
	return c, nil
}

// DialCount returns how many dials were attempted.
func (d *Dialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Conn returns the i-th established connection.
func (d *Dialer) Conn(i int) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// LastConn returns the most recent established connection.
func (d *Dialer) LastConn() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
