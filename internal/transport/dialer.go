package transport

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the minimal socket surface the client needs. Tests substitute an
// in-memory implementation.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer establishes a Conn to the realtime endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials over gorilla/websocket.
type WebsocketDialer struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// NewWebsocketDialer returns a dialer with the given buffer sizes, falling
// back to 1KB when zero.
func NewWebsocketDialer(readBuf, writeBuf int) *WebsocketDialer {
	if readBuf <= 0 {
		readBuf = 1024
	}
	if writeBuf <= 0 {
		writeBuf = 1024
	}
	return &WebsocketDialer{ReadBufferSize: readBuf, WriteBufferSize: writeBuf}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	wd := websocket.Dialer{
		ReadBufferSize:  d.ReadBufferSize,
		WriteBufferSize: d.WriteBufferSize,
	}
	c, _, err := wd.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{conn: c}, nil
}

// gorillaConn serializes writes; gorilla connections do not allow concurrent
// writers.
type gorillaConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *gorillaConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *gorillaConn) Close() error {
	return c.conn.Close()
}
