package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectTimeout means the handshake did not complete in time.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrNotConnected means a subscribe was attempted with no live connection.
	ErrNotConnected = errors.New("not connected")

	// ErrNoIdentity means Reconnect was called with no remembered player.
	ErrNoIdentity = errors.New("no player identity recorded")
)

// TransportError wraps lower-level socket or protocol failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
