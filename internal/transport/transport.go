// Package transport provides the secure byte stream the bot client runs its
// exchanges over.
//
// The client never branches on how the stream is made. It talks to a
// Transport, which owns the connection state; the state changes only through
// Connect, Disconnect, a fatal I/O error, or a link event delivered with
// NotifyLink.
package transport

import (
	"context"
	"errors"
)

// Transport errors
var (
	ErrConnectionFailure   = errors.New("connection failure")
	ErrCertificateRejected = errors.New("server certificate rejected")
	ErrNotConnected        = errors.New("not connected")
)

// State is the connection state owned by a transport
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// LinkEvent reports a change of the underlying network link
type LinkEvent int

const (
	LinkUp LinkEvent = iota
	LinkDown
)

func (e LinkEvent) String() string {
	if e == LinkUp {
		return "link-up"
	}
	return "link-down"
}

// Transport is a secure, connection-oriented byte stream.
//
// Read is non-blocking: (0, nil) means no data is available yet. Any other
// error is fatal and leaves the transport disconnected.
type Transport interface {
	Connect(ctx context.Context, host string, port int) error
	// Disconnect is idempotent.
	Disconnect() error
	IsConnected() bool
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// LinkNotifier is implemented by transports that accept link events
type LinkNotifier interface {
	NotifyLink(ev LinkEvent)
}
