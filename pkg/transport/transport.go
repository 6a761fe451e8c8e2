// Package transport defines the two ways contexts exchange messages: a
// persistent, ordered, bidirectional Port between one page agent and the
// coordinator, and a fire-and-forget Bus that delivers every message to every
// current listener.
package transport

import (
	"context"
	"errors"

	"github.com/entrhq/tiptranslate/pkg/types"
)

var (
	// ErrDisconnected is returned by Port operations once either end has
	// disconnected. A disconnected port never recovers; dial a new one.
	ErrDisconnected = errors.New("port disconnected")

	// ErrClosed is returned by acceptors, dialers and buses that were closed.
	ErrClosed = errors.New("transport closed")

	// ErrUnavailable is returned by a dialer when the other end is not
	// accepting connections right now.
	ErrUnavailable = errors.New("transport unavailable")
)

// Port is one end of a persistent connection. Messages posted on one end are
// received on the other in post order. Either end may disconnect at any time,
// after which Done is closed on both ends and pending messages may be lost.
//
// Post may be called from several goroutines; Receive is meant for a single
// reader.
type Port interface {
	// Name is the name the port was opened with.
	Name() string

	// Post sends a message to the other end.
	Post(msg *types.Message) error

	// Receive blocks until a message arrives, the port disconnects
	// (ErrDisconnected) or ctx is done.
	Receive(ctx context.Context) (*types.Message, error)

	// Done is closed when the port disconnects for any reason.
	Done() <-chan struct{}

	// Disconnect tears the connection down. Safe to call multiple times.
	Disconnect() error
}

// Dialer opens named ports to the coordinator.
type Dialer interface {
	Dial(ctx context.Context, name string) (Port, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, name string) (Port, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, name string) (Port, error) {
	return f(ctx, name)
}

// Acceptor yields the coordinator's end of each newly opened port.
type Acceptor interface {
	// Accept blocks until a port is opened, the acceptor is closed
	// (ErrClosed) or ctx is done.
	Accept(ctx context.Context) (Port, error)
}

// Bus delivers each broadcast message to every subscription open at the time
// of the broadcast, including the broadcaster's own. Nothing is queued for
// listeners that subscribe later.
type Bus interface {
	Broadcast(ctx context.Context, msg *types.Message) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription receives broadcast messages.
type Subscription interface {
	// Receive blocks until a message arrives, the subscription is closed or
	// ctx is done.
	Receive(ctx context.Context) (*types.Message, error)

	Close(ctx context.Context) error
}
