// Package memport implements transport ports inside one process. A Hub plays
// the part of the runtime that connects page agents to the coordinator.
package memport

import (
	"context"
	"sync"

	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
)

const defaultBufferSize = 32

// Hub pairs dialed ports with accepted ports. It implements both
// transport.Dialer and transport.Acceptor.
type Hub struct {
	mu          sync.Mutex
	accept      chan *end
	done        chan struct{}
	closed      bool
	unavailable bool
	pipes       map[*pipe]struct{}
	bufferSize  int
	dials       int
}

var (
	_ transport.Dialer   = (*Hub)(nil)
	_ transport.Acceptor = (*Hub)(nil)
)

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets how many messages may be in flight per direction
// before Post blocks.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// NewHub creates an open hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		accept:     make(chan *end, 16),
		done:       make(chan struct{}),
		pipes:      make(map[*pipe]struct{}),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dial opens a port and queues its other end for Accept.
func (h *Hub) Dial(ctx context.Context, name string) (transport.Port, error) {
	h.mu.Lock()
	h.dials++
	if h.closed {
		h.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if h.unavailable {
		h.mu.Unlock()
		return nil, transport.ErrUnavailable
	}
	p := newPipe(name, h.bufferSize, h.forget)
	h.pipes[p] = struct{}{}
	h.mu.Unlock()

	select {
	case h.accept <- p.remote:
		return p.local, nil
	case <-h.done:
		p.close()
		return nil, transport.ErrClosed
	case <-ctx.Done():
		p.close()
		return nil, ctx.Err()
	}
}

// Accept returns the coordinator end of the next dialed port.
func (h *Hub) Accept(ctx context.Context) (transport.Port, error) {
	select {
	case e := <-h.accept:
		return e, nil
	case <-h.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetAvailable controls whether Dial succeeds. While unavailable, Dial
// fails with transport.ErrUnavailable, like connecting to a coordinator that
// is being restarted.
func (h *Hub) SetAvailable(available bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unavailable = !available
}

// DisconnectAll tears down every open port but keeps the hub open.
func (h *Hub) DisconnectAll() {
	for _, p := range h.snapshot() {
		p.close()
	}
}

// Connections returns the number of open ports.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pipes)
}

// Dials returns how many times Dial was called, successful or not.
func (h *Hub) Dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dials
}

// Close disconnects all ports and makes Dial and Accept fail.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	h.DisconnectAll()
	return nil
}

func (h *Hub) snapshot() []*pipe {
	h.mu.Lock()
	defer h.mu.Unlock()
	pipes := make([]*pipe, 0, len(h.pipes))
	for p := range h.pipes {
		pipes = append(pipes, p)
	}
	return pipes
}

func (h *Hub) forget(p *pipe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pipes, p)
}

// pipe is one connection with its two ends.
type pipe struct {
	local   *end
	remote  *end
	done    chan struct{}
	once    sync.Once
	onClose func(*pipe)
}

func newPipe(name string, bufferSize int, onClose func(*pipe)) *pipe {
	p := &pipe{
		done:    make(chan struct{}),
		onClose: onClose,
	}
	p.local = &end{name: name, pipe: p, inbox: make(chan *types.Message, bufferSize)}
	p.remote = &end{name: name, pipe: p, inbox: make(chan *types.Message, bufferSize)}
	p.local.peer = p.remote
	p.remote.peer = p.local
	return p
}

func (p *pipe) close() {
	p.once.Do(func() {
		close(p.done)
		if p.onClose != nil {
			p.onClose(p)
		}
	})
}

// end is one side of a pipe.
type end struct {
	name  string
	pipe  *pipe
	inbox chan *types.Message
	peer  *end
}

func (e *end) Name() string {
	return e.name
}

func (e *end) Post(msg *types.Message) error {
	select {
	case <-e.pipe.done:
		return transport.ErrDisconnected
	default:
	}

	// Each end gets its own copy so neither side can mutate what the
	// other received.
	copied := *msg
	select {
	case e.peer.inbox <- &copied:
		return nil
	case <-e.pipe.done:
		return transport.ErrDisconnected
	}
}

func (e *end) Receive(ctx context.Context) (*types.Message, error) {
	select {
	case msg := <-e.inbox:
		return msg, nil
	case <-e.pipe.done:
		return nil, transport.ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *end) Done() <-chan struct{} {
	return e.pipe.done
}

func (e *end) Disconnect() error {
	e.pipe.close()
	return nil
}
