// Package wsport carries transport ports over websockets so page agents can
// run in a different process than the coordinator.
//
// A port named "translation-port" is opened by dialing
// ws://<host>/ports/translation-port. Each message is one JSON frame.
package wsport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
	"golang.org/x/net/websocket"
)

// PathPrefix is the HTTP path under which ports are served.
const PathPrefix = "/ports/"

// Server accepts websocket ports. Mount it on an http.ServeMux at PathPrefix.
type Server struct {
	accept chan *conn
	done   chan struct{}
	once   sync.Once
	ws     websocket.Server
}

var (
	_ transport.Acceptor = (*Server)(nil)
	_ http.Handler       = (*Server)(nil)
)

// NewServer creates a server ready to be mounted.
func NewServer() *Server {
	s := &Server{
		accept: make(chan *conn),
		done:   make(chan struct{}),
	}
	// No Handshake: the origin of page agents is not checked.
	s.ws = websocket.Server{Handler: s.serve}
	return s
}

// ServeHTTP upgrades requests under PathPrefix.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if portName(r.URL.Path) == "" {
		http.NotFound(w, r)
		return
	}
	s.ws.ServeHTTP(w, r)
}

// serve hands the connection to Accept and holds the handler open until the
// port disconnects, since returning closes the websocket.
func (s *Server) serve(ws *websocket.Conn) {
	c := newConn(portName(ws.Request().URL.Path), ws)

	select {
	case s.accept <- c:
	case <-s.done:
		_ = c.Disconnect()
		return
	}

	select {
	case <-c.Done():
	case <-s.done:
		_ = c.Disconnect()
	}
}

// Accept returns the next connected port.
func (s *Server) Accept(ctx context.Context) (transport.Port, error) {
	select {
	case c := <-s.accept:
		return c, nil
	case <-s.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting and disconnects every open port.
func (s *Server) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func portName(path string) string {
	if !strings.HasPrefix(path, PathPrefix) {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(path, PathPrefix), "/")
}

// Dialer opens ports against a Server at a base URL such as
// ws://localhost:8787.
type Dialer struct {
	baseURL string
	origin  string
}

var _ transport.Dialer = (*Dialer)(nil)

// NewDialer creates a dialer for the server at baseURL. http(s) schemes are
// rewritten to ws(s).
func NewDialer(baseURL string) *Dialer {
	baseURL = strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(baseURL, "http://"):
		baseURL = "ws://" + strings.TrimPrefix(baseURL, "http://")
	case strings.HasPrefix(baseURL, "https://"):
		baseURL = "wss://" + strings.TrimPrefix(baseURL, "https://")
	}
	return &Dialer{
		baseURL: baseURL,
		origin:  "http://localhost/",
	}
}

// Dial opens the named port. Failing to reach the server is reported as
// transport.ErrUnavailable.
func (d *Dialer) Dial(ctx context.Context, name string) (transport.Port, error) {
	cfg, err := websocket.NewConfig(d.baseURL+PathPrefix+name, d.origin)
	if err != nil {
		return nil, fmt.Errorf("invalid port URL: %w", err)
	}

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrUnavailable, err)
	}

	return newConn(name, ws), nil
}

// conn is a port backed by one websocket.
type conn struct {
	name    string
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	frames  chan *types.Message
}

func newConn(name string, ws *websocket.Conn) *conn {
	c := &conn{
		name:   name,
		ws:     ws,
		done:   make(chan struct{}),
		frames: make(chan *types.Message),
	}
	go c.readLoop()
	return c
}

// readLoop owns the websocket reader and detects disconnects even when
// nobody is calling Receive.
func (c *conn) readLoop() {
	defer c.close()
	for {
		var msg types.Message
		if err := websocket.JSON.Receive(c.ws, &msg); err != nil {
			return
		}
		select {
		case c.frames <- &msg:
		case <-c.done:
			return
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) Name() string {
	return c.name
}

func (c *conn) Post(msg *types.Message) error {
	select {
	case <-c.done:
		return transport.ErrDisconnected
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := websocket.JSON.Send(c.ws, msg); err != nil {
		c.close()
		return errors.Join(transport.ErrDisconnected, err)
	}
	return nil
}

func (c *conn) Receive(ctx context.Context) (*types.Message, error) {
	select {
	case msg := <-c.frames:
		return msg, nil
	case <-c.done:
		return nil, transport.ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *conn) Done() <-chan struct{} {
	return c.done
}

func (c *conn) Disconnect() error {
	c.close()
	return nil
}
