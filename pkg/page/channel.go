package page

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
)

// ErrChannelClosed is returned by Connect after Close.
var ErrChannelClosed = errors.New("channel closed")

var errNotConnected = errors.New("port not connected")

// State is the connection state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ReconnectPolicy controls how a Channel recovers from a lost port.
type ReconnectPolicy struct {
	// Delay between a disconnect and the next connect attempt.
	Delay time.Duration

	// MaxAttempts caps consecutive reconnects that do not end in a
	// connection. Zero means no limit.
	MaxAttempts int
}

// DefaultReconnectPolicy retries once a second, forever.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: time.Second}
}

// Scheduler runs f once after d. The returned function cancels the run if it
// has not started. f must not be called before Scheduler returns.
type Scheduler func(d time.Duration, f func()) (cancel func())

// TimerScheduler schedules on the runtime timer.
func TimerScheduler(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// Channel keeps one named port to the coordinator open and reopens it after
// every disconnect. Requests sent while no port is usable are dropped.
type Channel struct {
	dialer   transport.Dialer
	name     string
	policy   ReconnectPolicy
	schedule Scheduler
	logger   *logging.Logger
	onResult func(types.TranslationResult)

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	// generation increases on every Connect and on Close. A disconnect is
	// only acted on if it belongs to the current generation, and only once.
	generation uint64
	handled    bool
	port       transport.Port
	state      State
	attempts   int
	pending    func()
	closed     bool
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithPortName overrides the port name.
func WithPortName(name string) ChannelOption {
	return func(c *Channel) {
		if name != "" {
			c.name = name
		}
	}
}

// WithReconnectPolicy sets the reconnect policy.
func WithReconnectPolicy(policy ReconnectPolicy) ChannelOption {
	return func(c *Channel) {
		c.policy = policy
	}
}

// WithScheduler replaces the timer used for reconnects.
func WithScheduler(s Scheduler) ChannelOption {
	return func(c *Channel) {
		if s != nil {
			c.schedule = s
		}
	}
}

// WithChannelLogger sets the logger.
func WithChannelLogger(logger *logging.Logger) ChannelOption {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithResultHandler sets the function receiving each inbound result. It is
// called from the port's reader goroutine.
func WithResultHandler(fn func(types.TranslationResult)) ChannelOption {
	return func(c *Channel) {
		c.onResult = fn
	}
}

// NewChannel creates a disconnected channel. Call Connect to open the port.
func NewChannel(dialer transport.Dialer, opts ...ChannelOption) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		dialer:   dialer,
		name:     types.PortName,
		policy:   DefaultReconnectPolicy(),
		schedule: TimerScheduler,
		logger:   logging.Discard("page/channel"),
		onResult: func(types.TranslationResult) {},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens a new port, replacing the previous one. A failed dial is
// treated like a disconnect and schedules the next attempt.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	c.generation++
	gen := c.generation
	c.handled = false
	previous := c.port
	c.port = nil
	c.state = StateConnecting
	c.cancelPendingLocked()
	c.mu.Unlock()

	if previous != nil {
		_ = previous.Disconnect()
	}

	port, err := c.dialer.Dial(c.ctx, c.name)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		if port != nil {
			_ = port.Disconnect()
		}
		return nil
	}
	if err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.handleDisconnect(gen, err)
		return err
	}
	c.port = port
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Debugf("Connected to port %q", c.name)
	go c.watch(gen, port)
	return nil
}

// Send hands the request to the coordinator. It reports whether the request
// reached the transport; a dropped request triggers a reconnect instead of an
// error.
func (c *Channel) Send(req types.TranslationRequest) bool {
	c.mu.Lock()
	port, gen, state := c.port, c.generation, c.state
	c.mu.Unlock()

	if port == nil {
		if state == StateConnecting {
			c.logger.Warnf("Port not available yet, dropping translate request")
			return false
		}
		c.logger.Warnf("Port not available, attempting to reconnect...")
		c.handleDisconnect(gen, errNotConnected)
		return false
	}

	if err := port.Post(types.NewTranslateMessage(req.Text)); err != nil {
		c.logger.Errorf("Error during message passing: %v", err)
		c.handleDisconnect(gen, err)
		return false
	}
	return true
}

// Close cancels any pending reconnect and disconnects the port.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	c.cancelPendingLocked()
	port := c.port
	c.port = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.cancel()
	if port != nil {
		return port.Disconnect()
	}
	return nil
}

func (c *Channel) watch(gen uint64, port transport.Port) {
	for {
		msg, err := port.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.handleDisconnect(gen, err)
			}
			return
		}
		if msg.IsShowTranslation() {
			c.onResult(msg.Result())
		}
	}
}

// handleDisconnect schedules exactly one reconnect per lost port.
func (c *Channel) handleDisconnect(gen uint64, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.handled {
		c.mu.Unlock()
		return
	}
	c.handled = true
	port := c.port
	c.port = nil
	c.state = StateDisconnected

	giveUp := c.policy.MaxAttempts > 0 && c.attempts >= c.policy.MaxAttempts
	if !giveUp {
		c.attempts++
		c.pending = c.schedule(c.policy.Delay, func() { c.reconnect(gen) })
	}
	attempts := c.attempts
	c.mu.Unlock()

	if port != nil {
		_ = port.Disconnect()
	}
	if giveUp {
		c.logger.Errorf("Port disconnected, giving up after %d reconnect attempts: %v", attempts, cause)
		return
	}
	c.logger.Warnf("Port disconnected, attempting to reconnect...")
	c.logger.Debugf("Disconnect cause: %v", cause)
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	_ = c.Connect()
}

func (c *Channel) cancelPendingLocked() {
	if c.pending != nil {
		c.pending()
		c.pending = nil
	}
}
