// Package page is the per-page agent: a Channel to the coordinator, a
// Presenter for the tooltip, and a Session that owns both and serializes
// every event through one loop.
package page

import (
	"context"
	"errors"
	"sync"

	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
)

const eventBuffer = 64

// ErrSessionRunning is returned by Run when the session was already started.
var ErrSessionRunning = errors.New("session already running")

// Session is the overlay of one page.
type Session struct {
	channel   *Channel
	presenter *Presenter
	logger    *logging.Logger
	matcher   *Matcher
	url       string

	events chan func()
	done   chan struct{}

	mu       sync.Mutex
	running  bool
	stopped  chan struct{}
	closeErr error
	once     sync.Once
}

type sessionConfig struct {
	logger      *logging.Logger
	matcher     *Matcher
	url         string
	channelOpts []ChannelOption
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithLogger sets the session logger. The channel and presenter log as
// sub-components.
func WithLogger(logger *logging.Logger) SessionOption {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

// WithURL sets the page URL checked against the matcher.
func WithURL(url string) SessionOption {
	return func(c *sessionConfig) {
		c.url = url
	}
}

// WithMatcher restricts the pages a session runs on.
func WithMatcher(m *Matcher) SessionOption {
	return func(c *sessionConfig) {
		c.matcher = m
	}
}

// WithChannelOptions passes options through to the session's Channel.
func WithChannelOptions(opts ...ChannelOption) SessionOption {
	return func(c *sessionConfig) {
		c.channelOpts = append(c.channelOpts, opts...)
	}
}

// NewSession creates a session drawing on doc and connecting through dialer.
func NewSession(dialer transport.Dialer, doc Document, opts ...SessionOption) *Session {
	cfg := &sessionConfig{logger: logging.Discard("page")}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Session{
		logger:  cfg.logger,
		matcher: cfg.matcher,
		url:     cfg.url,
		events:  make(chan func(), eventBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	channelOpts := append([]ChannelOption{
		WithChannelLogger(cfg.logger.With("channel")),
		WithResultHandler(func(r types.TranslationResult) {
			s.enqueue(func() { s.presenter.OnResult(r) })
		}),
	}, cfg.channelOpts...)
	s.channel = NewChannel(dialer, channelOpts...)

	s.presenter = NewPresenter(doc, s.channel,
		WithPresenterLogger(cfg.logger.With("presenter")),
		WithDispatch(func(fn func()) { s.enqueue(fn) }),
	)
	return s
}

// Channel returns the session's channel.
func (s *Session) Channel() *Channel {
	return s.channel
}

// Run connects and processes events until ctx is done or Close is called.
func (s *Session) Run(ctx context.Context) error {
	if s.matcher != nil && !s.matcher.Match(s.url) {
		return ErrPageNotMatched
	}

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return ErrChannelClosed
	default:
	}
	if s.running {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	s.running = true
	s.mu.Unlock()
	defer close(s.stopped)

	if err := s.channel.Connect(); err != nil {
		s.logger.Warnf("Initial connect failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()
		case <-s.done:
			s.teardown()
			return nil
		case fn := <-s.events:
			fn()
		}
	}
}

// Select reports a finished text selection at the pointer position.
func (s *Session) Select(text string, x, y int) {
	s.enqueue(func() { s.presenter.OnSelection(text, x, y) })
}

// Translate presses the tooltip's translate control.
func (s *Session) Translate() {
	s.enqueue(s.presenter.OnTranslateTriggered)
}

// CloseTooltip presses the tooltip's close control.
func (s *Session) CloseTooltip() {
	s.enqueue(s.presenter.Close)
}

// Inspect runs fn on the event loop with the current tooltip, which may be
// nil, and waits for it to finish.
func (s *Session) Inspect(fn func(*Tooltip)) {
	ran := make(chan struct{})
	if !s.enqueue(func() {
		defer close(ran)
		fn(s.presenter.Tooltip())
	}) {
		return
	}
	select {
	case <-ran:
	case <-s.stopped:
	}
}

func (s *Session) enqueue(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	case <-s.stopped:
		return false
	}
}

// Close stops the loop, removes the tooltip and disconnects.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		running := s.running
		s.mu.Unlock()

		if running {
			<-s.stopped
		} else {
			s.teardown()
		}
	})
	return s.closeErr
}

func (s *Session) teardown() {
	s.presenter.Close()
	if err := s.channel.Close(); err != nil {
		s.closeErr = err
	}
}
