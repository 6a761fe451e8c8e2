// Package popup is the short-lived translation form. It talks to the
// coordinator only through the broadcast bus.
package popup

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
)

// EmptyTextAlert is shown when the form is submitted without text.
const EmptyTextAlert = "Please enter some text to translate!"

// ErrEmptyText is returned by Submit for blank source text.
var ErrEmptyText = errors.New("please enter some text to translate")

// Client holds the popup's form state: the two language selectors and the
// result field.
type Client struct {
	bus       transport.Bus
	logger    *logging.Logger
	correlate bool

	mu     sync.Mutex
	source types.Language
	target types.Language
	result string
	lastID string
	sub    transport.Subscription

	updates chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCorrelation keeps only the reply to the latest submit. Without it every
// showTranslation broadcast overwrites the result field.
func WithCorrelation() Option {
	return func(c *Client) {
		c.correlate = true
	}
}

// WithLanguages sets the initial selectors.
func WithLanguages(source, target types.Language) Option {
	return func(c *Client) {
		c.source = types.ParseLanguage(string(source))
		c.target = types.ParseLanguage(string(target))
	}
}

// NewClient creates a popup client on the bus. The selectors default to
// English to Chinese.
func NewClient(bus transport.Bus, opts ...Option) *Client {
	c := &Client{
		bus:     bus,
		logger:  logging.Discard("popup"),
		source:  types.LanguageEnglish,
		target:  types.LanguageChinese,
		updates: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Languages returns the current selectors.
func (c *Client) Languages() (source, target types.Language) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source, c.target
}

// SetLanguages replaces both selectors.
func (c *Client) SetLanguages(source, target types.Language) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = types.ParseLanguage(string(source))
	c.target = types.ParseLanguage(string(target))
}

// Swap exchanges the source and target selectors.
func (c *Client) Swap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source, c.target = c.target, c.source
}

// Submit broadcasts a translate request. The reply, if any, arrives through
// Listen.
func (c *Client) Submit(ctx context.Context, text string, source, target types.Language) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	msg := types.NewPopupTranslateMessage(types.TranslationRequest{
		Text:       text,
		SourceLang: source,
		TargetLang: target,
	})

	c.mu.Lock()
	c.lastID = msg.ID
	c.mu.Unlock()

	if err := c.bus.Broadcast(ctx, msg); err != nil {
		return err
	}
	c.logger.Debugf("Submitted %s -> %s: %s", source, target, text)
	return nil
}

// SubmitSelected submits text with the current selectors.
func (c *Client) SubmitSelected(ctx context.Context, text string) error {
	source, target := c.Languages()
	return c.Submit(ctx, text, source, target)
}

// Subscribe opens the subscription Listen reads from. Listen subscribes on
// its own; call Subscribe first when the subscription must exist before the
// first Submit.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return nil
	}
	sub, err := c.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

// Listen writes every showTranslation broadcast into the result field until
// ctx is done or the subscription ends. The last reply wins.
func (c *Client) Listen(ctx context.Context) error {
	if err := c.Subscribe(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}
		if !msg.IsShowTranslation() {
			continue
		}

		c.mu.Lock()
		if c.correlate && msg.ID != c.lastID {
			c.mu.Unlock()
			c.logger.Debugf("Ignoring reply %s, waiting for %s", msg.ID, c.lastID)
			continue
		}
		c.result = msg.Translation
		c.mu.Unlock()

		select {
		case c.updates <- struct{}{}:
		default:
		}
	}
}

// Result returns the result field.
func (c *Client) Result() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Updates signals each time the result field changes. Signals are coalesced;
// read Result for the value.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

// Close closes the subscription.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Close(ctx)
}
