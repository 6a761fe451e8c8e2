// Package pubsubbus implements the broadcast bus on top of gocloud.dev/pubsub.
//
// The default URL scheme is mem://, a process-local topic that fans each
// message out to every subscription open at send time. Any other driver
// registered with gocloud.dev/pubsub can be used by importing it and passing
// its URL.
package pubsubbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// DefaultURL is the topic used when none is configured.
const DefaultURL = "mem://tiptranslate-broadcast"

// Bus broadcasts messages on one topic.
type Bus struct {
	url    string
	topic  *pubsub.Topic
	logger *logging.Logger

	mu     sync.Mutex
	closed bool
}

var _ transport.Bus = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for dropped or malformed messages.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// Open opens the topic at url. The topic must exist before any subscription
// is opened, which Open guarantees for mem:// topics.
func Open(ctx context.Context, url string, opts ...Option) (*Bus, error) {
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}

	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("could not open broadcast topic %s: %w", url, err)
	}

	b := &Bus{
		url:    url,
		topic:  topic,
		logger: logging.Discard("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// URL returns the URL of the topic.
func (b *Bus) URL() string {
	return b.url
}

// Broadcast sends msg to every current subscription.
func (b *Bus) Broadcast(ctx context.Context, msg *types.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	return b.topic.Send(ctx, &pubsub.Message{
		Body:     body,
		Metadata: map[string]string{"action": string(msg.Action)},
	})
}

// Subscribe opens a new subscription. It only sees messages broadcast after
// it was opened.
func (b *Bus) Subscribe(ctx context.Context) (transport.Subscription, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}

	sub, err := pubsub.OpenSubscription(ctx, b.url)
	if err != nil {
		return nil, fmt.Errorf("could not open broadcast subscription: %w", err)
	}
	return &subscription{sub: sub, logger: b.logger}, nil
}

// Close shuts the topic down. mem:// topics are shared by URL inside the
// process and stay registered, so they are only detached.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	if strings.HasPrefix(strings.ToLower(b.url), "mem://") {
		return nil
	}
	return b.topic.Shutdown(ctx)
}

type subscription struct {
	sub    *pubsub.Subscription
	logger *logging.Logger
}

// Receive acks each message on arrival; broadcast delivery is at most once.
// Bodies that do not decode are skipped.
func (s *subscription) Receive(ctx context.Context) (*types.Message, error) {
	for {
		m, err := s.sub.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, errors.Join(transport.ErrClosed, err)
		}
		m.Ack()

		var msg types.Message
		if err := json.Unmarshal(m.Body, &msg); err != nil {
			s.logger.Warnf("Dropping malformed broadcast message: %v", err)
			continue
		}
		return &msg, nil
	}
}

func (s *subscription) Close(ctx context.Context) error {
	return s.sub.Shutdown(ctx)
}
