// Package coordinator is the long-lived background component. It owns the
// gateway call and answers translation requests arriving on persistent ports
// and on the broadcast bus, always on the transport the request came from.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/tiptranslate/pkg/llm"
	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
)

// Failure messages placed in unsuccessful results.
const (
	MessageAPICallFailed  = "API call failed"
	MessageNoTranslation  = "No translation available."
	defaultGatewayTimeout = 30 * time.Second
)

// Coordinator routes translation requests to the gateway. It holds no state
// per request; a port is referenced only while it is open.
type Coordinator struct {
	gateway        llm.Gateway
	logger         *logging.Logger
	portName       string
	gatewayTimeout time.Duration

	wg sync.WaitGroup

	ready     chan struct{}
	readyOnce sync.Once

	portRequests      atomic.Int64
	broadcastRequests atomic.Int64
	failures          atomic.Int64
	openPorts         atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithPortName sets the name of the ports that are served.
func WithPortName(name string) Option {
	return func(c *Coordinator) {
		if name != "" {
			c.portName = name
		}
	}
}

// WithGatewayTimeout bounds each gateway call. Zero disables the bound.
func WithGatewayTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.gatewayTimeout = timeout
	}
}

// New creates a coordinator around the gateway.
func New(gateway llm.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway:        gateway,
		logger:         logging.Discard("coordinator"),
		portName:       types.PortName,
		gatewayTimeout: defaultGatewayTimeout,
		ready:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle makes exactly one gateway call and converts its outcome into a
// result. Failures never escape as errors.
func (c *Coordinator) Handle(ctx context.Context, instruction string) types.TranslationResult {
	if c.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.gatewayTimeout)
		defer cancel()
	}

	translation, err := c.gateway.Translate(ctx, instruction)
	if err != nil {
		c.failures.Add(1)
		result := failureResult(err)
		c.logger.Errorf("Translation failed: %s: %v", result.Message, err)
		return result
	}

	c.logger.Debugf("Translation received: %s", translation)
	return types.NewSuccessResult(translation)
}

func failureResult(err error) types.TranslationResult {
	if errors.Is(err, llm.ErrNoTranslation) {
		return types.NewFailureResult(MessageNoTranslation, err)
	}
	return types.NewFailureResult(MessageAPICallFailed, err)
}

// Run serves ports and the bus until ctx is done or both stop, then waits
// for in-flight requests. The broadcast subscription is opened before any
// serving starts; Ready is closed once it exists.
func (c *Coordinator) Run(ctx context.Context, acceptor transport.Acceptor, bus transport.Bus) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("could not subscribe to broadcasts: %w", err)
	}
	c.markReady()

	errs := make(chan error, 2)
	go func() { errs <- c.ServePorts(ctx, acceptor) }()
	go func() { errs <- c.serveSubscription(ctx, bus, sub) }()

	first := <-errs
	cancel()
	second := <-errs

	c.wg.Wait()
	return errors.Join(ignoreShutdown(first), ignoreShutdown(second))
}

func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrClosed) {
		return nil
	}
	return err
}

// Ready is closed once the coordinator listens for broadcasts. Requests
// broadcast before that are not seen.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

func (c *Coordinator) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Stats reports counters since the coordinator was created.
type Stats struct {
	PortRequests      int64
	BroadcastRequests int64
	Failures          int64
	OpenPorts         int64
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		PortRequests:      c.portRequests.Load(),
		BroadcastRequests: c.broadcastRequests.Load(),
		Failures:          c.failures.Load(),
		OpenPorts:         c.openPorts.Load(),
	}
}

// Wait blocks until every request started so far has been answered.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
