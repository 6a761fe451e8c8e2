package coordinator

import (
	"context"
	"errors"

	"github.com/entrhq/tiptranslate/pkg/prompts"
	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
)

// ServePorts accepts persistent connections until the acceptor closes or ctx
// is done. Ports opened under another name are disconnected.
func (c *Coordinator) ServePorts(ctx context.Context, acceptor transport.Acceptor) error {
	for {
		port, err := acceptor.Accept(ctx)
		if err != nil {
			return err
		}

		if port.Name() != c.portName {
			c.logger.Warnf("Ignoring port %q", port.Name())
			_ = port.Disconnect()
			continue
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.servePort(ctx, port)
		}()
	}
}

// servePort reads requests in arrival order. Each request is answered in its
// own goroutine, so replies go out in completion order.
func (c *Coordinator) servePort(ctx context.Context, port transport.Port) {
	c.openPorts.Add(1)
	defer c.openPorts.Add(-1)

	// The port is dropped when the coordinator stops; the page agent
	// reconnects on its own.
	stop := context.AfterFunc(ctx, func() { _ = port.Disconnect() })
	defer stop()

	for {
		msg, err := port.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrDisconnected) {
				c.logger.Debugf("Port %q disconnected", port.Name())
			}
			return
		}

		if !msg.IsTranslate() {
			continue
		}

		c.portRequests.Add(1)
		c.logger.Infof("Received text to translate: %s", msg.Text)

		c.wg.Add(1)
		go func(req *types.Message) {
			defer c.wg.Done()
			c.answerPort(ctx, port, req)
		}(msg)
	}
}

func (c *Coordinator) answerPort(ctx context.Context, port transport.Port, req *types.Message) {
	result := c.Handle(ctx, prompts.Detect(req.Text))

	if err := port.Post(types.NewShowTranslationMessage(req.ID, result)); err != nil {
		c.logger.Warnf("Could not deliver translation, port is gone: %v", err)
	}
}
