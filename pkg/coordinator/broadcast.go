package coordinator

import (
	"context"

	"github.com/entrhq/tiptranslate/pkg/prompts"
	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
)

// ServeBroadcast answers translate broadcasts until the subscription fails
// or ctx is done. Only successful results are broadcast back; failures are
// logged.
func (c *Coordinator) ServeBroadcast(ctx context.Context, bus transport.Bus) error {
	sub, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	c.markReady()
	return c.serveSubscription(ctx, bus, sub)
}

func (c *Coordinator) serveSubscription(ctx context.Context, bus transport.Bus, sub transport.Subscription) error {
	defer sub.Close(context.WithoutCancel(ctx))

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}

		if !msg.IsTranslate() {
			continue
		}

		c.broadcastRequests.Add(1)
		c.logger.Infof("Translating from %s to %s: %s", msg.SourceLang, msg.TargetLang, msg.Text)

		c.wg.Add(1)
		go func(req *types.Message) {
			defer c.wg.Done()
			c.answerBroadcast(ctx, bus, req)
		}(msg)
	}
}

func (c *Coordinator) answerBroadcast(ctx context.Context, bus transport.Bus, req *types.Message) {
	result := c.Handle(ctx, prompts.Directed(req.SourceLang, req.TargetLang, req.Text))
	if !result.Success {
		return
	}

	reply := types.NewShowTranslationMessage(req.ID, result)
	if err := bus.Broadcast(context.WithoutCancel(ctx), reply); err != nil {
		c.logger.Warnf("Could not broadcast translation: %v", err)
	}
}
