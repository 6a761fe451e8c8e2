package popup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/transport/pubsubbus"
	"github.com/entrhq/tiptranslate/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBus(t *testing.T) *pubsubbus.Bus {
	t.Helper()
	bus, err := pubsubbus.Open(context.Background(), "mem://popup-test-"+uuid.New().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	return bus
}

func listen(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Subscribe(ctx))
	done := make(chan error, 1)
	go func() { done <- c.Listen(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = c.Close(context.Background())
	})
}

func nextRequest(t *testing.T, sub transport.Subscription) *types.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		msg, err := sub.Receive(ctx)
		require.NoError(t, err)
		if msg.IsTranslate() {
			return msg
		}
	}
}

func waitForUpdate(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("result field not updated")
	}
}

func TestSubmitRejectsBlankText(t *testing.T) {
	c := NewClient(openBus(t))

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, c.Submit(context.Background(), text, types.LanguageEnglish, types.LanguageChinese), ErrEmptyText)
	}
}

func TestSubmitBroadcastsRequest(t *testing.T) {
	bus := openBus(t)
	ctx := context.Background()
	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close(ctx)

	c := NewClient(bus)
	require.NoError(t, c.Submit(ctx, " bonjour ", "fr", types.LanguageChinese))

	msg := nextRequest(t, sub)
	assert.Equal(t, " bonjour ", msg.Text)
	assert.Equal(t, types.Language("fr"), msg.SourceLang)
	assert.Equal(t, types.LanguageChinese, msg.TargetLang)
	assert.NotEmpty(t, msg.ID)
}

func TestSwap(t *testing.T) {
	c := NewClient(openBus(t))

	source, target := c.Languages()
	assert.Equal(t, types.LanguageEnglish, source)
	assert.Equal(t, types.LanguageChinese, target)

	c.Swap()
	source, target = c.Languages()
	assert.Equal(t, types.LanguageChinese, source)
	assert.Equal(t, types.LanguageEnglish, target)
}

func TestSubmitSelectedUsesSelectors(t *testing.T) {
	bus := openBus(t)
	ctx := context.Background()
	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close(ctx)

	c := NewClient(bus, WithLanguages("ZH", "en"))
	require.NoError(t, c.SubmitSelected(ctx, "你好"))

	msg := nextRequest(t, sub)
	assert.Equal(t, types.LanguageChinese, msg.SourceLang)
	assert.Equal(t, types.LanguageEnglish, msg.TargetLang)
}

func TestListenLastWriterWins(t *testing.T) {
	bus := openBus(t)
	ctx := context.Background()
	c := NewClient(bus)
	listen(t, c)

	require.NoError(t, bus.Broadcast(ctx, types.NewShowTranslationMessage("a", types.NewSuccessResult("first"))))
	require.Eventually(t, func() bool { return c.Result() == "first" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Broadcast(ctx, types.NewShowTranslationMessage("b", types.NewSuccessResult("second"))))
	require.Eventually(t, func() bool { return c.Result() == "second" }, 2*time.Second, 5*time.Millisecond)
}

func TestListenIgnoresRequests(t *testing.T) {
	bus := openBus(t)
	ctx := context.Background()
	c := NewClient(bus)
	listen(t, c)

	require.NoError(t, c.Submit(ctx, "hello", types.LanguageEnglish, types.LanguageChinese))
	require.NoError(t, bus.Broadcast(ctx, types.NewShowTranslationMessage("", types.NewSuccessResult("你好"))))

	waitForUpdate(t, c)
	assert.Equal(t, "你好", c.Result())
}

func TestListenWithCorrelation(t *testing.T) {
	bus := openBus(t)
	ctx := context.Background()
	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close(ctx)

	c := NewClient(bus, WithCorrelation())
	listen(t, c)

	require.NoError(t, c.Submit(ctx, "hello", types.LanguageEnglish, types.LanguageChinese))
	req := nextRequest(t, sub)

	require.NoError(t, bus.Broadcast(ctx, types.NewShowTranslationMessage("someone-else", types.NewSuccessResult("other"))))
	require.NoError(t, bus.Broadcast(ctx, types.NewShowTranslationMessage(req.ID, types.NewSuccessResult("你好"))))

	waitForUpdate(t, c)
	assert.Equal(t, "你好", c.Result())
}

func TestListenStopsOnCancel(t *testing.T) {
	c := NewClient(openBus(t))
	require.NoError(t, c.Subscribe(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Listen(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return")
	}
	require.NoError(t, c.Close(context.Background()))
}
