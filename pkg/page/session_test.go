package page

import (
	"context"
	"testing"
	"time"

	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/transport/memport"
	"github.com/entrhq/tiptranslate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answer replies to every translate request on port with reply(text).
func answer(port transport.Port, reply func(text string) types.TranslationResult) {
	for {
		msg, err := port.Receive(context.Background())
		if err != nil {
			return
		}
		if msg.IsTranslate() {
			_ = port.Post(types.NewShowTranslationMessage(msg.ID, reply(msg.Text)))
		}
	}
}

func startSession(t *testing.T, hub *memport.Hub, doc *MemDocument, opts ...SessionOption) *Session {
	t.Helper()
	s := NewSession(hub, doc, opts...)
	errs := make(chan error, 1)
	go func() { errs <- s.Run(context.Background()) }()
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		select {
		case err := <-errs:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("session did not stop")
		}
	})
	return s
}

func tooltipState(s *Session) (open bool, state TooltipState, content string) {
	s.Inspect(func(tip *Tooltip) {
		if tip != nil {
			open, state, content = true, tip.State, tip.Content()
		}
	})
	return
}

func TestSessionTranslatesSelection(t *testing.T) {
	hub := memport.NewHub()
	doc := NewMemDocument()
	s := startSession(t, hub, doc)

	remote := accept(t, hub)
	go answer(remote, func(string) types.TranslationResult { return types.NewSuccessResult("你好") })

	s.Select("hello", 3, 4)
	s.Translate()

	require.Eventually(t, func() bool {
		_, state, _ := tooltipState(s)
		return state == TooltipTranslated
	}, 2*time.Second, 5*time.Millisecond)

	open, _, content := tooltipState(s)
	assert.True(t, open)
	assert.Equal(t, "你好", content)
	assert.Len(t, doc.Tooltips(), 1)
}

func TestSessionFailureLeavesTooltipPending(t *testing.T) {
	hub := memport.NewHub()
	doc := NewMemDocument()
	s := startSession(t, hub, doc)

	remote := accept(t, hub)
	replied := make(chan struct{})
	go answer(remote, func(string) types.TranslationResult {
		defer close(replied)
		return types.NewFailureResult("API call failed", nil)
	})

	s.Select("hello", 0, 0)
	s.Translate()
	<-replied

	// Let the result pass through the loop.
	time.Sleep(50 * time.Millisecond)
	open, state, content := tooltipState(s)
	assert.True(t, open)
	assert.Equal(t, TooltipPending, state)
	assert.Equal(t, "hello", content)
}

func TestSessionOutsideClickClosesTooltip(t *testing.T) {
	hub := memport.NewHub()
	doc := NewMemDocument()
	s := startSession(t, hub, doc)
	accept(t, hub)

	s.Select("hello", 10, 10)
	open, _, _ := tooltipState(s)
	require.True(t, open)

	doc.Dispatch(EventMouseDown, Pointer{X: 0, Y: 0})

	require.Eventually(t, func() bool {
		open, _, _ := tooltipState(s)
		return !open
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, doc.ListenerCount(EventMouseDown))
}

func TestSessionCloseTearsDown(t *testing.T) {
	hub := memport.NewHub()
	doc := NewMemDocument()
	s := NewSession(hub, doc)

	errs := make(chan error, 1)
	go func() { errs <- s.Run(context.Background()) }()
	remote := accept(t, hub)

	s.Select("hello", 0, 0)
	open, _, _ := tooltipState(s)
	require.True(t, open)

	require.NoError(t, s.Close())
	require.NoError(t, <-errs)

	assert.Empty(t, doc.Tooltips())
	assert.Zero(t, doc.ListenerCount(EventMouseDown))
	assert.Equal(t, StateDisconnected, s.Channel().State())
	select {
	case <-remote.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("port should be disconnected")
	}
}

func TestSessionRefusesUnmatchedPage(t *testing.T) {
	m, err := NewMatcher([]string{"https://*.example.com/*"}, nil)
	require.NoError(t, err)

	hub := memport.NewHub()
	s := NewSession(hub, NewMemDocument(), WithMatcher(m), WithURL("https://other.org/"))

	assert.ErrorIs(t, s.Run(context.Background()), ErrPageNotMatched)
	assert.Zero(t, hub.Dials())
}

func TestSessionStopsOnContextCancel(t *testing.T) {
	hub := memport.NewHub()
	s := NewSession(hub, NewMemDocument())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- s.Run(ctx) }()
	accept(t, hub)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.ErrorIs(t, s.Run(context.Background()), ErrSessionRunning)
	require.NoError(t, s.Close())
}

func TestSessionRetriesAfterDroppedRequest(t *testing.T) {
	hub := memport.NewHub()
	doc := NewMemDocument()
	sched := &fakeScheduler{}
	s := startSession(t, hub, doc, WithChannelOptions(WithScheduler(sched.schedule)))

	first := accept(t, hub)
	require.NoError(t, first.Disconnect())
	require.Eventually(t, func() bool { return sched.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Select("hello", 0, 0)
	s.Translate()
	_, state, _ := tooltipState(s)
	assert.Equal(t, TooltipReady, state, "dropped request keeps the translate control")

	sched.fire(t)
	require.Equal(t, StateConnected, s.Channel().State())
	second := accept(t, hub)

	s.Translate()
	msg := receive(t, second)
	assert.True(t, msg.IsTranslate())
	assert.Equal(t, "hello", msg.Text)

	require.NoError(t, second.Post(types.NewShowTranslationMessage(msg.ID, types.NewSuccessResult("你好"))))
	require.Eventually(t, func() bool {
		_, state, _ := tooltipState(s)
		return state == TooltipTranslated
	}, 2*time.Second, 5*time.Millisecond)
}
