package memport

import (
	"context"
	"testing"
	"time"

	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPair(t *testing.T, h *Hub) (transport.Port, transport.Port) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	local, err := h.Dial(ctx, types.PortName)
	require.NoError(t, err)
	remote, err := h.Accept(ctx)
	require.NoError(t, err)
	return local, remote
}

func TestPortDeliversInOrder(t *testing.T) {
	h := NewHub()
	defer h.Close()

	local, remote := dialPair(t, h)
	assert.Equal(t, types.PortName, remote.Name())

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, local.Post(types.NewTranslateMessage(text)))
	}

	ctx := context.Background()
	for _, want := range []string{"one", "two", "three"} {
		msg, err := remote.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, msg.Text)
	}

	require.NoError(t, remote.Post(types.NewShowTranslationMessage("", types.NewSuccessResult("uno"))))
	msg, err := local.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uno", msg.Translation)
}

func TestPostCopiesMessage(t *testing.T) {
	h := NewHub()
	defer h.Close()

	local, remote := dialPair(t, h)
	msg := types.NewTranslateMessage("original")
	require.NoError(t, local.Post(msg))
	msg.Text = "mutated"

	got, err := remote.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "original", got.Text)
}

func TestDisconnectIsSeenByBothEnds(t *testing.T) {
	h := NewHub()
	defer h.Close()

	local, remote := dialPair(t, h)
	assert.Equal(t, 1, h.Connections())

	require.NoError(t, remote.Disconnect())
	require.NoError(t, remote.Disconnect(), "disconnect should be idempotent")

	select {
	case <-local.Done():
	case <-time.After(time.Second):
		t.Fatal("local end did not observe disconnect")
	}

	assert.ErrorIs(t, local.Post(types.NewTranslateMessage("late")), transport.ErrDisconnected)
	_, err := local.Receive(context.Background())
	assert.ErrorIs(t, err, transport.ErrDisconnected)
	assert.Equal(t, 0, h.Connections())
}

func TestDisconnectAllKeepsHubOpen(t *testing.T) {
	h := NewHub()
	defer h.Close()

	first, _ := dialPair(t, h)
	h.DisconnectAll()
	<-first.Done()

	second, _ := dialPair(t, h)
	assert.NoError(t, second.Post(types.NewTranslateMessage("again")))
}

func TestUnavailableHubRejectsDial(t *testing.T) {
	h := NewHub()
	defer h.Close()

	h.SetAvailable(false)
	_, err := h.Dial(context.Background(), types.PortName)
	assert.ErrorIs(t, err, transport.ErrUnavailable)

	h.SetAvailable(true)
	_, err = h.Dial(context.Background(), types.PortName)
	assert.NoError(t, err)
	assert.Equal(t, 2, h.Dials())
}

func TestClosedHub(t *testing.T) {
	h := NewHub()
	local, _ := dialPair(t, h)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	<-local.Done()
	_, err := h.Dial(context.Background(), types.PortName)
	assert.ErrorIs(t, err, transport.ErrClosed)
	_, err = h.Accept(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestReceiveHonorsContext(t *testing.T) {
	h := NewHub()
	defer h.Close()

	local, _ := dialPair(t, h)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := local.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
