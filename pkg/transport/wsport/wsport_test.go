package wsport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*Server, *Dialer) {
	t.Helper()

	srv := NewServer()
	mux := http.NewServeMux()
	mux.Handle(PathPrefix, srv)
	httpServer := httptest.NewServer(mux)

	// Cleanups run in reverse: the port server must release its handlers
	// before the HTTP server waits for them.
	t.Cleanup(httpServer.Close)
	t.Cleanup(func() { _ = srv.Close() })

	return srv, NewDialer(httpServer.URL)
}

func connect(t *testing.T, srv *Server, d *Dialer) (transport.Port, transport.Port) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	local, err := d.Dial(ctx, types.PortName)
	require.NoError(t, err)
	remote, err := srv.Accept(ctx)
	require.NoError(t, err)
	return local, remote
}

func TestRoundTrip(t *testing.T) {
	srv, d := startServer(t)
	local, remote := connect(t, srv, d)
	defer local.Disconnect()

	assert.Equal(t, types.PortName, remote.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, local.Post(types.NewTranslateMessage("first")))
	require.NoError(t, local.Post(types.NewTranslateMessage("second")))

	for _, want := range []string{"first", "second"} {
		msg, err := remote.Receive(ctx)
		require.NoError(t, err)
		assert.True(t, msg.IsTranslate())
		assert.Equal(t, want, msg.Text)
	}

	require.NoError(t, remote.Post(types.NewShowTranslationMessage("id-1", types.NewSuccessResult("你好"))))
	msg, err := local.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, msg.IsShowTranslation())
	assert.Equal(t, "id-1", msg.ID)
	assert.Equal(t, "你好", msg.Translation)
}

func TestRemoteDisconnectIsDetected(t *testing.T) {
	srv, d := startServer(t)
	local, remote := connect(t, srv, d)

	require.NoError(t, remote.Disconnect())

	select {
	case <-local.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("dialer side did not observe disconnect")
	}
	assert.ErrorIs(t, local.Post(types.NewTranslateMessage("late")), transport.ErrDisconnected)
}

func TestServerCloseDisconnectsPorts(t *testing.T) {
	srv, d := startServer(t)
	local, _ := connect(t, srv, d)

	require.NoError(t, srv.Close())

	select {
	case <-local.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("port survived server close")
	}

	_, err := srv.Accept(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestDialUnreachable(t *testing.T) {
	httpServer := httptest.NewServer(http.NotFoundHandler())
	url := httpServer.URL
	httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewDialer(url).Dial(ctx, types.PortName)
	assert.ErrorIs(t, err, transport.ErrUnavailable)
}

func TestPortName(t *testing.T) {
	assert.Equal(t, "translation-port", portName("/ports/translation-port"))
	assert.Equal(t, "translation-port", portName("/ports/translation-port/"))
	assert.Equal(t, "", portName("/other"))
}

func TestNewDialerRewritesScheme(t *testing.T) {
	assert.Equal(t, "ws://localhost:8787", NewDialer("http://localhost:8787/").baseURL)
	assert.Equal(t, "wss://example.com", NewDialer("https://example.com").baseURL)
	assert.Equal(t, "ws://localhost:1", NewDialer("ws://localhost:1").baseURL)
}
