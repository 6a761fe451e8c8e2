package page

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/tiptranslate/pkg/transport"
	"github.com/entrhq/tiptranslate/pkg/transport/memport"
	"github.com/entrhq/tiptranslate/pkg/types"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records reconnects instead of running them.
type fakeScheduler struct {
	mu        sync.Mutex
	delays    []time.Duration
	fns       []func()
	cancelled []bool
	fired     []bool
}

func (f *fakeScheduler) schedule(d time.Duration, fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.fns)
	f.delays = append(f.delays, d)
	f.fns = append(f.fns, fn)
	f.cancelled = append(f.cancelled, false)
	f.fired = append(f.fired, false)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled[idx] = true
	}
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fns)
}

// fire runs the most recent reconnect that is neither cancelled nor fired.
func (f *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	var fn func()
	for i := len(f.fns) - 1; i >= 0; i-- {
		if !f.cancelled[i] && !f.fired[i] {
			f.fired[i] = true
			fn = f.fns[i]
			break
		}
	}
	f.mu.Unlock()
	require.NotNil(t, fn, "no pending reconnect")
	fn()
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// recordingSender stands in for a Channel.
type recordingSender struct {
	requests []types.TranslationRequest
	drop     bool
}

func (s *recordingSender) Send(req types.TranslationRequest) bool {
	s.requests = append(s.requests, req)
	return !s.drop
}

func accept(t *testing.T, hub *memport.Hub) transport.Port {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	port, err := hub.Accept(ctx)
	require.NoError(t, err)
	return port
}

func receive(t *testing.T, port transport.Port) *types.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := port.Receive(ctx)
	require.NoError(t, err)
	return msg
}
