package eventstream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mrzor/xpcspy/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource yields lines, then err (io.EOF if nil). With block set it
// waits for ctx instead of ending.
type sliceSource struct {
	lines []string
	err   error
	block bool
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if len(s.lines) > 0 {
		line := s.lines[0]
		s.lines = s.lines[1:]
		return []byte(line), nil
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *sliceSource) Close() error { return nil }

type fakeHandler struct {
	mu      sync.Mutex
	kinds   []notification.Kind
	expires int
	drained bool
}

func (h *fakeHandler) HandleNotification(_ context.Context, n *notification.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kinds = append(h.kinds, n.Kind)
	if n.Kind == "debug" {
		return errors.New("unhandled")
	}
	return nil
}

func (h *fakeHandler) Expire(context.Context, time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expires++
	return nil
}

func (h *fakeHandler) Drain(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drained = true
	return nil
}

func (h *fakeHandler) expireCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.expires
}

func waitDone(t *testing.T, s *Stream) error {
	t.Helper()
	select {
	case <-s.Done():
		return s.Wait()
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
		return nil
	}
}

func TestStream_DispatchesUntilEOF(t *testing.T) {
	src := &sliceSource{lines: []string{
		`{"type":"send","payload":{"type":"agent:hooks_installed"}}`,
		`not json`,
		`{"type":"send","payload":{"type":"agent:trace:symbol","message":{"timestamp":1,"symbol":"foo"}}}`,
		`{"type":"send","payload":{"type":"agent:debug"}}`,
		`{"type":"send","payload":{"type":"agent:trace:data","message":{"timestamp":1,"data":{"conn":"c","message":"m"}}}}`,
	}}
	h := &fakeHandler{}

	s := New(src, h, Options{})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, waitDone(t, s))

	assert.Equal(t, []notification.Kind{
		notification.KindHooksInstalled,
		notification.KindSymbol,
		"debug",
		notification.KindData,
	}, h.kinds)
	assert.True(t, h.drained, "end of input drains pending records")
	assert.Equal(t, Stats{Lines: 5, Malformed: 1}, s.Stats())
}

func TestStream_ReadErrorIsReported(t *testing.T) {
	readErr := errors.New("connection reset")
	h := &fakeHandler{}

	s := New(&sliceSource{err: readErr}, h, Options{})
	require.NoError(t, s.Start(context.Background()))

	assert.ErrorIs(t, waitDone(t, s), readErr)
	assert.False(t, h.drained)
}

func TestStream_Stop(t *testing.T) {
	h := &fakeHandler{}
	s := New(&sliceSource{block: true}, h, Options{})
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.NoError(t, waitDone(t, s))
	assert.False(t, h.drained, "stop does not drain")
}

func TestStream_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(&sliceSource{block: true}, &fakeHandler{}, Options{})
	require.NoError(t, s.Start(ctx))

	cancel()
	assert.NoError(t, waitDone(t, s))
}

func TestStream_ExpiryTicker(t *testing.T) {
	h := &fakeHandler{}
	s := New(&sliceSource{block: true}, h, Options{
		PendingTimeout: time.Second,
		ExpireInterval: 5 * time.Millisecond,
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return h.expireCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestStream_NoTickerWithoutTimeout(t *testing.T) {
	h := &fakeHandler{}
	s := New(&sliceSource{block: true}, h, Options{ExpireInterval: time.Millisecond})
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, waitDone(t, s))
	assert.Zero(t, h.expireCount())
}
