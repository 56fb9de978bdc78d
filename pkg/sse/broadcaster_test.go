package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	"github.com/danghamo/satwatch/pkg/logger"
)

// readEvent returns the payload of the next "data:" frame
func readEvent(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &out))
		return out
	}
}

func connect(t *testing.T, url string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, "text/event-stream; charset=utf-8", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body), cancel
}

func TestSSEBroadcaster_StreamsBroadcasts(t *testing.T) {
	b := NewSSEBroadcaster(logger.NewNop(), WithInitialMessage(func() (jsonrpcx.Notification, bool) {
		return jsonrpcx.NewNotification("view.snapshot", map[string]string{"status": "Tracking"}), true
	}))
	defer b.Close()

	srv := httptest.NewServer(http.HandlerFunc(b.HandleSSE))
	defer srv.Close()

	r, cancel := connect(t, srv.URL)
	defer cancel()

	assert.Equal(t, "connected", readEvent(t, r)["type"])
	initial := readEvent(t, r)
	assert.Equal(t, "view.snapshot", initial["method"])

	require.Eventually(t, func() bool { return b.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b.BroadcastToAll(jsonrpcx.NewNotification("view.updated", map[string]string{"latitude": "51.50"}))
	msg := readEvent(t, r)
	assert.Equal(t, "2.0", msg["jsonrpc"])
	assert.Equal(t, "view.updated", msg["method"])
	assert.Equal(t, map[string]any{"latitude": "51.50"}, msg["params"])
}

func TestSSEBroadcaster_NoInitialMessageWhenEmpty(t *testing.T) {
	b := NewSSEBroadcaster(logger.NewNop(), WithInitialMessage(func() (jsonrpcx.Notification, bool) {
		return jsonrpcx.Notification{}, false
	}))
	defer b.Close()

	srv := httptest.NewServer(http.HandlerFunc(b.HandleSSE))
	defer srv.Close()

	r, cancel := connect(t, srv.URL)
	defer cancel()

	assert.Equal(t, "connected", readEvent(t, r)["type"])
	require.Eventually(t, func() bool { return b.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b.BroadcastToAll(jsonrpcx.NewNotification("tracking.toggled", nil))
	assert.Equal(t, "tracking.toggled", readEvent(t, r)["method"])
}

func TestSSEBroadcaster_Heartbeat(t *testing.T) {
	b := NewSSEBroadcaster(logger.NewNop(), WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	srv := httptest.NewServer(http.HandlerFunc(b.HandleSSE))
	defer srv.Close()

	r, cancel := connect(t, srv.URL)
	defer cancel()

	readEvent(t, r)
	assert.Equal(t, "heartbeat", readEvent(t, r)["type"])
}

func TestSSEBroadcaster_DisconnectRemovesClient(t *testing.T) {
	b := NewSSEBroadcaster(logger.NewNop())
	defer b.Close()

	srv := httptest.NewServer(http.HandlerFunc(b.HandleSSE))
	defer srv.Close()

	r, cancel := connect(t, srv.URL)
	readEvent(t, r)
	require.Eventually(t, func() bool { return b.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return b.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSSEBroadcaster_CloseIsIdempotent(t *testing.T) {
	b := NewSSEBroadcaster(logger.NewNop())
	b.AddClient(&SSEClient{ID: "c1", Done: make(chan struct{}), LastSeen: time.Now()})
	assert.Equal(t, 1, b.GetClientCount())

	b.Close()
	b.Close()
	assert.Equal(t, 0, b.GetClientCount())

	// broadcasting after close must not panic
	b.BroadcastToAll(jsonrpcx.NewNotification("late", nil))
}

func TestSSEBroadcaster_RemovesFailingClients(t *testing.T) {
	b := NewSSEBroadcaster(logger.NewNop())
	defer b.Close()

	b.AddClient(&SSEClient{ID: "broken", Done: make(chan struct{}), LastSeen: time.Now()})
	b.BroadcastToAll(jsonrpcx.NewNotification("view.updated", nil))

	assert.Eventually(t, func() bool { return b.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

// slowWriter blocks the first broadcast frame until released and records
// any write that starts after the handler has returned
type slowWriter struct {
	header   http.Header
	frames   atomic.Int32
	writing  chan struct{}
	release  chan struct{}
	returned atomic.Bool
	late     atomic.Bool
}

func newSlowWriter() *slowWriter {
	return &slowWriter{
		header:  make(http.Header),
		writing: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (w *slowWriter) Header() http.Header { return w.header }

func (w *slowWriter) WriteHeader(int) {}

func (w *slowWriter) Flush() {
	if w.returned.Load() {
		w.late.Store(true)
	}
}

func (w *slowWriter) Write(p []byte) (int, error) {
	if w.returned.Load() {
		w.late.Store(true)
	}
	// frame 1 is the connected message, frame 2 the first broadcast
	if w.frames.Add(1) == 2 {
		close(w.writing)
		<-w.release
	}
	return len(p), nil
}

func TestSSEBroadcaster_HandlerWaitsForInFlightWrite(t *testing.T) {
	b := NewSSEBroadcaster(logger.NewNop())
	defer b.Close()

	w := newSlowWriter()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil).WithContext(ctx)

	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		b.HandleSSE(w, req)
		w.returned.Store(true)
	}()

	require.Eventually(t, func() bool { return b.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	b.BroadcastToAll(jsonrpcx.NewNotification("view.updated", nil))

	select {
	case <-w.writing:
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached the writer")
	}

	cancel()
	select {
	case <-handlerDone:
		t.Fatal("handler returned while a broadcast was still writing")
	case <-time.After(50 * time.Millisecond):
	}

	close(w.release)
	select {
	case <-handlerDone:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after the write finished")
	}

	// later broadcasts must not reach the writer
	b.BroadcastToAll(jsonrpcx.NewNotification("view.updated", nil))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, w.late.Load(), "writer used after the handler returned")
	assert.Equal(t, 0, b.GetClientCount())
}
