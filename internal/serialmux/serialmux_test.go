package serialmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/diodescout/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// localHostRequest creates an httptest request that appears to come from
// localhost, which tsweb requires for /debug/ access.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b, ok := <-ch:
		require.True(t, ok, "channel closed")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return nil
	}
}

func TestSerialMux_FanOutToAllSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("*\n0.1 0.2\n#\n"))

	assert.Equal(t, "*\n0.1 0.2\n#\n", string(receive(t, a)))
	assert.Equal(t, "*\n0.1 0.2\n#\n", string(receive(t, b)))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	assert.Equal(t, uint64(len("*\n0.1 0.2\n#\n")), mux.Stats().BytesRead)
}

func TestSerialMux_MonitorReturnsNilOnEOF(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("0.5 1.0\n"))
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	err := mux.Monitor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.5 1.0\n", string(receive(t, ch)))
}

func TestSerialMux_MonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("device unplugged")
	mux := NewSerialMux(port)

	err := mux.Monitor(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

// pushChunks feeds each chunk as its own Read by waiting for the byte
// counter to move before adding the next one.
func pushChunks(t *testing.T, port *TestableSerialPort, mux *SerialMux[*TestableSerialPort], chunks []string) {
	t.Helper()
	var total uint64
	for _, c := range chunks {
		total += uint64(len(c))
		want := total
		port.AddReadData([]byte(c))
		require.Eventually(t, func() bool { return mux.Stats().BytesRead == want }, 2*time.Second, time.Millisecond)
	}
}

func TestSerialMux_SlowSubscriberGetsEveryChunkInOrder(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	_, slow := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	// Nobody reads while far more chunks than any buffer arrive.
	var chunks []string
	for i := 0; i < 4*subscriberBuffer; i++ {
		chunks = append(chunks, fmt.Sprintf("%d.", i), "5 7\n")
	}
	pushChunks(t, port, mux, chunks)

	st := mux.Stats()
	assert.Zero(t, st.DroppedChunks)
	assert.Greater(t, st.Backlog, subscriberBuffer)

	for i, want := range chunks {
		require.Equal(t, want, string(receive(t, slow)), "chunk %d", i)
	}
	require.Eventually(t, func() bool { return mux.Stats().Backlog == 0 }, 2*time.Second, time.Millisecond)
}

func TestSerialMux_FullTailDropsAndCounts(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	_, tail := mux.subscribeLossy()
	_, reliable := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	chunks := make([]string, subscriberBuffer+3)
	for i := range chunks {
		chunks[i] = "x"
	}
	pushChunks(t, port, mux, chunks)

	assert.Equal(t, uint64(3), mux.Stats().DroppedChunks)
	assert.Len(t, tail, subscriberBuffer)
	for range chunks {
		receive(t, reliable)
	}
}

func TestSerialMux_SubscribeAfterCloseIsClosed(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	require.NoError(t, mux.Close())

	_, ch := mux.Subscribe()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, mux.Stats().Subscribers)
}

func TestSerialMux_UnsubscribeClosesChannel(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()
	assert.Equal(t, 1, mux.Stats().Subscribers)

	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, mux.Stats().Subscribers)

	// unknown IDs are ignored
	mux.Unsubscribe("nope")
}

func TestSerialMux_CloseClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, port.Closed)
}

func TestSerialMux_CloseWhileMonitoring(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	require.NoError(t, mux.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
}

func TestAttachAdminRoutes_NoCommandRoute(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodPost, "/debug/send-command-api", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachAdminRoutes_SerialStats(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/serial-stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dropped_chunks 0")
	assert.Contains(t, w.Body.String(), "backlog 0")
}

func TestAttachAdminRoutes_Tail(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return mux.Stats().Subscribers == 1 }, 2*time.Second, time.Millisecond)
	port.AddReadData([]byte("0.1 0.2\r\n"))

	buf := make([]byte, 0, 256)
	tmp := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(string(buf), "data: 0.1 0.2\n\n") && time.Now().Before(deadline) {
		n, err := resp.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	assert.Contains(t, string(buf), "data: 0.1 0.2\n\n")
}

func TestSSEEvent(t *testing.T) {
	assert.Equal(t, "data: a\ndata: b\n\n", string(sseEvent([]byte("a\r\nb\r\n"))))
	assert.Equal(t, "data: partial\n\n", string(sseEvent([]byte("partial"))))
}
