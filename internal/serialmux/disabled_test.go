package serialmux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ SerialMuxInterface = (*DisabledSerialMux)(nil)
var _ SerialMuxInterface = (*SerialMux[SerialPorter])(nil)

func TestDisabledSerialMux_SubscribeAndClose(t *testing.T) {
	d := NewDisabledSerialMux()
	_, a := d.Subscribe()
	idB, b := d.Subscribe()
	assert.Equal(t, 2, d.Stats().Subscribers)

	d.Unsubscribe(idB)
	_, ok := <-b
	assert.False(t, ok)

	require.NoError(t, d.Close())
	_, ok = <-a
	assert.False(t, ok)
	require.NoError(t, d.Close())

	// subscribing after close yields a closed channel
	_, c := d.Subscribe()
	_, ok = <-c
	assert.False(t, ok)
}

func TestDisabledSerialMux_MonitorBlocksUntilCancel(t *testing.T) {
	d := NewDisabledSerialMux()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.DeadlineExceeded)
}

func TestDisabledSerialMux_AdminRoute(t *testing.T) {
	d := NewDisabledSerialMux()
	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/serial-disabled", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "serial disabled", w.Body.String())
}
