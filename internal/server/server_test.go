package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sofatutor/usage-telemetry/internal/buffer"
	"github.com/sofatutor/usage-telemetry/internal/dispatcher"
	"github.com/sofatutor/usage-telemetry/internal/metrics"
	"github.com/sofatutor/usage-telemetry/internal/recorder"
	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

func newTestServer(t *testing.T, key string) (*Server, *buffer.Ring) {
	t.Helper()
	ring := buffer.NewRing(8)
	norm := telemetry.NewNormalizer(nil, zaptest.NewLogger(t))
	rec := recorder.New(norm, ring, key, zaptest.NewLogger(t))
	svc := dispatcher.New(dispatcher.Config{DestinationKey: key}, ring, nil, nil)
	reg := metrics.New(ring, svc)

	cfg := Config{
		ListenAddr:    ":0",
		SessionSecret: "test-secret",
		EnableMetrics: true,
		MetricsPath:   "/metrics",
	}
	return New(cfg, rec, ring, reg, zaptest.NewLogger(t)), ring
}

func TestHandleUsage_BuffersBitstreamView(t *testing.T) {
	srv, ring := newTestServer(t, "G-TEST")

	body := `{
		"action": "view",
		"object_kind": "bitstream",
		"object_id": "bs-1",
		"path": "/bitstreams/bs-1/download",
		"session_id": "sess-1",
		"client_ip": "203.0.113.7"
	}`
	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "remote-webapp")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, 1, ring.Len())

	evt := ring.DrainUpTo(1)[0]
	assert.Equal(t, "sess-1", evt.ClientID)
	assert.Equal(t, "203.0.113.7", evt.ClientAddress)
	assert.Equal(t, "remote-webapp", evt.UserAgent)
}

func TestHandleUsage_RejectsMalformedBody(t *testing.T) {
	srv, ring := newTestServer(t, "G-TEST")

	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(`{"action": "view"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, ring.Len())
}

func TestHandleUsage_IgnoresNonBitstream(t *testing.T) {
	srv, ring := newTestServer(t, "G-TEST")

	body := `{"action": "view", "object_kind": "item", "object_id": "i-1", "path": "/items/i-1"}`
	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	// Accepted but filtered out: the side channel never reports failure.
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 0, ring.Len())
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "G-TEST")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "usage_telemetry_events_pushed_total")
}
