package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

func TestUniversalClient_Supports(t *testing.T) {
	c := NewUniversalClient()
	assert.True(t, c.Supports("UA-12345-1"))
	assert.False(t, c.Supports("G-12345"))
	assert.False(t, c.Supports(""))
}

func TestUniversalClient_SendEncodesHitPerEvent(t *testing.T) {
	var body string
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewUniversalClient()
	require.NoError(t, c.Init(map[string]string{"endpoint": srv.URL}))
	c.now = func() time.Time { return time.UnixMilli(10_000) }

	events := []telemetry.Event{
		{
			ClientID:        "cid-1",
			ClientAddress:   "203.0.113.9",
			UserAgent:       "curl/8.0",
			Referrer:        "https://example.org/search",
			DocumentPath:    "/bitstreams/abc/download?seq=1",
			DocumentName:    "Thesis Title",
			CreatedAtMillis: 4_000,
		},
		{ClientID: "cid-2", DocumentPath: "/bitstreams/def/download", CreatedAtMillis: 9_000},
	}

	require.NoError(t, c.Send(context.Background(), "UA-55-7", events))
	require.Equal(t, "application/x-www-form-urlencoded", contentType)

	lines := strings.Split(body, "\n")
	require.Len(t, lines, 2)

	first, err := url.ParseQuery(lines[0])
	require.NoError(t, err)
	assert.Equal(t, "1", first.Get("v"))
	assert.Equal(t, "UA-55-7", first.Get("tid"))
	assert.Equal(t, "cid-1", first.Get("cid"))
	assert.Equal(t, "event", first.Get("t"))
	assert.Equal(t, "203.0.113.9", first.Get("uip"))
	assert.Equal(t, "curl/8.0", first.Get("ua"))
	assert.Equal(t, "https://example.org/search", first.Get("dr"))
	assert.Equal(t, "/bitstreams/abc/download?seq=1", first.Get("dp"))
	assert.Equal(t, "Thesis Title", first.Get("dt"))
	assert.Equal(t, "6000", first.Get("qt"))
	assert.Equal(t, "bitstream", first.Get("ec"))
	assert.Equal(t, "download", first.Get("ea"))

	second, err := url.ParseQuery(lines[1])
	require.NoError(t, err)
	assert.Equal(t, "cid-2", second.Get("cid"))
	assert.Empty(t, second.Get("uip"))
	assert.Empty(t, second.Get("dt"))
	assert.Equal(t, "1000", second.Get("qt"))
}

func TestUniversalClient_SendEmptyBatchIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewUniversalClient()
	require.NoError(t, c.Init(map[string]string{"endpoint": srv.URL}))
	require.NoError(t, c.Send(context.Background(), "UA-1-1", nil))
	assert.False(t, called)
}

func TestUniversalClient_SendErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewUniversalClient()
	require.NoError(t, c.Init(map[string]string{"endpoint": srv.URL}))
	err := c.Send(context.Background(), "UA-1-1", []telemetry.Event{{ClientID: "x"}})
	require.Error(t, err)
	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 502, derr.StatusCode)
}

func TestUniversalClient_InitDefaultEndpoint(t *testing.T) {
	c := NewUniversalClient()
	require.NoError(t, c.Init(nil))
	assert.Equal(t, defaultUniversalEndpoint, c.endpoint)
}
