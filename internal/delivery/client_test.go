package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// stubClient is a minimal Client for resolver tests.
type stubClient struct {
	name   string
	prefix string
	sent   [][]telemetry.Event
}

func (s *stubClient) Init(cfg map[string]string) error { return nil }
func (s *stubClient) Name() string                     { return s.name }
func (s *stubClient) Supports(key string) bool {
	return len(key) >= len(s.prefix) && key[:len(s.prefix)] == s.prefix
}
func (s *stubClient) Send(ctx context.Context, key string, events []telemetry.Event) error {
	s.sent = append(s.sent, events)
	return nil
}
func (s *stubClient) Close() error { return nil }

func TestResolve_PicksOwningClient(t *testing.T) {
	ua := &stubClient{name: "ua", prefix: "UA-"}
	ga4 := &stubClient{name: "ga4", prefix: "G-"}

	got, err := Resolve("G-12345", []Client{ua, ga4})
	require.NoError(t, err)
	assert.Equal(t, "ga4", got.Name())

	got, err = Resolve("UA-99-1", []Client{ua, ga4})
	require.NoError(t, err)
	assert.Equal(t, "ua", got.Name())
}

func TestResolve_PrefersFirstMatch(t *testing.T) {
	a := &stubClient{name: "a", prefix: "G-"}
	b := &stubClient{name: "b", prefix: "G-"}

	got, err := Resolve("G-1", []Client{a, b})
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name())
}

func TestResolve_NoOwnerIsConfigurationError(t *testing.T) {
	ua := &stubClient{name: "ua", prefix: "UA-"}

	_, err := Resolve("G-12345", []Client{ua})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "G-12345", cfgErr.Key)
	assert.Contains(t, err.Error(), "G-12345")
}

func TestResolve_EmptyClientList(t *testing.T) {
	_, err := Resolve("G-1", nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
