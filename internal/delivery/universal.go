package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

const defaultUniversalEndpoint = "https://www.google-analytics.com/batch"

// UniversalClient sends batches to the legacy Universal Analytics measurement
// protocol. It owns destination keys with the "UA-" prefix. Each event
// becomes one hit line in a newline-delimited form-encoded batch body.
type UniversalClient struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewUniversalClient creates an uninitialized Universal Analytics client.
func NewUniversalClient() *UniversalClient {
	return &UniversalClient{
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

// Init configures the client. The only option is "endpoint", defaulting to
// the public batch collection URL.
func (c *UniversalClient) Init(cfg map[string]string) error {
	c.endpoint = cfg["endpoint"]
	if c.endpoint == "" {
		c.endpoint = defaultUniversalEndpoint
	}
	return nil
}

// Name returns the client name.
func (c *UniversalClient) Name() string { return "universal-analytics" }

// Supports owns Universal Analytics tracking IDs.
func (c *UniversalClient) Supports(key string) bool {
	return strings.HasPrefix(key, "UA-")
}

// Send posts one hit line per event to the batch endpoint.
func (c *UniversalClient) Send(ctx context.Context, key string, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}

	lines := make([]string, len(events))
	for i, evt := range events {
		lines[i] = c.hitLine(key, evt)
	}
	body := strings.Join(lines, "\n")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Client: c.Name(), StatusCode: resp.StatusCode}
	}
	return nil
}

// hitLine encodes one event as a measurement-protocol event hit. The qt
// parameter carries the queue time so the backend can re-bucket the hit to
// its capture time.
func (c *UniversalClient) hitLine(key string, evt telemetry.Event) string {
	v := url.Values{}
	v.Set("v", "1")
	v.Set("tid", key)
	v.Set("cid", evt.ClientID)
	v.Set("t", "event")
	if evt.ClientAddress != "" {
		v.Set("uip", evt.ClientAddress)
	}
	if evt.UserAgent != "" {
		v.Set("ua", evt.UserAgent)
	}
	if evt.Referrer != "" {
		v.Set("dr", evt.Referrer)
	}
	v.Set("dp", evt.DocumentPath)
	if evt.DocumentName != "" {
		v.Set("dt", evt.DocumentName)
	}
	queueTime := c.now().UnixMilli() - evt.CreatedAtMillis
	if queueTime < 0 {
		queueTime = 0
	}
	v.Set("qt", strconv.FormatInt(queueTime, 10))
	v.Set("ec", "bitstream")
	v.Set("ea", "download")
	v.Set("el", "item")
	return v.Encode()
}

// Close releases nothing; the HTTP client needs no cleanup.
func (c *UniversalClient) Close() error { return nil }
