package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

const defaultGA4Endpoint = "https://www.google-analytics.com/mp/collect"

// GA4Client sends batches to the Google Analytics 4 measurement protocol. It
// owns destination keys with the "G-" prefix. The protocol carries a single
// client_id per request, so a batch is grouped by client and sent as one
// request per originating client.
type GA4Client struct {
	endpoint  string
	apiSecret string
	client    *http.Client
}

// NewGA4Client creates an uninitialized GA4 client.
func NewGA4Client() *GA4Client {
	return &GA4Client{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Init configures the client. "api-secret" is required; "endpoint" defaults
// to the public measurement protocol URL.
func (c *GA4Client) Init(cfg map[string]string) error {
	secret, ok := cfg["api-secret"]
	if !ok || secret == "" {
		return fmt.Errorf("ga4 client requires 'api-secret' configuration")
	}
	c.apiSecret = secret

	c.endpoint = cfg["endpoint"]
	if c.endpoint == "" {
		c.endpoint = defaultGA4Endpoint
	}
	return nil
}

// Name returns the client name.
func (c *GA4Client) Name() string { return "ga4" }

// Supports owns GA4 measurement IDs.
func (c *GA4Client) Supports(key string) bool {
	return strings.HasPrefix(key, "G-")
}

type ga4Payload struct {
	ClientID string     `json:"client_id"`
	Events   []ga4Event `json:"events"`
}

type ga4Event struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// Send groups the batch by client ID and posts one payload per client.
func (c *GA4Client) Send(ctx context.Context, key string, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Preserve first-seen order of clients so delivery stays approximately
	// insertion ordered.
	order := make([]string, 0, len(events))
	grouped := make(map[string][]telemetry.Event)
	for _, evt := range events {
		if _, seen := grouped[evt.ClientID]; !seen {
			order = append(order, evt.ClientID)
		}
		grouped[evt.ClientID] = append(grouped[evt.ClientID], evt)
	}

	for _, clientID := range order {
		payload := ga4Payload{ClientID: clientID}
		for _, evt := range grouped[clientID] {
			params := map[string]string{
				"action":        "download",
				"category":      "bitstream",
				"document_path": evt.DocumentPath,
			}
			if evt.DocumentName != "" {
				params["document_title"] = evt.DocumentName
			}
			if evt.Referrer != "" {
				params["document_referrer"] = evt.Referrer
			}
			if evt.UserAgent != "" {
				params["user_agent"] = evt.UserAgent
			}
			payload.Events = append(payload.Events, ga4Event{Name: "file_download", Params: params})
		}
		if err := c.post(ctx, key, payload); err != nil {
			return err
		}
	}
	return nil
}

func (c *GA4Client) post(ctx context.Context, key string, payload ga4Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	u := fmt.Sprintf("%s?measurement_id=%s&api_secret=%s",
		c.endpoint, url.QueryEscape(key), url.QueryEscape(c.apiSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send payload: %w", err)
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

// Close releases nothing; the HTTP client needs no cleanup.
func (c *GA4Client) Close() error { return nil }
