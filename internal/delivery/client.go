// Package delivery implements the pluggable clients that transmit batches of
// normalized usage events to remote analytics endpoints, plus the resolver
// that selects the client owning a destination key.
package delivery

import (
	"context"
	"fmt"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// Client delivers event batches to one analytics backend. Each client
// declares which destination keys it supports; the dispatcher resolves the
// unique owner of the configured key per send attempt.
type Client interface {
	// Init initializes the client with its configuration options.
	Init(cfg map[string]string) error

	// Name returns the client name for identification.
	Name() string

	// Supports reports whether this client owns the given destination key.
	Supports(key string) bool

	// Send transmits the batch to the destination identified by key. The
	// events are ordered oldest-first and the batch never exceeds the remote
	// API's per-call limit. Timeouts and cancellation are the client's own
	// responsibility.
	Send(ctx context.Context, key string, events []telemetry.Event) error

	// Close releases any resources held by the client.
	Close() error
}

// ConfigurationError reports a destination key that no registered client
// owns. It aborts a single send attempt, never the process.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no analytics client found for destination key %q", e.Key)
}

// DeliveryError reports a rejected batch: the endpoint answered, but with a
// non-success status. The batch is lost either way, the status just tells
// operators whether to look at credentials or at the payload.
type DeliveryError struct {
	Client     string
	StatusCode int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s endpoint returned status %d", e.Client, e.StatusCode)
}

// Resolve returns the first registered client whose ownership predicate
// matches key.
func Resolve(key string, clients []Client) (Client, error) {
	for _, c := range clients {
		if c.Supports(key) {
			return c, nil
		}
	}
	return nil, &ConfigurationError{Key: key}
}
