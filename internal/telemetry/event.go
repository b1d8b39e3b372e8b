// Package telemetry defines the usage event model and the normalizer that
// turns raw usage records captured on the request path into immutable
// analytics events ready for buffering and batched delivery.
package telemetry

// Request headers consulted during normalization.
const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderReferrer      = "X-Referrer"
)

// ObjectKind identifies the kind of repository object a usage record targets.
type ObjectKind string

const (
	// KindBitstream is a downloadable binary attached to an item. Only views
	// of bitstreams are recorded for analytics.
	KindBitstream ObjectKind = "bitstream"
	// KindItem is the container object that owns bitstreams.
	KindItem ObjectKind = "item"
	// KindCollection groups items.
	KindCollection ObjectKind = "collection"
)

// ActionView is the only usage action forwarded to analytics.
const ActionView = "view"

// ObjectRef identifies the object a usage record acted on.
type ObjectRef struct {
	Kind ObjectKind
	ID   string
	Name string
}

// Event is a normalized analytics event. It is immutable once created: the
// buffer owns it until it is drained, after which it is either delivered or
// discarded.
type Event struct {
	// ClientID uniquely identifies the originating user or device. Weak
	// identity: correlation header, else session ID, else a random UUID.
	ClientID string `json:"client_id"`

	// Request provenance. May be empty.
	ClientAddress string `json:"client_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	Referrer      string `json:"referrer,omitempty"`

	// DocumentPath is the request path including the query string.
	DocumentPath string `json:"document_path"`

	// DocumentName is the display name of the viewed object. For a bitstream
	// this is the owning item's name; empty when the lookup failed.
	DocumentName string `json:"document_name,omitempty"`

	// CreatedAtMillis is the capture timestamp in Unix milliseconds, used
	// only for staleness filtering.
	CreatedAtMillis int64 `json:"created_at_millis"`
}
