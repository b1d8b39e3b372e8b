package telemetry

import "net/http"

// UsageRecord is the raw "actor performed action on object" record captured
// by the request-handling layer. It carries everything normalization needs
// plus the diagnostic context logged when ingestion fails.
type UsageRecord struct {
	// Action performed on the object, e.g. "view".
	Action string

	// Object the action targeted.
	Object ObjectRef

	// Header holds the originating request's headers.
	Header http.Header

	// SessionID is the HTTP session identifier, if the request had a session.
	SessionID string

	// ClientAddress is the resolved client IP for the request.
	ClientAddress string

	// Path is the request path including the query string.
	Path string

	// Diagnostic context, logged verbatim when ingestion fails.
	Actor        string
	ExtraLog     map[string]string
	RecentEvents []string
}

// header returns the named header value or "" when headers are absent.
func (r *UsageRecord) header(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}
