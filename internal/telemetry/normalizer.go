package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NameResolver looks up the display name of the container that owns an
// object. For a bitstream view the analytics event reports the owning item's
// name rather than the bitstream's own file name.
type NameResolver interface {
	ParentContainerName(ctx context.Context, objectID string) (string, error)
}

// Normalizer converts usage records into analytics events.
type Normalizer struct {
	resolver NameResolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewNormalizer creates a Normalizer. A nil logger defaults to a no-op
// logger, matching the rest of the pipeline's constructors.
func NewNormalizer(resolver NameResolver, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Normalize produces one analytics event from a usage record. A failed
// display-name lookup is logged and yields an empty DocumentName; it never
// fails the event. Any other extraction failure is returned to the caller.
func (n *Normalizer) Normalize(ctx context.Context, rec UsageRecord) (Event, error) {
	if rec.Action != ActionView {
		return Event{}, fmt.Errorf("unsupported usage action %q", rec.Action)
	}

	return Event{
		ClientID:        n.clientID(rec),
		ClientAddress:   rec.ClientAddress,
		UserAgent:       rec.header("User-Agent"),
		Referrer:        n.referrer(rec),
		DocumentPath:    rec.Path,
		DocumentName:    n.documentName(ctx, rec),
		CreatedAtMillis: n.now().UnixMilli(),
	}, nil
}

// clientID should uniquely identify the user or device. Prefer the
// correlation header, then the session ID, otherwise generate a UUID.
func (n *Normalizer) clientID(rec UsageRecord) string {
	if id := rec.header(HeaderCorrelationID); id != "" {
		return id
	}
	if rec.SessionID != "" {
		return rec.SessionID
	}
	return uuid.NewString()
}

// referrer prefers the X-Referrer override, falling back to the standard
// referrer header.
func (n *Normalizer) referrer(rec UsageRecord) string {
	if ref := rec.header(HeaderReferrer); ref != "" {
		return ref
	}
	return rec.header("Referer")
}

// documentName resolves the display name of the viewed object. For a
// bitstream view we really want the title of the owning item rather than the
// bitstream name. A lookup failure doesn't merit interrupting the caller's
// transaction, so it is logged and the name left empty.
func (n *Normalizer) documentName(ctx context.Context, rec UsageRecord) string {
	if rec.Object.Kind != KindBitstream {
		return rec.Object.Name
	}
	if n.resolver == nil {
		return ""
	}
	name, err := n.resolver.ParentContainerName(ctx, rec.Object.ID)
	if err != nil {
		n.logger.Error("cannot determine parent container name for bitstream",
			zap.String("bitstream_id", rec.Object.ID),
			zap.Error(err))
		return ""
	}
	return name
}
