// Package recorder receives raw usage records from the request-handling
// layer and feeds normalized events into the bounded buffer. Ingestion is
// fire-and-forget: no failure here may surface into the caller's transaction.
package recorder

import (
	"context"

	"go.uber.org/zap"

	"github.com/sofatutor/usage-telemetry/internal/buffer"
	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// Recorder filters, normalizes and buffers usage records.
type Recorder struct {
	normalizer     *telemetry.Normalizer
	ring           *buffer.Ring
	destinationKey string
	logger         *zap.Logger
}

// New creates a Recorder. destinationKey empty disables ingestion entirely
// (the feature-off state). A nil logger defaults to a no-op logger.
func New(normalizer *telemetry.Normalizer, ring *buffer.Ring, destinationKey string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		normalizer:     normalizer,
		ring:           ring,
		destinationKey: destinationKey,
		logger:         logger,
	}
}

// Enabled reports whether a destination key is configured.
func (r *Recorder) Enabled() bool {
	return r.destinationKey != ""
}

// ReceiveEvent ingests one usage record. Only "view" actions on bitstreams
// are recorded; everything else is ignored. Normalization failures are logged
// with the record's diagnostic context and swallowed.
func (r *Recorder) ReceiveEvent(ctx context.Context, rec telemetry.UsageRecord) {
	if !r.Enabled() {
		return
	}

	r.logger.Debug("usage event received",
		zap.String("action", rec.Action),
		zap.String("object_kind", string(rec.Object.Kind)))

	if rec.Action != telemetry.ActionView || rec.Object.Kind != telemetry.KindBitstream {
		return
	}

	evt, err := r.normalizer.Normalize(ctx, rec)
	if err != nil {
		r.logIngestionFailure(rec, err)
		return
	}
	r.ring.Push(evt)
}

// logIngestionFailure records everything known about the failed record. The
// caller's own transaction proceeds regardless.
func (r *Recorder) logIngestionFailure(rec telemetry.UsageRecord, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("action", rec.Action),
		zap.String("object_kind", string(rec.Object.Kind)),
		zap.String("object_id", rec.Object.ID),
		zap.String("path", rec.Path),
		zap.String("current_actor", rec.Actor),
	}
	for k, v := range rec.ExtraLog {
		fields = append(fields, zap.String("extra_"+k, v))
	}
	if len(rec.RecentEvents) > 0 {
		fields = append(fields, zap.Strings("recent_events", rec.RecentEvents))
	}
	r.logger.Error("failed to add usage event to buffer", fields...)
}
