package dispatcher

import (
	"time"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// MaxEventAge is how old a drained event may be and still be delivered.
// Analytics value decays; events past this age would skew time-bucketed
// reporting more than dropping them would.
const MaxEventAge = 4 * time.Hour

// filterFresh returns the events whose capture time is within maxAge of now,
// preserving order. Stale events are permanently discarded: they were already
// removed from the buffer by the drain and are never re-inserted.
func filterFresh(events []telemetry.Event, maxAge time.Duration, now time.Time) []telemetry.Event {
	fresh := events[:0]
	cutoff := now.UnixMilli() - maxAge.Milliseconds()
	for _, evt := range events {
		if evt.CreatedAtMillis > cutoff {
			fresh = append(fresh, evt)
		}
	}
	return fresh
}
