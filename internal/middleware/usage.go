// Package middleware provides the gin handlers that turn bitstream download
// requests into usage records for the telemetry recorder.
package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sofatutor/usage-telemetry/internal/recorder"
	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// ObjectIDParam is the route parameter carrying the bitstream identifier.
const ObjectIDParam = "id"

// UsageTracking records a "view" usage event for every request passing
// through it. Mount it on bitstream download routes only. Recording happens
// after the handler chain, is fire-and-forget and never affects the response.
func UsageTracking(rec *recorder.Recorder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if !rec.Enabled() {
			return
		}
		// Failed downloads don't count as views.
		if c.Writer.Status() >= 400 {
			return
		}

		rec.ReceiveEvent(c.Request.Context(), BuildUsageRecord(c))
	}
}

// BuildUsageRecord assembles a usage record from the current request. The
// session ID is taken from the sessions middleware when installed; the
// request path keeps its query string, matching what analytics reports as
// the document path.
func BuildUsageRecord(c *gin.Context) telemetry.UsageRecord {
	path := c.Request.URL.Path
	if raw := c.Request.URL.RawQuery; raw != "" {
		path += "?" + raw
	}

	return telemetry.UsageRecord{
		Action: telemetry.ActionView,
		Object: telemetry.ObjectRef{
			Kind: telemetry.KindBitstream,
			ID:   c.Param(ObjectIDParam),
		},
		Header:        c.Request.Header,
		SessionID:     sessionID(c),
		ClientAddress: c.ClientIP(),
		Path:          path,
	}
}

// sessionID returns the cookie session ID, or "" when the sessions
// middleware is not installed on this route.
func sessionID(c *gin.Context) string {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	return sessions.Default(c).ID()
}
