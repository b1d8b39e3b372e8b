// Package server assembles the HTTP surface of the telemetry daemon: the
// usage ingestion endpoint for out-of-process producers, health, and the
// Prometheus metrics endpoint.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sofatutor/usage-telemetry/internal/buffer"
	"github.com/sofatutor/usage-telemetry/internal/metrics"
	"github.com/sofatutor/usage-telemetry/internal/recorder"
	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// Config holds the HTTP server configuration.
type Config struct {
	ListenAddr    string
	SessionSecret string
	EnableMetrics bool
	MetricsPath   string
}

// Server is the daemon's HTTP front.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	httpSrv  *http.Server
	recorder *recorder.Recorder
	ring     *buffer.Ring
	logger   *zap.Logger
}

// New builds the server and its routes.
func New(cfg Config, rec *recorder.Recorder, ring *buffer.Ring, reg *metrics.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(sessions.Sessions("usage", cookie.NewStore([]byte(cfg.SessionSecret))))

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		recorder: rec,
		ring:     ring,
		logger:   logger,
	}

	engine.GET("/healthz", s.handleHealth)
	engine.POST("/usage", s.handleUsage)
	if cfg.EnableMetrics && reg != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(reg.Handler()))
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.ListenAddr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"enabled":  s.recorder.Enabled(),
		"buffered": s.ring.Len(),
	})
}

// usageRequest is the wire format accepted by the ingestion endpoint.
// Producers that cannot push in-process (separate webapps, edge caches) POST
// their usage records here; request headers travel along.
type usageRequest struct {
	Action     string `json:"action" binding:"required"`
	ObjectKind string `json:"object_kind" binding:"required"`
	ObjectID   string `json:"object_id" binding:"required"`
	ObjectName string `json:"object_name"`
	Path       string `json:"path" binding:"required"`
	SessionID  string `json:"session_id"`
	ClientIP   string `json:"client_ip"`
	Actor      string `json:"actor"`
}

func (s *Server) handleUsage(c *gin.Context) {
	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientIP := req.ClientIP
	if clientIP == "" {
		clientIP = c.ClientIP()
	}

	s.recorder.ReceiveEvent(c.Request.Context(), telemetry.UsageRecord{
		Action: req.Action,
		Object: telemetry.ObjectRef{
			Kind: telemetry.ObjectKind(req.ObjectKind),
			ID:   req.ObjectID,
			Name: req.ObjectName,
		},
		Header:        c.Request.Header,
		SessionID:     req.SessionID,
		ClientAddress: clientIP,
		Path:          req.Path,
		Actor:         req.Actor,
	})

	// Ingestion is fire-and-forget; acceptance says nothing about delivery.
	c.Status(http.StatusAccepted)
}
