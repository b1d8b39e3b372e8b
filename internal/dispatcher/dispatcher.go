// Package dispatcher implements the periodic drain-filter-send cycle that
// forwards buffered usage events to the analytics client owning the
// configured destination key. Delivery is strictly best-effort: a failed
// batch is logged and lost, never retried or re-inserted.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sofatutor/usage-telemetry/internal/buffer"
	"github.com/sofatutor/usage-telemetry/internal/delivery"
)

// MaxBatchSize matches the remote analytics API's per-request event cap.
const MaxBatchSize = 20

// DefaultInterval is how often the daemon loop runs a cycle.
const DefaultInterval = time.Minute

// Config holds dispatcher configuration.
type Config struct {
	// DestinationKey identifies the analytics account that owns the events.
	// Empty means the feature is disabled: cycles are silent no-ops.
	DestinationKey string

	// BatchSize caps how many events one cycle drains. Defaults to
	// MaxBatchSize; values above it are clamped.
	BatchSize int

	// MaxEventAge is the staleness threshold. Defaults to MaxEventAge.
	MaxEventAge time.Duration

	// Interval is the daemon loop's cycle period. Defaults to DefaultInterval.
	Interval time.Duration
}

// Service drains the bounded buffer and delivers batches. RunCycle is a pure
// single-cycle operation, so any timer abstraction can drive it; the service
// assumes at most one concurrent invocation.
type Service struct {
	cfg     Config
	ring    *buffer.Ring
	clients []delivery.Client
	logger  *zap.Logger
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu              sync.Mutex
	eventsDrained   uint64
	eventsDropped   uint64 // stale, discarded at filter time
	eventsSent      uint64
	batchesSent     uint64
	sendFailures    uint64
	resolveFailures uint64
}

// New creates a dispatcher service over the given buffer and clients. A nil
// logger defaults to a no-op logger.
func New(cfg Config, ring *buffer.Ring, clients []delivery.Client, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.MaxEventAge <= 0 {
		cfg.MaxEventAge = MaxEventAge
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		ring:    ring,
		clients: clients,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// RunCycle performs one drain-filter-resolve-send cycle. Every failure mode
// is local: logged, counted, and absorbed. Drained events that are not
// delivered (stale, or part of a failed batch) are permanently lost.
func (s *Service) RunCycle(ctx context.Context) {
	if s.cfg.DestinationKey == "" {
		// Feature disabled; the normal quiet state, not an error.
		return
	}

	batch := s.ring.DrainUpTo(s.cfg.BatchSize)
	if len(batch) == 0 {
		return
	}
	drained := len(batch)

	batch = filterFresh(batch, s.cfg.MaxEventAge, s.now())
	stale := drained - len(batch)

	s.mu.Lock()
	s.eventsDrained += uint64(drained)
	s.eventsDropped += uint64(stale)
	s.mu.Unlock()

	if stale > 0 {
		s.logger.Debug("discarded stale events", zap.Int("count", stale))
	}
	if len(batch) == 0 {
		return
	}

	client, err := delivery.Resolve(s.cfg.DestinationKey, s.clients)
	if err != nil {
		s.mu.Lock()
		s.resolveFailures++
		s.mu.Unlock()
		s.logger.Error("no client owns the configured destination key",
			zap.String("destination_key", s.cfg.DestinationKey),
			zap.Error(err))
		return
	}

	if err := client.Send(ctx, s.cfg.DestinationKey, batch); err != nil {
		s.mu.Lock()
		s.sendFailures++
		s.mu.Unlock()
		s.logger.Error("failed to send events batch",
			zap.String("client", client.Name()),
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	s.eventsSent += uint64(len(batch))
	s.batchesSent++
	s.mu.Unlock()
	s.logger.Debug("sent events batch",
		zap.String("client", client.Name()),
		zap.Int("batch_size", len(batch)))
}

// Run drives RunCycle on a ticker until the context is cancelled or Stop is
// called. Cycles never overlap: the loop waits for one cycle's send to finish
// before handling the next tick.
func (s *Service) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("usage event dispatcher started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Bool("enabled", s.cfg.DestinationKey != ""))

	for {
		select {
		case <-ticker.C:
			s.RunCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("usage event dispatcher stopped", zap.String("reason", "context cancelled"))
			return
		case <-s.stopCh:
			s.logger.Info("usage event dispatcher stopped", zap.String("reason", "stop requested"))
			return
		}
	}
}

// Stop terminates the Run loop and waits for an in-flight cycle to finish.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Stats reports cycle counters: events drained from the buffer, stale events
// discarded, events delivered, and failed send/resolve attempts.
func (s *Service) Stats() (drained, dropped, sent, sendFailures, resolveFailures uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventsDrained, s.eventsDropped, s.eventsSent, s.sendFailures, s.resolveFailures
}

// BatchesSent reports how many batches were delivered successfully.
func (s *Service) BatchesSent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchesSent
}
