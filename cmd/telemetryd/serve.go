package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sofatutor/usage-telemetry/internal/buffer"
	"github.com/sofatutor/usage-telemetry/internal/config"
	"github.com/sofatutor/usage-telemetry/internal/delivery"
	"github.com/sofatutor/usage-telemetry/internal/dispatcher"
	"github.com/sofatutor/usage-telemetry/internal/logging"
	"github.com/sofatutor/usage-telemetry/internal/metrics"
	"github.com/sofatutor/usage-telemetry/internal/objectstore"
	"github.com/sofatutor/usage-telemetry/internal/recorder"
	"github.com/sofatutor/usage-telemetry/internal/server"
	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// Serve command flags
var (
	serveEnvFile      string
	serveListenAddr   string
	serveLogLevel     string
	serveLogFile      string
	serveKey          string
	serveDestinations string
	serveInterval     time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the telemetry daemon",
	Long:  `Start the ingestion server and the batch dispatcher.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveEnvFile, "env", ".env", "Path to .env file")
	serveCmd.Flags().StringVar(&serveListenAddr, "addr", "", "Address to listen on (overrides env var)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides env var)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to log file (overrides env var, default: stdout)")
	serveCmd.Flags().StringVar(&serveKey, "key", "", "Analytics destination key (overrides env var)")
	serveCmd.Flags().StringVar(&serveDestinations, "destinations", "", "Path to delivery clients YAML file (overrides env var)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "Dispatch interval (overrides env var)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load .env if present; flags and real env vars still win.
	if _, err := os.Stat(serveEnvFile); err == nil {
		if err := godotenv.Load(serveEnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading %s: %v\n", serveEnvFile, err)
		}
	}

	cfg := config.New()
	applyFlagOverrides(cfg)

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// The object store only enriches events with document titles. When it is
	// unavailable the pipeline still runs, events just carry empty names.
	var resolver telemetry.NameResolver
	store, err := objectstore.Open(objectstore.Config{
		Driver: objectstore.DriverType(cfg.ObjectStoreDriver),
		DSN:    cfg.ObjectStoreDSN,
	})
	if err != nil {
		logger.Warn("object store unavailable, document names disabled", zap.Error(err))
	} else {
		resolver = store
		defer func() { _ = store.Close() }()
	}

	clients, err := loadClients(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range clients {
			if cerr := c.Close(); cerr != nil {
				logger.Warn("failed to close delivery client", zap.String("client", c.Name()), zap.Error(cerr))
			}
		}
	}()

	ring := buffer.NewRing(cfg.BufferCapacity)
	norm := telemetry.NewNormalizer(resolver, logger)
	rec := recorder.New(norm, ring, cfg.DestinationKey, logger)

	svc := dispatcher.New(dispatcher.Config{
		DestinationKey: cfg.DestinationKey,
		Interval:       cfg.DispatchInterval,
	}, ring, clients, logger)

	var reg *metrics.Registry
	if cfg.EnableMetrics {
		reg = metrics.New(ring, svc)
	}

	srv := server.New(server.Config{
		ListenAddr:    cfg.ListenAddr,
		SessionSecret: cfg.SessionSecret,
		EnableMetrics: cfg.EnableMetrics,
		MetricsPath:   cfg.MetricsPath,
	}, rec, ring, reg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go svc.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	logger.Info("telemetry daemon started",
		zap.String("addr", cfg.ListenAddr),
		zap.Bool("analytics_enabled", rec.Enabled()),
		zap.Duration("dispatch_interval", cfg.DispatchInterval))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	svc.Stop()
	// One last cycle so events buffered since the previous tick are not lost.
	svc.RunCycle(shutdownCtx)

	return nil
}

// applyFlagOverrides lets command line flags take precedence over env config.
func applyFlagOverrides(cfg *config.Config) {
	if serveListenAddr != "" {
		cfg.ListenAddr = serveListenAddr
	}
	if serveLogLevel != "" {
		cfg.LogLevel = serveLogLevel
	}
	if serveLogFile != "" {
		cfg.LogFile = serveLogFile
	}
	if serveKey != "" {
		cfg.DestinationKey = serveKey
	}
	if serveDestinations != "" {
		cfg.DestinationsPath = serveDestinations
	}
	if serveInterval > 0 {
		cfg.DispatchInterval = serveInterval
	}
}

// loadClients builds the delivery clients from the destinations file. A
// missing file is fatal only when analytics is enabled, since the dispatcher
// would fail to resolve every batch.
func loadClients(cfg *config.Config, logger *zap.Logger) ([]delivery.Client, error) {
	dc, err := delivery.LoadDestinations(cfg.DestinationsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && cfg.DestinationKey == "" {
			logger.Info("no destinations file, running ingest-only", zap.String("path", cfg.DestinationsPath))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load destinations: %w", err)
	}

	clients, err := dc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build delivery clients: %w", err)
	}
	for _, c := range clients {
		logger.Info("delivery client configured", zap.String("client", c.Name()))
	}
	return clients, nil
}
