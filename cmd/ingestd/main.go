// Package main wires together the disclosure ingestion service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dartwatch/disclosure-ingest/internal/config"
	"github.com/dartwatch/disclosure-ingest/internal/dart"
	"github.com/dartwatch/disclosure-ingest/internal/faillog"
	"github.com/dartwatch/disclosure-ingest/internal/health"
	"github.com/dartwatch/disclosure-ingest/internal/logging"
	"github.com/dartwatch/disclosure-ingest/internal/metrics"
	"github.com/dartwatch/disclosure-ingest/internal/objectstore"
	"github.com/dartwatch/disclosure-ingest/internal/poller"
	"github.com/dartwatch/disclosure-ingest/internal/queue"
	"github.com/dartwatch/disclosure-ingest/internal/state"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	// Provider keys are 40 hex chars; anything else almost certainly gets
	// rejected with a key-class status, but the loop handles that itself.
	if !cfg.Dart.MockMode && len(cfg.Dart.APIKey) != 40 {
		logger.Warn("dart.api_key length is unusual", zap.Int("length", len(cfg.Dart.APIKey)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Error("object store init failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("object store close failed", zap.Error(closeErr))
		}
	}()

	tasks, err := newTaskQueue(ctx, cfg, logger)
	if err != nil {
		logger.Error("task queue init failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := tasks.Close(); closeErr != nil {
			logger.Warn("task queue close failed", zap.Error(closeErr))
		}
	}()

	source := newFilingSource(cfg, logger)

	healthServer := health.NewServer(logger.Named("health"))
	orch := poller.New(
		poller.Config{
			TargetDate: cfg.Polling.TargetDate,
			Interval:   cfg.PollInterval(),
			MaxFail:    cfg.Polling.MaxFail,
		},
		source,
		store,
		tasks,
		state.New(),
		faillog.NewRecorder(cfg.Polling.FailedLogDir, logger.Named("faillog")),
		healthServer,
		logger.Named("poller"),
	)

	var srv *http.Server
	if cfg.Health.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           healthServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("health server started", zap.Int("port", cfg.Health.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", zap.Error(err))
				stop()
			}
		}()
	}

	healthServer.SetReady(true)

	done := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")
	healthServer.SetReady(false)

	// The poller drains its in-flight item before returning.
	<-done

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("health server shutdown error", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

func newFilingSource(cfg config.Config, logger *zap.Logger) poller.FilingSource {
	if cfg.Dart.MockMode {
		return dart.NewMockClient(logger.Named("dart"))
	}
	return dart.NewClient(dart.Config{
		BaseURL:       cfg.Dart.BaseURL,
		APIKey:        cfg.Dart.APIKey,
		Timeout:       cfg.RequestTimeout(),
		MaxRetries:    cfg.HTTP.MaxRetries,
		BackoffFactor: cfg.HTTP.BackoffFactor,
	}, logger.Named("dart"))
}

func newObjectStore(ctx context.Context, cfg config.Config) (objectstore.Provider, error) {
	switch cfg.Storage.Provider {
	case "minio":
		return objectstore.NewMinioProvider(ctx, objectstore.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
	case "gcs":
		return objectstore.NewGCSProvider(ctx, cfg.Storage.GCSBucket, zap.L().Named("gcs"))
	case "memory":
		return objectstore.NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func newTaskQueue(ctx context.Context, cfg config.Config, logger *zap.Logger) (queue.Provider, error) {
	switch cfg.Queue.Provider {
	case "rabbitmq":
		return queue.NewCeleryProvider(queue.CeleryConfig{
			BrokerURL: cfg.Queue.BrokerURL,
			TaskName:  cfg.Queue.TaskName,
			QueueName: cfg.Queue.QueueName,
		})
	case "pubsub":
		return queue.NewPubSubProvider(ctx, cfg.Queue.PubSubProjectID, cfg.Queue.PubSubTopic, logger.Named("pubsub"))
	case "noop":
		return &queue.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown queue provider: %s", cfg.Queue.Provider)
	}
}
