// Package main wires together the collector service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/api"
	"github.com/parkmj/kbland-collector/internal/browser"
	"github.com/parkmj/kbland-collector/internal/config"
	"github.com/parkmj/kbland-collector/internal/kb"
	"github.com/parkmj/kbland-collector/internal/logging"
	"github.com/parkmj/kbland-collector/internal/metrics"
	"github.com/parkmj/kbland-collector/internal/publisher"
	memoryPublisher "github.com/parkmj/kbland-collector/internal/publisher/memory"
	pubsubPublisher "github.com/parkmj/kbland-collector/internal/publisher/pubsub"
	"github.com/parkmj/kbland-collector/internal/queue"
	memoryQueue "github.com/parkmj/kbland-collector/internal/queue/memory"
	pubsubQueue "github.com/parkmj/kbland-collector/internal/queue/pubsub"
	"github.com/parkmj/kbland-collector/internal/storage"
	"github.com/parkmj/kbland-collector/internal/storage/gcs"
	"github.com/parkmj/kbland-collector/internal/storage/local"
	memoryStorage "github.com/parkmj/kbland-collector/internal/storage/memory"
	"github.com/parkmj/kbland-collector/internal/storage/postgres"
	"github.com/parkmj/kbland-collector/internal/store"
	"github.com/parkmj/kbland-collector/internal/worker"
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
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("service init failed", zap.Error(err))
	}
	defer deps.close()

	browserMgr := browser.NewManager(browser.Config{
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
		ResponseTimeout:   time.Duration(cfg.Browser.RespTimeoutSeconds) * time.Second,
		MinHumanDelay:     time.Duration(cfg.Browser.MinHumanDelayMs) * time.Millisecond,
		MaxHumanDelay:     time.Duration(cfg.Browser.MaxHumanDelayMs) * time.Millisecond,
	}, logging.ForComponent(logger, "browser"))
	defer browserMgr.Shutdown()

	kbCfg := kb.Config{
		FallbackThreshold: cfg.Collector.FallbackThreshold,
		HTTPTimeout:       cfg.Collector.HTTPTimeout(),
	}
	kbLogger := logging.ForComponent(logger, "kb")

	workerCfg := worker.Config{
		ContentType:       cfg.Storage.ContentType,
		BlobPrefix:        cfg.Storage.Prefix,
		Topic:             cfg.PubSub.TopicName,
		MaxRetries:        cfg.Collector.MaxRetries,
		BackoffInitial:    cfg.Collector.InitialBackoff(),
		RequestsPerMinute: cfg.Collector.RequestsPerMinute,
	}

	// Each worker goroutine gets its own connector set: escalation state and
	// request pacing are per-instance, so sharing one set across workers
	// would multiply the effective request rate.
	var wg sync.WaitGroup
	for i := 0; i < cfg.Collector.Concurrency; i++ {
		price := kb.NewPriceConnector(deps.catalog, browserMgr, kbCfg, kbLogger)
		transaction := kb.NewTransactionConnector(deps.catalog, browserMgr, kbCfg, kbLogger)
		listing := kb.NewListingConnector(deps.catalog, browserMgr, kbCfg, kbLogger)
		defer price.Close()
		defer transaction.Close()
		defer listing.Close()

		w := worker.New(
			deps.queue,
			deps.runs,
			deps.records,
			deps.blobs,
			deps.pub,
			worker.Connectors{
				Price:       price,
				Transaction: transaction,
				Listing:     listing,
			},
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	apiServer := api.NewServer(deps.catalog, deps.records, deps.runs, deps.jobs, deps.queue, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	deps.queue.Close()
	wg.Wait()
	logger.Info("shutdown complete")
}

// dependencies bundles the backend implementations selected by config.
type dependencies struct {
	catalog store.Catalog
	records store.Records
	runs    store.Runs
	jobs    store.Jobs
	blobs   storage.BlobStore
	queue   queue.Queue
	pub     publisher.Publisher

	closers []func()
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDependencies(ctx context.Context, cfg config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)
		if deps.catalog, err = postgres.NewCatalogStore(pool); err != nil {
			deps.close()
			return nil, err
		}
		if deps.records, err = postgres.NewRecordStore(pool); err != nil {
			deps.close()
			return nil, err
		}
		if deps.runs, err = postgres.NewRunStore(pool); err != nil {
			deps.close()
			return nil, err
		}
		if deps.jobs, err = postgres.NewJobStore(pool); err != nil {
			deps.close()
			return nil, err
		}
	} else {
		logger.Warn("db.dsn empty, using in-memory stores")
		st := memoryStorage.NewStore()
		deps.catalog, deps.records, deps.runs, deps.jobs = st, st, st, st
	}

	var err error
	switch cfg.Storage.Provider {
	case "gcs":
		deps.blobs, err = gcs.New(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		deps.blobs, err = local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	case "memory":
		deps.blobs = memoryStorage.NewBlobStore()
	default:
		deps.blobs = storage.NoopStore{}
	}
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	if cfg.Queue.Provider == "pubsub" {
		q, err := pubsubQueue.New(ctx, pubsubQueue.Config{
			ProjectID:    cfg.PubSub.ProjectID,
			TopicID:      cfg.Queue.TopicName,
			Subscription: cfg.Queue.Subscription,
		}, logging.ForComponent(logger, "queue"))
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("init pubsub queue: %w", err)
		}
		deps.queue = q
	} else {
		deps.queue = memoryQueue.NewQueue(cfg.Collector.QueueDepth)
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		pub, err := pubsubPublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		deps.closers = append(deps.closers, func() { _ = pub.Close() })
		deps.pub = pub
	} else {
		deps.pub = memoryPublisher.New()
	}

	return deps, nil
}
