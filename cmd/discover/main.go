// Package main hosts the discover CLI: a one-shot tool that seeds the
// complex catalog from the portal's map search and audits the endpoint
// registry against the portal's deployed frontend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/config"
	"github.com/parkmj/kbland-collector/internal/discovery"
	"github.com/parkmj/kbland-collector/internal/kb"
	"github.com/parkmj/kbland-collector/internal/logging"
	memoryStorage "github.com/parkmj/kbland-collector/internal/storage/memory"
	"github.com/parkmj/kbland-collector/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	region := flag.String("region", "", "Legal-district code to discover complexes for (e.g. 1168010300)")
	scan := flag.Bool("scan", false, "Scan the portal frontend for API endpoint candidates")
	flag.Parse()

	if *region == "" && !*scan {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -region and/or -scan")
		flag.Usage()
		os.Exit(2)
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	if *scan {
		report, err := discovery.ScanEndpoints(discovery.ScanConfig{}, logging.ForComponent(logger, "scan"))
		if err != nil {
			logger.Fatal("endpoint scan failed", zap.Error(err))
		}
		if err := out.Encode(report); err != nil {
			logger.Fatal("encode report failed", zap.Error(err))
		}
	}

	if *region != "" {
		registrar, cleanup, err := buildRegistrar(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("catalog init failed", zap.Error(err))
		}
		defer cleanup()

		apiClient := kb.NewAPIClient(kb.Config{HTTPTimeout: cfg.Collector.HTTPTimeout()}, logging.ForComponent(logger, "kb"))
		defer apiClient.Close()

		d := discovery.NewComplexDiscovery(apiClient, registrar, logging.ForComponent(logger, "discovery"))
		result, err := d.Discover(ctx, *region)
		if err != nil {
			logger.Fatal("discovery failed", zap.Error(err))
		}
		if err := out.Encode(result); err != nil {
			logger.Fatal("encode result failed", zap.Error(err))
		}
	}
}

// buildRegistrar returns the catalog backing discovery. Without a DSN the
// in-memory catalog is used, which only makes sense for dry runs.
func buildRegistrar(ctx context.Context, cfg config.Config, logger *zap.Logger) (discovery.Registrar, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn empty, discovered complexes will not be persisted")
		return memoryStorage.NewStore(), func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxOpenConns),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}
	catalog, err := postgres.NewCatalogStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return catalog, pool.Close, nil
}
