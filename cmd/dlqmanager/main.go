package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/logging"
	"example.com/ecotrack/internal/outbox"
	httptransport "example.com/ecotrack/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "carbon-dlqmanager"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)
	g, gctx := errgroup.WithContext(ctx)

	metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
	metricsSrv := httptransport.NewServer(metricsCfg, promhttp.Handler())
	g.Go(func() error {
		logger.Info().Str("address", cfg.MetricsAddress).Msg("dlq manager metrics listening")
		return httptransport.Serve(gctx, metricsSrv, metricsCfg.ShutdownTimeout)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.DLQPollInterval)
		defer ticker.Stop()

		logger.Info().Dur("interval", cfg.DLQPollInterval).Int("max_retries", cfg.DLQMaxRetries).Msg("dlq manager started")
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				processed, err := manager.RunOnce(gctx, cfg.DLQBatchSize)
				if err != nil {
					logger.Error().Err(err).Msg("dlq manager iteration failed")
				} else if processed > 0 {
					logger.Info().Int("processed", processed).Msg("dlq manager processed entries")
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("dlq manager stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("dlq manager stopped")
}
