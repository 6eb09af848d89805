package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/ecotrack/internal/api"
	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/logging"
	"example.com/ecotrack/internal/outbox"
	"example.com/ecotrack/internal/persistence/storage"
	httptransport "example.com/ecotrack/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "carbon-api"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer backend.Close()

	g, gctx := errgroup.WithContext(ctx)

	// Only the postgres store records outbox events for publication.
	if backend.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher := outbox.NewDispatcher(backend.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithDispatcherLogger(logger.With().Str("component", "outbox").Logger()))
		g.Go(func() error {
			return dispatcher.Run(gctx)
		})
	}

	service := domain.NewService(backend.Entries, backend.Profiles,
		domain.WithLogger(logger),
		domain.WithDefaultGoal(cfg.DefaultWeeklyGoalKg),
		domain.WithLeaderboardLimits(cfg.LeaderboardLimit, cfg.LeaderboardMaxLimit),
	)

	handler := api.NewHandler(service, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, authMiddleware.Wrap(api.RequestLogger(logger)(api.CORS(cfg.CORSOrigin)(mux))))

	g.Go(func() error {
		logger.Info().Str("address", cfg.HTTPAddress).Str("store", backend.Driver).Msg("carbon api listening")
		return httptransport.Serve(gctx, server, serverCfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("carbon api stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("carbon api stopped")
}
