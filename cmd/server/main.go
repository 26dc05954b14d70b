package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deployops/rollout/internal/api"
	"github.com/deployops/rollout/internal/approval"
	"github.com/deployops/rollout/internal/engine"
	"github.com/deployops/rollout/internal/executor"
	"github.com/deployops/rollout/internal/metrics"
	"github.com/deployops/rollout/internal/state"
	"github.com/deployops/rollout/pkg/config"
	"github.com/deployops/rollout/pkg/database"
)

func main() {
	// Initialize logger
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	setLogLevel(cfg.Server.LogLevel)

	log.Info().
		Str("app", "rollout").
		Str("port", cfg.Server.Port).
		Msg("Starting application")

	// Connect to the archive database when configured
	var repo *state.Repository
	if cfg.Database.Enabled {
		db, err := database.New(database.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.GetDatabaseDSN(),
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer func() {
			if err := database.Close(db); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}()

		if err := database.Migrate(db, state.Models()...); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}

		if err := database.HealthCheck(db); err != nil {
			log.Fatal().Err(err).Msg("Database health check failed")
		}

		log.Info().Msg("Database is healthy")
		repo = state.NewRepository(db)
	}

	// Wire the approval bus and metrics collector. Redis gives approvals
	// and metrics a shared backend; without it both are process-local.
	var (
		bus       approval.Bus
		collector engine.MetricsCollector
	)
	if cfg.Redis.Enabled {
		redisBus, err := approval.NewRedisBus(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis approval bus")
		}
		defer redisBus.Close()

		redisCollector, err := metrics.NewRedisCollector(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis metrics collector")
		}
		defer redisCollector.Close()

		bus = redisBus
		collector = redisCollector
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis approval bus and metrics collector connected")
	} else {
		bus = approval.NewLocalBus()
		collector = metrics.NewStaticCollector(nil)
	}

	// Build the orchestration engine
	registry := engine.NewRegistry()
	executor.RegisterBuiltins(registry, log.Logger)

	gates := engine.NewGateEvaluator(collector, bus, log.Logger)
	gates.SetDefaults(cfg.Engine.DefaultGateTimeout, cfg.Engine.DefaultPollInterval)

	var archiver engine.Archiver
	if repo != nil {
		archiver = repo
	}
	orch := engine.NewOrchestrator(registry, gates, archiver, log.Logger)
	orch.SetOperationTimeout(cfg.Engine.OperationTimeout)

	// Initialize HTTP server
	apiServer := api.NewServer(orch, bus, repo)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Msg("Starting HTTP server")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().
		Str("port", cfg.Server.Port).
		Strs("strategies", strategyNames(registry)).
		Msg("Application ready - HTTP server running")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down application...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Application stopped")
}

func strategyNames(registry *engine.Registry) []string {
	strategies := registry.Strategies()
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, string(s))
	}
	return names
}

// setLogLevel sets the global log level based on configuration
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
