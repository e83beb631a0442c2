package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimerfeng/SkillStage/internal/breaker"
	"github.com/aimerfeng/SkillStage/internal/cache"
	"github.com/aimerfeng/SkillStage/internal/config"
	"github.com/aimerfeng/SkillStage/internal/database"
	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/aimerfeng/SkillStage/internal/profile"
	"github.com/aimerfeng/SkillStage/internal/ratelimit"
	"github.com/aimerfeng/SkillStage/internal/repository"
	"github.com/aimerfeng/SkillStage/internal/server"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Str("store", cfg.Store.Backend).
		Str("terminal_policy", cfg.Skill.TerminalPolicy).
		Msg("Starting SkillStage API server")

	monitoring.Init()

	ctx := context.Background()
	checks := map[string]server.HealthCheck{}

	var (
		repo      skill.Repository
		directory profile.Directory
	)
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		if cfg.Database.RunMigrations {
			if err := database.RunMigrations(cfg.Database.URL); err != nil {
				log.Fatal().Err(err).Msg("Failed to run database migrations")
			}
		}

		db, err := database.New(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		breakers := breaker.NewManager(nil, repository.IsExpectedError)
		repo = repository.NewPostgres(db.Pool, breakers, cfg.Store.MaxRetries)
		directory = profile.NewPostgres(db.Pool, breakers)
		checks["database"] = db.Health
	default:
		log.Warn().Msg("Using in-memory skill store, data is lost on restart")
		repo = repository.NewMemory()
		directory = profile.NewMemory()
	}

	rdb, err := cache.New(ctx, &cfg.Redis)
	if err != nil {
		// Redis only backs the profile cache and the rate limiter
		log.Warn().Err(err).Msg("Redis unavailable, continuing without cache and rate limiting")
	}
	if rdb.Available() {
		defer rdb.Close()
		checks["redis"] = rdb.Ping
	}

	srv := server.NewAPIServer(cfg, server.Dependencies{
		Skills:   skill.NewService(repo, &cfg.Skill),
		Profiles: profile.NewCached(directory, rdb, cfg.Profile.CacheTTL),
		Limiter:  ratelimit.New(rdb, &cfg.RateLimit),
		Checks:   checks,
	})

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("url", cfg.Server.URL).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
