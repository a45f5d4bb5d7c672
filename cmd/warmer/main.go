package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/euryopa/search-restaurant-agent/internal/adapters/agent"
	"github.com/euryopa/search-restaurant-agent/internal/adapters/observability"
	redisad "github.com/euryopa/search-restaurant-agent/internal/adapters/redis"
	"github.com/euryopa/search-restaurant-agent/internal/app"
	"github.com/euryopa/search-restaurant-agent/internal/shared"
)

func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel).With().
		Str("run_id", uuid.NewString()).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.CacheEnabled() {
		log.Fatal().Msg("REDIS_ADDR is required: without a cache there is nothing to warm")
	}
	if cfg.WarmFile == "" {
		log.Fatal().Msg("WARM_LOCATIONS_FILE is required")
	}

	f, err := os.Open(cfg.WarmFile)
	if err != nil {
		log.Fatal().Err(err).Msg("open locations file")
	}
	points, bad := app.ParseLocations(f)
	_ = f.Close()
	for _, err := range bad {
		log.Warn().Err(err).Str("file", cfg.WarmFile).Msg("skipping line")
	}

	date := cfg.WarmDate
	if date == "" {
		date = time.Now().Format(time.RFC3339)
	}

	log.Info().
		Str("agent", cfg.AgentURL).
		Int("workers", cfg.WarmWorkers).
		Int("locations", len(points)).
		Str("date", date).
		Msg("warmer starting")

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}

	client, err := agent.New(cfg.AgentURL, cfg.AgentTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize agent client")
	}
	recs := app.NewRecommendationService(client, cache, cfg.CacheTTL)

	rep, err := app.NewWarmService(recs, cfg.WarmWorkers).WarmAll(ctx, points, date)
	if err != nil {
		log.Error().Err(err).Msg("warming interrupted")
	}
	log.Info().Int("ok", rep.OK).Int("failed", rep.Failed).Int("skipped", len(bad)).Msg("warming completed")
}
