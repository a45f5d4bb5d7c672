package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/euryopa/search-restaurant-agent/internal/adapters/agent"
	server "github.com/euryopa/search-restaurant-agent/internal/adapters/http_server"
	"github.com/euryopa/search-restaurant-agent/internal/adapters/nominatim"
	"github.com/euryopa/search-restaurant-agent/internal/adapters/observability"
	redisad "github.com/euryopa/search-restaurant-agent/internal/adapters/redis"
	"github.com/euryopa/search-restaurant-agent/internal/app"
	"github.com/euryopa/search-restaurant-agent/internal/domain"
	"github.com/euryopa/search-restaurant-agent/internal/shared"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// deps
	agentClient, err := agent.New(cfg.AgentURL, cfg.AgentTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize agent client")
	}

	var cache domain.Cache
	if cfg.CacheEnabled() {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rc.Ping(pctx); err != nil {
			// the proxy works without a cache; don't refuse to start
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed, caching disabled")
		} else {
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache enabled")
			cache = rc
		}
		cancel()
	}

	recs := app.NewRecommendationService(agentClient, cache, cfg.CacheTTL)
	geo := app.NewGeocodeService(nominatim.New(cfg.NominatimBase, cfg.NominatimRPS), cache, cfg.CacheTTL, cfg.GeocodeLang)
	health := app.NewHealthService(cfg.AppEnv, cfg.AppVersion, cfg.DeployPlatform, cfg.DeployRegion)

	// http
	srv := server.New(server.Options{
		Timeout:          cfg.ServerTimeout(),
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		TrustedProxyHops: cfg.TrustedProxyHops,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Recommend: recs, Geocode: geo, Health: health})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("agent", cfg.AgentURL).
			Dur("agent_timeout", agentClient.Timeout()).
			Str("env", cfg.AppEnv).
			Msg("API listening")
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
