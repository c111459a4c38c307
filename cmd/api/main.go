// cmd/api/main.go
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

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/apicache/auth"
	"github.com/jonwraymond/apicache/cache"
	"github.com/jonwraymond/apicache/health"
	"github.com/jonwraymond/apicache/internal/config"
	"github.com/jonwraymond/apicache/internal/http/routes"
	"github.com/jonwraymond/apicache/internal/jobs"
	"github.com/jonwraymond/apicache/observe"
	"github.com/jonwraymond/apicache/upstream"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "apicache:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger
	logger := observe.NewZerolog(cfg.LogLevel, os.Stdout)

	// Telemetry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs, err := observe.NewObserver(ctx, cfg.Observe("apicache-api", version, reg))
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()
	lookups, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("lookup middleware: %w", err)
	}

	// Store
	rdb, err := cache.NewRedisClient(cfg.Redis())
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	store := cache.NewRedisStore(rdb, cache.WithKeyPrefix(cfg.Store.KeyPrefix))

	engineOpts := []cache.EngineOption{cache.WithStaleTTL(cfg.Store.StaleTTL)}
	if cfg.Store.Coalesce {
		engineOpts = append(engineOpts, cache.WithSingleflight())
	}
	var tagOpts []cache.TagOption
	if cfg.Store.ClearSets {
		tagOpts = append(tagOpts, cache.WithClearSets())
	}

	// Health
	resolver := cfg.Resolver()
	agg := health.NewAggregator()
	agg.Register("store", health.NewPingChecker("store", store.Ping, 250*time.Millisecond))
	agg.Register("upstream", health.NewUpstreamChecker("upstream", resolver.Base(), &http.Client{Timeout: 2 * time.Second}))

	// Admin
	var authn auth.Authenticator
	var enq jobs.Enqueuer
	if cfg.AdminEnabled() {
		authn = adminAuthenticator(cfg)

		redisOpt, err := jobs.RedisOpt(cfg.Store.URL, cfg.Store.Token)
		if err != nil {
			return err
		}
		client := asynq.NewClient(redisOpt)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close asynq client")
			}
		}()
		enq = client
	}

	var metrics http.Handler
	if cfg.Telemetry.MetricsExporter == "prometheus" {
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	fams := routes.DefaultFamilies(cfg.Upstream.Timeout)
	s := routes.New(routes.ServerOptions{
		Engine:   cache.NewEngine(store, engineOpts...),
		Tags:     cache.NewTagIndex(store, tagOpts...),
		Resolver: resolver,
		Upstream: upstream.NewClient(upstream.WithUserAgent("apicache/" + version)),
		Families: &fams,
		Lookups:  lookups,
		Logger:   logger,
		Health:   agg,
		Metrics:  metrics,
		Auth:     authn,
		Enqueuer: enq,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("upstream", resolver.Base()).
			Bool("admin", authn != nil).
			Msg("starting api")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func adminAuthenticator(cfg *config.Config) auth.Authenticator {
	var auths []auth.Authenticator
	if len(cfg.Admin.APIKeys) > 0 {
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, auth.NewAdminKeyStore(cfg.Admin.APIKeys)))
	}
	if cfg.Admin.JWTSecret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(cfg.Admin.JWTSecret),
			Issuer:   cfg.Admin.JWTIssuer,
			Audience: cfg.Admin.JWTAudience,
			Leeway:   30 * time.Second,
		}))
	}
	return auth.NewCompositeAuthenticator(auths...)
}
