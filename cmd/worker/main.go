// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/jonwraymond/apicache/cache"
	"github.com/jonwraymond/apicache/internal/config"
	"github.com/jonwraymond/apicache/internal/http/routes"
	"github.com/jonwraymond/apicache/internal/jobs"
	"github.com/jonwraymond/apicache/observe"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "apicache-worker:", err)
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

	obs, err := observe.NewObserver(ctx, cfg.Observe("apicache-worker", version, prometheus.NewRegistry()))
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}()
	log := obs.Logger()

	rdb, err := cache.NewRedisClient(cfg.Redis())
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	store := cache.NewRedisStore(rdb, cache.WithKeyPrefix(cfg.Store.KeyPrefix))

	var tagOpts []cache.TagOption
	if cfg.Store.ClearSets {
		tagOpts = append(tagOpts, cache.WithClearSets())
	}
	tags := cache.NewTagIndex(store, tagOpts...)

	redisOpt, err := jobs.RedisOpt(cfg.Store.URL, cfg.Store.Token)
	if err != nil {
		return err
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			jobs.QueueInvalidate: 10,
			"default":            1,
		},
	})
	mux := asynq.NewServeMux()
	(&jobs.InvalidateHandler{Tags: tags, Logger: log}).Register(mux)

	pruner := &jobs.Pruner{
		Tags:     tags,
		TagNames: routes.DefaultFamilies(cfg.Upstream.Timeout).AllTags(),
		Logger:   log,
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := pruner.Schedule(c, cfg.Worker.PruneSchedule); err != nil {
		return fmt.Errorf("schedule prune %q: %w", cfg.Worker.PruneSchedule, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	log.Info(ctx, "worker running",
		observe.Field{Key: "concurrency", Value: cfg.Worker.Concurrency},
		observe.Field{Key: "prune_schedule", Value: cfg.Worker.PruneSchedule},
	)

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")
	srv.Shutdown()
	return nil
}
