package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/infra"
	"studio/internal/news"
)

// The worker keeps the shared Redis trend cache warm so API replicas can
// run without their own scheduler.

const redisPingTimeout = 5 * time.Second

type trendWorker struct {
	ctx       context.Context
	logger    infra.Logger
	service   *news.Service
	scheduler *news.Scheduler
}

func main() {
	once := flag.Bool("once", false, "refresh every known edition once and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("worker: REDIS_URL is required, a local cache would not be shared")
	}
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	cache, err := news.NewRedisCache(pingCtx, cfg.RedisURL)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer cache.Close()

	service := news.NewService(news.ServiceOptions{
		Source: news.NewFetcher(news.FetcherOptions{BaseURL: cfg.NewsBaseURL, Logger: logger}),
		Cache:  cache,
		TTL:    cfg.TrendsCacheTTL,
		Logger: logger,
	})

	if *once {
		if failed := service.RefreshAll(ctx); failed > 0 {
			logger.Error().Int("failed", failed).Msg("worker: refresh incomplete")
			os.Exit(1)
		}
		logger.Info().Int("editions", len(service.Editions(ctx))).Msg("worker: refreshed")
		return
	}

	scheduler, err := news.NewScheduler(service, cfg.TrendsRefreshSchedule, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid refresh schedule")
	}

	w := &trendWorker{ctx: ctx, logger: logger, service: service, scheduler: scheduler}
	if err := w.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run warms the cache immediately, then follows the schedule until the
// context ends.
func (w *trendWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	if failed := w.service.RefreshAll(w.ctx); failed > 0 {
		w.logger.Warn().Int("failed", failed).Msg("worker: initial refresh incomplete")
	}
	w.scheduler.Start()
	defer w.scheduler.Stop()

	<-w.ctx.Done()
	return w.ctx.Err()
}
