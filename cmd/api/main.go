package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/comfyui"
	"studio/internal/history"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/middleware"
	"studio/internal/news"
	"studio/internal/posttype"
	"studio/internal/providers/prompt"
	"studio/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Generation history
	store, err := history.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open history store")
	}
	defer store.Close()
	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare image storage")
	}
	recorder := history.NewRecorder(store, files, logger)

	// Post type catalog, reloaded when the file changes
	postTypes, err := posttype.NewStore(cfg.TemplatesPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load post types")
	}
	if err := postTypes.Watch(ctx); err != nil {
		logger.Warn().Err(err).Msg("post type hot reload disabled")
	}

	generator, err := newGenerator(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build prompt generator")
	}

	comfy := comfyui.NewClient(comfyui.Options{
		BaseURL:    cfg.ComfyUIURL,
		HTTPClient: &http.Client{Timeout: cfg.ComfyUITimeout},
		Logger:     logger,
	})

	// Trends
	cache := newTrendCache(ctx, cfg, logger)
	newsService := news.NewService(news.ServiceOptions{
		Source: news.NewFetcher(news.FetcherOptions{BaseURL: cfg.NewsBaseURL, Logger: logger}),
		Cache:  cache,
		TTL:    cfg.TrendsCacheTTL,
		Logger: logger,
	})
	scheduler, err := news.NewScheduler(newsService, cfg.TrendsRefreshSchedule, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid trend refresh schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	var lookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		defer resolver.Close()
	}

	metrics := infra.NewMetrics("studio")
	app := handlers.NewApp(handlers.Options{
		PostTypes:     postTypes,
		Prompts:       generator,
		Comfy:         comfy,
		News:          newsService,
		History:       recorder,
		HistoryStore:  store.Name(),
		Metrics:       metrics,
		Logger:        logger,
		MaxUploadSize: cfg.MaxUploadSize,
	})
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		Metrics:         metrics,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
		AssetsDir:       cfg.AssetsDir,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().
			Str("history", store.Name()).
			Str("trend_cache", cache.Name()).
			Str("comfyui", cfg.ComfyUIURL).
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newGenerator(cfg *infra.Config, logger infra.Logger) (prompt.Generator, error) {
	if cfg.PromptProvider != "openai" {
		return prompt.NewStaticGenerator(), nil
	}
	inner, err := prompt.NewOpenAIGenerator(prompt.OpenAIOptions{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		OnWarning: func(reason, detail string) {
			logger.Warn().Str("reason", reason).Str("detail", detail).Msg("prompt model warning")
		},
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Str("model", inner.Model()).Msg("using openai prompt generator")
	return prompt.NewRetrying(inner, prompt.RetryOptions{
		Attempts: cfg.PromptRetries,
		Delay:    cfg.PromptRetryDelay,
		Logger:   logger,
		OnFallback: func(err error) {
			logger.Error().Err(err).Msg("prompt generation failed, serving fallback prompt")
		},
	}), nil
}

// newTrendCache prefers Redis and falls back to the in-process cache when
// it is not configured or cannot be reached.
func newTrendCache(ctx context.Context, cfg *infra.Config, logger infra.Logger) news.Cache {
	if cfg.RedisURL == "" {
		return news.NewLocalCache(0)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cache, err := news.NewRedisCache(pingCtx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using local trend cache")
		return news.NewLocalCache(0)
	}
	return cache
}
