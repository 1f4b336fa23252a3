package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

type Options struct {
	Logger          infra.Logger
	Metrics         *infra.Metrics
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	AssetsDir       string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.Metrics(opts.Metrics),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Edition(opts.CountryLookup),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/post-types", app.PostTypes)
	r.Get("/generate_prompt_form", app.PromptForm)

	r.Get("/trends", app.Trends)
	r.Get("/fetch_trends/{topic}", app.TopicTrends)
	r.Get("/update_trends", app.UpdateTrends)

	r.Get("/get_history", app.GetHistory)
	r.Get("/track_progress/{prompt_id}", app.TrackProgress)
	r.Get("/get_image", app.GetImage)
	r.Post("/generate_caption_and_hashtags", app.CaptionPrompt)

	r.Get("/generations", app.ListGenerations)
	r.Get("/generations/archive", app.ArchiveGenerations)

	// Routes that reach ComfyUI or a model share one budget per client.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/generate_prompt", app.GeneratePrompt)
		r.Post("/generate_image", app.GenerateImage)
		r.Post("/inpaint", app.Inpaint)
		r.Post("/queue_prompt", app.QueuePrompt)
		r.Post("/upload_image", app.UploadImage)
	})

	if opts.AssetsDir != "" {
		if info, err := os.Stat(opts.AssetsDir); err == nil && info.IsDir() {
			fs := http.StripPrefix("/assets/", http.FileServer(http.Dir(opts.AssetsDir)))
			r.Handle("/assets/*", fs)
		}
	}

	return r
}
