package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"studio/internal/comfyui"
	"studio/internal/domain"
	"studio/internal/history"
	"studio/internal/infra"
	"studio/internal/news"
	"studio/internal/posttype"
	"studio/internal/providers/prompt"
)

const defaultMaxUploadSize = 20 * 1000 * 1000

type Options struct {
	PostTypes     *posttype.Store
	Prompts       prompt.Generator
	Comfy         *comfyui.Client
	News          *news.Service
	History       *history.Recorder
	HistoryStore  string
	Metrics       *infra.Metrics
	Logger        infra.Logger
	MaxUploadSize int64
}

// App holds what the route handlers share.
type App struct {
	Catalog       *posttype.Store
	Prompts       prompt.Generator
	Comfy         *comfyui.Client
	News          *news.Service
	History       *history.Recorder
	HistoryStore  string
	Metrics       *infra.Metrics
	Logger        infra.Logger
	MaxUploadSize int64
}

func NewApp(opts Options) *App {
	a := &App{
		Catalog:       opts.PostTypes,
		Prompts:       opts.Prompts,
		Comfy:         opts.Comfy,
		News:          opts.News,
		History:       opts.History,
		HistoryStore:  opts.HistoryStore,
		Metrics:       opts.Metrics,
		Logger:        opts.Logger,
		MaxUploadSize: opts.MaxUploadSize,
	}
	if a.Prompts == nil {
		a.Prompts = prompt.NewStaticGenerator()
	}
	if a.History == nil {
		a.History = history.NewRecorder(nil, nil, opts.Logger)
		a.HistoryStore = "memory"
	}
	if a.MaxUploadSize <= 0 {
		a.MaxUploadSize = defaultMaxUploadSize
	}
	return a
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) fail(w http.ResponseWriter, code int, detail string) {
	a.json(w, code, domain.ErrorResponse{Detail: detail})
}

// failErr picks a status for err and uses its text as the detail.
func (a *App) failErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	evt := a.Logger.Warn()
	if code >= http.StatusInternalServerError {
		evt = a.Logger.Error()
	}
	evt.Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request failed")
	a.fail(w, code, err.Error())
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrUnknownPostType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, comfyui.ErrNotReady):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// observe counts a finished generation run.
func (a *App) observe(kind domain.JobKind, started time.Time, err error) {
	if a.Metrics == nil {
		return
	}
	status := string(domain.JobStatusSucceeded)
	if err != nil {
		status = string(domain.JobStatusFailed)
	}
	a.Metrics.Generations.WithLabelValues(string(kind), status).Inc()
	a.Metrics.GenerationDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
}
