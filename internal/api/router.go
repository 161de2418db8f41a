// Package api exposes the render service over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MrWong99/emotivox/internal/health"
	"github.com/MrWong99/emotivox/internal/history"
	"github.com/MrWong99/emotivox/internal/observe"
	"github.com/MrWong99/emotivox/internal/render"
)

// Batch limits.
const (
	MaxBatchSize        = 32
	BatchConcurrency    = 8
	maxRequestBodyBytes = 1 << 20
)

// HistoryReader lists stored renders. *history.Store satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Get(ctx context.Context, id uuid.UUID) (history.Entry, error)
}

// Config holds everything the router serves.
type Config struct {
	Orchestrator *render.Orchestrator

	// History is optional; without it /api/renders answers 404.
	History HistoryReader

	Health *health.Handler

	// Metrics records HTTP request durations. Optional.
	Metrics *observe.Metrics

	// MetricsHandler is mounted at MetricsPath when non-nil.
	MetricsHandler http.Handler
	MetricsPath    string

	// PublicPath is the URL prefix rendered files are served under, with
	// leading and trailing slash.
	PublicPath string

	MaxWords      int
	DefaultFormat string

	Logger *slog.Logger
}

// Router serves the HTTP API.
type Router struct {
	cfg    Config
	logger *slog.Logger
}

// NewRouter returns a router for cfg.
func NewRouter(cfg Config) *Router {
	if cfg.PublicPath == "" {
		cfg.PublicPath = "/audio/"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 400
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{cfg: cfg, logger: logger}
}

// Handler builds the chi mux.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if rt.cfg.Metrics != nil {
		r.Use(observe.Middleware(rt.cfg.Metrics))
	}
	r.Use(chimiddleware.Recoverer)

	if rt.cfg.Health != nil {
		rt.cfg.Health.Register(r)
	}
	if rt.cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, rt.cfg.MetricsPath, rt.cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/languages", rt.languages)
		r.Get("/emotions", rt.emotions)
		r.Get("/voice-types", rt.voiceTypes)
		r.Get("/effects", rt.effects)
		r.Get("/prosody-levels", rt.prosodyLevels)

		r.Post("/tts", rt.tts)
		r.Post("/tts/batch", rt.ttsBatch)
		r.Post("/manipulate-audio", rt.manipulate)

		r.Get("/renders", rt.listRenders)
		r.Get("/renders/{id}", rt.getRender)
	})

	r.Get(strings.TrimSuffix(rt.cfg.PublicPath, "/")+"/{file}", rt.serveAudio)
	return r
}

func (rt *Router) publicURL(filePath string) string {
	if filePath == "" {
		return ""
	}
	i := strings.LastIndexAny(filePath, `/\`)
	return rt.cfg.PublicPath + filePath[i+1:]
}
