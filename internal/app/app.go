// Package app wires all emotivox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithSynthesizer,
// WithEncoder, WithHistory, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/emotivox/internal/api"
	"github.com/MrWong99/emotivox/internal/cache"
	"github.com/MrWong99/emotivox/internal/config"
	"github.com/MrWong99/emotivox/internal/health"
	"github.com/MrWong99/emotivox/internal/history"
	"github.com/MrWong99/emotivox/internal/observe"
	"github.com/MrWong99/emotivox/internal/pipeline"
	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/internal/render"
	"github.com/MrWong99/emotivox/internal/resilience"
	"github.com/MrWong99/emotivox/internal/resolve"
	"github.com/MrWong99/emotivox/pkg/audio/encode"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

// HistoryStore records renders and lists them back. *history.Store
// satisfies it.
type HistoryStore interface {
	render.Recorder
	api.HistoryReader
}

// App owns all subsystem lifetimes.
type App struct {
	cfg    *config.Config
	reg    *config.Registry
	logger *slog.Logger
	level  *slog.LevelVar

	metrics        *observe.Metrics
	metricsHandler http.Handler

	synth   tts.Synthesizer
	encoder encode.MP3Encoder
	history HistoryStore
	checks  []health.Checker

	orch    *render.Orchestrator
	handler http.Handler
	server  *http.Server

	// closers run in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSynthesizer uses s instead of building providers from config.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithEncoder uses enc instead of the built-in MP3 encoder.
func WithEncoder(enc encode.MP3Encoder) Option {
	return func(a *App) { a.encoder = enc }
}

// WithHistory uses h instead of connecting to history.postgres_dsn.
func WithHistory(h HistoryStore) Option {
	return func(a *App) { a.history = h }
}

// WithMetrics uses m instead of initialising the OTel SDK.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLevelVar lets [App.ApplyConfig] change the log level of a handler
// created by the caller.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// New creates an App by wiring all subsystems together. reg supplies the
// synthesis provider constructors; pass nil when WithSynthesizer is used.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, reg: reg}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	if err := a.initTelemetry(ctx); err != nil {
		return nil, a.fail(fmt.Errorf("app: init telemetry: %w", err))
	}
	if err := a.initSynthesizer(); err != nil {
		return nil, a.fail(fmt.Errorf("app: init synthesizer: %w", err))
	}
	presets, err := a.loadPresets()
	if err != nil {
		return nil, a.fail(fmt.Errorf("app: load presets: %w", err))
	}
	if err := a.initHistory(ctx); err != nil {
		return nil, a.fail(fmt.Errorf("app: init history: %w", err))
	}
	if err := os.MkdirAll(cfg.Server.OutputDir, 0o755); err != nil {
		return nil, a.fail(fmt.Errorf("app: create output dir: %w", err))
	}

	a.orch = render.New(
		resolve.New(presets, resolve.WithLogger(a.logger)),
		a.synth,
		a.newPipeline(),
		a.newExporter(),
		a.renderOptions()...,
	)

	a.checks = append([]health.Checker{health.OutputDir(cfg.Server.OutputDir)}, a.checks...)
	a.handler = api.NewRouter(api.Config{
		Orchestrator:   a.orch,
		History:        a.history,
		Health:         health.New(a.checks...),
		Metrics:        a.metrics,
		MetricsHandler: a.metricsHandler,
		MetricsPath:    cfg.Observability.MetricsPath,
		PublicPath:     cfg.Server.PublicPath,
		MaxWords:       cfg.Render.MaxWords,
		DefaultFormat:  cfg.Render.DefaultFormat,
		Logger:         a.logger,
	}).Handler()

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// fail closes whatever was opened before err and returns err.
func (a *App) fail(err error) error {
	a.runClosers()
	return err
}

func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	providers, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: a.cfg.Observability.ServiceName,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return providers.Shutdown(ctx)
	})
	m, err := observe.NewMetrics(providers.MeterProvider)
	if err != nil {
		return err
	}
	a.metrics = m
	a.metricsHandler = providers.MetricsHandler()
	return nil
}

func (a *App) initSynthesizer() error {
	if a.synth == nil {
		if a.reg == nil {
			return errors.New("no provider registry")
		}
		fb, err := BuildSynthesizer(a.cfg.Providers.TTS, a.reg, resilience.FallbackConfig{
			Logger: a.logger,
			Breaker: resilience.BreakerConfig{
				OnTransition: func(name string, to resilience.State) {
					a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
				},
			},
		})
		if err != nil {
			return err
		}
		a.synth = fb
	}
	if av, ok := a.synth.(health.Availability); ok {
		a.checks = append(a.checks, health.Available("synthesizer", av))
	}

	cc := a.cfg.Cache
	if cc.Addr == "" {
		return nil
	}
	store := cache.NewStore(cache.Config{
		Addr:     cc.Addr,
		Password: cc.Password,
		DB:       cc.DB,
		TTL:      cc.TTL,
		Prefix:   cc.Prefix,
	})
	a.closers = append(a.closers, store.Close)
	a.checks = append(a.checks, health.Ping("cache", store.Ping))
	a.synth = cache.NewSynthesizer(a.synth, store,
		cache.WithLogger(a.logger),
		cache.WithMetrics(a.metrics),
	)
	a.logger.Info("baseline cache enabled", "addr", cc.Addr, "ttl", cc.TTL)
	return nil
}

func (a *App) loadPresets() (*preset.Registry, error) {
	if f := a.cfg.Presets.File; f != "" {
		a.logger.Info("loading presets", "file", f)
		return preset.Load(f)
	}
	return preset.Builtin()
}

func (a *App) initHistory(ctx context.Context) error {
	if a.history == nil && a.cfg.History.PostgresDSN != "" {
		store, err := history.Open(ctx, a.cfg.History.PostgresDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		a.history = store
		a.logger.Info("render history enabled")
	}
	if p, ok := a.history.(interface{ Ping(context.Context) error }); ok {
		a.checks = append(a.checks, health.Ping("history", p.Ping))
	}
	return nil
}

func (a *App) newPipeline() *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithFailureHook(func(ctx context.Context, stage pipeline.StageName, _ error) {
			a.metrics.RecordStageFailure(ctx, string(stage))
		}),
	}
	if seed := a.cfg.Render.Seed; seed != 0 {
		opts = append(opts, pipeline.WithSeed(seed))
	}
	return pipeline.New(opts...)
}

func (a *App) newExporter() *render.Exporter {
	enc := a.encoder
	if enc == nil {
		if p := a.cfg.Render.EncoderPath; p != "" {
			enc = encode.New(p)
			a.logger.Info("mp3 encoding through external binary", "path", p)
		}
	}
	return render.NewExporter(a.cfg.Server.OutputDir,
		render.WithEncoder(enc),
		render.WithBitrate(a.cfg.Render.MP3BitrateKbps),
	)
}

func (a *App) renderOptions() []render.Option {
	opts := []render.Option{
		render.WithLogger(a.logger),
		render.WithMetrics(a.metrics),
		render.WithSynthesisTimeout(a.cfg.Render.SynthesisTimeout),
	}
	if a.history != nil {
		opts = append(opts, render.WithRecorder(a.history))
	}
	return opts
}

// Orchestrator returns the render orchestrator.
func (a *App) Orchestrator() *render.Orchestrator { return a.orch }

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP on the configured address until ctx is cancelled, then
// returns ctx.Err(). A listener error is returned immediately.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(ln)
	}()
	a.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ApplyConfig applies the hot-reloadable part of d and logs the rest.
func (a *App) ApplyConfig(d config.ConfigDiff) {
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		a.logger.Warn("config changed; restart to apply", "sections", d.RestartRequired)
	}
}

// Shutdown stops the HTTP server and closes all subsystems in reverse-init
// order. In-flight requests get until ctx expires to finish.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("app: http shutdown: %w", err)
		}
		a.runClosers()
		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) runClosers() {
	for i, closer := range slices.Backward(a.closers) {
		if err := closer(); err != nil {
			a.logger.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
}
