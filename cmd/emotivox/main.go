// Command emotivox is the main entry point for the emotivox render server.
//
// Without -render it serves the HTTP API until SIGINT or SIGTERM. With
// -render it renders one text, prints the result as JSON and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/emotivox/internal/app"
	"github.com/MrWong99/emotivox/internal/config"
	"github.com/MrWong99/emotivox/internal/render"
	"github.com/MrWong99/emotivox/internal/resolve"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type renderFlags struct {
	text      string
	language  string
	emotion   string
	voiceType string
	prosody   string
	effect    string
	format    string
	enhance   bool
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("emotivox", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	var rf renderFlags
	fs.StringVar(&rf.text, "render", "", "render this text once, print the result as JSON and exit")
	fs.StringVar(&rf.language, "language", "en", "language code for -render")
	fs.StringVar(&rf.emotion, "emotion", "neutral", "emotion for -render")
	fs.StringVar(&rf.voiceType, "voice", "default", "voice type for -render")
	fs.StringVar(&rf.prosody, "prosody", "natural", "prosody level for -render")
	fs.StringVar(&rf.effect, "effect", "none", "audio effect for -render")
	fs.StringVar(&rf.format, "format", "", "output format for -render (mp3 or wav)")
	fs.BoolVar(&rf.enhance, "enhance", false, "enable emphasis, micro pauses, sentence analysis, layering and spectral enhancement for -render")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "emotivox: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(stderr, "emotivox: %v\n", err)
		}
		return 1
	}

	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.SlogLevel())
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)
	for _, name := range reg.TTSNames() {
		logger.Debug("registered provider", "kind", "tts", "name", name)
	}

	application, err := app.New(ctx, cfg, reg, app.WithLogger(logger), app.WithLevelVar(&level))
	if err != nil {
		logger.Error("failed to initialise application", "err", err)
		return 1
	}

	if rf.text != "" {
		if rf.format == "" {
			rf.format = cfg.Render.DefaultFormat
		}
		code := renderOnce(ctx, application, rf, stdout, logger)
		shutdown(application, logger)
		return code
	}

	logger.Info("emotivox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"output_dir", cfg.Server.OutputDir,
		"log_level", cfg.Server.LogLevel,
	)

	watcher, err := config.NewWatcher(*configPath, func(d config.ConfigDiff, _ *config.Config) {
		application.ApplyConfig(d)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("config hot reload disabled", "err", err)
	} else {
		go watcher.Run(ctx)
		go reloadOnHangup(ctx, watcher, logger)
	}

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run error", "err", err)
		shutdown(application, logger)
		return 1
	}

	logger.Info("shutdown signal received, stopping")
	if !shutdown(application, logger) {
		return 1
	}
	logger.Info("goodbye")
	return 0
}

func renderOnce(ctx context.Context, a *app.App, rf renderFlags, stdout io.Writer, logger *slog.Logger) int {
	res, err := a.Orchestrator().Render(ctx, render.Request{
		Text:         rf.text,
		Language:     rf.language,
		Emotion:      rf.emotion,
		VoiceType:    rf.voiceType,
		ProsodyLevel: rf.prosody,
		AudioEffect:  rf.effect,
		Format:       rf.format,
		Flags: resolve.Flags{
			EnableEmphasis:      rf.enhance,
			MicroPauses:         rf.enhance,
			SentenceAnalysis:    rf.enhance,
			VoiceLayering:       rf.enhance,
			SpectralEnhancement: rf.enhance,
		},
	})
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		logger.Error("write result", "err", encErr)
		return 1
	}
	if err != nil {
		logger.Error("render failed", "err", err)
		return 1
	}
	return 0
}

// reloadOnHangup re-reads the config file whenever the process gets SIGHUP.
func reloadOnHangup(ctx context.Context, w *config.Watcher, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			changed, err := w.Check()
			if err != nil {
				logger.Warn("config reload failed", "err", err)
				continue
			}
			if !changed {
				logger.Info("config unchanged")
			}
		}
	}
}

func shutdown(a *app.App, logger *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "err", err)
		return false
	}
	return true
}
