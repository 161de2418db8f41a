package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the built-in synthesis providers.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{"coqui", "elevenlabs", "openai", "gtranslate", "mock"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.OutputDir == "" {
		cfg.Server.OutputDir = DefaultOutputDir
	}
	if cfg.Server.PublicPath == "" {
		cfg.Server.PublicPath = DefaultPublicPath
	}
	if !strings.HasSuffix(cfg.Server.PublicPath, "/") {
		cfg.Server.PublicPath += "/"
	}

	if cfg.Render.DefaultFormat == "" {
		cfg.Render.DefaultFormat = DefaultFormat
	}
	if cfg.Render.MP3BitrateKbps == 0 {
		cfg.Render.MP3BitrateKbps = DefaultBitrateKbps
	}
	if cfg.Render.SynthesisTimeout == 0 {
		cfg.Render.SynthesisTimeout = DefaultSynthesisTimeout
	}
	if cfg.Render.MaxWords == 0 {
		cfg.Render.MaxWords = DefaultMaxWords
	}

	if len(cfg.Providers.TTS) == 0 {
		cfg.Providers.TTS = []ProviderEntry{{Name: DefaultTTSProvider}}
	}

	if cfg.Cache.Addr != "" && cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}

	if cfg.Observability.MetricsPath == "" {
		cfg.Observability.MetricsPath = DefaultMetricsPath
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.PublicPath != "" && !strings.HasPrefix(cfg.Server.PublicPath, "/") {
		errs = append(errs, fmt.Errorf("server.public_path %q must start with /", cfg.Server.PublicPath))
	}

	// Render
	switch strings.ToLower(cfg.Render.DefaultFormat) {
	case "", "mp3", "wav":
	default:
		errs = append(errs, fmt.Errorf("render.default_format %q is invalid; valid values: mp3, wav", cfg.Render.DefaultFormat))
	}
	if b := cfg.Render.MP3BitrateKbps; b != 0 && (b < 8 || b > 320) {
		errs = append(errs, fmt.Errorf("render.mp3_bitrate_kbps %d is out of range [8, 320]", b))
	}
	if cfg.Render.SynthesisTimeout < 0 {
		errs = append(errs, fmt.Errorf("render.synthesis_timeout %s must not be negative", cfg.Render.SynthesisTimeout))
	}
	if cfg.Render.MaxWords < 0 {
		errs = append(errs, fmt.Errorf("render.max_words %d must not be negative", cfg.Render.MaxWords))
	}

	// Providers
	seen := make(map[string]int, len(cfg.Providers.TTS))
	for i, p := range cfg.Providers.TTS {
		prefix := fmt.Sprintf("providers.tts[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.tts[%d]", prefix, p.Name, prev))
		}
		seen[p.Name] = i
		validateProviderName(p.Name)

		switch p.Name {
		case "elevenlabs", "openai":
			if p.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s: provider %q requires api_key", prefix, p.Name))
			}
		case "coqui":
			if p.BaseURL == "" {
				errs = append(errs, fmt.Errorf("%s: provider %q requires base_url", prefix, p.Name))
			}
		}
	}

	// Cache
	if cfg.Cache.Addr == "" && (cfg.Cache.Password != "" || cfg.Cache.Prefix != "") {
		slog.Warn("cache settings given without cache.addr; the baseline cache is disabled")
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl %s must not be negative", cfg.Cache.TTL))
	}

	// Observability
	if cfg.Observability.MetricsPath != "" && !strings.HasPrefix(cfg.Observability.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics_path %q must start with /", cfg.Observability.MetricsPath))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not one of
// [ValidProviderNames].
func validateProviderName(name string) {
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", "tts",
		"name", name,
		"known", ValidProviderNames,
	)
}
