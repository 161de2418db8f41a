package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/emotivox/internal/config"
	"github.com/MrWong99/emotivox/internal/resilience"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
	"github.com/MrWong99/emotivox/pkg/provider/tts/coqui"
	"github.com/MrWong99/emotivox/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/emotivox/pkg/provider/tts/gtranslate"
	ttsmock "github.com/MrWong99/emotivox/pkg/provider/tts/mock"
	"github.com/MrWong99/emotivox/pkg/provider/tts/openai"
)

// RegisterBuiltinProviders wires every synthesis backend that ships with
// emotivox into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	reg.RegisterTTS("gtranslate", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []gtranslate.Option
		if entry.BaseURL != "" {
			opts = append(opts, gtranslate.WithEndpoint(entry.BaseURL))
		}
		if d, ok := optDuration(entry, "timeout"); ok {
			opts = append(opts, gtranslate.WithTimeout(d))
		}
		if entry.OptionBool("slow") {
			opts = append(opts, gtranslate.WithSlow(true))
		}
		return gtranslate.New(opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []coqui.Option
		if mode := entry.OptionString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if speaker := entry.OptionString("speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if d, ok := optDuration(entry, "timeout"); ok {
			opts = append(opts, coqui.WithTimeout(d))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		if voice := entry.OptionString("voice"); voice != "" {
			opts = append(opts, elevenlabs.WithVoice(voice))
		}
		if f := entry.OptionString("output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if voice := entry.OptionString("voice"); voice != "" {
			opts = append(opts, openai.WithVoice(voice))
		}
		if d, ok := optDuration(entry, "timeout"); ok {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// mock renders a fixed tone; useful for demos without network access.
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Synthesizer, error) {
		return &ttsmock.Synthesizer{NameValue: "mock"}, nil
	})
}

// BuildSynthesizer creates every configured provider through reg and chains
// them into a fallback group in declaration order. fc supplies the breaker
// settings shared by all providers.
func BuildSynthesizer(entries []config.ProviderEntry, reg *config.Registry, fc resilience.FallbackConfig) (*resilience.SynthFallback, error) {
	logger := fc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(entries) == 0 {
		return nil, errors.New("app: no tts providers configured")
	}
	var fb *resilience.SynthFallback
	for i, entry := range entries {
		s, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("app: create tts provider %q (providers.tts[%d]): %w", entry.Name, i, err)
		}
		logger.Info("provider created", "kind", "tts", "name", entry.Name, "position", i)
		if fb == nil {
			fb = resilience.NewSynthFallback(s, fc)
			continue
		}
		fb.AddFallback(s)
	}
	return fb, nil
}

// optDuration parses Options[key] as a Go duration string ("15s").
func optDuration(entry config.ProviderEntry, key string) (time.Duration, bool) {
	s := entry.OptionString(key)
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid provider duration option", "provider", entry.Name, "option", key, "value", s)
		return 0, false
	}
	return d, true
}
