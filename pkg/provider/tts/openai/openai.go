// Package openai provides a baseline synthesizer backed by the OpenAI speech
// API. It implements the tts.Synthesizer interface.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

// DefaultModel is the default OpenAI speech model.
const DefaultModel = oai.SpeechModelTTS1

// DefaultVoice is the default OpenAI voice.
const DefaultVoice = oai.AudioSpeechNewParamsVoiceAlloy

// neutralInstructions is sent to models that accept delivery instructions.
const neutralInstructions = "Speak clearly in a calm, neutral and even tone."

// Ensure Synthesizer implements the tts.Synthesizer interface.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer implements tts.Synthesizer using the OpenAI API.
type Synthesizer struct {
	client oai.Client
	model  oai.SpeechModel
	voice  oai.AudioSpeechNewParamsVoice
}

// config holds optional configuration for the synthesizer.
type config struct {
	baseURL string
	voice   string
	timeout time.Duration
}

// Option is a functional option for Synthesizer.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL, e.g. for an
// OpenAI-compatible local server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithVoice selects the voice (alloy, echo, fable, onyx, nova, shimmer, ...).
func WithVoice(voice string) Option {
	return func(c *config) {
		c.voice = voice
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI speech Synthesizer. If model is empty,
// DefaultModel (tts-1) is used.
func New(apiKey string, model string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	speechModel := DefaultModel
	if model != "" {
		speechModel = oai.SpeechModel(model)
	}

	cfg := &config{voice: string(DefaultVoice)}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Synthesizer{
		client: oai.NewClient(reqOpts...),
		model:  speechModel,
		voice:  oai.AudioSpeechNewParamsVoice(cfg.voice),
	}, nil
}

// Name returns "openai".
func (s *Synthesizer) Name() string { return "openai" }

// Synthesize implements tts.Synthesizer. The speech API detects the language
// from the text, so language is not sent.
func (s *Synthesizer) Synthesize(ctx context.Context, text, _ string) (*audio.Waveform, error) {
	params := oai.AudioSpeechNewParams{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if acceptsInstructions(string(s.model)) {
		params.Instructions = oai.String(neutralInstructions)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	w, err := audio.ReadWAV(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("openai tts: decode response: %w", err)
	}
	return w, nil
}

// acceptsInstructions reports whether model honours delivery instructions.
// The tts-1 family rejects them.
func acceptsInstructions(model string) bool {
	return !strings.HasPrefix(model, "tts-1")
}
