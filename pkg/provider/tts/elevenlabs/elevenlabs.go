// Package elevenlabs provides a baseline synthesizer backed by the ElevenLabs
// streaming WebSocket API. It implements the tts.Synthesizer interface.
//
// The whole text is sent as one input stream and the PCM chunks the service
// returns are collected until it marks the stream final.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

const (
	defaultEndpoint  = "wss://api.elevenlabs.io"
	streamPathFmt    = "/v1/text-to-speech/%s/stream-input"
	defaultModel     = "eleven_multilingual_v2"
	defaultOutputFmt = "pcm_22050"

	// defaultVoice is the premade "Rachel" voice.
	defaultVoice = "21m00Tcm4TlvDq8ikWAM"

	// readLimit bounds a single WebSocket message. Base64 audio frames are
	// much larger than the library's 32 KiB default.
	readLimit = 4 << 20
)

// Option is a functional option for configuring the ElevenLabs Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		s.model = model
	}
}

// WithVoice sets the voice ID.
func WithVoice(id string) Option {
	return func(s *Synthesizer) {
		s.voice = id
	}
}

// WithOutputFormat sets the PCM output format ("pcm_16000", "pcm_22050",
// "pcm_24000" or "pcm_44100").
func WithOutputFormat(format string) Option {
	return func(s *Synthesizer) {
		s.outputFormat = format
	}
}

// WithEndpoint overrides the WebSocket base URL. Used by tests.
func WithEndpoint(base string) Option {
	return func(s *Synthesizer) {
		s.endpoint = strings.TrimRight(base, "/")
	}
}

// Synthesizer implements tts.Synthesizer backed by the ElevenLabs streaming
// API. It is safe for concurrent use; every call opens its own connection.
type Synthesizer struct {
	apiKey       string
	model        string
	voice        string
	outputFormat string
	sampleRate   int
	endpoint     string
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// New creates a new ElevenLabs Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:       apiKey,
		model:        defaultModel,
		voice:        defaultVoice,
		outputFormat: defaultOutputFmt,
		endpoint:     defaultEndpoint,
	}
	for _, o := range opts {
		o(s)
	}
	rate, err := pcmRate(s.outputFormat)
	if err != nil {
		return nil, err
	}
	s.sampleRate = rate
	if s.voice == "" {
		return nil, errors.New("elevenlabs: voice must not be empty")
	}
	return s, nil
}

// Name returns "elevenlabs".
func (s *Synthesizer) Name() string { return "elevenlabs" }

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object. A high
// stability keeps the baseline delivery flat.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs.
type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize opens a stream, sends text followed by the end-of-input marker
// and decodes the collected PCM.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (*audio.Waveform, error) {
	conn, _, err := websocket.Dial(ctx, s.streamURL(language), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	msgs := []textMessage{
		// The first message must carry a single space, the key and settings.
		{Text: " ", XiAPIKey: s.apiKey, VoiceSettings: &voiceSettings{Stability: 0.75, SimilarityBoost: 0.75}},
		{Text: text + " "},
		{Text: ""},
	}
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: marshal message: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			return nil, fmt.Errorf("elevenlabs: send text: %w", err)
		}
	}

	var pcm bytes.Buffer
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && pcm.Len() > 0 {
				break
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			return nil, fmt.Errorf("elevenlabs: decode message: %w", err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("elevenlabs: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm.Write(chunk)
		}
		if resp.IsFinal {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	if pcm.Len() == 0 {
		return nil, errors.New("elevenlabs: stream ended without audio")
	}
	return audio.FromPCM16(pcm.Bytes(), s.sampleRate, 1), nil
}

// streamURL builds the stream-input URL for the configured voice and model.
func (s *Synthesizer) streamURL(language string) string {
	q := url.Values{}
	q.Set("model_id", s.model)
	q.Set("output_format", s.outputFormat)
	if language != "" {
		q.Set("language_code", language)
	}
	return s.endpoint + fmt.Sprintf(streamPathFmt, url.PathEscape(s.voice)) + "?" + q.Encode()
}

// pcmRate extracts the sample rate from a "pcm_<rate>" output format.
func pcmRate(format string) (int, error) {
	rateStr, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: output format %q is not raw PCM", format)
	}
	rate, err := strconv.Atoi(rateStr)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid sample rate in output format %q", format)
	}
	return rate, nil
}
