// Package resolve turns a render request's named presets and optional
// numeric overrides into one concrete [EffectiveParameters] value.
//
// Resolution never fails. Unknown keys are replaced by fixed fallbacks:
//
//   - language      → "en"
//   - emotion       → "neutral"
//   - voice type    → "default"
//   - audio effect  → "none" (also for disabled effects)
//   - prosody level → "natural"
//
// The prosody fallback intentionally differs from the emotion and voice
// fallbacks; changing it would change rendered output.
//
// Speed, pitch and volume are clamped to [0.5, 2], [-10, 10] semitones and
// [-10, 10] dB respectively, whether they came from presets or overrides.
package resolve

import (
	"fmt"
	"log/slog"

	"github.com/MrWong99/emotivox/internal/preset"
)

// Clamp bounds.
const (
	MinSpeed  = 0.5
	MaxSpeed  = 2.0
	MinPitch  = -10.0
	MaxPitch  = 10.0
	MinVolume = -10.0
	MaxVolume = 10.0
)

// Request carries the expressive fields of a render request.
type Request struct {
	Language     string
	Emotion      string
	VoiceType    string
	ProsodyLevel string
	AudioEffect  string

	// Optional overrides. nil means "use the preset value".
	CustomSpeed  *float64
	CustomPitch  *float64
	CustomVolume *float64

	Flags Flags
}

// Flags toggle optional pipeline behaviour.
type Flags struct {
	EnableEmphasis      bool `json:"enable_emphasis"`
	MicroPauses         bool `json:"micro_pauses"`
	SentenceAnalysis    bool `json:"sentence_analysis"`
	VoiceLayering       bool `json:"voice_layering"`
	SpectralEnhancement bool `json:"spectral_enhancement"`
}

// EffectiveParameters is the single resolved parameter set for one render.
// It is a value type; every pipeline stage reads it and none modifies it.
type EffectiveParameters struct {
	Speed       float64
	Pitch       float64
	Volume      float64
	Emphasis    float64
	EQProfile   preset.EQProfile
	Variability float64
	Timbre      float64
	AudioEffect preset.Effect
	Prosody     preset.ProsodySettings
	Flags       Flags
}

// Resolution is the outcome of [Resolver.Resolve]: the parameters plus the
// preset keys that were actually used after fallback.
type Resolution struct {
	Params EffectiveParameters

	Language     string
	Emotion      string
	VoiceType    string
	ProsodyLevel string

	// Warnings describes each fallback that was taken, in resolution order.
	Warnings []string
}

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithLogger sets the logger fallback diagnostics are written to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// Resolver resolves requests against an injected preset registry. It holds
// no mutable state and is safe for concurrent use.
type Resolver struct {
	reg    *preset.Registry
	logger *slog.Logger
}

// New returns a Resolver over reg. reg must satisfy [preset.Validate].
func New(reg *preset.Registry, opts ...Option) *Resolver {
	r := &Resolver{reg: reg, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Registry returns the registry r resolves against.
func (r *Resolver) Registry() *preset.Registry { return r.reg }

// Resolve applies the fallback and clamping rules to req.
func (r *Resolver) Resolve(req Request) Resolution {
	var res Resolution

	res.Language = req.Language
	if !r.reg.Languages.Has(req.Language) {
		res.Language = preset.DefaultLanguage
		res.warn(r.logger, "language", req.Language, res.Language, r.reg.Languages.Keys())
	}

	res.Emotion = req.Emotion
	emotion, ok := r.reg.Emotions.Lookup(req.Emotion)
	if !ok {
		res.Emotion = preset.NeutralEmotion
		emotion, _ = r.reg.Emotions.Lookup(preset.NeutralEmotion)
		res.warn(r.logger, "emotion", req.Emotion, res.Emotion, r.reg.Emotions.Keys())
	}

	res.VoiceType = req.VoiceType
	voice, ok := r.reg.VoiceTypes.Lookup(req.VoiceType)
	if !ok {
		res.VoiceType = preset.DefaultVoiceType
		voice, _ = r.reg.VoiceTypes.Lookup(preset.DefaultVoiceType)
		res.warn(r.logger, "voice_type", req.VoiceType, res.VoiceType, r.reg.VoiceTypes.Keys())
	}

	res.ProsodyLevel = req.ProsodyLevel
	prosody, ok := r.reg.Prosody.Lookup(req.ProsodyLevel)
	if !ok {
		res.ProsodyLevel = preset.NaturalProsody
		prosody, _ = r.reg.Prosody.Lookup(preset.NaturalProsody)
		res.warn(r.logger, "prosody_level", req.ProsodyLevel, res.ProsodyLevel, r.reg.Prosody.Keys())
	}

	effect := preset.Effect(req.AudioEffect)
	desc, ok := r.reg.Effects.Lookup(req.AudioEffect)
	switch {
	case effect == preset.EffectNone:
	case !ok:
		effect = preset.EffectNone
		res.warn(r.logger, "audio_effect", req.AudioEffect, string(effect), r.reg.Effects.Keys())
	case !desc.Enabled:
		effect = preset.EffectNone
		msg := fmt.Sprintf("audio_effect %q is disabled; using %q", req.AudioEffect, effect)
		res.Warnings = append(res.Warnings, msg)
		r.logger.Warn("disabled audio effect requested; falling back", "requested", req.AudioEffect, "using", effect)
	}

	speed := emotion.Speed
	if req.CustomSpeed != nil {
		speed = *req.CustomSpeed
	}
	pitch := voice.BasePitch + emotion.Pitch
	if req.CustomPitch != nil {
		pitch = *req.CustomPitch
	}
	volume := emotion.Volume
	if req.CustomVolume != nil {
		volume = *req.CustomVolume
	}

	res.Params = EffectiveParameters{
		Speed:       clamp(speed, MinSpeed, MaxSpeed),
		Pitch:       clamp(pitch, MinPitch, MaxPitch),
		Volume:      clamp(volume, MinVolume, MaxVolume),
		Emphasis:    emotion.Emphasis,
		EQProfile:   emotion.EQProfile,
		Variability: emotion.Variability,
		Timbre:      voice.Timbre,
		AudioEffect: effect,
		Prosody:     prosody,
		Flags:       req.Flags,
	}
	return res
}

func (res *Resolution) warn(logger *slog.Logger, field, requested, using string, known []string) {
	msg := fmt.Sprintf("%s %q is not supported; using %q", field, requested, using)
	attrs := []any{"field", field, "requested", requested, "using", using}
	if s := preset.Suggest(requested, known); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
		attrs = append(attrs, "suggestion", s)
	}
	res.Warnings = append(res.Warnings, msg)
	logger.Warn("unknown preset key; falling back", attrs...)
}

// clamp bounds v to [lo, hi]. NaN is mapped to lo.
func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
