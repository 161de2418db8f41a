// Package preset holds the static parameter tables that drive expressive
// rendering: languages, emotions, voice types, audio effects and prosody
// levels.
//
// Tables are loaded once at startup (from the embedded defaults or an
// operator-supplied YAML file) and are read-only afterwards. The resolver
// receives a [*Registry] at construction time; there is no package-level
// mutable state.
package preset

// Sentinel keys that every registry must define. Resolution falls back to
// these when a request names an unknown entry.
const (
	DefaultLanguage  = "en"
	NeutralEmotion   = "neutral"
	DefaultVoiceType = "default"
	NaturalProsody   = "natural"
	DefaultProsody   = "default"
)

// EQProfile names a fixed sequence of shelf and pass filters.
type EQProfile string

const (
	EQFlat    EQProfile = "flat"
	EQBright  EQProfile = "bright"
	EQMuffled EQProfile = "muffled"
	EQSharp   EQProfile = "sharp"
	EQWarm    EQProfile = "warm"
	EQTinny   EQProfile = "tinny"
	EQAiry    EQProfile = "airy"
	EQHarsh   EQProfile = "harsh"
)

// EQProfiles lists every recognised profile.
var EQProfiles = []EQProfile{EQFlat, EQBright, EQMuffled, EQSharp, EQWarm, EQTinny, EQAiry, EQHarsh}

// IsValid reports whether p is a recognised EQ profile.
func (p EQProfile) IsValid() bool {
	switch p {
	case EQFlat, EQBright, EQMuffled, EQSharp, EQWarm, EQTinny, EQAiry, EQHarsh:
		return true
	}
	return false
}

// Effect names a post-processing audio effect.
type Effect string

const (
	EffectNone      Effect = "none"
	EffectEcho      Effect = "echo"
	EffectReverb    Effect = "reverb"
	EffectChorus    Effect = "chorus"
	EffectDistort   Effect = "distortion"
	EffectTelephone Effect = "telephone"
	EffectMegaphone Effect = "megaphone"
	EffectWhisper   Effect = "whisper_effect"
	EffectEthereal  Effect = "ethereal"
	EffectDuet      Effect = "duet"
)

// Effects lists every effect the pipeline implements.
var Effects = []Effect{
	EffectNone, EffectEcho, EffectReverb, EffectChorus, EffectDistort,
	EffectTelephone, EffectMegaphone, EffectWhisper, EffectEthereal, EffectDuet,
}

// IsKnown reports whether the pipeline implements e.
func (e Effect) IsKnown() bool {
	for _, k := range Effects {
		if k == e {
			return true
		}
	}
	return false
}

// EmotionParams is the acoustic bundle for one emotion.
type EmotionParams struct {
	// Speed is a playback rate multiplier (> 0).
	Speed float64 `yaml:"speed" json:"speed"`

	// Pitch offset in semitones.
	Pitch float64 `yaml:"pitch" json:"pitch"`

	// Volume offset in dB.
	Volume float64 `yaml:"volume" json:"volume"`

	// Emphasis > 0 compresses dynamics; < 0 normalises with |Emphasis| dB headroom.
	Emphasis float64 `yaml:"emphasis" json:"emphasis"`

	EQProfile EQProfile `yaml:"eq_profile" json:"eq_profile"`

	// Variability is the pitch jitter span in semitones. Values <= 0 disable jitter.
	Variability float64 `yaml:"variability" json:"variability"`

	// Color and Animation are presentation hints for clients; they carry no
	// acoustic meaning.
	Color     string `yaml:"color" json:"color"`
	Animation string `yaml:"animation" json:"animation"`
}

// VoiceTypeParams is the bundle for one voice type.
type VoiceTypeParams struct {
	BasePitch   float64 `yaml:"base_pitch" json:"base_pitch"`
	Timbre      float64 `yaml:"timbre" json:"timbre"`
	Clarity     float64 `yaml:"clarity" json:"clarity"`
	DisplayName string  `yaml:"display_name" json:"display_name"`
}

// AudioEffectDescriptor describes an effect and whether it may be applied.
// Disabled effects are never applied, even when requested.
type AudioEffectDescriptor struct {
	Description string `yaml:"description" json:"description"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
}

// ProsodySettings shape phrasing: pauses, emphasis and breath.
type ProsodySettings struct {
	WordGapVariation   float64 `yaml:"word_gap_variation" json:"word_gap_variation"`
	SentencePauseMS    float64 `yaml:"sentence_pause_ms" json:"sentence_pause_ms"`
	PunctuationPauseMS float64 `yaml:"punctuation_pause_ms" json:"punctuation_pause_ms"`
	EmphasisWords      bool    `yaml:"emphasis_words" json:"emphasis_words"`
	MicroPauses        bool    `yaml:"micro_pauses" json:"micro_pauses"`
	IntonationStrength float64 `yaml:"intonation_strength" json:"intonation_strength"`
	Breathiness        float64 `yaml:"breathiness" json:"breathiness"`
}

// IsZero reports whether s is the all-zero bundle, which disables phrasing.
func (s ProsodySettings) IsZero() bool {
	return s == ProsodySettings{}
}
