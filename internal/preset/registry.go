package preset

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinYAML []byte

// Registry bundles the five preset tables.
type Registry struct {
	Languages  Table[string]                `yaml:"languages"`
	Emotions   Table[EmotionParams]         `yaml:"emotions"`
	VoiceTypes Table[VoiceTypeParams]       `yaml:"voice_types"`
	Effects    Table[AudioEffectDescriptor] `yaml:"audio_effects"`
	Prosody    Table[ProsodySettings]       `yaml:"prosody_levels"`
}

var builtin = sync.OnceValues(func() (*Registry, error) {
	return LoadFromReader(bytes.NewReader(builtinYAML))
})

// Builtin returns the registry compiled into the binary. The same value is
// returned on every call; it must not be modified.
func Builtin() (*Registry, error) {
	return builtin()
}

// MustBuiltin is like [Builtin] but panics if the embedded tables are invalid.
func MustBuiltin() *Registry {
	r, err := Builtin()
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads a registry from the YAML file at path and validates it.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preset: open %q: %w", path, err)
	}
	defer f.Close()

	r, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("preset: parse %q: %w", path, err)
	}
	return r, nil
}

// LoadFromReader decodes a registry from r and validates it.
func LoadFromReader(r io.Reader) (*Registry, error) {
	reg := &Registry{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(reg); err != nil {
		return nil, fmt.Errorf("preset: decode yaml: %w", err)
	}
	if err := Validate(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Validate checks that reg defines every fallback key and that bundle values
// are within range. It returns a joined error listing all problems found.
func Validate(reg *Registry) error {
	var errs []error

	if !reg.Languages.Has(DefaultLanguage) {
		errs = append(errs, fmt.Errorf("languages: default language %q is missing", DefaultLanguage))
	}
	if !reg.Emotions.Has(NeutralEmotion) {
		errs = append(errs, fmt.Errorf("emotions: %q is missing", NeutralEmotion))
	}
	if !reg.VoiceTypes.Has(DefaultVoiceType) {
		errs = append(errs, fmt.Errorf("voice_types: %q is missing", DefaultVoiceType))
	}
	if d, ok := reg.Effects.Lookup(string(EffectNone)); !ok {
		errs = append(errs, fmt.Errorf("audio_effects: %q is missing", EffectNone))
	} else if d.Enabled {
		errs = append(errs, fmt.Errorf("audio_effects.%s must have enabled: false", EffectNone))
	}
	for _, k := range []string{NaturalProsody, DefaultProsody} {
		if !reg.Prosody.Has(k) {
			errs = append(errs, fmt.Errorf("prosody_levels: %q is missing", k))
		}
	}

	for name, e := range reg.Emotions.All() {
		if e.Speed <= 0 {
			errs = append(errs, fmt.Errorf("emotions.%s.speed %.2f must be > 0", name, e.Speed))
		}
		if !e.EQProfile.IsValid() {
			errs = append(errs, fmt.Errorf("emotions.%s.eq_profile %q is invalid; valid values: %v", name, e.EQProfile, EQProfiles))
		}
	}
	for name := range reg.Effects.All() {
		if !Effect(name).IsKnown() {
			errs = append(errs, fmt.Errorf("audio_effects.%s is not an implemented effect", name))
		}
	}
	for name, p := range reg.Prosody.All() {
		prefix := "prosody_levels." + name
		errs = append(errs,
			unitRange(prefix+".word_gap_variation", p.WordGapVariation),
			unitRange(prefix+".intonation_strength", p.IntonationStrength),
			unitRange(prefix+".breathiness", p.Breathiness),
		)
		if p.SentencePauseMS < 0 {
			errs = append(errs, fmt.Errorf("%s.sentence_pause_ms must be >= 0", prefix))
		}
		if p.PunctuationPauseMS < 0 {
			errs = append(errs, fmt.Errorf("%s.punctuation_pause_ms must be >= 0", prefix))
		}
	}
	if p, ok := reg.Prosody.Lookup(DefaultProsody); ok && !p.IsZero() {
		errs = append(errs, fmt.Errorf("prosody_levels.%s must be the all-zero bundle", DefaultProsody))
	}

	return errors.Join(errs...)
}

func unitRange(field string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s %.2f is out of range [0, 1]", field, v)
	}
	return nil
}
