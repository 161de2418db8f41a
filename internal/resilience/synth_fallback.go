package resilience

import (
	"context"

	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

// SynthFallback is a [tts.Synthesizer] that fails over across backends in
// configuration order.
type SynthFallback struct {
	group *Group[tts.Synthesizer]
	name  string
}

var _ tts.Synthesizer = (*SynthFallback)(nil)

// NewSynthFallback returns a [SynthFallback] preferring primary.
func NewSynthFallback(primary tts.Synthesizer, cfg FallbackConfig) *SynthFallback {
	return &SynthFallback{
		group: NewGroup(primary.Name(), primary, cfg),
		name:  primary.Name(),
	}
}

// AddFallback registers s after all earlier backends.
func (f *SynthFallback) AddFallback(s tts.Synthesizer) {
	f.group.Add(s.Name(), s)
	f.name += "+" + s.Name()
}

// Name joins the backend names with "+", e.g. "coqui+gtranslate".
func (f *SynthFallback) Name() string { return f.name }

// Synthesize returns the waveform of the first backend that succeeds.
func (f *SynthFallback) Synthesize(ctx context.Context, text, language string) (*audio.Waveform, error) {
	return Try(ctx, f.group, func(s tts.Synthesizer) (*audio.Waveform, error) {
		return s.Synthesize(ctx, text, language)
	})
}

// Status reports the breaker state of every backend.
func (f *SynthFallback) Status() []MemberStatus { return f.group.Status() }

// Available reports whether at least one backend would accept a call now.
func (f *SynthFallback) Available() bool {
	for _, s := range f.group.Status() {
		if s.State != StateOpen {
			return true
		}
	}
	return false
}
