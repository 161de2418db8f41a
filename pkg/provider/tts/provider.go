// Package tts defines the Synthesizer interface for baseline speech backends.
//
// A synthesizer turns plain text in one language into a neutral waveform.
// All expressive shaping happens afterwards in the render pipeline, so
// implementations should ask their backend for its most neutral delivery.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/emotivox/pkg/audio"
)

// Synthesizer is the abstraction over any baseline TTS backend.
type Synthesizer interface {
	// Name identifies the backend in logs, metrics and cache keys. It must be
	// stable for the lifetime of the process.
	Name() string

	// Synthesize renders text spoken in language, an ISO 639-1 code such as
	// "en" or "hi". The returned waveform is owned by the caller.
	//
	// Returns an error if the backend cannot be reached, rejects the request,
	// returns audio that cannot be decoded, or ctx is cancelled first.
	Synthesize(ctx context.Context, text, language string) (*audio.Waveform, error)
}
