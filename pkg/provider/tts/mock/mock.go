// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer to feed a controlled baseline waveform into the render path
// and to verify which text and language were requested.
//
// Example:
//
//	s := &mock.Synthesizer{Result: mock.Tone(22050, 1, time.Second, 220)}
//	w, _ := s.Synthesize(ctx, "Hello world", "en")
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Ctx      context.Context
	Text     string
	Language string
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// Result is cloned and returned by Synthesize. When nil, a one-second
	// 220 Hz mono tone at 22050 Hz is returned.
	Result *audio.Waveform

	// Err, if non-nil, is returned instead of a waveform.
	Err error

	// Delay blocks Synthesize for the given duration or until ctx is done,
	// whichever comes first.
	Delay time.Duration

	// Calls records every call to Synthesize in order.
	Calls []SynthesizeCall
}

// Name returns NameValue or "mock".
func (s *Synthesizer) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NameValue == "" {
		return "mock"
	}
	return s.NameValue
}

// Synthesize records the call and returns a clone of Result, or Err.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (*audio.Waveform, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, SynthesizeCall{Ctx: ctx, Text: text, Language: language})
	delay, result, err := s.Delay, s.Result, s.Err
	s.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return Tone(22050, 1, time.Second, 220), nil
	}
	return result.Clone(), nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}

// Tone returns a sine wave of freq Hz at half amplitude.
func Tone(rate, channels int, d time.Duration, freq float64) *audio.Waveform {
	frames := audio.DurationToFrames(d, rate)
	w := audio.NewWaveform(rate, channels, frames)
	for i := range frames {
		v := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		for c := range channels {
			w.Samples[i*channels+c] = v
		}
	}
	return w
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
