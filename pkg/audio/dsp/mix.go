package dsp

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/emotivox/pkg/audio"
)

// Overlay mixes over into base starting at offset. The result keeps the
// length of base; anything in over past the end of base is dropped.
func Overlay(base, over *audio.Waveform, offset time.Duration) *audio.Waveform {
	return mix(base, over, offset, false)
}

// Mix is like [Overlay] but extends the result with silence as needed so
// that all of over is heard. The result is never shorter than base.
func Mix(base, over *audio.Waveform, offset time.Duration) *audio.Waveform {
	return mix(base, over, offset, true)
}

func mix(base, over *audio.Waveform, offset time.Duration, extend bool) *audio.Waveform {
	ch := max(base.Channels, 1)
	over = audio.Match(over, base.SampleRate, ch)
	start := audio.DurationToFrames(offset, base.SampleRate)

	frames := base.Frames()
	if extend {
		frames = max(frames, start+over.Frames())
	}
	out := audio.NewWaveform(base.SampleRate, ch, frames)
	copy(out.Samples, base.Samples)

	for i := range over.Frames() {
		dst := start + i
		if dst >= frames {
			break
		}
		for c := range ch {
			out.Samples[dst*ch+c] += over.Samples[i*ch+c]
		}
	}
	return out
}

// Pad appends d of silence to w.
func Pad(w *audio.Waveform, d time.Duration) *audio.Waveform {
	return audio.Concat(w, audio.Silence(w.SampleRate, max(w.Channels, 1), d))
}

// WhiteNoise generates frames of uniform white noise at levelDB (peak dBFS)
// in the given format.
func WhiteNoise(rng *rand.Rand, sampleRate, channels, frames int, levelDB float64) *audio.Waveform {
	out := audio.NewWaveform(sampleRate, channels, frames)
	amp := DBToAmplitude(levelDB)
	for i := range out.Samples {
		out.Samples[i] = (rng.Float64()*2 - 1) * amp
	}
	return out
}

// NoiseBed overlays white noise at levelDB across the whole of w.
func NoiseBed(w *audio.Waveform, rng *rand.Rand, levelDB float64) *audio.Waveform {
	noise := WhiteNoise(rng, w.SampleRate, max(w.Channels, 1), w.Frames(), levelDB)
	return Overlay(w, noise, 0)
}

// ShiftRate plays w back factor times faster and resamples the result to
// the original sample rate. Pitch rises by factor and duration shrinks by it.
func ShiftRate(w *audio.Waveform, factor float64) *audio.Waveform {
	if factor <= 0 || factor == 1 || w.SampleRate <= 0 {
		return w.Clone()
	}
	shifted := audio.Reinterpret(w, int(math.Round(float64(w.SampleRate)*factor)))
	return audio.Resample(shifted, w.SampleRate)
}

// ShiftSemitones is [ShiftRate] with the factor expressed in semitones.
func ShiftSemitones(w *audio.Waveform, semitones float64) *audio.Waveform {
	return ShiftRate(w, SemitoneRatio(semitones))
}

// SemitoneRatio returns the frequency ratio 2^(semitones/12).
func SemitoneRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}
