// Package audio holds the in-memory waveform type and the codecs that move
// it in and out of files: WAV read/write and MP3 decoding.
//
// Signal processing lives in the dsp subpackage and MP3 encoding in the
// encode subpackage.
package audio

import (
	"math"
	"time"
)

// StandardSampleRate is the output rate waveforms are normalised to after a
// pitch change (CD quality).
const StandardSampleRate = 44100

// Waveform is a decoded audio buffer. Samples hold interleaved channel data
// as floats in [-1, 1]; values outside that range are clipped on export.
//
// A Waveform is owned by whoever is currently transforming it. Functions in
// this module never mutate their input waveform; they return a new one.
type Waveform struct {
	// Samples is interleaved PCM: frame i, channel c lives at i*Channels+c.
	Samples []float64

	// SampleRate in Hz. May be an arbitrary value after a frame-rate change.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// NewWaveform allocates a silent waveform holding frames frames.
func NewWaveform(sampleRate, channels, frames int) *Waveform {
	if channels < 1 {
		channels = 1
	}
	if frames < 0 {
		frames = 0
	}
	return &Waveform{
		Samples:    make([]float64, frames*channels),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Silence returns a silent waveform of duration d.
func Silence(sampleRate, channels int, d time.Duration) *Waveform {
	return NewWaveform(sampleRate, channels, DurationToFrames(d, sampleRate))
}

// DurationToFrames converts d to a whole number of frames at sampleRate.
func DurationToFrames(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// Frames returns the number of sample frames.
func (w *Waveform) Frames() int {
	if w == nil || w.Channels <= 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// Duration returns the playback length at the waveform's sample rate.
func (w *Waveform) Duration() time.Duration {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(w.Frames()) / float64(w.SampleRate) * float64(time.Second))
}

// Seconds is Duration in fractional seconds.
func (w *Waveform) Seconds() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(w.Frames()) / float64(w.SampleRate)
}

// Clone returns a deep copy of w.
func (w *Waveform) Clone() *Waveform {
	out := &Waveform{
		Samples:    make([]float64, len(w.Samples)),
		SampleRate: w.SampleRate,
		Channels:   w.Channels,
	}
	copy(out.Samples, w.Samples)
	return out
}

// Slice returns a copy of frames [start, end). Bounds are clamped.
func (w *Waveform) Slice(start, end int) *Waveform {
	n := w.Frames()
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	out := NewWaveform(w.SampleRate, w.Channels, end-start)
	copy(out.Samples, w.Samples[start*w.Channels:end*w.Channels])
	return out
}

// Split cuts w into n contiguous parts of roughly equal length. The last part
// absorbs the remainder. n is clamped to [1, Frames()].
func (w *Waveform) Split(n int) []*Waveform {
	frames := w.Frames()
	if n > frames {
		n = frames
	}
	if n < 1 {
		return []*Waveform{w.Clone()}
	}
	size := frames / n
	parts := make([]*Waveform, 0, n)
	for i := range n {
		end := (i + 1) * size
		if i == n-1 {
			end = frames
		}
		parts = append(parts, w.Slice(i*size, end))
	}
	return parts
}

// Concat joins parts in order. Every part is converted to the first part's
// sample rate and channel count before joining.
func Concat(parts ...*Waveform) *Waveform {
	if len(parts) == 0 {
		return &Waveform{SampleRate: StandardSampleRate, Channels: 1}
	}
	rate, channels := parts[0].SampleRate, parts[0].Channels
	total := 0
	for _, p := range parts {
		total += len(p.Samples)
	}
	out := &Waveform{
		Samples:    make([]float64, 0, total),
		SampleRate: rate,
		Channels:   channels,
	}
	for _, p := range parts {
		p = Match(p, rate, channels)
		out.Samples = append(out.Samples, p.Samples...)
	}
	return out
}

// Peak returns the largest absolute sample value.
func (w *Waveform) Peak() float64 {
	var peak float64
	for _, s := range w.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root-mean-square level of all samples.
func (w *Waveform) RMS() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(w.Samples)))
}
