package audio

import (
	"fmt"
	"math"
)

// Format describes the sample rate and channel count of a waveform.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "44100Hz stereo".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// FormatOf returns the format of w.
func FormatOf(w *Waveform) Format {
	return Format{SampleRate: w.SampleRate, Channels: w.Channels}
}

// Match converts w to the given rate and channel count. If w already matches,
// it is returned unchanged. Conversion order: resample first, then remix.
func Match(w *Waveform, sampleRate, channels int) *Waveform {
	if w.SampleRate == sampleRate && w.Channels == channels {
		return w
	}
	out := w
	if out.SampleRate != sampleRate {
		out = Resample(out, sampleRate)
	}
	if out.Channels != channels {
		out = Remix(out, channels)
	}
	return out
}

// Reinterpret returns a copy of w that plays the same samples at a new
// sample rate. Both pitch and duration change by the same factor.
func Reinterpret(w *Waveform, sampleRate int) *Waveform {
	out := w.Clone()
	out.SampleRate = sampleRate
	return out
}

// Resample converts w to dstRate using linear interpolation per channel.
// Playback duration is preserved. If the rates already match or either rate
// is invalid, a copy of w is returned.
func Resample(w *Waveform, dstRate int) *Waveform {
	srcRate := w.SampleRate
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return w.Clone()
	}
	ch := w.Channels
	srcFrames := w.Frames()
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	out := NewWaveform(dstRate, ch, dstFrames)
	if dstFrames == 0 {
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for c := range ch {
			s0 := w.Samples[srcIdx*ch+c]
			s1 := w.Samples[next*ch+c]
			out.Samples[i*ch+c] = s0*(1-frac) + s1*frac
		}
	}
	return out
}

// Remix converts w to the requested channel count. Mono input is duplicated
// across channels; multi-channel input is averaged down to mono first.
func Remix(w *Waveform, channels int) *Waveform {
	if channels < 1 || channels == w.Channels {
		return w.Clone()
	}
	frames := w.Frames()
	mono := make([]float64, frames)
	if w.Channels == 1 {
		copy(mono, w.Samples)
	} else {
		for i := range frames {
			var sum float64
			for c := range w.Channels {
				sum += w.Samples[i*w.Channels+c]
			}
			mono[i] = sum / float64(w.Channels)
		}
	}
	out := NewWaveform(w.SampleRate, channels, frames)
	for i, s := range mono {
		for c := range channels {
			out.Samples[i*channels+c] = s
		}
	}
	return out
}

// FromPCM16 decodes little-endian int16 PCM into a waveform. A trailing odd
// byte or partial frame is dropped.
func FromPCM16(pcm []byte, sampleRate, channels int) *Waveform {
	if channels < 1 {
		channels = 1
	}
	n := len(pcm) / 2
	n -= n % channels
	w := &Waveform{
		Samples:    make([]float64, n),
		SampleRate: sampleRate,
		Channels:   channels,
	}
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		w.Samples[i] = float64(s) / 32768
	}
	return w
}

// PCM16 encodes w as little-endian int16 PCM, clipping to the int16 range.
func (w *Waveform) PCM16() []byte {
	out := make([]byte, len(w.Samples)*2)
	for i, v := range w.Int16() {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// Int16 returns the interleaved samples as int16, clipping to the int16
// range.
func (w *Waveform) Int16() []int16 {
	out := make([]int16, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = int16(clampSample(s))
	}
	return out
}

func clampSample(s float64) float64 {
	v := math.Round(s * 32768)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
