// Package dsp provides the small set of signal-processing primitives the
// render pipeline is built from: biquad shelf and pass filters, gain,
// dynamic-range compression, normalisation, overlay and noise generation.
//
// All functions are pure: the input [audio.Waveform] is never modified and a
// new waveform is returned. Precision targets "plausible" rather than
// mastering quality.
package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/MrWong99/emotivox/pkg/audio"
)

// ErrInvalidFrequency is returned when a filter corner frequency or the
// sample rate is not positive.
var ErrInvalidFrequency = errors.New("dsp: invalid filter frequency")

// FilterKind selects a biquad response.
type FilterKind int

const (
	HighPass FilterKind = iota
	LowPass
	LowShelf
	HighShelf
	Peaking
)

// String returns the short filter name used in logs.
func (k FilterKind) String() string {
	switch k {
	case HighPass:
		return "high-pass"
	case LowPass:
		return "low-pass"
	case LowShelf:
		return "low-shelf"
	case HighShelf:
		return "high-shelf"
	case Peaking:
		return "peaking"
	}
	return fmt.Sprintf("filter(%d)", int(k))
}

// Filter describes one biquad section.
type Filter struct {
	Kind FilterKind
	Freq float64 // corner or centre frequency in Hz
	Gain float64 // dB; shelf and peaking only
	Q    float64 // 0 selects the Butterworth default (1/sqrt 2)
}

// String returns e.g. "high-shelf 4000Hz +3dB".
func (f Filter) String() string {
	switch f.Kind {
	case HighPass, LowPass:
		return fmt.Sprintf("%s %gHz", f.Kind, f.Freq)
	}
	return fmt.Sprintf("%s %gHz %+gdB", f.Kind, f.Freq, f.Gain)
}

type biquad struct {
	b0, b1, b2, a1, a2 float64
}

// maxCorner is the highest corner frequency as a fraction of the sample
// rate. Higher corners are clamped to it.
const maxCorner = 0.45

// coefficients follow the RBJ audio EQ cookbook.
func (f Filter) coefficients(sampleRate int) (biquad, error) {
	if sampleRate <= 0 || f.Freq <= 0 || math.IsNaN(f.Freq) {
		return biquad{}, fmt.Errorf("%w: %s at %d Hz sample rate", ErrInvalidFrequency, f, sampleRate)
	}
	freq := math.Min(f.Freq, maxCorner*float64(sampleRate))
	q := f.Q
	if q <= 0 {
		q = 1 / math.Sqrt2
	}
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosW, sinW := math.Cos(w0), math.Sin(w0)
	alpha := sinW / (2 * q)
	a := math.Pow(10, f.Gain/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch f.Kind {
	case HighPass:
		b0 = (1 + cosW) / 2
		b1 = -(1 + cosW)
		b2 = (1 + cosW) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case LowPass:
		b0 = (1 - cosW) / 2
		b1 = 1 - cosW
		b2 = (1 - cosW) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case LowShelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cosW + sq)
		b1 = 2 * a * ((a - 1) - (a+1)*cosW)
		b2 = a * ((a + 1) - (a-1)*cosW - sq)
		a0 = (a + 1) + (a-1)*cosW + sq
		a1 = -2 * ((a - 1) + (a+1)*cosW)
		a2 = (a + 1) + (a-1)*cosW - sq
	case HighShelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cosW + sq)
		b1 = -2 * a * ((a - 1) + (a+1)*cosW)
		b2 = a * ((a + 1) + (a-1)*cosW - sq)
		a0 = (a + 1) - (a-1)*cosW + sq
		a1 = 2 * ((a - 1) - (a+1)*cosW)
		a2 = (a + 1) - (a-1)*cosW - sq
	case Peaking:
		b0 = 1 + alpha*a
		b1 = -2 * cosW
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cosW
		a2 = 1 - alpha/a
	default:
		return biquad{}, fmt.Errorf("dsp: unknown filter kind %d", int(f.Kind))
	}
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}, nil
}

// Apply runs the filter over every channel of w.
func (f Filter) Apply(w *audio.Waveform) (*audio.Waveform, error) {
	c, err := f.coefficients(w.SampleRate)
	if err != nil {
		return nil, err
	}
	out := w.Clone()
	ch := max(w.Channels, 1)
	frames := w.Frames()
	for c0 := range ch {
		var x1, x2, y1, y2 float64
		for i := range frames {
			idx := i*ch + c0
			x := out.Samples[idx]
			y := c.b0*x + c.b1*x1 + c.b2*x2 - c.a1*y1 - c.a2*y2
			x2, x1 = x1, x
			y2, y1 = y1, y
			out.Samples[idx] = y
		}
	}
	return out, nil
}

// Chain applies filters in order. The first failing filter aborts the chain
// and its error is returned; w is left untouched.
func Chain(w *audio.Waveform, filters ...Filter) (*audio.Waveform, error) {
	out := w
	for _, f := range filters {
		var err error
		out, err = f.Apply(out)
		if err != nil {
			return nil, err
		}
	}
	if out == w {
		return w.Clone(), nil
	}
	return out, nil
}

// HighPassFilter attenuates content below freq.
func HighPassFilter(w *audio.Waveform, freq float64) (*audio.Waveform, error) {
	return Filter{Kind: HighPass, Freq: freq}.Apply(w)
}

// LowPassFilter attenuates content above freq.
func LowPassFilter(w *audio.Waveform, freq float64) (*audio.Waveform, error) {
	return Filter{Kind: LowPass, Freq: freq}.Apply(w)
}

// LowShelfFilter boosts or cuts content below freq by gainDB.
func LowShelfFilter(w *audio.Waveform, freq, gainDB float64) (*audio.Waveform, error) {
	return Filter{Kind: LowShelf, Freq: freq, Gain: gainDB}.Apply(w)
}

// HighShelfFilter boosts or cuts content above freq by gainDB.
func HighShelfFilter(w *audio.Waveform, freq, gainDB float64) (*audio.Waveform, error) {
	return Filter{Kind: HighShelf, Freq: freq, Gain: gainDB}.Apply(w)
}

// BandLimit keeps content between low and high Hz.
func BandLimit(w *audio.Waveform, low, high float64) (*audio.Waveform, error) {
	return Chain(w, Filter{Kind: HighPass, Freq: low}, Filter{Kind: LowPass, Freq: high})
}
