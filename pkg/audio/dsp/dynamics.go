package dsp

import (
	"math"

	"github.com/MrWong99/emotivox/pkg/audio"
)

// silenceFloor is the level below which a waveform is treated as silent.
const silenceFloor = -96.0

// DBToAmplitude converts a decibel value to a linear amplitude ratio.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// AmplitudeToDB converts a linear amplitude ratio to decibels. Zero maps to
// negative infinity.
func AmplitudeToDB(a float64) float64 {
	if a <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(a)
}

// PeakDBFS returns the peak level of w in dBFS.
func PeakDBFS(w *audio.Waveform) float64 {
	return AmplitudeToDB(w.Peak())
}

// Gain scales every sample of w by db decibels.
func Gain(w *audio.Waveform, db float64) *audio.Waveform {
	out := w.Clone()
	if db == 0 {
		return out
	}
	g := DBToAmplitude(db)
	for i := range out.Samples {
		out.Samples[i] *= g
	}
	return out
}

// Normalize applies gain so the peak sits headroomDB below full scale.
// Silent input is returned unchanged.
func Normalize(w *audio.Waveform, headroomDB float64) *audio.Waveform {
	peak := PeakDBFS(w)
	if peak < silenceFloor {
		return w.Clone()
	}
	return Gain(w, -math.Abs(headroomDB)-peak)
}

// Compressor is a feed-forward peak compressor with exponential attack and
// release smoothing.
type Compressor struct {
	ThresholdDB float64
	Ratio       float64
	AttackMS    float64
	ReleaseMS   float64
}

// DefaultCompressor mirrors the common 4:1 at -20 dBFS setting.
func DefaultCompressor() Compressor {
	return Compressor{ThresholdDB: -20, Ratio: 4, AttackMS: 5, ReleaseMS: 50}
}

// Apply compresses w. Gain reduction is computed on the loudest channel of
// each frame and applied to all channels so the stereo image is kept.
// The output level never exceeds the input level.
func (c Compressor) Apply(w *audio.Waveform) *audio.Waveform {
	out := w.Clone()
	if c.Ratio <= 1 || w.SampleRate <= 0 {
		return out
	}
	ch := max(w.Channels, 1)
	attack := smoothing(c.AttackMS, w.SampleRate)
	release := smoothing(c.ReleaseMS, w.SampleRate)
	threshold := DBToAmplitude(c.ThresholdDB)

	var env float64
	for i := range w.Frames() {
		var level float64
		for c0 := range ch {
			if a := math.Abs(out.Samples[i*ch+c0]); a > level {
				level = a
			}
		}
		if level > env {
			env = attack*env + (1-attack)*level
		} else {
			env = release*env + (1-release)*level
		}
		if env <= threshold {
			continue
		}
		envDB := AmplitudeToDB(env)
		reduced := c.ThresholdDB + (envDB-c.ThresholdDB)/c.Ratio
		g := DBToAmplitude(reduced - envDB)
		for c0 := range ch {
			out.Samples[i*ch+c0] *= g
		}
	}
	return out
}

// Compress is shorthand for a [Compressor] with the given threshold and ratio
// and the default time constants.
func Compress(w *audio.Waveform, thresholdDB, ratio float64) *audio.Waveform {
	c := DefaultCompressor()
	c.ThresholdDB = thresholdDB
	c.Ratio = ratio
	return c.Apply(w)
}

func smoothing(ms float64, sampleRate int) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1 / (ms / 1000 * float64(sampleRate)))
}
