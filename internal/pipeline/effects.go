package pipeline

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/audio/dsp"
)

type effectFunc func(w *audio.Waveform, rng *rand.Rand) (*audio.Waveform, error)

// tap is one delayed, attenuated copy.
type tap struct {
	delay time.Duration
	gain  float64
}

var effectTable = map[preset.Effect]effectFunc{
	preset.EffectNone: func(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
		return w.Clone(), nil
	},
	preset.EffectEcho:      echo,
	preset.EffectReverb:    reverb,
	preset.EffectChorus:    chorus,
	preset.EffectDistort:   distortion,
	preset.EffectTelephone: telephone,
	preset.EffectMegaphone: megaphone,
	preset.EffectWhisper:   whisperEffect,
	preset.EffectEthereal:  ethereal,
	preset.EffectDuet:      duet,
}

// ApplyEffect runs the named effect over w.
func ApplyEffect(w *audio.Waveform, effect preset.Effect, rng *rand.Rand) (*audio.Waveform, error) {
	fn, ok := effectTable[effect]
	if !ok {
		return nil, fmt.Errorf("unknown audio effect %q", effect)
	}
	return fn(w, rng)
}

// MixEffect blends the effected signal with the dry signal. intensity is
// clamped to [0, 1]; 1 is fully wet.
func MixEffect(w *audio.Waveform, effect preset.Effect, intensity float64, rng *rand.Rand) (*audio.Waveform, error) {
	intensity = max(0, min(1, intensity))
	if intensity == 0 || effect == preset.EffectNone {
		return w.Clone(), nil
	}
	wet, err := ApplyEffect(w, effect, rng)
	if err != nil {
		return nil, err
	}
	if intensity == 1 {
		return wet, nil
	}
	dry := dsp.Gain(w, dsp.AmplitudeToDB(1-intensity))
	return dsp.Mix(dry, dsp.Gain(wet, dsp.AmplitudeToDB(intensity)), 0), nil
}

func taps(w *audio.Waveform, ts []tap) *audio.Waveform {
	out := w
	for _, t := range ts {
		out = dsp.Mix(out, dsp.Gain(w, t.gain), t.delay)
	}
	return out
}

func echo(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
	return taps(w, []tap{
		{delay: 250 * time.Millisecond, gain: -6},
		{delay: 500 * time.Millisecond, gain: -12},
	}), nil
}

func reverb(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
	return taps(w, []tap{
		{delay: 50 * time.Millisecond, gain: -9},
		{delay: 90 * time.Millisecond, gain: -11},
		{delay: 140 * time.Millisecond, gain: -13},
		{delay: 200 * time.Millisecond, gain: -15},
		{delay: 270 * time.Millisecond, gain: -18},
		{delay: 350 * time.Millisecond, gain: -21},
	}), nil
}

func chorus(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
	voices := []struct {
		rate  float64
		delay time.Duration
		gain  float64
	}{
		{rate: 1.003, delay: 20 * time.Millisecond, gain: -8},
		{rate: 0.997, delay: 30 * time.Millisecond, gain: -8},
		{rate: 1.005, delay: 40 * time.Millisecond, gain: -10},
	}
	out := w
	for _, v := range voices {
		out = dsp.Overlay(out, dsp.Gain(dsp.ShiftRate(w, v.rate), v.gain), v.delay)
	}
	return out, nil
}

func distortion(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
	out := dsp.Compressor{ThresholdDB: -30, Ratio: 10, AttackMS: 1, ReleaseMS: 20}.Apply(w)
	out, err := dsp.Chain(out, ls(200, 4), hs(3000, 4))
	if err != nil {
		return nil, err
	}
	return dsp.Gain(out, 6), nil
}

func telephone(w *audio.Waveform, rng *rand.Rand) (*audio.Waveform, error) {
	out, err := dsp.BandLimit(w, 300, 3400)
	if err != nil {
		return nil, err
	}
	out = dsp.Compress(out, -20, 4)
	return dsp.NoiseBed(out, rng, -42), nil
}

func megaphone(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
	out, err := dsp.BandLimit(w, 600, 4000)
	if err != nil {
		return nil, err
	}
	out = dsp.Compressor{ThresholdDB: -25, Ratio: 8, AttackMS: 2, ReleaseMS: 40}.Apply(out)
	return dsp.Gain(out, 5), nil
}

func whisperEffect(w *audio.Waveform, rng *rand.Rand) (*audio.Waveform, error) {
	out, err := dsp.HighPassFilter(dsp.Gain(w, -8), 1500)
	if err != nil {
		return nil, err
	}
	return dsp.NoiseBed(out, rng, -36), nil
}

func ethereal(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
	out := taps(w, []tap{
		{delay: 100 * time.Millisecond, gain: -8},
		{delay: 180 * time.Millisecond, gain: -10},
		{delay: 270 * time.Millisecond, gain: -12},
		{delay: 370 * time.Millisecond, gain: -14},
		{delay: 480 * time.Millisecond, gain: -16},
		{delay: 600 * time.Millisecond, gain: -18},
		{delay: 730 * time.Millisecond, gain: -20},
	})
	out = dsp.Overlay(out, dsp.Gain(dsp.ShiftRate(w, 1.004), -12), 25*time.Millisecond)
	shimmer, err := dsp.HighShelfFilter(dsp.ShiftSemitones(w, 12), 6000, 6)
	if err != nil {
		return nil, err
	}
	return dsp.Overlay(out, dsp.Gain(shimmer, -18), 0), nil
}

func duet(w *audio.Waveform, _ *rand.Rand) (*audio.Waveform, error) {
	out := dsp.Overlay(w, dsp.Gain(dsp.ShiftSemitones(w, 4), -4), 30*time.Millisecond)
	return dsp.Overlay(out, dsp.Gain(dsp.ShiftSemitones(w, -3), -6), 60*time.Millisecond), nil
}
