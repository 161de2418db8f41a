package pipeline

import (
	"math/rand/v2"

	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/internal/resolve"
	"github.com/MrWong99/emotivox/pkg/audio"
)

// Adjustments are the direct edits applied to an already rendered file.
type Adjustments struct {
	Speed  float64 // 1 is unchanged; clamped to [0.5, 2]
	Pitch  float64 // semitones, clamped to [-10, 10]
	Volume float64 // dB, clamped to [-10, 10]

	Bass, Mid, Treble float64 // three-band EQ gains in dB

	Effect          preset.Effect
	EffectIntensity float64 // wet share in [0, 1]
}

// Adjust applies speed, pitch, volume, three-band EQ and the mixed effect in
// that order. Unlike [Pipeline.Run] any failure is returned.
func Adjust(w *audio.Waveform, a Adjustments, rng *rand.Rand) (*audio.Waveform, error) {
	if a.Speed == 0 {
		a.Speed = 1
	}
	params := resolve.EffectiveParameters{
		Speed:  max(resolve.MinSpeed, min(resolve.MaxSpeed, a.Speed)),
		Pitch:  max(resolve.MinPitch, min(resolve.MaxPitch, a.Pitch)),
		Volume: max(resolve.MinVolume, min(resolve.MaxVolume, a.Volume)),
	}
	rc := &runContext{params: params, rng: rng}

	out := w
	var err error
	if params.Speed != 1 {
		if out, err = applySpeed(rc, out); err != nil {
			return nil, err
		}
	}
	if params.Pitch != 0 {
		if out, err = applyPitch(rc, out); err != nil {
			return nil, err
		}
	}
	if params.Volume != 0 {
		out, _ = applyVolume(rc, out)
	}
	if out, err = ThreeBandEQ(out, a.Bass, a.Mid, a.Treble); err != nil {
		return nil, err
	}
	if a.Effect == "" {
		return out, nil
	}
	return MixEffect(out, a.Effect, a.EffectIntensity, rng)
}
