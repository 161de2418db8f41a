package pipeline

import (
	"fmt"

	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/audio/dsp"
)

func hp(freq float64) dsp.Filter { return dsp.Filter{Kind: dsp.HighPass, Freq: freq} }

func ls(freq, gain float64) dsp.Filter { return dsp.Filter{Kind: dsp.LowShelf, Freq: freq, Gain: gain} }

func hs(freq, gain float64) dsp.Filter { return dsp.Filter{Kind: dsp.HighShelf, Freq: freq, Gain: gain} }

// eqProfiles maps each profile to the filters applied in order.
var eqProfiles = map[preset.EQProfile][]dsp.Filter{
	preset.EQFlat:    nil,
	preset.EQBright:  {hp(180), hs(4000, 3)},
	preset.EQMuffled: {ls(200, 2), hs(3000, -2)},
	preset.EQSharp:   {hp(150), ls(400, -1), hs(3000, 4)},
	preset.EQWarm:    {ls(250, 2), hs(8000, -1)},
	preset.EQTinny:   {hp(300), hs(4000, 3)},
	preset.EQAiry:    {hp(500), hs(6000, 4)},
	preset.EQHarsh:   {hp(200), ls(300, 2), hs(2000, 3)},
}

// EQFilters returns the filter sequence for profile.
func EQFilters(profile preset.EQProfile) ([]dsp.Filter, bool) {
	f, ok := eqProfiles[profile]
	return append([]dsp.Filter(nil), f...), ok
}

// ApplyEQ runs the filter sequence of profile over w.
func ApplyEQ(w *audio.Waveform, profile preset.EQProfile) (*audio.Waveform, error) {
	filters, ok := eqProfiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown eq profile %q", profile)
	}
	return dsp.Chain(w, filters...)
}

// ThreeBandEQ applies bass (low shelf 250 Hz), mid (peaking 1 kHz) and
// treble (high shelf 4 kHz) gains in dB. Zero bands are skipped.
func ThreeBandEQ(w *audio.Waveform, bass, mid, treble float64) (*audio.Waveform, error) {
	var filters []dsp.Filter
	if bass != 0 {
		filters = append(filters, ls(250, bass))
	}
	if mid != 0 {
		filters = append(filters, dsp.Filter{Kind: dsp.Peaking, Freq: 1000, Gain: mid, Q: 0.9})
	}
	if treble != 0 {
		filters = append(filters, hs(4000, treble))
	}
	return dsp.Chain(w, filters...)
}
