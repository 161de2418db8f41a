package dsp_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/audio/dsp"
)

func sine(rate int, freq float64, d time.Duration, amp float64) *audio.Waveform {
	w := audio.Silence(rate, 1, d)
	for i := range w.Samples {
		w.Samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return w
}

// steadyRMS measures RMS after skipping the filter's settling time.
func steadyRMS(w *audio.Waveform) float64 {
	return w.Slice(w.Frames()/4, w.Frames()).RMS()
}

func TestFilters_Response(t *testing.T) {
	const rate = 44100
	tests := []struct {
		name   string
		filter dsp.Filter
		freq   float64
		// want is the expected gain ratio (out/in RMS) range.
		wantMin, wantMax float64
	}{
		{name: "high-pass cuts lows", filter: dsp.Filter{Kind: dsp.HighPass, Freq: 800}, freq: 100, wantMin: 0, wantMax: 0.1},
		{name: "high-pass keeps highs", filter: dsp.Filter{Kind: dsp.HighPass, Freq: 800}, freq: 5000, wantMin: 0.95, wantMax: 1.05},
		{name: "low-pass cuts highs", filter: dsp.Filter{Kind: dsp.LowPass, Freq: 3000}, freq: 15000, wantMin: 0, wantMax: 0.1},
		{name: "low-pass keeps lows", filter: dsp.Filter{Kind: dsp.LowPass, Freq: 3000}, freq: 200, wantMin: 0.95, wantMax: 1.05},
		{name: "high-shelf boost", filter: dsp.Filter{Kind: dsp.HighShelf, Freq: 3000, Gain: 6}, freq: 12000, wantMin: 1.8, wantMax: 2.1},
		{name: "low-shelf cut", filter: dsp.Filter{Kind: dsp.LowShelf, Freq: 400, Gain: -6}, freq: 50, wantMin: 0.45, wantMax: 0.56},
		{name: "peaking boost", filter: dsp.Filter{Kind: dsp.Peaking, Freq: 1000, Gain: 6, Q: 1}, freq: 1000, wantMin: 1.8, wantMax: 2.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sine(rate, tt.freq, 500*time.Millisecond, 0.25)
			out, err := tt.filter.Apply(in)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			ratio := steadyRMS(out) / steadyRMS(in)
			if ratio < tt.wantMin || ratio > tt.wantMax {
				t.Errorf("gain ratio = %.3f, want [%.2f, %.2f]", ratio, tt.wantMin, tt.wantMax)
			}
			if out.Frames() != in.Frames() {
				t.Errorf("Frames() = %d, want %d", out.Frames(), in.Frames())
			}
		})
	}
}

func TestFilter_InvalidFrequency(t *testing.T) {
	w := sine(8000, 200, 100*time.Millisecond, 0.5)
	for _, f := range []dsp.Filter{
		{Kind: dsp.HighPass, Freq: 0},
		{Kind: dsp.LowPass, Freq: -5},
		{Kind: dsp.HighShelf, Freq: math.NaN(), Gain: 2},
	} {
		if _, err := f.Apply(w); !errors.Is(err, dsp.ErrInvalidFrequency) {
			t.Errorf("%s: err = %v, want ErrInvalidFrequency", f, err)
		}
	}
	if _, err := (dsp.Filter{Kind: dsp.HighPass, Freq: 100}).Apply(&audio.Waveform{Channels: 1}); !errors.Is(err, dsp.ErrInvalidFrequency) {
		t.Errorf("zero sample rate: err = %v, want ErrInvalidFrequency", err)
	}
}

func TestFilter_ClampsCornerOnNarrowBand(t *testing.T) {
	// 8 kHz audio, as left by a half-speed render of 16 kHz synthesis.
	const rate = 8000
	tests := []struct {
		name             string
		filter           dsp.Filter
		freq             float64
		wantMin, wantMax float64
	}{
		{name: "shelf at nyquist leaves lows", filter: dsp.Filter{Kind: dsp.HighShelf, Freq: 4000, Gain: 6}, freq: 200, wantMin: 0.95, wantMax: 1.1},
		{name: "shelf past nyquist boosts top", filter: dsp.Filter{Kind: dsp.HighShelf, Freq: 6000, Gain: 6}, freq: 3900, wantMin: 1.2, wantMax: 2.1},
		{name: "low-pass past nyquist keeps band", filter: dsp.Filter{Kind: dsp.LowPass, Freq: 12000}, freq: 500, wantMin: 0.95, wantMax: 1.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sine(rate, tt.freq, 500*time.Millisecond, 0.25)
			out, err := tt.filter.Apply(in)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			for i, s := range out.Samples {
				if math.IsNaN(s) || math.IsInf(s, 0) {
					t.Fatalf("sample %d = %v", i, s)
				}
			}
			ratio := steadyRMS(out) / steadyRMS(in)
			if ratio < tt.wantMin || ratio > tt.wantMax {
				t.Errorf("gain ratio = %.3f, want [%.2f, %.2f]", ratio, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestChain_FailureLeavesInput(t *testing.T) {
	w := sine(8000, 200, 100*time.Millisecond, 0.5)
	before := w.Clone()
	_, err := dsp.Chain(w, dsp.Filter{Kind: dsp.HighPass, Freq: 100}, dsp.Filter{Kind: dsp.HighShelf, Freq: 0, Gain: 2})
	if err == nil {
		t.Fatal("expected error for a 0 Hz shelf")
	}
	for i := range w.Samples {
		if w.Samples[i] != before.Samples[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestGainAndNormalize(t *testing.T) {
	w := sine(16000, 440, 200*time.Millisecond, 0.5)

	louder := dsp.Gain(w, 6)
	if r := louder.Peak() / w.Peak(); math.Abs(r-dsp.DBToAmplitude(6)) > 1e-9 {
		t.Errorf("6 dB gain ratio = %v", r)
	}

	norm := dsp.Normalize(w, 0.5)
	if got := dsp.PeakDBFS(norm); math.Abs(got+0.5) > 1e-6 {
		t.Errorf("normalised peak = %.4f dBFS, want -0.5", got)
	}

	silent := audio.Silence(16000, 1, 100*time.Millisecond)
	if got := dsp.Normalize(silent, 1); got.Peak() != 0 {
		t.Errorf("normalising silence produced peak %v", got.Peak())
	}
}

func TestCompressor_NeverAmplifies(t *testing.T) {
	w := sine(22050, 300, 300*time.Millisecond, 0.9)
	out := dsp.Compress(w, -20, 6)
	for i := range w.Samples {
		if math.Abs(out.Samples[i]) > math.Abs(w.Samples[i])+1e-12 {
			t.Fatalf("sample %d amplified: %v -> %v", i, w.Samples[i], out.Samples[i])
		}
	}
	if out.Peak() >= w.Peak() {
		t.Errorf("peak not reduced: %v >= %v", out.Peak(), w.Peak())
	}

	quiet := sine(22050, 300, 300*time.Millisecond, 0.01)
	q := dsp.Compress(quiet, -20, 6)
	for i := range quiet.Samples {
		if q.Samples[i] != quiet.Samples[i] {
			t.Fatalf("signal below threshold changed at %d", i)
		}
	}
}

func TestOverlayAndMix(t *testing.T) {
	base := audio.Silence(8000, 1, time.Second)
	over := sine(8000, 100, 500*time.Millisecond, 0.5)

	o := dsp.Overlay(base, over, 800*time.Millisecond)
	if o.Frames() != base.Frames() {
		t.Errorf("Overlay Frames() = %d, want %d", o.Frames(), base.Frames())
	}

	m := dsp.Mix(base, over, 800*time.Millisecond)
	if want := 8000 * 13 / 10; m.Frames() != want {
		t.Errorf("Mix Frames() = %d, want %d", m.Frames(), want)
	}

	short := dsp.Mix(base, over, 0)
	if short.Frames() != base.Frames() {
		t.Errorf("Mix never shortens: got %d frames, want %d", short.Frames(), base.Frames())
	}
}

func TestOverlay_ConvertsFormat(t *testing.T) {
	base := audio.Silence(16000, 2, 100*time.Millisecond)
	over := sine(8000, 100, 100*time.Millisecond, 0.5)
	out := dsp.Overlay(base, over, 0)
	if out.Channels != 2 || out.SampleRate != 16000 {
		t.Errorf("format = %s, want 16000Hz stereo", audio.FormatOf(out))
	}
	if out.Peak() == 0 {
		t.Error("overlay produced silence")
	}
}

func TestWhiteNoise_Deterministic(t *testing.T) {
	a := dsp.WhiteNoise(rand.New(rand.NewPCG(1, 2)), 8000, 1, 100, -20)
	b := dsp.WhiteNoise(rand.New(rand.NewPCG(1, 2)), 8000, 1, 100, -20)
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("noise differs at %d with equal seeds", i)
		}
	}
	if a.Peak() > dsp.DBToAmplitude(-20) {
		t.Errorf("noise peak %v exceeds level", a.Peak())
	}
}

func TestShiftRate(t *testing.T) {
	w := sine(44100, 440, time.Second, 0.5)
	up := dsp.ShiftSemitones(w, 12)
	if up.SampleRate != w.SampleRate {
		t.Errorf("SampleRate = %d, want %d", up.SampleRate, w.SampleRate)
	}
	if got := up.Seconds(); math.Abs(got-0.5) > 0.001 {
		t.Errorf("octave up duration = %.4f s, want 0.5", got)
	}
	if same := dsp.ShiftRate(w, 1); same.Frames() != w.Frames() {
		t.Errorf("factor 1 changed length")
	}
}
