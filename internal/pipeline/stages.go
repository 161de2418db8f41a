package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/audio/dsp"
)

// Segment counts and probabilities for the stochastic stages.
const (
	variabilitySegments  = 10
	variabilityChance    = 0.5
	variabilityMinOffset = 0.1

	phraseChunks          = 20
	sentencePauseChance   = 0.15
	punctuationChance     = 0.30
	microPauseChance      = 0.20
	microPauseMinMS       = 30
	microPauseMaxMS       = 80
	emphasisChunks        = 30
	emphasisChunkChance   = 0.20
	intonationGainPerUnit = 3.0
	breathAmplitude       = 0.02

	questionRise = 1.03
	layerDetune  = 0.002
)

// EmphasisWords is the fixed list sentence dynamics looks for.
var EmphasisWords = []string{
	"very", "really", "extremely", "absolutely", "never", "always", "must",
	"important", "amazing", "incredible", "terrible", "love", "hate",
	"urgent", "critical", "definitely", "totally", "seriously",
}

var emphasisWordSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EmphasisWords))
	for _, w := range EmphasisWords {
		m[w] = struct{}{}
	}
	return m
}()

func standardStages() []stage {
	return []stage{
		{name: StageSpeed, active: func(rc *runContext) bool { return rc.params.Speed != 1 }, apply: applySpeed},
		{name: StagePitch, active: func(rc *runContext) bool { return rc.params.Pitch != 0 }, apply: applyPitch},
		{name: StageVolume, active: func(rc *runContext) bool { return rc.params.Volume != 0 }, apply: applyVolume},
		{name: StageEmphasis, active: func(rc *runContext) bool { return rc.params.Emphasis != 0 }, apply: applyEmphasis},
		{name: StageTimbre, active: func(rc *runContext) bool { return rc.params.Timbre != 0 }, apply: applyTimbre},
		{name: StageEQ, active: func(rc *runContext) bool {
			return rc.params.EQProfile != "" && rc.params.EQProfile != preset.EQFlat
		}, apply: applyEQ},
		{name: StageVariability, active: func(rc *runContext) bool { return rc.params.Variability > 0 }, apply: applyVariability},
		{name: StageEffect, active: func(rc *runContext) bool {
			return rc.params.AudioEffect != "" && rc.params.AudioEffect != preset.EffectNone
		}, apply: applyEffectStage},
		{name: StageProsody, active: func(rc *runContext) bool { return !rc.params.Prosody.IsZero() }, apply: applyProsody},
		{name: StageSentence, active: func(rc *runContext) bool {
			return rc.params.Flags.SentenceAnalysis && len(splitSentences(rc.text)) > 0
		}, apply: applySentenceDynamics},
		{name: StageLayering, active: func(rc *runContext) bool { return rc.params.Flags.VoiceLayering }, apply: applyLayering},
		{name: StageSpectral, active: func(rc *runContext) bool { return rc.params.Flags.SpectralEnhancement }, apply: applySpectral},
	}
}

// applySpeed reinterprets the samples at rate×speed. Pitch and duration
// change together and the altered rate is kept.
func applySpeed(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	rate := int(float64(w.SampleRate) * rc.params.Speed)
	if rate <= 0 {
		return nil, fmt.Errorf("speed %.2f gives invalid sample rate %d", rc.params.Speed, rate)
	}
	return audio.Reinterpret(w, rate), nil
}

// applyPitch reinterprets at rate×2^(pitch/12) and then resamples to the
// standard output rate.
func applyPitch(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	rate := int(float64(w.SampleRate) * dsp.SemitoneRatio(rc.params.Pitch))
	if rate <= 0 {
		return nil, fmt.Errorf("pitch %.2f gives invalid sample rate %d", rc.params.Pitch, rate)
	}
	return audio.Resample(audio.Reinterpret(w, rate), audio.StandardSampleRate), nil
}

func applyVolume(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	return dsp.Gain(w, rc.params.Volume), nil
}

// applyEmphasis compresses for positive emphasis and normalises with
// |emphasis| dB of headroom for negative emphasis.
func applyEmphasis(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	e := rc.params.Emphasis
	if e > 0 {
		ratio := math.Min(8, 2+e)
		threshold := -20 - 2*e
		return dsp.Compress(w, threshold, ratio), nil
	}
	return dsp.Normalize(w, math.Abs(e)), nil
}

func applyTimbre(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	if rc.params.Timbre > 0 {
		return dsp.HighPassFilter(w, 800)
	}
	return dsp.LowPassFilter(w, 3000)
}

func applyEQ(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	return ApplyEQ(w, rc.params.EQProfile)
}

// applyVariability splits w into segments and shifts a random half of them
// by up to ±variability/2 semitones.
func applyVariability(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	v := rc.params.Variability
	parts := w.Split(variabilitySegments)
	for i, seg := range parts {
		if rc.rng.Float64() >= variabilityChance {
			continue
		}
		offset := (rc.rng.Float64()*2 - 1) * v / 2
		if math.Abs(offset) <= variabilityMinOffset {
			continue
		}
		parts[i] = dsp.ShiftSemitones(seg, offset)
	}
	return audio.Concat(parts...), nil
}

func applyEffectStage(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	return ApplyEffect(w, rc.params.AudioEffect, rc.rng)
}

// applyProsody inserts pauses between pseudo-word chunks, boosts random
// chunks for intonation and overlays a breath bed.
func applyProsody(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	p := rc.params.Prosody
	out := phrase(rc, w)

	if p.EmphasisWords && rc.params.Flags.EnableEmphasis && p.IntonationStrength > 0 {
		chunks := out.Split(emphasisChunks)
		boost := p.IntonationStrength * intonationGainPerUnit
		for i, c := range chunks {
			if rc.rng.Float64() < emphasisChunkChance {
				chunks[i] = dsp.Gain(c, boost)
			}
		}
		out = audio.Concat(chunks...)
	}

	if p.Breathiness > 0 {
		out = dsp.NoiseBed(out, rc.rng, dsp.AmplitudeToDB(breathAmplitude*p.Breathiness))
	}
	return out, nil
}

func phrase(rc *runContext, w *audio.Waveform) *audio.Waveform {
	frames := w.Frames()
	if frames < phraseChunks {
		return w.Clone()
	}
	p := rc.params.Prosody
	base := frames / phraseChunks
	channels := max(w.Channels, 1)

	parts := make([]*audio.Waveform, 0, phraseChunks*2)
	pos := 0
	for i := 0; i < phraseChunks && pos < frames; i++ {
		n := frames - pos
		if i < phraseChunks-1 {
			jitter := (rc.rng.Float64()*2 - 1) * p.WordGapVariation
			n = max(1, min(int(float64(base)*(1+jitter)), frames-pos))
		}
		parts = append(parts, w.Slice(pos, pos+n))
		pos += n
		if pos >= frames {
			break
		}
		if d := rc.pause(); d > 0 {
			parts = append(parts, audio.Silence(w.SampleRate, channels, d))
		}
	}
	return audio.Concat(parts...)
}

// pause draws the silence to insert between two chunks.
func (rc *runContext) pause() time.Duration {
	p := rc.params.Prosody
	r := rc.rng.Float64()
	switch {
	case r < sentencePauseChance:
		return msDuration(p.SentencePauseMS)
	case r < sentencePauseChance+punctuationChance:
		return msDuration(p.PunctuationPauseMS)
	case r < sentencePauseChance+punctuationChance+microPauseChance:
		if p.MicroPauses && rc.params.Flags.MicroPauses {
			return time.Duration(microPauseMinMS+rc.rng.IntN(microPauseMaxMS-microPauseMinMS+1)) * time.Millisecond
		}
	}
	return 0
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// applySentenceDynamics maps period-delimited sentences onto equal slices of
// w. Slices whose sentence holds an emphasis word get +2 dB and light
// compression; question slices rise in pitch over their second half.
func applySentenceDynamics(rc *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	sentences := splitSentences(rc.text)
	slices := w.Split(len(sentences))
	for i, s := range slices {
		if i >= len(sentences) {
			break
		}
		sentence := sentences[i]
		if hasEmphasisWord(sentence) {
			s = dsp.Compress(dsp.Gain(s, 2), -18, 2)
		}
		if strings.Contains(sentence, "?") {
			half := s.Frames() / 2
			s = audio.Concat(s.Slice(0, half), dsp.ShiftRate(s.Slice(half, s.Frames()), questionRise))
		}
		slices[i] = s
	}
	return audio.Concat(slices...), nil
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasEmphasisWord(sentence string) bool {
	words := strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		if _, ok := emphasisWordSet[w]; ok {
			return true
		}
	}
	return false
}

// applyLayering overlays two detuned, attenuated copies with opposite
// shelving to thicken the voice. Length is unchanged.
func applyLayering(_ *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	bright, err := dsp.HighShelfFilter(dsp.Gain(dsp.ShiftRate(w, 1+layerDetune), -12), 3000, 3)
	if err != nil {
		return nil, err
	}
	dark, err := dsp.LowShelfFilter(dsp.Gain(dsp.ShiftRate(w, 1-layerDetune), -12), 300, 3)
	if err != nil {
		return nil, err
	}
	out := dsp.Overlay(w, bright, 12*time.Millisecond)
	return dsp.Overlay(out, dark, 24*time.Millisecond), nil
}

// spectralCrossover splits the low and high compression bands.
const spectralCrossover = 2000

var (
	spectralLowBand  = dsp.Compressor{ThresholdDB: -18, Ratio: 2, AttackMS: 15, ReleaseMS: 120}
	spectralHighBand = dsp.Compressor{ThresholdDB: -24, Ratio: 1.5, AttackMS: 5, ReleaseMS: 60}
)

// applySpectral brightens presence, compresses the bands either side of
// spectralCrossover separately and normalises the sum to -0.5 dBFS.
func applySpectral(_ *runContext, w *audio.Waveform) (*audio.Waveform, error) {
	out, err := dsp.Chain(w,
		dsp.Filter{Kind: dsp.HighPass, Freq: 100},
		dsp.Filter{Kind: dsp.HighShelf, Freq: 3000, Gain: 2},
		dsp.Filter{Kind: dsp.HighShelf, Freq: 5000, Gain: 1.5},
	)
	if err != nil {
		return nil, err
	}
	low, err := dsp.LowPassFilter(out, spectralCrossover)
	if err != nil {
		return nil, err
	}
	high, err := dsp.HighPassFilter(out, spectralCrossover)
	if err != nil {
		return nil, err
	}
	out = dsp.Overlay(spectralLowBand.Apply(low), spectralHighBand.Apply(high), 0)
	return dsp.Normalize(out, 0.5), nil
}
