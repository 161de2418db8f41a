package encode

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/braheezy/shine-mp3/pkg/mp3"

	"github.com/MrWong99/emotivox/pkg/audio"
)

// NativeSampleRate is the rate waveforms are resampled to when their own
// rate is not an MPEG-1 rate.
const NativeSampleRate = 44100

// mpeg1Rates are the sample rates an MPEG-1 Layer III stream can carry.
var mpeg1Rates = []int{32000, 44100, 48000}

// Native encodes MP3 in-process with shine. It needs no external binary.
// The stream bitrate is the encoder's fixed default; the bitrate argument
// of EncodeMP3 is ignored.
type Native struct{}

var _ MP3Encoder = Native{}

// EncodeMP3 writes w to dst as an MPEG-1 Layer III stream. Waveforms at
// other rates (the speed stage leaves rates like 27600 Hz) are resampled to
// [NativeSampleRate]; more than two channels are mixed down to stereo.
func (Native) EncodeMP3(ctx context.Context, dst io.Writer, w *audio.Waveform, _ int) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.Frames() == 0 {
		return fmt.Errorf("encode: empty waveform")
	}

	src := PrepareNative(w)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encode: mp3 encoder panic: %v", r)
		}
	}()
	if err := mp3.NewEncoder(src.SampleRate, src.Channels).Write(dst, src.Int16()); err != nil {
		return fmt.Errorf("encode: write mp3: %w", err)
	}
	return nil
}

// PrepareNative returns w converted to a rate and channel layout [Native]
// can encode. w is returned as is when it already fits.
func PrepareNative(w *audio.Waveform) *audio.Waveform {
	rate := w.SampleRate
	if !slices.Contains(mpeg1Rates, rate) {
		rate = NativeSampleRate
	}
	return audio.Match(w, rate, min(w.Channels, 2))
}
