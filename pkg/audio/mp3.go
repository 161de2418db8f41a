package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo PCM,
// so the returned waveform has two channels.
func DecodeMP3(r io.Reader) (*Waveform, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("audio: open mp3 stream: %w", err)
	}
	var pcm bytes.Buffer
	if n := dec.Length(); n > 0 {
		pcm.Grow(int(n))
	}
	if _, err := io.Copy(&pcm, dec); err != nil {
		return nil, fmt.Errorf("audio: decode mp3: %w", err)
	}
	return FromPCM16(pcm.Bytes(), dec.SampleRate(), 2), nil
}
