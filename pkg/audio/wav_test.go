package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/emotivox/pkg/audio"
)

func TestWAVRoundTrip_PreservesDuration(t *testing.T) {
	for _, rate := range []int{8000, 22050, 44100, 50715} {
		w := sine(rate, 330, 1234*time.Millisecond, 0.4)
		got, err := audio.DecodeWAV(audio.EncodeWAV(w))
		if err != nil {
			t.Fatalf("rate %d: DecodeWAV: %v", rate, err)
		}
		if got.SampleRate != rate {
			t.Errorf("rate %d: SampleRate = %d", rate, got.SampleRate)
		}
		frame := time.Second / time.Duration(rate)
		if diff := got.Duration() - w.Duration(); diff > frame || diff < -frame {
			t.Errorf("rate %d: duration diff %v exceeds one frame (%v)", rate, diff, frame)
		}
	}
}

func TestWAVRoundTrip_Stereo(t *testing.T) {
	w := &audio.Waveform{Samples: []float64{0.5, -0.5, 0.25, -0.25}, SampleRate: 16000, Channels: 2}
	got, err := audio.ReadWAV(bytes.NewReader(audio.EncodeWAV(w)))
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if got.Channels != 2 || got.Frames() != 2 {
		t.Fatalf("got %d channels / %d frames, want 2/2", got.Channels, got.Frames())
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	w := &audio.Waveform{Samples: []float64{0.5, -0.5}, SampleRate: 22050, Channels: 1}
	plain := audio.EncodeWAV(w)

	// Insert a LIST chunk with an odd size between fmt and data.
	var buf bytes.Buffer
	buf.Write(plain[:36])
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{1, 2, 3, 0})
	buf.Write(plain[36:])

	got, err := audio.DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", got.Frames())
	}
}

func TestDecodeWAV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "too short", data: []byte("RIFF")},
		{name: "not riff", data: []byte("JUNKxxxxWAVEfmt ")},
		{name: "no data chunk", data: audio.EncodeWAV(&audio.Waveform{SampleRate: 8000, Channels: 1})[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audio.DecodeWAV(tt.data); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeWAV_NotWAV(t *testing.T) {
	_, err := audio.DecodeWAV([]byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00\x00"))
	if !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}
