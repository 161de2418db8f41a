// Package encode compresses waveforms to MP3. [Native] encodes in-process
// and is the default; [Exec] pipes WAV through an external lame or ffmpeg
// binary when one is configured.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/MrWong99/emotivox/pkg/audio"
)

// DefaultBitrateKbps is the MP3 bitrate used when none is given.
const DefaultBitrateKbps = 192

// MP3Encoder writes w to dst as MP3.
type MP3Encoder interface {
	EncodeMP3(ctx context.Context, dst io.Writer, w *audio.Waveform, bitrateKbps int) error
}

// Exec runs an encoder binary. The argument style is chosen from the
// binary's base name: anything containing "ffmpeg" gets ffmpeg flags,
// everything else lame flags.
type Exec struct {
	Path string
}

// Compile-time interface assertion.
var _ MP3Encoder = (*Exec)(nil)

// New returns an encoder for the binary at path. A bare name such as "lame"
// is looked up on PATH when the encoder runs.
func New(path string) *Exec {
	return &Exec{Path: path}
}

// EncodeMP3 streams w as 16-bit WAV into the encoder's stdin and copies its
// stdout to dst.
func (e *Exec) EncodeMP3(ctx context.Context, dst io.Writer, w *audio.Waveform, bitrateKbps int) error {
	if bitrateKbps <= 0 {
		bitrateKbps = DefaultBitrateKbps
	}

	cmd := exec.CommandContext(ctx, e.Path, e.args(bitrateKbps)...)
	cmd.Stdin = bytes.NewReader(audio.EncodeWAV(w))
	cmd.Stdout = dst

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("encode: %s failed: %w (stderr: %s)",
			filepath.Base(e.Path), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (e *Exec) args(kbps int) []string {
	if strings.Contains(strings.ToLower(filepath.Base(e.Path)), "ffmpeg") {
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "wav", "-i", "pipe:0",
			"-codec:a", "libmp3lame", "-b:a", fmt.Sprintf("%dk", kbps),
			"-f", "mp3", "pipe:1",
		}
	}
	return []string{"--quiet", "-b", fmt.Sprint(kbps), "-", "-"}
}
