package render

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/audio/encode"
)

// Format is an output container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// ParseFormat maps s to a known format. Anything unrecognised is mp3.
func ParseFormat(s string) Format {
	if Format(strings.ToLower(strings.TrimSpace(s))) == FormatWAV {
		return FormatWAV
	}
	return FormatMP3
}

// FileName builds "{language}_{voiceType}_{emotion}_{id}.{format}".
func FileName(language, voiceType, emotion, id string, f Format) string {
	return fmt.Sprintf("%s_%s_%s_%s.%s", language, voiceType, emotion, id, f)
}

// ExporterOption configures an [Exporter].
type ExporterOption func(*Exporter)

// WithEncoder replaces the default in-process MP3 encoder. nil is ignored.
func WithEncoder(enc encode.MP3Encoder) ExporterOption {
	return func(e *Exporter) {
		if enc != nil {
			e.encoder = enc
		}
	}
}

// WithBitrate sets the MP3 bitrate in kbps. Default: 192.
func WithBitrate(kbps int) ExporterOption {
	return func(e *Exporter) {
		if kbps > 0 {
			e.bitrate = kbps
		}
	}
}

// Exporter writes waveforms into one output directory. Each file is written
// to a uniquely named temp file first and renamed into place, so readers
// never see partial output and a failed export leaves nothing behind.
type Exporter struct {
	dir     string
	encoder encode.MP3Encoder
	bitrate int
}

// NewExporter returns an exporter writing into dir.
func NewExporter(dir string, opts ...ExporterOption) *Exporter {
	e := &Exporter{dir: dir, encoder: encode.Native{}, bitrate: encode.DefaultBitrateKbps}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// Export writes w as name in format f and returns the final path.
func (e *Exporter) Export(ctx context.Context, w *audio.Waveform, name string, f Format) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("render: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(e.dir, ".render-*.tmp")
	if err != nil {
		return "", fmt.Errorf("render: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	switch f {
	case FormatWAV:
		err = audio.WriteWAV(tmp, w)
	default:
		err = e.encoder.EncodeMP3(ctx, tmp, w, e.bitrate)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("render: write %s: %w", f, err)
	}

	final := filepath.Join(e.dir, name)
	if err := os.Rename(tmpPath, final); err != nil {
		return "", fmt.Errorf("render: move into place: %w", err)
	}
	return final, nil
}

// Locate resolves a reference to a previously exported file. ref may be a
// bare file name, a public URL path such as "/audio/x.wav" or a path inside
// the output directory; only its last element is used.
func (e *Exporter) Locate(ref string) (string, error) {
	name := path.Base(filepath.ToSlash(strings.TrimSpace(ref)))
	if name == "." || name == "/" || !filepath.IsLocal(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("render: invalid audio path %q", ref)
	}
	p := filepath.Join(e.dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("render: audio file %q: %w", name, err)
	}
	return p, nil
}

// Load decodes a previously exported wav or mp3 file.
func Load(p string) (*audio.Waveform, Format, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(p)) {
	case ".wav":
		w, err := audio.ReadWAV(f)
		return w, FormatWAV, err
	case ".mp3":
		w, err := audio.DecodeMP3(f)
		return w, FormatMP3, err
	}
	return nil, "", fmt.Errorf("render: unsupported audio file %q", filepath.Base(p))
}
