package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// ErrNotWAV is returned by [DecodeWAV] when the input lacks a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

type wavInfo struct {
	DataOffset    int
	DataSize      int
	AudioFormat   int
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DecodeWAV parses a WAV file held in memory. 8, 16, 24 and 32-bit integer
// PCM and 32-bit IEEE float are supported.
func DecodeWAV(wav []byte) (*Waveform, error) {
	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}
	end := info.DataOffset + info.DataSize
	if info.DataSize <= 0 || end > len(wav) {
		// Streaming writers often leave the data size at 0 or 0xFFFFFFFF.
		end = len(wav)
	}
	data := wav[info.DataOffset:end]

	switch {
	case info.AudioFormat == wavFormatPCM && info.BitsPerSample == 16:
		return FromPCM16(data, info.SampleRate, info.Channels), nil
	case info.AudioFormat == wavFormatPCM && info.BitsPerSample == 8:
		w := &Waveform{Samples: make([]float64, len(data)), SampleRate: info.SampleRate, Channels: info.Channels}
		for i, b := range data {
			w.Samples[i] = (float64(b) - 128) / 128
		}
		return trimPartialFrame(w), nil
	case info.AudioFormat == wavFormatPCM && info.BitsPerSample == 24:
		n := len(data) / 3
		w := &Waveform{Samples: make([]float64, n), SampleRate: info.SampleRate, Channels: info.Channels}
		for i := range n {
			v := int32(data[i*3]) | int32(data[i*3+1])<<8 | int32(int8(data[i*3+2]))<<16
			w.Samples[i] = float64(v) / (1 << 23)
		}
		return trimPartialFrame(w), nil
	case info.AudioFormat == wavFormatPCM && info.BitsPerSample == 32:
		n := len(data) / 4
		w := &Waveform{Samples: make([]float64, n), SampleRate: info.SampleRate, Channels: info.Channels}
		for i := range n {
			w.Samples[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:]))) / (1 << 31)
		}
		return trimPartialFrame(w), nil
	case info.AudioFormat == wavFormatFloat && info.BitsPerSample == 32:
		n := len(data) / 4
		w := &Waveform{Samples: make([]float64, n), SampleRate: info.SampleRate, Channels: info.Channels}
		for i := range n {
			w.Samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
		return trimPartialFrame(w), nil
	}
	return nil, fmt.Errorf("audio: unsupported WAV encoding (format %d, %d bits)", info.AudioFormat, info.BitsPerSample)
}

// ReadWAV reads r to EOF and decodes it with [DecodeWAV].
func ReadWAV(r io.Reader) (*Waveform, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read wav: %w", err)
	}
	return DecodeWAV(data)
}

// EncodeWAV wraps w in a 16-bit PCM WAV container.
func EncodeWAV(w *Waveform) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes never fail.
	_ = WriteWAV(&buf, w)
	return buf.Bytes()
}

// WriteWAV writes w to dst as a 16-bit PCM WAV file.
func WriteWAV(dst io.Writer, w *Waveform) error {
	pcm := w.PCM16()
	channels := max(w.Channels, 1)
	const bytesPerSample = 2
	dataLen := len(pcm)

	hdr := make([]byte, 0, 44)
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(36+dataLen))
	hdr = append(hdr, "WAVE"...)

	hdr = append(hdr, "fmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 16)
	hdr = binary.LittleEndian.AppendUint16(hdr, wavFormatPCM)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(channels))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(w.SampleRate))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(w.SampleRate*channels*bytesPerSample))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(channels*bytesPerSample))
	hdr = binary.LittleEndian.AppendUint16(hdr, bytesPerSample*8)

	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(dataLen))

	if _, err := dst.Write(hdr); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := dst.Write(pcm); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// parseWAV walks the RIFF chunks of a WAV file and returns the format and
// location of the PCM data chunk.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, ErrNotWAV
	}

	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return wavInfo{}, errors.New("audio: truncated WAV fmt chunk")
			}
			fmtData := wav[offset+8:]
			info.AudioFormat = int(binary.LittleEndian.Uint16(fmtData[0:2]))
			info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			// WAVE_FORMAT_EXTENSIBLE carries the real format in the sub-format GUID.
			if info.AudioFormat == 0xFFFE && chunkSize >= 26 && offset+8+26 <= len(wav) {
				info.AudioFormat = int(binary.LittleEndian.Uint16(fmtData[24:26]))
			}
			foundFmt = true
		case "data":
			if !foundFmt {
				return wavInfo{}, errors.New("audio: WAV data chunk before fmt chunk")
			}
			if info.Channels < 1 || info.SampleRate <= 0 {
				return wavInfo{}, fmt.Errorf("audio: invalid WAV format %s", formatString(info.SampleRate, info.Channels))
			}
			info.DataOffset = offset + 8
			info.DataSize = chunkSize
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if odd size.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("audio: WAV missing data chunk")
}

func trimPartialFrame(w *Waveform) *Waveform {
	if w.Channels < 1 {
		w.Channels = 1
	}
	w.Samples = w.Samples[:len(w.Samples)-len(w.Samples)%w.Channels]
	return w
}
