// Package render turns one render request into an audio file.
//
// An [Orchestrator] moves each request through a fixed sequence of states:
//
//	Validating → Synthesizing → Transforming → Exporting → Done
//
// Any state may end in Failed. Empty text fails validation with an
// [*EmptyInputError]. A synthesis error is surfaced verbatim. Pipeline
// stage errors never fail a render; they are reported in
// [Result.StageErrors]. An export error fails the render.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/internal/resolve"
)

// State is a step of the render state machine.
type State int

const (
	Validating State = iota
	Synthesizing
	Transforming
	Exporting
	Done
	Failed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Synthesizing:
		return "synthesizing"
	case Transforming:
		return "transforming"
	case Exporting:
		return "exporting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrEmptyInput is matched by every [*EmptyInputError].
var ErrEmptyInput = errors.New("render: empty input")

// EmptyInputError reports a request whose text is blank.
type EmptyInputError struct{}

func (*EmptyInputError) Error() string { return "Text cannot be empty" }

func (*EmptyInputError) Unwrap() error { return ErrEmptyInput }

// Request is one render request as delivered by the transport layer.
type Request struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	Emotion      string `json:"emotion"`
	VoiceType    string `json:"voice_type"`
	ProsodyLevel string `json:"prosody_level"`
	AudioEffect  string `json:"audio_effect"`
	Format       string `json:"format"`

	// Optional overrides of the preset values.
	Speed  *float64 `json:"speed,omitempty"`
	Pitch  *float64 `json:"pitch,omitempty"`
	Volume *float64 `json:"volume,omitempty"`

	resolve.Flags
}

func (r Request) resolveRequest() resolve.Request {
	return resolve.Request{
		Language:     r.Language,
		Emotion:      r.Emotion,
		VoiceType:    r.VoiceType,
		ProsodyLevel: r.ProsodyLevel,
		AudioEffect:  r.AudioEffect,
		CustomSpeed:  r.Speed,
		CustomPitch:  r.Pitch,
		CustomVolume: r.Volume,
		Flags:        r.Flags,
	}
}

// Result describes the outcome of one render. On success the acoustic
// fields hold the resolved values actually used, not the requested ones.
type Result struct {
	ID              string        `json:"id"`
	Success         bool          `json:"success"`
	FilePath        string        `json:"file_path,omitempty"`
	Language        string        `json:"language"`
	VoiceType       string        `json:"voice_type"`
	Emotion         string        `json:"emotion"`
	Speed           float64       `json:"speed"`
	Pitch           float64       `json:"pitch"`
	Volume          float64       `json:"volume"`
	AudioEffect     preset.Effect `json:"audio_effect"`
	Format          Format        `json:"format"`
	DurationSeconds float64       `json:"duration_seconds"`
	Error           string        `json:"error,omitempty"`
	WordCount       int           `json:"word_count"`
	Warnings        []string      `json:"warnings,omitempty"`
	StageErrors     []string      `json:"stage_errors,omitempty"`
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
