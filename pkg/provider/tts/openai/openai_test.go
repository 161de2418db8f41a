package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/emotivox/pkg/audio"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	s, err := New("key", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.model != DefaultModel {
		t.Errorf("model = %q, want %q", s.model, DefaultModel)
	}
	if s.voice != DefaultVoice {
		t.Errorf("voice = %q, want %q", s.voice, DefaultVoice)
	}
	if s.Name() != "openai" {
		t.Errorf("Name() = %q", s.Name())
	}
}

func TestAcceptsInstructions(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"tts-1", false},
		{"tts-1-hd", false},
		{"gpt-4o-mini-tts", true},
	}
	for _, tt := range tests {
		if got := acceptsInstructions(tt.model); got != tt.want {
			t.Errorf("acceptsInstructions(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestSynthesize(t *testing.T) {
	tone := audio.NewWaveform(24000, 1, 2400)
	for i := range tone.Samples {
		tone.Samples[i] = 0.1
	}

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(audio.EncodeWAV(tone))
	}))
	defer srv.Close()

	s, err := New("key", "gpt-4o-mini-tts", WithBaseURL(srv.URL), WithVoice("nova"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := s.Synthesize(context.Background(), "Hello world", "en")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if w.Frames() != 2400 || w.SampleRate != 24000 {
		t.Errorf("waveform = %d frames at %d Hz, want 2400 at 24000", w.Frames(), w.SampleRate)
	}

	want := map[string]string{
		"input":           "Hello world",
		"model":           "gpt-4o-mini-tts",
		"voice":           "nova",
		"response_format": "wav",
		"instructions":    neutralInstructions,
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("request %s = %v, want %q", k, body[k], v)
		}
	}
}

func TestSynthesize_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"input too long","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	s, err := New("key", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "Hello", "en"); err == nil {
		t.Fatal("expected error for API failure")
	}
}
