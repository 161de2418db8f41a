package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/emotivox/pkg/audio"
)

// fakeServer accepts one stream, records the text messages and replies with
// the given frames.
type fakeServer struct {
	mu       sync.Mutex
	path     string
	query    map[string]string
	received []textMessage
	replies  []audioResponse
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	f.mu.Lock()
	f.path = r.URL.Path
	f.query = map[string]string{
		"model_id":      r.URL.Query().Get("model_id"),
		"output_format": r.URL.Query().Get("output_format"),
		"language_code": r.URL.Query().Get("language_code"),
	}
	f.mu.Unlock()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m textMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, m)
		f.mu.Unlock()
		if m.Text == "" {
			break
		}
	}
	for _, rep := range f.replies {
		data, _ := json.Marshal(rep)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
	// Wait for the client to close.
	_, _, _ = conn.Read(ctx)
}

func pcmFrame(t *testing.T, samples int) string {
	t.Helper()
	w := audio.NewWaveform(22050, 1, samples)
	for i := range w.Samples {
		w.Samples[i] = 0.25
	}
	return base64.StdEncoding.EncodeToString(w.PCM16())
}

func TestNew(t *testing.T) {
	t.Run("empty API key", func(t *testing.T) {
		if _, err := New(""); err == nil {
			t.Error("expected error for empty API key")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := New("key")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if s.model != defaultModel || s.voice != defaultVoice || s.sampleRate != 22050 {
			t.Errorf("defaults = %q %q %d", s.model, s.voice, s.sampleRate)
		}
		if s.Name() != "elevenlabs" {
			t.Errorf("Name() = %q", s.Name())
		}
	})

	t.Run("with options", func(t *testing.T) {
		s, err := New("key", WithModel("eleven_flash_v2_5"), WithOutputFormat("pcm_16000"), WithVoice("v1"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if s.model != "eleven_flash_v2_5" || s.sampleRate != 16000 || s.voice != "v1" {
			t.Errorf("options not applied: %+v", s)
		}
	})

	for _, format := range []string{"mp3_44100_128", "pcm_", "pcm_abc"} {
		t.Run("bad format "+format, func(t *testing.T) {
			if _, err := New("key", WithOutputFormat(format)); err == nil {
				t.Errorf("expected error for output format %q", format)
			}
		})
	}
}

func TestStreamURL(t *testing.T) {
	s, err := New("key", WithVoice("voice-abc123"), WithEndpoint("wss://example.test/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	u := s.streamURL("hi")
	for _, want := range []string{
		"wss://example.test/v1/text-to-speech/voice-abc123/stream-input?",
		"model_id=" + defaultModel,
		"output_format=pcm_22050",
		"language_code=hi",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("URL %q does not contain %q", u, want)
		}
	}
}

func TestSynthesize(t *testing.T) {
	fake := &fakeServer{replies: []audioResponse{
		{Audio: pcmFrame(t, 1000)},
		{Audio: pcmFrame(t, 500)},
		{IsFinal: true},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := New("secret", WithEndpoint(srv.URL), WithVoice("v1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := s.Synthesize(context.Background(), "Hello world", "en")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if w.Frames() != 1500 || w.SampleRate != 22050 || w.Channels != 1 {
		t.Errorf("waveform = %d frames at %d Hz/%d ch, want 1500 at 22050/1", w.Frames(), w.SampleRate, w.Channels)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.path != "/v1/text-to-speech/v1/stream-input" {
		t.Errorf("path = %q", fake.path)
	}
	if fake.query["language_code"] != "en" {
		t.Errorf("language_code = %q, want en", fake.query["language_code"])
	}
	if len(fake.received) != 3 {
		t.Fatalf("received %d messages, want 3", len(fake.received))
	}
	if fake.received[0].XiAPIKey != "secret" || fake.received[0].VoiceSettings == nil {
		t.Errorf("first message = %+v, want key and settings", fake.received[0])
	}
	if fake.received[1].Text != "Hello world " || fake.received[1].XiAPIKey != "" {
		t.Errorf("text message = %+v", fake.received[1])
	}
	if fake.received[2].Text != "" {
		t.Errorf("last message = %+v, want end-of-input", fake.received[2])
	}
}

func TestSynthesize_ServiceError(t *testing.T) {
	fake := &fakeServer{replies: []audioResponse{
		{Error: "quota_exceeded", Message: "This request exceeds your quota."},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := New("key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Synthesize(context.Background(), "Hello", "en")
	if err == nil || !strings.Contains(err.Error(), "quota_exceeded") {
		t.Fatalf("err = %v, want quota_exceeded", err)
	}
}

func TestSynthesize_NoAudio(t *testing.T) {
	fake := &fakeServer{replies: []audioResponse{{IsFinal: true}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := New("key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "Hello", "en"); err == nil {
		t.Fatal("expected error when no audio is returned")
	}
}
