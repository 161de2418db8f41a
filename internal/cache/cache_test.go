package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	ttsmock "github.com/MrWong99/emotivox/pkg/provider/tts/mock"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	s := NewStore(Config{Addr: mr.Addr(), TTL: ttl, Prefix: "test:"})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, time.Minute)

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty store: err = %v, want ErrMiss", err)
	}
	if err := s.Set(ctx, "k", []byte("value")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("test:k") {
		t.Error("key was not stored under the prefix")
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "value" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after TTL: err = %v, want ErrMiss", err)
	}

	_ = s.Set(ctx, "a", []byte("1"))
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("test:a") {
		t.Error("key survived Delete")
	}
}

func TestKey(t *testing.T) {
	a := Key("coqui", "en", "Hello world")
	if a != Key("coqui", "en", "Hello world") {
		t.Error("Key is not deterministic")
	}
	for _, other := range []string{
		Key("gtranslate", "en", "Hello world"),
		Key("coqui", "hi", "Hello world"),
		Key("coqui", "en", "Hello world!"),
		Key("coqu", "ien", "Hello world"),
	} {
		if other == a {
			t.Errorf("Key collision: %s", other)
		}
	}
}

func TestSynthesizer_MissThenHit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 0)
	next := &ttsmock.Synthesizer{NameValue: "coqui"}
	s := NewSynthesizer(next, store, WithLogger(quietLogger))

	first, err := s.Synthesize(ctx, "Hello world", "en")
	if err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	second, err := s.Synthesize(ctx, "Hello world", "en")
	if err != nil {
		t.Fatalf("second Synthesize: %v", err)
	}

	if next.CallCount() != 1 {
		t.Errorf("backend called %d times, want 1", next.CallCount())
	}
	if second.Frames() != first.Frames() || second.SampleRate != first.SampleRate {
		t.Errorf("cached waveform = %d frames at %d Hz, want %d at %d",
			second.Frames(), second.SampleRate, first.Frames(), first.SampleRate)
	}
	if s.Name() != "coqui" {
		t.Errorf("Name() = %q", s.Name())
	}

	if _, err := s.Synthesize(ctx, "Hello world", "hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if next.CallCount() != 2 {
		t.Errorf("different language should miss; backend calls = %d", next.CallCount())
	}
}

func TestSynthesizer_BackendErrorNotCached(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)
	next := &ttsmock.Synthesizer{Err: errors.New("boom")}
	s := NewSynthesizer(next, store, WithLogger(quietLogger))

	if _, err := s.Synthesize(ctx, "Hello", "en"); err == nil {
		t.Fatal("expected backend error")
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys after failure = %v, want none", keys)
	}
}

func TestSynthesizer_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)
	next := &ttsmock.Synthesizer{NameValue: "coqui"}
	s := NewSynthesizer(next, store, WithLogger(quietLogger))

	if err := mr.Set("test:"+Key("coqui", "en", "Hello"), "garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Synthesize(ctx, "Hello", "en"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if next.CallCount() != 1 {
		t.Errorf("backend calls = %d, want 1", next.CallCount())
	}
}

func TestSynthesizer_RedisDown(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)
	mr.Close()

	next := &ttsmock.Synthesizer{}
	s := NewSynthesizer(next, store, WithLogger(quietLogger))
	if _, err := s.Synthesize(ctx, "Hello", "en"); err != nil {
		t.Fatalf("Synthesize with Redis down: %v", err)
	}
	if next.CallCount() != 1 {
		t.Errorf("backend calls = %d, want 1", next.CallCount())
	}
}
