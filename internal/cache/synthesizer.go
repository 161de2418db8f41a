package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/MrWong99/emotivox/internal/observe"
	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

// Option configures a [Synthesizer].
type Option func(*Synthesizer)

// WithLogger sets the logger for cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = l
	}
}

// WithMetrics records hits and misses on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Synthesizer) {
		s.metrics = m
	}
}

// Synthesizer serves baseline waveforms from a [Store] and falls through to
// the wrapped synthesizer on a miss. Entries are stored as 16-bit WAV.
//
// Cache errors never fail a synthesis; they are logged and the wrapped
// synthesizer is called directly.
type Synthesizer struct {
	next    tts.Synthesizer
	store   *Store
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer wraps next with a cache backed by store.
func NewSynthesizer(next tts.Synthesizer, store *Store, opts ...Option) *Synthesizer {
	s := &Synthesizer{next: next, store: store, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns the wrapped synthesizer's name.
func (s *Synthesizer) Name() string { return s.next.Name() }

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (*audio.Waveform, error) {
	key := Key(s.next.Name(), language, text)

	data, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		w, decErr := audio.DecodeWAV(data)
		if decErr == nil {
			s.record(ctx, true)
			return w, nil
		}
		s.logger.Warn("discarding corrupt cache entry", "key", key, "err", decErr)
	case !errors.Is(err, ErrMiss):
		s.logger.Warn("baseline cache unavailable", "err", err)
	}
	s.record(ctx, false)

	w, err := s.next.Synthesize(ctx, text, language)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, key, audio.EncodeWAV(w)); err != nil {
		s.logger.Warn("failed to store baseline", "key", key, "err", err)
	}
	return w, nil
}

func (s *Synthesizer) record(ctx context.Context, hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(ctx, hit)
	}
}

// Key derives the cache key for one baseline request.
func Key(provider, language, text string) string {
	h := sha256.New()
	for _, part := range []string{provider, language, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "baseline:" + hex.EncodeToString(h.Sum(nil))
}
