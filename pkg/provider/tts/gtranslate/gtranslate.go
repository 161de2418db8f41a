// Package gtranslate provides a baseline synthesizer backed by the public
// Google Translate speech endpoint. It needs no credentials, which makes it
// the default fallback when no other backend is configured.
//
// The endpoint accepts at most a couple of hundred characters per request,
// so longer text is split on word boundaries, each piece is fetched as MP3
// and the decoded pieces are joined in order.
package gtranslate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/emotivox/pkg/audio"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

const (
	defaultEndpoint = "https://translate.google.com/translate_tts"
	defaultTimeout  = 15 * time.Second
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64) emotivox"

	// MaxChunkRunes is the largest piece of text sent in one request.
	MaxChunkRunes = 200
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithEndpoint overrides the translate_tts URL. Used by tests.
func WithEndpoint(u string) Option {
	return func(s *Synthesizer) {
		s.endpoint = u
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.httpClient.Timeout = d
	}
}

// WithSlow requests the slowed-down reading.
func WithSlow(slow bool) Option {
	return func(s *Synthesizer) {
		s.slow = slow
	}
}

// Synthesizer implements tts.Synthesizer. It is safe for concurrent use.
type Synthesizer struct {
	endpoint   string
	slow       bool
	httpClient *http.Client

	// decode turns one MP3 response body into a waveform.
	decode func(io.Reader) (*audio.Waveform, error)
}

// New creates a Synthesizer.
func New(opts ...Option) (*Synthesizer, error) {
	s := &Synthesizer{
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		decode:     audio.DecodeMP3,
	}
	for _, o := range opts {
		o(s)
	}
	if _, err := url.Parse(s.endpoint); err != nil || s.endpoint == "" {
		return nil, fmt.Errorf("gtranslate: invalid endpoint %q", s.endpoint)
	}
	return s, nil
}

// Name returns "gtranslate".
func (s *Synthesizer) Name() string { return "gtranslate" }

// Synthesize fetches every chunk of text in order and joins the results.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (*audio.Waveform, error) {
	chunks := SplitText(text, MaxChunkRunes)
	if len(chunks) == 0 {
		return nil, errors.New("gtranslate: no text to synthesize")
	}
	parts := make([]*audio.Waveform, 0, len(chunks))
	for i, c := range chunks {
		w, err := s.fetch(ctx, c, language, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("gtranslate: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		parts = append(parts, w)
	}
	return audio.Concat(parts...), nil
}

func (s *Synthesizer) fetch(ctx context.Context, chunk, language string, idx, total int) (*audio.Waveform, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", language)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))
	if s.slow {
		q.Set("ttsspeed", "0.3")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return s.decode(resp.Body)
}

// SplitText breaks text into pieces of at most limit runes, preferring
// sentence ends and then word boundaries. Words longer than limit are cut.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxChunkRunes
	}
	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		n = 0
	}
	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > limit {
			flush()
			runes := []rune(word)
			chunks = append(chunks, string(runes[:limit]))
			word = string(runes[limit:])
		}
		wn := utf8.RuneCountInString(word)
		if n > 0 && n+1+wn > limit {
			flush()
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(word)
		n += wn
		if endsSentence(word) && n > limit/2 {
			flush()
		}
	}
	flush()
	return chunks
}

func endsSentence(word string) bool {
	r, _ := utf8.DecodeLastRuneInString(word)
	switch r {
	case '.', '!', '?', '।':
		return true
	}
	return false
}
