package app

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/MrWong99/emotivox/internal/config"
	"github.com/MrWong99/emotivox/internal/resilience"
)

func TestRegisterBuiltinProviders(t *testing.T) {
	reg := config.NewRegistry()
	RegisterBuiltinProviders(reg)

	got := reg.TTSNames()
	want := []string{"coqui", "elevenlabs", "gtranslate", "mock", "openai"}
	if len(got) != len(want) {
		t.Fatalf("TTSNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TTSNames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildSynthesizer(t *testing.T) {
	reg := config.NewRegistry()
	RegisterBuiltinProviders(reg)
	fc := resilience.FallbackConfig{Logger: slog.New(slog.DiscardHandler)}

	tests := []struct {
		name     string
		entries  []config.ProviderEntry
		wantName string
		wantErr  error
	}{
		{
			name:     "single",
			entries:  []config.ProviderEntry{{Name: "mock"}},
			wantName: "mock",
		},
		{
			name: "fallback chain",
			entries: []config.ProviderEntry{
				{Name: "coqui", BaseURL: "http://localhost:5002", Options: map[string]any{"timeout": "5s"}},
				{Name: "gtranslate", Options: map[string]any{"slow": true}},
			},
			wantName: "coqui+gtranslate",
		},
		{
			name:    "unregistered",
			entries: []config.ProviderEntry{{Name: "festival"}},
			wantErr: config.ErrProviderNotRegistered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := BuildSynthesizer(tt.entries, reg, fc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildSynthesizer: %v", err)
			}
			if s.Name() != tt.wantName {
				t.Errorf("Name = %q, want %q", s.Name(), tt.wantName)
			}
			if !s.Available() {
				t.Error("fresh fallback group reports unavailable")
			}
		})
	}

	if _, err := BuildSynthesizer(nil, reg, fc); err == nil {
		t.Error("expected error for empty provider list")
	}
	if _, err := BuildSynthesizer([]config.ProviderEntry{{Name: "coqui"}}, reg, fc); err == nil {
		t.Error("expected coqui without base_url to fail")
	}
}

func TestOptDuration(t *testing.T) {
	tests := []struct {
		value any
		want  time.Duration
		ok    bool
	}{
		{"15s", 15 * time.Second, true},
		{"", 0, false},
		{"soon", 0, false},
		{"-1s", 0, false},
		{15, 0, false},
	}
	for _, tt := range tests {
		entry := config.ProviderEntry{Name: "x", Options: map[string]any{"timeout": tt.value}}
		got, ok := optDuration(entry, "timeout")
		if got != tt.want || ok != tt.ok {
			t.Errorf("optDuration(%v) = %v, %v; want %v, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}
