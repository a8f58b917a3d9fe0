package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		got, ok := parseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseLevel(%q) = (%v,%v), want (%v,%v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEnvOverridesApply(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "nope")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if !cfg.NoColor {
		t.Fatalf("expected no color override")
	}
	if !cfg.Timestamp {
		t.Fatalf("invalid timestamp override must keep runtime default")
	}
}

func TestNewWritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Str("remote", "127.0.0.1:1").Msg("broker.session connected")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if !strings.Contains(out, "broker.session connected") || !strings.Contains(out, "remote=127.0.0.1:1") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestNewBypassDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, Bypass: true, Out: &buf})
	logger.Error().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected bypassed logger to discard, got %q", buf.String())
	}
}
