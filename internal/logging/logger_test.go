package logging

import (
	"log/slog"
	"testing"
)

func TestNewDefaultsToInfoText(t *testing.T) {
	logger := New("", "")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if !logger.Enabled(nil, slog.LevelInfo) {
		t.Error("expected info level enabled by default")
	}
	if logger.Enabled(nil, slog.LevelDebug) {
		t.Error("expected debug level disabled by default")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	logger := New("error", "json")
	if logger.Enabled(nil, slog.LevelWarn) {
		t.Error("expected warn disabled at error level")
	}
	if !logger.Enabled(nil, slog.LevelError) {
		t.Error("expected error level enabled")
	}
}
