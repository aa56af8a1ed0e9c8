package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		env   string
		want  slog.Level
	}{
		{"debug", "production", slog.LevelDebug},
		{"INFO", "", slog.LevelInfo},
		{"warning", "", slog.LevelWarn},
		{"error", "", slog.LevelError},
		{"", "production", slog.LevelInfo},
		{"", "development", slog.LevelDebug},
		{"bogus", "production", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.level, tt.env); got != tt.want {
			t.Errorf("parseLevel(%q, %q) = %v, want %v", tt.level, tt.env, got, tt.want)
		}
	}
}

func TestWithComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	log := New(Opts{Env: "production", Level: "debug", Writer: &buf})

	log.WithComponent("PlayerPool").Info("handle opened", "index", 3)

	out := buf.String()
	if !strings.Contains(out, `"component":"PlayerPool"`) {
		t.Fatalf("expected component field, got %s", out)
	}
	if !strings.Contains(out, `"index":3`) {
		t.Fatalf("expected index field, got %s", out)
	}
}

func TestLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	log := New(Opts{Env: "production", Level: "warn", Writer: &buf})

	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record should be filtered, got %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing, got %s", out)
	}
}
