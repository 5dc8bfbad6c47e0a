package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"  error  ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Info("filtered out")
	log.Warn("kept", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not a single JSON record: %v\n%s", err, buf.String())
	}
	if record["msg"] != "kept" {
		t.Fatalf("msg = %v, want %q", record["msg"], "kept")
	}
	if record["key"] != "value" {
		t.Fatalf("key attribute = %v, want %q", record["key"], "value")
	}
}

func TestForComponent(t *testing.T) {
	var buf bytes.Buffer
	log := ForComponent(NewWithWriter("info", &buf), "service")

	log.Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	if record["component"] != "service" {
		t.Fatalf("component = %v, want %q", record["component"], "service")
	}
}
