package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.Debug("hidden")
	log.Info("roster imported", "accepted", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "roster imported" || entry["accepted"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("visible", "k", "v")
	if !strings.Contains(buf.String(), "msg=visible") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestWithFields_RequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	defer slog.SetDefault(prev)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "session_id", "s-1").Info("submitted")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-42"`) || !strings.Contains(out, `"session_id":"s-1"`) {
		t.Errorf("output = %s", out)
	}

	buf.Reset()
	FromContext(context.Background()).Info("plain")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("request_id present without middleware: %s", buf.String())
	}
}
