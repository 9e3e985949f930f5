package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNew_WritesJSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, buf.String())
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}
	if entries[0]["key"] != "value" {
		t.Errorf("expected key=value, got %v", entries[0]["key"])
	}
	if entries[3]["level"] != "ERROR" {
		t.Errorf("expected ERROR level, got %v", entries[3]["level"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	entries := decodeLines(t, buf.String())
	if len(entries) != 1 || entries[0]["msg"] != "shown" {
		t.Fatalf("expected only the warn entry, got %v", entries)
	}
}

func TestSetLevel_AppliesToChildren(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "error", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	child := logger.WithSession("s1")

	child.Info("before")
	logger.SetLevel("info")
	child.Info("after")

	entries := decodeLines(t, buf.String())
	if len(entries) != 1 || entries[0]["msg"] != "after" {
		t.Fatalf("expected only the post-SetLevel entry, got %v", entries)
	}
	if logger.Level() != LevelInfo {
		t.Errorf("Level() = %s, want INFO", logger.Level())
	}
}

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.WithSession("s1").WithPhase("engine").WithProvider("openai").With("turn", 3).Info("turn completed")
	logger.Info("parent untouched")

	entries := decodeLines(t, buf.String())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first["session_id"] != "s1" || first["phase"] != "engine" || first["provider"] != "openai" {
		t.Errorf("missing context attributes: %v", first)
	}
	if first["turn"] != float64(3) {
		t.Errorf("turn = %v, want 3", first["turn"])
	}
	if _, ok := entries[1]["session_id"]; ok {
		t.Error("parent logger should not inherit child attributes")
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "arena.log")
	logger, err := New(Options{File: path, Rotation: DefaultRotationConfig()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Second close is a no-op.
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.WithSession("x").Error("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger returned %v", err)
	}
}
