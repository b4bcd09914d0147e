package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if result := test.level.String(); result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		if result := test.level.SlogLevel(); result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)
	defer Init(LevelInfo, os.Stderr)

	Debug("Test", "hidden %d", 1)
	Info("Test", "shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden 1") {
		t.Errorf("debug message should be filtered at info level, got %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("info message missing from output %q", out)
	}
	if !strings.Contains(out, "subsystem=Test") {
		t.Errorf("subsystem attribute missing from output %q", out)
	}
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)
	defer Init(LevelInfo, os.Stderr)

	Error("Client", errors.New("connection refused"), "request to %s failed", "Contact.get")

	out := buf.String()
	if !strings.Contains(out, "request to Contact.get failed") {
		t.Errorf("message missing from output %q", out)
	}
	if !strings.Contains(out, "connection refused") {
		t.Errorf("error attribute missing from output %q", out)
	}
}
