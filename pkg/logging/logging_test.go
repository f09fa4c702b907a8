package logging

import (
	"bytes"
	"errors"
	"log/slog"
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
		result := test.level.String()
		if result != test.expected {
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
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestInit_WritesSubsystemAndMessage(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Info("Client", "session refreshed for %s", "https://api.example.com")

	out := buf.String()
	if !strings.Contains(out, "subsystem=Client") {
		t.Errorf("Expected subsystem attribute, got %q", out)
	}
	if !strings.Contains(out, "session refreshed for https://api.example.com") {
		t.Errorf("Expected formatted message, got %q", out)
	}
}

func TestInit_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Storage", "should be suppressed")
	Info("Storage", "should be suppressed too")
	Warn("Storage", "visible warning")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("Expected debug/info suppressed at warn level, got %q", out)
	}
	if !strings.Contains(out, "visible warning") {
		t.Errorf("Expected warning to pass the filter, got %q", out)
	}
}

func TestError_IncludesErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Flow", errors.New("callback timed out"), "exchange failed")

	out := buf.String()
	if !strings.Contains(out, "callback timed out") {
		t.Errorf("Expected error attribute, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, test := range tests {
		if got := ParseLevel(test.name); got != test.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", test.name, got, test.expected)
		}
	}
}
