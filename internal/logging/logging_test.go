package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected LogLevel
	}{
		{name: "debug", value: "debug", expected: LevelDebug},
		{name: "info", value: "info", expected: LevelInfo},
		{name: "warn", value: "warn", expected: LevelWarn},
		{name: "warning alias", value: "warning", expected: LevelWarn},
		{name: "error", value: "error", expected: LevelError},
		{name: "case insensitive", value: "DEBUG", expected: LevelDebug},
		{name: "whitespace", value: " error ", expected: LevelError},
		{name: "unknown defaults to info", value: "verbose", expected: LevelInfo},
		{name: "empty defaults to info", value: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.value); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo || LevelInfo >= LevelWarn || LevelWarn >= LevelError {
		t.Error("log levels are not ordered debug < info < warn < error")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("%d.String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}()
	fn()
	return buf.String()
}

func TestSetLevelFiltersMessages(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(LevelWarn)
	out := captureOutput(t, func() {
		Debug("debug %d", 1)
		Info("info %d", 2)
		Warn("warn %d", 3)
		Error("error %d", 4)
	})

	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below warn were logged: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") || !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("expected warn and error output, got %q", out)
	}
}

func TestComponentPrefix(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)
	SetLevel(LevelDebug)

	l := Component("scheduler")
	out := captureOutput(t, func() {
		l.Debugf("tick")
		l.Infof("drained %d", 3)
	})

	if !strings.Contains(out, "[DEBUG] [scheduler] tick") {
		t.Errorf("missing debug line, got %q", out)
	}
	if !strings.Contains(out, "[INFO] [scheduler] drained 3") {
		t.Errorf("missing info line, got %q", out)
	}
}
