package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config falls back to defaults", config: nil},
		{
			name: "explicit level and output",
			config: &Config{
				Level:  LevelDebug,
				Output: &bytes.Buffer{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("expected debug/info to be suppressed below Warn level, got: %s", buf.String())
	}

	logger.Warn("dropping request", "core", 3)
	output := buf.String()
	if !strings.Contains(output, "[WARN]") {
		t.Errorf("expected [WARN] prefix, got: %s", output)
	}
	if !strings.Contains(output, "core=3") {
		t.Errorf("expected core=3 field, got: %s", output)
	}
}

func TestLoggerStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("core reset", "core_id", 2, "status", "success")
	output := buf.String()
	if !strings.Contains(output, "core_id=2") || !strings.Contains(output, "status=success") {
		t.Errorf("expected structured fields in output, got: %s", output)
	}
}

func TestDefaultLoggerIsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Error("Default() returned different instances")
	}
}

func TestSetDefault(t *testing.T) {
	var buf bytes.Buffer
	custom := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	SetDefault(custom)
	defer SetDefault(NewLogger(nil))

	Info("submitted request", "x", "0x1")
	if !strings.Contains(buf.String(), "submitted request") {
		t.Errorf("expected message routed through custom default logger, got: %s", buf.String())
	}
}

func TestPrintf(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelInfo, Output: &buf})

	logger.Printf("worker started on core %d", 1)
	if !strings.Contains(buf.String(), "worker started on core 1") {
		t.Errorf("expected formatted message, got: %s", buf.String())
	}
}
