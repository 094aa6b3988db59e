package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/modlens/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"ERROR", "error"},
		{"fatal", "info"},
		{"unknown", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level := parseLevel(tt.input)
			if level.String() != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level.String(), tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.LoggingConfig
	}{
		{name: "json format info level", cfg: &config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "text format debug level", cfg: &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
		{name: "file output", cfg: &config.LoggingConfig{Level: "warn", Format: "json", Output: filepath.Join(t.TempDir(), "log.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger == nil {
				t.Fatal("New() returned nil logger without error")
			}
			_ = logger.Sync()
		})
	}
}

func TestNew_UnwritableOutput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "missing", "modlens.log")
	if _, err := New(&config.LoggingConfig{Output: output}); err == nil {
		t.Fatal("New() should fail when the log file cannot be opened")
	}
}

func TestNewDefaultAndNop(t *testing.T) {
	if NewDefault() == nil {
		t.Fatal("NewDefault() returned nil")
	}

	nop := NewNop()
	nop.WithTable("Units").Info("discarded")
	if err := nop.Sync(); err != nil {
		t.Errorf("nop Sync() returned %v", err)
	}
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromCore(core)

	logger.WithVariant("expansion2").WithTable("Units").Info("simulated")
	logger.WithStatement("mod.sql", 3).Warn("rejected")
	logger.WithFields(map[string]interface{}{"candidates": 3}).Debug("ambiguous")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first["variant"] != "expansion2" || first["table"] != "Units" {
		t.Errorf("unexpected context: %v", first)
	}

	second := entries[1].ContextMap()
	if second["file"] != "mod.sql" || second["statement"] != int64(3) {
		t.Errorf("unexpected statement context: %v", second)
	}

	if entries[2].ContextMap()["candidates"] != int64(3) {
		t.Errorf("unexpected fields: %v", entries[2].ContextMap())
	}
}

func TestBuildEncoder(t *testing.T) {
	for _, format := range []string{"json", "text", "unknown"} {
		if buildEncoder(format) == nil {
			t.Errorf("buildEncoder(%q) returned nil", format)
		}
	}
}

func TestLoggingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modlens.json")

	logger, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("test info message")
	logger.Debug("hidden debug message")
	logger.WithVariant("base").Info("message with variant")
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "test info message") {
		t.Error("Log file should contain 'test info message'")
	}
	if strings.Contains(contentStr, "hidden debug message") {
		t.Error("Debug message should be filtered at info level")
	}
	if !strings.Contains(contentStr, `"variant":"base"`) {
		t.Error("Log file should contain variant context")
	}
}
