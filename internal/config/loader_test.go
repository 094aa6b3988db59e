package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "modlens.yaml")

	configContent := `
schema:
  sample: ./DebugGameplay.sqlite
  sentinel_table: Kinds
  infer_booleans: false

variants:
  base: ./Gameplay.sqlite
  Expansion2: ./Gameplay_XP2.sqlite

simulation:
  verify_rollback: true
  busy_timeout_ms: 250

logging:
  level: debug
  format: json
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Schema.Sample != "./DebugGameplay.sqlite" {
		t.Errorf("expected sample './DebugGameplay.sqlite', got %s", cfg.Schema.Sample)
	}
	if cfg.Schema.SentinelTable != "Kinds" {
		t.Errorf("expected sentinel 'Kinds', got %s", cfg.Schema.SentinelTable)
	}
	if cfg.Schema.InferBooleans {
		t.Error("expected infer_booleans false")
	}
	if !cfg.Simulation.VerifyRollback {
		t.Error("expected verify_rollback true")
	}
	if cfg.Simulation.BusyTimeoutMS != 250 {
		t.Errorf("expected busy_timeout_ms 250, got %d", cfg.Simulation.BusyTimeoutMS)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stdout" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}

	path, err := cfg.VariantPath("expansion2")
	if err != nil {
		t.Fatalf("expected variant expansion2: %v", err)
	}
	if path != "./Gameplay_XP2.sqlite" {
		t.Errorf("expected './Gameplay_XP2.sqlite', got %s", path)
	}

	if got := cfg.ListVariants(); strings.Join(got, ",") != "base,expansion2" {
		t.Errorf("expected variants [base expansion2], got %v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal.yaml")

	if err := os.WriteFile(configPath, []byte("schema:\n  sample: game.sqlite\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Schema.SentinelTable != "Types" {
		t.Errorf("expected default sentinel 'Types', got %s", cfg.Schema.SentinelTable)
	}
	if !cfg.Schema.InferBooleans {
		t.Error("expected infer_booleans default true")
	}
	if cfg.Simulation.BusyTimeoutMS != 5000 {
		t.Errorf("expected default busy timeout 5000, got %d", cfg.Simulation.BusyTimeoutMS)
	}
	if cfg.Simulation.VerifyMethod != "sha256" {
		t.Errorf("expected default verify method 'sha256', got %s", cfg.Simulation.VerifyMethod)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level 'info', got %s", cfg.Logging.Level)
	}
	if len(cfg.Variants) != 0 {
		t.Errorf("expected no variants, got %v", cfg.Variants)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEnvVarSubstitution(t *testing.T) {
	t.Setenv("MODLENS_GAME_DIR", "/opt/civ")
	t.Setenv("MODLENS_LOG", "/var/log/modlens.log")

	v := viper.New()
	v.Set("schema.sample", "${MODLENS_GAME_DIR}/DebugGameplay.sqlite")
	v.Set("variants", map[string]string{"base": "$MODLENS_GAME_DIR/Gameplay.sqlite"})
	v.Set("logging.output", "${MODLENS_LOG}")

	cfg, err := LoadFromViper(v)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Schema.Sample != "/opt/civ/DebugGameplay.sqlite" {
		t.Errorf("expected substituted sample, got %s", cfg.Schema.Sample)
	}
	if cfg.Variants["base"] != "/opt/civ/Gameplay.sqlite" {
		t.Errorf("expected substituted variant path, got %s", cfg.Variants["base"])
	}
	if cfg.Logging.Output != "/var/log/modlens.log" {
		t.Errorf("expected substituted output, got %s", cfg.Logging.Output)
	}
}

func TestExpandEnvVar_Unset(t *testing.T) {
	if got := expandEnvVar("${MODLENS_SURELY_UNSET_VAR}/x"); got != "${MODLENS_SURELY_UNSET_VAR}/x" {
		t.Errorf("expected unset variable to be kept, got %s", got)
	}
}

func TestVariantPath_NotFound(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.VariantPath("base"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schema.Sample = "a.sqlite"

	cfg.ApplyOverrides("", "", "", false)
	if cfg.Logging.Level != "info" || cfg.Schema.Sample != "a.sqlite" || cfg.Simulation.VerifyRollback {
		t.Errorf("empty overrides changed config: %+v", cfg)
	}

	cfg.ApplyOverrides("debug", "json", "b.sqlite", true)
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected format json, got %s", cfg.Logging.Format)
	}
	if cfg.Schema.Sample != "b.sqlite" {
		t.Errorf("expected sample b.sqlite, got %s", cfg.Schema.Sample)
	}
	if !cfg.Simulation.VerifyRollback {
		t.Error("expected verify_rollback enabled")
	}
}
