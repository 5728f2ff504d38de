package aicarousel

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeTempFile(t, "config.json", `{"port": 9000, "models_path": "custom.json"}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
	if cfg.ModelsPath != "custom.json" {
		t.Errorf("models_path = %q", cfg.ModelsPath)
	}
	// Unset fields keep defaults.
	if cfg.DBPath != "aicarousel.db" {
		t.Errorf("db_path = %q, want default", cfg.DBPath)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "port: 8080\nlog_level: debug\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Port != 8080 || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Port != 7123 {
		t.Errorf("port = %d, want default 7123", cfg.Port)
	}
	if cfg.ModelsPath != "models.json" || cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7999")
	path := writeTempFile(t, "config.json", `{"port": 9000}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Port != 7999 {
		t.Errorf("port = %d, env must override file", cfg.Port)
	}
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	if _, err := LoadConfig("/tmp/does-not-exist-config-12345.json"); err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, "bad.json", `{invalid`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "config.toml", `port = 1`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestValidateConfig(t *testing.T) {
	bad := DefaultConfig()
	bad.Port = 0
	if err := ValidateConfig(bad); err == nil {
		t.Error("port 0 should be rejected")
	}

	bad = DefaultConfig()
	bad.LogLevel = "verbose"
	if err := ValidateConfig(bad); err == nil {
		t.Error("unknown log level should be rejected")
	}

	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}
