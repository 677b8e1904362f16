package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"distill/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Budget.MonthlyCeilingUSD <= 0 {
		t.Fatal("default budget ceiling must be positive")
	}
	if cfg.Validation.MaxGradeLevel != 7.0 {
		t.Fatalf("default max grade = %v, want 7.0", cfg.Validation.MaxGradeLevel)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.LLM.Model == "" {
		t.Fatal("expected default model")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "distill.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[youtube]
api_key = " key-with-space "
base_url = "https://example.test/v3/"
requests_per_second = 2.5

[budget]
monthly_ceiling_usd = 5.0
warn_at_usd = 4.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.YouTube.APIKey != "key-with-space" {
		t.Fatalf("api key not trimmed: %q", cfg.YouTube.APIKey)
	}
	if cfg.YouTube.BaseURL != "https://example.test/v3" {
		t.Fatalf("base url not normalized: %q", cfg.YouTube.BaseURL)
	}
	if cfg.Budget.MonthlyCeilingUSD != 5.0 || cfg.Budget.WarnAtUSD != 4.0 {
		t.Fatalf("budget not parsed: %+v", cfg.Budget)
	}
	if cfg.LLM.MaxCompletionTokens == 0 {
		t.Fatal("expected default max completion tokens")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Budget.WarnAtUSD = 20
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "warn_at_usd") {
		t.Fatalf("expected warn_at_usd error, got %v", err)
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected logging format error")
	}
}

func TestEnvOverridesAPIKeys(t *testing.T) {
	t.Setenv(config.EnvYouTubeAPIKey, "env-yt")
	t.Setenv(config.EnvLLMAPIKey, "env-llm")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.YouTube.APIKey != "env-yt" || cfg.LLM.APIKey != "env-llm" {
		t.Fatalf("env overrides not applied: %+v", cfg.YouTube.APIKey)
	}
}
