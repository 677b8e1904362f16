package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// YouTube contains configuration for the catalog extractor.
type YouTube struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	TimedTextBaseURL  string  `toml:"timedtext_base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	ChannelPageSize   int     `toml:"channel_page_size"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// LLM contains configuration for the distillation service.
type LLM struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	Referer             string `toml:"referer"`
	Title               string `toml:"title"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	MaxCompletionTokens int    `toml:"max_completion_tokens"`
}

// Budget contains spend-ceiling configuration for the cost ledger.
type Budget struct {
	MonthlyCeilingUSD     float64 `toml:"monthly_ceiling_usd"`
	WarnAtUSD             float64 `toml:"warn_at_usd"`
	PromptRatePerMTok     float64 `toml:"prompt_rate_per_mtok"`
	CompletionRatePerMTok float64 `toml:"completion_rate_per_mtok"`
	// NominalPromptTokens sizes the per-item estimate used before a prompt
	// exists (batch preflight and the pre-item budget check).
	NominalPromptTokens int `toml:"nominal_prompt_tokens"`
}

// Validation contains readability-check configuration for generated summaries.
type Validation struct {
	Enabled       bool    `toml:"enabled"`
	MaxGradeLevel float64 `toml:"max_grade_level"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for distill.
//
// Sections by subsystem:
//   - Paths: data and log directories
//   - YouTube: catalog API access and rate limiting
//   - LLM: distillation service connection settings
//   - Budget: monthly spend ceiling, warning threshold, token pricing
//   - Validation: summary readability checks
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	YouTube    YouTube    `toml:"youtube"`
	LLM        LLM        `toml:"llm"`
	Budget     Budget     `toml:"budget"`
	Validation Validation `toml:"validation"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/distill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("distill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.SummariesDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "distill.db")
}

// SummariesDir returns the directory summary markdown artifacts are written to.
func (c *Config) SummariesDir() string {
	return filepath.Join(c.Paths.DataDir, "summaries")
}

// LockPath returns the lock file guarding mutating invocations.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "distill.lock")
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
