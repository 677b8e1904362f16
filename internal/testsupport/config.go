// Package testsupport provides builders shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"distill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.YouTube.APIKey = "test"
	cfg.LLM.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBudget overrides the budget section on the test config.
func WithBudget(budget config.Budget) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Budget = budget
	}
}

// WithValidation overrides the validation section on the test config.
func WithValidation(validation config.Validation) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Validation = validation
	}
}
