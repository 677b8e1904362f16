package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration values that cannot be defaulted away.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir is required")
	}
	if c.Budget.MonthlyCeilingUSD < 0 {
		problems = append(problems, "budget.monthly_ceiling_usd must not be negative")
	}
	if c.Budget.WarnAtUSD < 0 {
		problems = append(problems, "budget.warn_at_usd must not be negative")
	}
	if c.Budget.WarnAtUSD > c.Budget.MonthlyCeilingUSD && c.Budget.MonthlyCeilingUSD > 0 {
		problems = append(problems, "budget.warn_at_usd must not exceed budget.monthly_ceiling_usd")
	}
	if c.Budget.PromptRatePerMTok < 0 || c.Budget.CompletionRatePerMTok < 0 {
		problems = append(problems, "budget token rates must not be negative")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of console, json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// ValidateYouTubeAccess verifies extraction commands can run.
func (c *Config) ValidateYouTubeAccess() error {
	if c.YouTube.APIKey == "" {
		return errors.New("youtube.api_key is required; set it in the config file or DISTILL_YOUTUBE_API_KEY")
	}
	return nil
}

// ValidateLLMAccess verifies distillation commands can run.
func (c *Config) ValidateLLMAccess() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required; set it in the config file or DISTILL_LLM_API_KEY")
	}
	return nil
}
