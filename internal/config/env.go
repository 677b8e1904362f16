package config

import (
	"os"
	"strings"
)

// Environment variables that override file values. API keys are the only
// secrets; everything else belongs in the config file.
const (
	EnvYouTubeAPIKey = "DISTILL_YOUTUBE_API_KEY"
	EnvLLMAPIKey     = "DISTILL_LLM_API_KEY"
)

func (c *Config) applyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv(EnvYouTubeAPIKey)); key != "" {
		c.YouTube.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv(EnvLLMAPIKey)); key != "" {
		c.LLM.APIKey = key
	}
}
