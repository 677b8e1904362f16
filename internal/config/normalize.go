package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	c.YouTube.BaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.BaseURL), "/")
	c.YouTube.TimedTextBaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.TimedTextBaseURL), "/")
	if c.YouTube.RequestsPerSecond <= 0 {
		c.YouTube.RequestsPerSecond = defaultRequestsPerSec
	}
	if c.YouTube.ChannelPageSize <= 0 || c.YouTube.ChannelPageSize > 50 {
		c.YouTube.ChannelPageSize = defaultChannelPageSize
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		c.YouTube.TimeoutSeconds = defaultYouTubeTimeout
	}

	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxCompletionTokens <= 0 {
		c.LLM.MaxCompletionTokens = defaultMaxCompletionTokens
	}

	if c.Budget.NominalPromptTokens <= 0 {
		c.Budget.NominalPromptTokens = defaultNominalPromptTokens
	}
	if c.Validation.MaxGradeLevel <= 0 {
		c.Validation.MaxGradeLevel = defaultValidationMaxGrade
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
