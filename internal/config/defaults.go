package config

const (
	defaultDataDir          = "~/.local/share/distill/data"
	defaultLogDir           = "~/.local/share/distill/logs"
	defaultYouTubeBaseURL   = "https://www.googleapis.com/youtube/v3"
	defaultTimedTextBaseURL = "https://www.youtube.com/api/timedtext"
	defaultRequestsPerSec   = 10.0
	defaultChannelPageSize  = 50
	defaultYouTubeTimeout   = 30

	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "qwen/qwen-2.5-72b-instruct"
	defaultLLMReferer            = "https://github.com/distill"
	defaultLLMTitle              = "Distill Summarizer"
	defaultLLMTimeoutSeconds     = 60
	defaultMaxCompletionTokens   = 1500
	defaultMonthlyCeilingUSD     = 10.0
	defaultWarnAtUSD             = 8.0
	defaultPromptRatePerMTok     = 0.35
	defaultCompletionRatePerMTok = 0.35
	defaultNominalPromptTokens   = 8000
	defaultValidationMaxGrade    = 7.0
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		YouTube: YouTube{
			BaseURL:           defaultYouTubeBaseURL,
			TimedTextBaseURL:  defaultTimedTextBaseURL,
			RequestsPerSecond: defaultRequestsPerSec,
			ChannelPageSize:   defaultChannelPageSize,
			TimeoutSeconds:    defaultYouTubeTimeout,
		},
		LLM: LLM{
			BaseURL:             defaultLLMBaseURL,
			Model:               defaultLLMModel,
			Referer:             defaultLLMReferer,
			Title:               defaultLLMTitle,
			TimeoutSeconds:      defaultLLMTimeoutSeconds,
			MaxCompletionTokens: defaultMaxCompletionTokens,
		},
		Budget: Budget{
			MonthlyCeilingUSD:     defaultMonthlyCeilingUSD,
			WarnAtUSD:             defaultWarnAtUSD,
			PromptRatePerMTok:     defaultPromptRatePerMTok,
			CompletionRatePerMTok: defaultCompletionRatePerMTok,
			NominalPromptTokens:   defaultNominalPromptTokens,
		},
		Validation: Validation{
			Enabled:       true,
			MaxGradeLevel: defaultValidationMaxGrade,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
