package main

import (
	"strings"
	"testing"

	"distill/internal/config"
)

func TestValidatePipelineAccessRequiresCredentials(t *testing.T) {
	cfg := config.Default()

	err := validatePipelineAccess(&cfg, false)
	if err == nil || !strings.Contains(err.Error(), "youtube.api_key") {
		t.Fatalf("missing youtube key: err = %v", err)
	}

	cfg.YouTube.APIKey = "yt-key"
	err = validatePipelineAccess(&cfg, false)
	if err == nil || !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("missing llm key: err = %v", err)
	}

	// Extract-only runs never call the LLM, so its key is not required.
	if err := validatePipelineAccess(&cfg, true); err != nil {
		t.Fatalf("extract-only: %v", err)
	}

	cfg.LLM.APIKey = "llm-key"
	if err := validatePipelineAccess(&cfg, false); err != nil {
		t.Fatalf("both keys set: %v", err)
	}
}
