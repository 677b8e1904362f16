package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gofrs/flock"

	"distill/internal/classify"
	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/logging"
	"distill/internal/pipeline"
	"distill/internal/retry"
	"distill/internal/services/llm"
	"distill/internal/services/youtube"
	"distill/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// signalContext returns a context canceled by SIGINT/SIGTERM. The in-flight
// item still finishes; only new items stop starting.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withStore opens the catalog database for read-only commands.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// pipelineSettings carries the per-invocation orchestrator overrides.
type pipelineSettings struct {
	force       bool
	noValidate  bool
	extractOnly bool
	template    string
}

// withPipeline acquires the data-dir lock, wires the full pipeline, and runs
// fn. Mutating commands go through here so two invocations cannot interleave
// ledger writes.
func (c *commandContext) withPipeline(settings pipelineSettings, fn func(context.Context, *config.Config, *pipeline.Orchestrator, *store.Store, *ledger.CostLedger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := validatePipelineAccess(cfg, settings.extractOnly); err != nil {
		return err
	}

	var forceCategory classify.Category
	if settings.template != "" {
		category, ok := classify.ParseCategory(settings.template)
		if !ok {
			return fmt.Errorf("unknown template %q (expected one of tech, finance, general)", settings.template)
		}
		forceCategory = category
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another distill invocation holds the lock at %s", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	costs := ledger.NewCostLedger(st, cfg.Budget)
	failures := ledger.NewFailureLedger(st)

	validation := cfg.Validation
	if settings.noValidate {
		validation.Enabled = false
	}

	orchestrator := pipeline.New(pipeline.Options{
		Extractor:        c.newExtractor(cfg),
		Distiller:        c.newDistiller(cfg),
		Repository:       st,
		Costs:            costs,
		Failures:         failures,
		Policy:           retry.Default(),
		Validation:       validation,
		CompletionTokens: cfg.LLM.MaxCompletionTokens,
		SummariesDir:     cfg.SummariesDir(),
		Force:            settings.force,
		ExtractOnly:      settings.extractOnly,
		ForceCategory:    forceCategory,
		Logger:           logging.NewComponentLogger(logger, "pipeline"),
	})

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, cfg, orchestrator, st, costs)
}

// validatePipelineAccess rejects a run before any item starts when the
// credentials it needs are missing. Extract-only runs never call the LLM.
func validatePipelineAccess(cfg *config.Config, extractOnly bool) error {
	if err := cfg.ValidateYouTubeAccess(); err != nil {
		return err
	}
	if extractOnly {
		return nil
	}
	return cfg.ValidateLLMAccess()
}

func (c *commandContext) newExtractor(cfg *config.Config) *youtube.Client {
	return youtube.NewClient(youtube.Config{
		APIKey:            cfg.YouTube.APIKey,
		BaseURL:           cfg.YouTube.BaseURL,
		TimedTextBaseURL:  cfg.YouTube.TimedTextBaseURL,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		ChannelPageSize:   cfg.YouTube.ChannelPageSize,
		TimeoutSeconds:    cfg.YouTube.TimeoutSeconds,
	})
}

func (c *commandContext) newDistiller(cfg *config.Config) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:              cfg.LLM.APIKey,
		BaseURL:             cfg.LLM.BaseURL,
		Model:               cfg.LLM.Model,
		Referer:             cfg.LLM.Referer,
		Title:               cfg.LLM.Title,
		TimeoutSeconds:      cfg.LLM.TimeoutSeconds,
		MaxCompletionTokens: cfg.LLM.MaxCompletionTokens,
	})
}
