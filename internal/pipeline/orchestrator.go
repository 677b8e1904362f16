// Package pipeline drives items through extraction, distillation, validation,
// and persistence. One orchestrator processes one batch at a time; items move
// strictly forward through their states and every terminal outcome updates
// the ledgers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"distill/internal/classify"
	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/logging"
	"distill/internal/prompt"
	"distill/internal/retry"
	"distill/internal/services"
	"distill/internal/services/llm"
	"distill/internal/services/youtube"
	"distill/internal/store"
	"distill/internal/validate"
)

// Orchestrator wires the extractor, distiller, repository, and ledgers into
// the item state machine.
type Orchestrator struct {
	extractor Extractor
	distiller Distiller
	repo      Repository
	costs     *ledger.CostLedger
	failures  *ledger.FailureLedger

	policy           retry.Policy
	validation       config.Validation
	completionTokens int
	summariesDir     string
	force            bool
	extractOnly      bool
	forceCategory    classify.Category
	logger           *slog.Logger
	now              func() time.Time
}

// Options configures a new Orchestrator. Extractor, Distiller, Repository,
// Costs, and Failures are required.
type Options struct {
	Extractor  Extractor
	Distiller  Distiller
	Repository Repository
	Costs      *ledger.CostLedger
	Failures   *ledger.FailureLedger

	Policy     retry.Policy
	Validation config.Validation
	// CompletionTokens sizes the completion half of budget estimates. Use the
	// configured max completion tokens.
	CompletionTokens int
	// SummariesDir, when set, receives one markdown artifact per persisted
	// summary.
	SummariesDir string
	// Force reprocesses items that already have a summary instead of
	// skipping them.
	Force bool
	// ExtractOnly stops each item after persisting its extracted record;
	// no distillation happens and no budget is consulted.
	ExtractOnly bool
	// ForceCategory overrides classification with a fixed prompt template.
	ForceCategory classify.Category
	Logger        *slog.Logger
	Now           func() time.Time
}

// New builds an orchestrator from the supplied options.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		extractor:        opts.Extractor,
		distiller:        opts.Distiller,
		repo:             opts.Repository,
		costs:            opts.Costs,
		failures:         opts.Failures,
		policy:           opts.Policy,
		validation:       opts.Validation,
		completionTokens: opts.CompletionTokens,
		summariesDir:     opts.SummariesDir,
		force:            opts.Force,
		extractOnly:      opts.ExtractOnly,
		forceCategory:    opts.ForceCategory,
		logger:           opts.Logger,
		now:              opts.Now,
	}
	if o.policy.MaxAttempts == 0 {
		o.policy = retry.Default()
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// ItemResult is the terminal outcome of processing one item.
type ItemResult struct {
	VideoID     string
	Title       string
	State       State
	SkipReason  string
	FailedStage Stage
	ErrorKind   string
	Err         error
	CostUSD     float64
	Flagged     bool
}

// ProcessOne drives a single item to a terminal state. The returned result
// always carries a terminal state; errors are reported through it rather
// than returned.
func (o *Orchestrator) ProcessOne(ctx context.Context, videoID string) ItemResult {
	ctx = services.WithItemID(ctx, videoID)
	log := o.logger.With(logging.FieldItemID, videoID)

	result := ItemResult{VideoID: videoID, State: StateQueued}

	// Extraction alone is an idempotent upsert; the skip-existing check only
	// guards against paying twice for the same distillation.
	exists := false
	if !o.force && !o.extractOnly {
		var err error
		exists, err = o.repo.HasSummary(ctx, videoID)
		if err != nil {
			return o.fail(ctx, log, result, StageExtract,
				services.Wrap(services.ErrTransient, string(StageExtract), "check existing summary", "", err))
		}
	}
	if exists {
		result.State = StateSkippedAlreadyProcessed
		result.SkipReason = SkipReasonAlreadyProcessed
		o.clearFailures(ctx, log, videoID)
		log.Info("summary already exists, skipping")
		return result
	}

	meta, err := retry.DoValue(ctx, o.policy, "fetch metadata", func(ctx context.Context) (*youtube.Metadata, error) {
		return o.extractor.GetMetadata(ctx, videoID)
	})
	if err != nil {
		return o.fail(ctx, log, result, StageExtract, err)
	}
	result.Title = meta.Title
	result.State = StateMetadataFetched

	video := videoFromMetadata(videoID, meta)

	transcript, err := retry.DoValue(ctx, o.policy, "fetch transcript", func(ctx context.Context) (*youtube.Transcript, error) {
		return o.extractor.GetTranscript(ctx, videoID)
	})
	if err != nil {
		return o.fail(ctx, log, result, StageTranscript, err)
	}
	result.State = StateTranscriptResolved

	if transcript != nil {
		video.SetTranscript(&store.Transcript{
			Text:          transcript.Text,
			Language:      transcript.Language,
			AutoGenerated: transcript.AutoGenerated,
		})
	}

	if o.extractOnly {
		video.ExtractedAt = o.now().UTC()
		if err := o.repo.SaveVideo(ctx, video); err != nil {
			return o.fail(ctx, log, result, StagePersist, err)
		}
		o.clearFailures(ctx, log, videoID)
		result.State = StatePersisted
		log.Info("video extracted",
			logging.String("title", meta.Title),
			logging.Bool("has_transcript", video.HasTranscript))
		return result
	}

	if transcript == nil {
		// The extracted record is still worth keeping so re-runs and tag
		// queries can see the video.
		video.ExtractedAt = o.now().UTC()
		if err := o.repo.SaveVideo(ctx, video); err != nil {
			return o.fail(ctx, log, result, StagePersist, err)
		}
		result.State = StateSkippedNoTranscript
		result.SkipReason = SkipReasonNoTranscript
		o.clearFailures(ctx, log, videoID)
		log.Info("no transcript available, skipping", logging.String("title", meta.Title))
		return result
	}

	category := o.forceCategory
	if category == "" {
		category = classify.Classify(meta.Title, meta.Tags)
	}
	result.State = StateClassified
	log.Debug("video classified", logging.String("category", string(category)))

	payload, err := prompt.Build(category, prompt.Input{
		Title:           meta.Title,
		ChannelName:     meta.ChannelName,
		DurationSeconds: meta.DurationSeconds,
		Transcript:      transcript.Text,
	})
	if err != nil {
		return o.fail(ctx, log, result, StageDistill,
			services.Wrap(services.ErrConfiguration, string(StageDistill), "build prompt", "", err))
	}
	result.State = StatePrompted

	periodKey := ledger.PeriodKey(o.now())

	// Charges stay pending until the repository write succeeds; committing
	// cost for an item that never persisted would break the ledger invariant.
	var pending []*store.CostEntry

	completion, err := o.distillCall(ctx, log, payload, periodKey, video, &result, &pending)
	if err != nil {
		return o.fail(ctx, log, result, StageDistill, err)
	}
	result.State = StateDistilled

	text := completion.Text
	totalInput := completion.InputTokens
	totalOutput := completion.OutputTokens
	model := completion.Model
	flagged := false

	if o.validation.Enabled {
		check := validate.Validate(text, o.validation.MaxGradeLevel)
		if !check.Pass {
			log.Warn("summary failed validation, regenerating once",
				logging.Float64("score", check.Score),
				logging.String("reason", check.Reason))

			regenerated, err := o.distillCall(ctx, log, payload.Simplified(), periodKey, video, &result, &pending)
			if err != nil {
				return o.fail(ctx, log, result, StageDistill, err)
			}
			text = regenerated.Text
			totalInput += regenerated.InputTokens
			totalOutput += regenerated.OutputTokens
			model = regenerated.Model

			recheck := validate.Validate(text, o.validation.MaxGradeLevel)
			if !recheck.Pass {
				// One regeneration is the budget-safe limit. Keep the result
				// but mark it for review.
				flagged = true
				log.Warn("regenerated summary still fails validation, persisting flagged",
					logging.Float64("score", recheck.Score),
					logging.String("reason", recheck.Reason))
			}
		}
	}
	result.State = StateValidated
	result.Flagged = flagged

	video.ExtractedAt = o.now().UTC()
	distilledAt := o.now().UTC()
	document := RenderDocument(video, text, distilledAt)

	summary := &store.Summary{
		VideoID:      video.ID,
		Category:     string(category),
		SummaryText:  text,
		Document:     document,
		Model:        model,
		InputTokens:  totalInput,
		OutputTokens: totalOutput,
		CostUSD:      result.CostUSD,
		Flagged:      flagged,
		CreatedAt:    distilledAt,
	}
	if doc, parseErr := validate.ParseDocument(text); parseErr == nil {
		if doc.Summary != "" {
			summary.SummaryText = doc.Summary
		}
		summary.KeyPoints = doc.KeyPoints
		summary.QASections = doc.Sections
	}

	if err := o.repo.SaveVideoWithSummary(ctx, video, summary); err != nil {
		// Pending charges are dropped with the item; the spend happened but an
		// unpersisted record must not count toward the ledger.
		log.Warn("dropping uncommitted spend for failed persist",
			logging.Float64("cost_usd", result.CostUSD))
		return o.fail(ctx, log, result, StagePersist, err)
	}
	o.commitPending(ctx, log, pending)
	if o.summariesDir != "" {
		if path, err := WriteArtifact(o.summariesDir, video.ID, document); err != nil {
			// The database row is canonical; a missing artifact file is only
			// worth a warning.
			log.Warn("summary artifact write failed", logging.Error(err))
		} else {
			log.Debug("summary artifact written", logging.String("path", path))
		}
	}

	o.clearFailures(ctx, log, videoID)
	result.State = StatePersisted
	log.Info("video distilled",
		logging.String("title", meta.Title),
		logging.String("category", string(category)),
		logging.Float64("cost_usd", result.CostUSD),
		logging.Bool("flagged", flagged))
	return result
}

// distillCall runs one budget-checked, retry-wrapped completion and appends
// the charge to the item's pending entries. The budget check counts the
// item's earlier pending charges, which the ledger cannot see yet.
func (o *Orchestrator) distillCall(ctx context.Context, log *slog.Logger, payload prompt.Payload, periodKey string, video *store.Video, result *ItemResult, pending *[]*store.CostEntry) (*llm.Completion, error) {
	estimate := o.costs.Estimate(payload.EstimatedPromptTokens, o.completionTokens)
	exceed, err := o.costs.WouldExceedBudget(ctx, estimate+result.CostUSD, periodKey)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, string(StageDistill), "budget check", "", err)
	}
	if exceed {
		return nil, services.Wrap(services.ErrBudgetExceeded, string(StageDistill), "budget check",
			fmt.Sprintf("estimated $%.4f would cross the monthly ceiling", estimate), nil)
	}

	completion, err := retry.DoValue(ctx, o.policy, "distill", func(ctx context.Context) (*llm.Completion, error) {
		return o.distiller.Complete(ctx, payload.System, payload.User)
	})
	if err != nil {
		return nil, err
	}

	cost := o.costs.Estimate(completion.InputTokens, completion.OutputTokens)
	result.CostUSD += cost
	*pending = append(*pending, &store.CostEntry{
		VideoID:      video.ID,
		Title:        video.Title,
		PeriodKey:    periodKey,
		Model:        completion.Model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		CostUSD:      cost,
		LatencyMS:    completion.Latency.Milliseconds(),
		CreatedAt:    o.now().UTC(),
	})
	return completion, nil
}

// commitPending records the item's charges once its record is durable. Runs
// outside cancellation so an interrupted batch never loses spent cost.
func (o *Orchestrator) commitPending(ctx context.Context, log *slog.Logger, pending []*store.CostEntry) {
	for _, entry := range pending {
		total, err := o.costs.Record(context.WithoutCancel(ctx), entry)
		if err != nil {
			log.Error("cost ledger write failed", logging.Error(err))
			continue
		}
		log.Debug("cost recorded",
			logging.Float64("cost_usd", entry.CostUSD),
			logging.Float64("grand_total_usd", total))
	}
}

func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, result ItemResult, stage Stage, err error) ItemResult {
	kind := services.Kind(err)
	result.State = StateFailed
	result.FailedStage = stage
	result.ErrorKind = kind
	result.Err = err

	entry := &store.FailureEntry{
		VideoID:   result.VideoID,
		Stage:     string(stage),
		Title:     result.Title,
		ErrorKind: kind,
		Message:   err.Error(),
	}
	if recErr := o.failures.Record(context.WithoutCancel(ctx), entry); recErr != nil {
		log.Error("failure ledger write failed", logging.Error(recErr))
	}

	log.Error("item failed",
		logging.String(logging.FieldStage, string(stage)),
		logging.String(logging.FieldErrorKind, kind),
		logging.Error(err))
	return result
}

// clearFailures drops ledger entries once an item reaches a non-failed
// terminal state.
func (o *Orchestrator) clearFailures(ctx context.Context, log *slog.Logger, videoID string) {
	if err := o.failures.Clear(context.WithoutCancel(ctx), videoID); err != nil {
		log.Error("failure ledger clear failed", logging.Error(err))
	}
}

func videoFromMetadata(videoID string, meta *youtube.Metadata) *store.Video {
	video := &store.Video{
		ID:              meta.ID,
		Title:           meta.Title,
		ChannelName:     meta.ChannelName,
		ChannelID:       meta.ChannelID,
		DurationSeconds: meta.DurationSeconds,
		PublishedAt:     meta.PublishedAt,
		Description:     meta.Description,
		Tags:            meta.Tags,
	}
	if video.ID == "" {
		video.ID = videoID
	}
	return video
}

// SkippedItem names an item a batch did not process and why.
type SkippedItem struct {
	VideoID string
	Reason  string
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	RunID           string
	Requested       int
	Succeeded       int
	Failed          int
	Skipped         []SkippedItem
	BudgetWarning   bool
	HaltedForBudget bool
	TotalCostUSD    float64
	Items           []ItemResult
}

// ProcessBatch runs the items sequentially under one run id. Item failures
// never abort the batch; only budget exhaustion or cancellation stops the
// remaining items, and those are reported as skipped.
func (o *Orchestrator) ProcessBatch(ctx context.Context, videoIDs []string) BatchResult {
	runID := uuid.NewString()
	ctx = services.WithBatchID(ctx, runID)
	log := o.logger.With(logging.FieldBatchID, runID)

	result := BatchResult{RunID: runID, Requested: len(videoIDs)}
	periodKey := ledger.PeriodKey(o.now())

	// Extract-only batches spend nothing, so the budget never gates them.
	halted := false
	if !o.extractOnly {
		snap, err := o.costs.Current(ctx, periodKey)
		if err != nil {
			log.Error("budget preflight failed", logging.Error(err))
		} else {
			if snap.OverCeiling() {
				halted = true
				result.HaltedForBudget = true
				log.Error("monthly budget already exhausted, nothing will run",
					logging.Float64("period_total_usd", snap.PeriodTotalUSD),
					logging.Float64("ceiling_usd", snap.CeilingUSD))
			} else if snap.CeilingUSD > 0 {
				projected := snap.PeriodTotalUSD + float64(len(videoIDs))*o.costs.NominalEstimate(o.completionTokens)
				if projected > snap.CeilingUSD {
					result.BudgetWarning = true
					log.Warn("projected batch spend crosses the monthly ceiling",
						logging.Float64("projected_usd", projected),
						logging.Float64("ceiling_usd", snap.CeilingUSD))
				}
			}
			o.noteWarnThreshold(log, snap, &result)
		}
	}

	for _, videoID := range videoIDs {
		if ctx.Err() != nil {
			result.Skipped = append(result.Skipped, SkippedItem{VideoID: videoID, Reason: SkipReasonCanceled})
			continue
		}
		if halted {
			result.Skipped = append(result.Skipped, SkippedItem{VideoID: videoID, Reason: SkipReasonBudget})
			continue
		}

		if !o.extractOnly {
			exceed, err := o.costs.WouldExceedBudget(ctx, o.costs.NominalEstimate(o.completionTokens), periodKey)
			if err != nil {
				log.Error("budget check failed", logging.FieldItemID, videoID, logging.Error(err))
			} else if exceed {
				halted = true
				result.HaltedForBudget = true
				result.Skipped = append(result.Skipped, SkippedItem{VideoID: videoID, Reason: SkipReasonBudget})
				log.Warn("monthly budget exhausted, halting remaining items", logging.FieldItemID, videoID)
				continue
			}
		}

		item := o.ProcessOne(ctx, videoID)
		result.Items = append(result.Items, item)
		result.TotalCostUSD += item.CostUSD

		// A batch can cross the warning threshold mid-run; the signal is
		// non-fatal but the caller must see it.
		if item.CostUSD > 0 && !result.BudgetWarning {
			if snap, err := o.costs.Current(ctx, periodKey); err != nil {
				log.Error("budget snapshot failed", logging.Error(err))
			} else {
				o.noteWarnThreshold(log, snap, &result)
			}
		}

		switch {
		case item.State == StatePersisted:
			result.Succeeded++
		case item.State == StateFailed:
			result.Failed++
			if item.ErrorKind == "budget_exceeded" {
				halted = true
				result.HaltedForBudget = true
			}
		default:
			result.Skipped = append(result.Skipped, SkippedItem{VideoID: videoID, Reason: item.SkipReason})
		}
	}

	log.Info("batch finished",
		logging.Int("requested", result.Requested),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", len(result.Skipped)),
		logging.Float64("cost_usd", result.TotalCostUSD))
	return result
}

// noteWarnThreshold marks the batch once period spend crosses the warning
// line. The warning is advisory; processing continues.
func (o *Orchestrator) noteWarnThreshold(log *slog.Logger, snap ledger.Snapshot, result *BatchResult) {
	if result.BudgetWarning || !snap.OverWarnThreshold() {
		return
	}
	result.BudgetWarning = true
	log.Warn("period spend has crossed the warning threshold",
		logging.Float64("period_total_usd", snap.PeriodTotalUSD),
		logging.Float64("warn_at_usd", snap.WarnAtUSD))
}

// ReprocessFailed runs a batch over every video currently in the failure
// ledger. Items that succeed drop out of the ledger; items that fail again
// stay with a bumped attempt count.
func (o *Orchestrator) ReprocessFailed(ctx context.Context) (BatchResult, error) {
	entries, err := o.failures.List(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list failures: %w", err)
	}
	seen := make(map[string]struct{}, len(entries))
	var ids []string
	for _, entry := range entries {
		if _, ok := seen[entry.VideoID]; ok {
			continue
		}
		seen[entry.VideoID] = struct{}{}
		ids = append(ids, entry.VideoID)
	}
	return o.ProcessBatch(ctx, ids), nil
}
