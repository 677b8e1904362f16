package pipeline_test

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/pipeline"
	"distill/internal/retry"
	"distill/internal/services"
	"distill/internal/services/llm"
	"distill/internal/services/youtube"
	"distill/internal/store"
)

const passingSummary = `## Summary
Bees make honey. They live in hives. Bees help plants grow.

## Key Points
- Bees make honey
- Bees live in hives

**What is this about?**
This is about bees. Bees are small bugs that make honey.

**Why should I care?**
Bees help plants grow. We need plants for food.

**How does it work?**
Bees visit flowers. They pick up pollen.

**What can I learn from this?**
Bees are important. We should keep them safe.
`

type fakeExtractor struct {
	metadata      map[string]*youtube.Metadata
	transcripts   map[string]*youtube.Transcript
	metadataErrs  map[string]error
	metadataCalls map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		metadata:      make(map[string]*youtube.Metadata),
		transcripts:   make(map[string]*youtube.Transcript),
		metadataErrs:  make(map[string]error),
		metadataCalls: make(map[string]int),
	}
}

func (f *fakeExtractor) add(id, title string, tags ...string) {
	f.metadata[id] = &youtube.Metadata{
		ID:          id,
		Title:       title,
		ChannelName: "Test Channel",
		Tags:        tags,
	}
	f.transcripts[id] = &youtube.Transcript{Text: "The speaker explains the topic step by step.", Language: "en"}
}

func (f *fakeExtractor) GetMetadata(ctx context.Context, videoID string) (*youtube.Metadata, error) {
	f.metadataCalls[videoID]++
	if err, ok := f.metadataErrs[videoID]; ok {
		return nil, err
	}
	meta, ok := f.metadata[videoID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "extract", "metadata", "video "+videoID+" does not exist", nil)
	}
	return meta, nil
}

func (f *fakeExtractor) GetTranscript(ctx context.Context, videoID string) (*youtube.Transcript, error) {
	return f.transcripts[videoID], nil
}

type fakeDistiller struct {
	text         string
	inputTokens  int
	outputTokens int
	calls        int
	userPrompts  []string
	err          error
}

func (f *fakeDistiller) Complete(ctx context.Context, systemPrompt, userPrompt string) (*llm.Completion, error) {
	f.calls++
	f.userPrompts = append(f.userPrompts, userPrompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{
		Text:         f.text,
		Model:        f.Model(),
		InputTokens:  f.inputTokens,
		OutputTokens: f.outputTokens,
		Latency:      25 * time.Millisecond,
	}, nil
}

func (f *fakeDistiller) Model() string { return "test/model" }

type harness struct {
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	costs        *ledger.CostLedger
	failures     *ledger.FailureLedger
	extractor    *fakeExtractor
	distiller    *fakeDistiller
}

func newHarness(t *testing.T, budget config.Budget, validation config.Validation, tweaks ...func(*pipeline.Options)) *harness {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "distill.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	extractor := newFakeExtractor()
	distiller := &fakeDistiller{text: passingSummary, inputTokens: 1000, outputTokens: 0}
	costs := ledger.NewCostLedger(st, budget)
	failures := ledger.NewFailureLedger(st)

	opts := pipeline.Options{
		Extractor:  extractor,
		Distiller:  distiller,
		Repository: st,
		Costs:      costs,
		Failures:   failures,
		Policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
		},
		Validation:   validation,
		SummariesDir: filepath.Join(t.TempDir(), "summaries"),
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	orchestrator := pipeline.New(opts)
	return &harness{
		orchestrator: orchestrator,
		store:        st,
		costs:        costs,
		failures:     failures,
		extractor:    extractor,
		distiller:    distiller,
	}
}

func defaultBudget() config.Budget {
	return config.Budget{
		MonthlyCeilingUSD:     10.0,
		WarnAtUSD:             8.0,
		PromptRatePerMTok:     1.0,
		CompletionRatePerMTok: 1.0,
		NominalPromptTokens:   1000,
	}
}

func TestBatchContinuesPastMissingVideo(t *testing.T) {
	h := newHarness(t, defaultBudget(), config.Validation{})
	h.extractor.add("vid-1", "First Video")
	h.extractor.add("vid-3", "Third Video")
	// vid-2 has no metadata entry, so extraction reports it missing.

	result := h.orchestrator.ProcessBatch(context.Background(), []string{"vid-1", "vid-2", "vid-3"})

	if result.Succeeded != 2 {
		t.Fatalf("succeeded = %d", result.Succeeded)
	}
	if result.Failed != 1 {
		t.Fatalf("failed = %d", result.Failed)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("skipped = %v", result.Skipped)
	}
	if result.RunID == "" {
		t.Fatal("run id missing")
	}

	// A missing video is fatal, so it burns exactly one attempt.
	if calls := h.extractor.metadataCalls["vid-2"]; calls != 1 {
		t.Fatalf("metadata calls for missing video = %d", calls)
	}

	entry, err := h.failures.Get(context.Background(), "vid-2", "extract")
	if err != nil {
		t.Fatalf("get failure: %v", err)
	}
	if entry == nil {
		t.Fatal("expected failure ledger entry for vid-2")
	}
	if entry.ErrorKind != "video_not_found" {
		t.Fatalf("error kind = %q", entry.ErrorKind)
	}
}

func TestFinanceVideoClassifiedAndCharged(t *testing.T) {
	h := newHarness(t, defaultBudget(), config.Validation{Enabled: true, MaxGradeLevel: 7.0})
	h.extractor.add("vid-1", "Bitcoin Investing for Beginners", "crypto")

	before, err := h.costs.Current(context.Background(), ledger.CurrentPeriodKey())
	if err != nil {
		t.Fatalf("current: %v", err)
	}

	item := h.orchestrator.ProcessOne(context.Background(), "vid-1")
	if item.State != pipeline.StatePersisted {
		t.Fatalf("state = %q (err %v)", item.State, item.Err)
	}
	if item.Flagged {
		t.Fatal("passing summary must not be flagged")
	}

	summary, err := h.store.GetSummary(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.Category != "finance" {
		t.Fatalf("category = %q", summary.Category)
	}
	if len(summary.QASections) != 4 {
		t.Fatalf("qa sections = %v", summary.QASections)
	}

	after, err := h.costs.Current(context.Background(), ledger.CurrentPeriodKey())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	wantDelta := 1000.0 / 1e6 // 1000 prompt tokens at $1/Mtok
	if diff := after.GrandTotalUSD - before.GrandTotalUSD; math.Abs(diff-wantDelta) > 1e-9 {
		t.Fatalf("cost delta = %v, want %v", diff, wantDelta)
	}
}

func TestBudgetExhaustionHaltsRemainingItems(t *testing.T) {
	budget := config.Budget{
		MonthlyCeilingUSD:   0.01,
		PromptRatePerMTok:   1.0,
		NominalPromptTokens: 10_000, // nominal estimate exactly $0.01
	}
	h := newHarness(t, budget, config.Validation{})
	h.distiller.inputTokens = 10_000 // each call charges exactly $0.01
	ids := []string{"vid-1", "vid-2", "vid-3", "vid-4", "vid-5"}
	for i, id := range ids {
		h.extractor.add(id, "Video "+string(rune('A'+i)))
	}

	result := h.orchestrator.ProcessBatch(context.Background(), ids)

	if result.Succeeded != 1 {
		t.Fatalf("succeeded = %d", result.Succeeded)
	}
	if result.Failed != 0 {
		t.Fatalf("failed = %d", result.Failed)
	}
	if len(result.Skipped) != 4 {
		t.Fatalf("skipped = %v", result.Skipped)
	}
	for _, skipped := range result.Skipped {
		if skipped.Reason != pipeline.SkipReasonBudget {
			t.Fatalf("skip reason = %q", skipped.Reason)
		}
	}
	if !result.HaltedForBudget {
		t.Fatal("halt flag missing")
	}
	if !result.BudgetWarning {
		t.Fatal("preflight projection should have warned")
	}
	if h.distiller.calls != 1 {
		t.Fatalf("distiller calls = %d", h.distiller.calls)
	}

	// The one charged call is on the ledger even though it landed on the ceiling.
	snap, err := h.costs.Current(context.Background(), ledger.CurrentPeriodKey())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if math.Abs(snap.PeriodTotalUSD-0.01) > 1e-9 {
		t.Fatalf("period total = %v", snap.PeriodTotalUSD)
	}
}

func TestWarnThresholdCrossedMidRunMarksBatch(t *testing.T) {
	budget := config.Budget{
		MonthlyCeilingUSD:   10.0,
		WarnAtUSD:           0.005,
		PromptRatePerMTok:   1.0,
		NominalPromptTokens: 1000,
	}
	h := newHarness(t, budget, config.Validation{})
	h.distiller.inputTokens = 10_000 // each call charges $0.01
	h.extractor.add("vid-1", "First Video")
	h.extractor.add("vid-2", "Second Video")

	result := h.orchestrator.ProcessBatch(context.Background(), []string{"vid-1", "vid-2"})

	if result.Succeeded != 2 || result.Failed != 0 || len(result.Skipped) != 0 {
		t.Fatalf("result = %+v", result)
	}
	// The first commit already crosses the $0.005 line, far below the ceiling.
	if !result.BudgetWarning {
		t.Fatal("warning threshold crossed mid-run but batch carries no warning")
	}
	if result.HaltedForBudget {
		t.Fatal("warning threshold must not halt the batch")
	}

	snap, err := h.costs.Current(context.Background(), ledger.CurrentPeriodKey())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !snap.OverWarnThreshold() {
		t.Fatalf("snapshot should be over the warn threshold: %+v", snap)
	}
}

func TestRerunSkipsProcessedVideoWithoutCharge(t *testing.T) {
	h := newHarness(t, defaultBudget(), config.Validation{})
	h.extractor.add("vid-1", "First Video")
	ctx := context.Background()

	first := h.orchestrator.ProcessOne(ctx, "vid-1")
	if first.State != pipeline.StatePersisted {
		t.Fatalf("first run state = %q (err %v)", first.State, first.Err)
	}

	second := h.orchestrator.ProcessOne(ctx, "vid-1")
	if second.State != pipeline.StateSkippedAlreadyProcessed {
		t.Fatalf("second run state = %q", second.State)
	}
	if second.CostUSD != 0 {
		t.Fatalf("second run cost = %v", second.CostUSD)
	}
	if h.distiller.calls != 1 {
		t.Fatalf("distiller calls = %d", h.distiller.calls)
	}
}

func TestMissingTranscriptSkipsButKeepsRecord(t *testing.T) {
	h := newHarness(t, defaultBudget(), config.Validation{})
	h.extractor.add("vid-1", "Silent Film")
	h.extractor.transcripts["vid-1"] = nil

	item := h.orchestrator.ProcessOne(context.Background(), "vid-1")
	if item.State != pipeline.StateSkippedNoTranscript {
		t.Fatalf("state = %q (err %v)", item.State, item.Err)
	}
	if h.distiller.calls != 0 {
		t.Fatalf("distiller calls = %d", h.distiller.calls)
	}

	video, err := h.store.GetVideo(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video == nil {
		t.Fatal("extracted record should be persisted")
	}
	if video.HasTranscript {
		t.Fatal("record must note the missing transcript")
	}
	has, err := h.store.HasSummary(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("has summary: %v", err)
	}
	if has {
		t.Fatal("no summary should exist")
	}
}

func TestExtractOnlyPersistsWithoutDistilling(t *testing.T) {
	// A zero ceiling with prior spend would halt a distilling batch, but
	// extract-only runs never touch the budget.
	budget := config.Budget{MonthlyCeilingUSD: 0.001, PromptRatePerMTok: 1.0, NominalPromptTokens: 10_000}
	h := newHarness(t, budget, config.Validation{}, func(opts *pipeline.Options) {
		opts.ExtractOnly = true
	})
	h.extractor.add("vid-1", "First Video")
	h.extractor.add("vid-2", "Second Video")

	result := h.orchestrator.ProcessBatch(context.Background(), []string{"vid-1", "vid-2"})
	if result.Succeeded != 2 || result.Failed != 0 || len(result.Skipped) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.HaltedForBudget || result.BudgetWarning {
		t.Fatal("extract-only batch must not consult the budget")
	}
	if h.distiller.calls != 0 {
		t.Fatalf("distiller calls = %d", h.distiller.calls)
	}

	video, err := h.store.GetVideo(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video == nil || !video.HasTranscript {
		t.Fatalf("video = %+v", video)
	}
	has, err := h.store.HasSummary(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("has summary: %v", err)
	}
	if has {
		t.Fatal("no summary should exist")
	}

	snap, err := h.costs.Current(context.Background(), ledger.CurrentPeriodKey())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if snap.GrandTotalUSD != 0 {
		t.Fatalf("grand total = %v", snap.GrandTotalUSD)
	}
}

func TestFailedValidationRegeneratesOnceThenFlags(t *testing.T) {
	// A grade ceiling no real text passes forces both candidates to fail.
	h := newHarness(t, defaultBudget(), config.Validation{Enabled: true, MaxGradeLevel: 0.5})
	h.extractor.add("vid-1", "First Video")

	item := h.orchestrator.ProcessOne(context.Background(), "vid-1")
	if item.State != pipeline.StatePersisted {
		t.Fatalf("state = %q (err %v)", item.State, item.Err)
	}
	if !item.Flagged {
		t.Fatal("item should be flagged")
	}
	if h.distiller.calls != 2 {
		t.Fatalf("distiller calls = %d", h.distiller.calls)
	}
	if !strings.Contains(h.distiller.userPrompts[1], "Simplify") {
		t.Fatalf("regeneration prompt missing simplify instruction: %q", h.distiller.userPrompts[1])
	}

	summary, err := h.store.GetSummary(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !summary.Flagged {
		t.Fatal("stored summary should be flagged")
	}
	// Both charged calls are on the record.
	if summary.InputTokens != 2000 {
		t.Fatalf("input tokens = %d", summary.InputTokens)
	}
}

func TestReprocessFailedClearsLedgerOnSuccess(t *testing.T) {
	h := newHarness(t, defaultBudget(), config.Validation{})
	ctx := context.Background()

	// First run fails at extraction.
	h.extractor.metadataErrs["vid-1"] = services.Wrap(services.ErrTransient, "extract", "metadata", "", nil)
	first := h.orchestrator.ProcessOne(ctx, "vid-1")
	if first.State != pipeline.StateFailed {
		t.Fatalf("state = %q", first.State)
	}

	// The video becomes available; reprocessing should succeed and clear the ledger.
	delete(h.extractor.metadataErrs, "vid-1")
	h.extractor.add("vid-1", "Recovered Video")

	result, err := h.orchestrator.ReprocessFailed(ctx)
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("succeeded = %d", result.Succeeded)
	}

	remaining, err := h.failures.List(ctx)
	if err != nil {
		t.Fatalf("list failures: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("remaining failures = %v", remaining)
	}
}

func TestCanceledContextSkipsRemainingItems(t *testing.T) {
	h := newHarness(t, defaultBudget(), config.Validation{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := h.orchestrator.ProcessBatch(ctx, []string{"vid-1", "vid-2"})
	if result.Succeeded != 0 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped = %v", result.Skipped)
	}
	for _, skipped := range result.Skipped {
		if skipped.Reason != pipeline.SkipReasonCanceled {
			t.Fatalf("skip reason = %q", skipped.Reason)
		}
	}
}
