package ledger_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/store"
)

func newLedgerStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "distill.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBudget() config.Budget {
	return config.Budget{
		MonthlyCeilingUSD:     10.0,
		WarnAtUSD:             8.0,
		PromptRatePerMTok:     0.35,
		CompletionRatePerMTok: 0.35,
		NominalPromptTokens:   8000,
	}
}

func TestPeriodKey(t *testing.T) {
	key := ledger.PeriodKey(time.Date(2026, 8, 25, 23, 59, 0, 0, time.UTC))
	if key != "2026-08" {
		t.Fatalf("period key = %q", key)
	}
}

func TestEstimate(t *testing.T) {
	l := ledger.NewCostLedger(newLedgerStore(t), testBudget())
	got := l.Estimate(1_000_000, 1_000_000)
	if math.Abs(got-0.70) > 1e-9 {
		t.Fatalf("estimate = %v", got)
	}
}

func TestRecordReturnsGrandTotal(t *testing.T) {
	l := ledger.NewCostLedger(newLedgerStore(t), testBudget())
	ctx := context.Background()

	costs := []float64{0.01, 0.02, 0.03}
	var want float64
	var got float64
	for i, cost := range costs {
		want += cost
		total, err := l.Record(ctx, &store.CostEntry{
			VideoID: "vid-1",
			Model:   "m",
			CostUSD: cost,
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		got = total
	}
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("grand total = %v, want %v", got, want)
	}
}

func TestWouldExceedBudgetStrictlyGreater(t *testing.T) {
	budget := testBudget()
	budget.MonthlyCeilingUSD = 0.05
	l := ledger.NewCostLedger(newLedgerStore(t), budget)
	ctx := context.Background()
	period := ledger.CurrentPeriodKey()

	// A charge landing exactly on the ceiling proceeds.
	exceed, err := l.WouldExceedBudget(ctx, 0.05, period)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if exceed {
		t.Fatal("charge landing exactly on the ceiling should not exceed")
	}

	if _, err := l.Record(ctx, &store.CostEntry{VideoID: "vid-1", Model: "m", CostUSD: 0.05, PeriodKey: period}); err != nil {
		t.Fatalf("record: %v", err)
	}

	exceed, err = l.WouldExceedBudget(ctx, 0.01, period)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !exceed {
		t.Fatal("charge past a full ceiling should exceed")
	}
}

func TestWouldExceedBudgetScopedToPeriod(t *testing.T) {
	budget := testBudget()
	budget.MonthlyCeilingUSD = 0.05
	l := ledger.NewCostLedger(newLedgerStore(t), budget)
	ctx := context.Background()

	if _, err := l.Record(ctx, &store.CostEntry{VideoID: "vid-1", Model: "m", CostUSD: 0.05, PeriodKey: "2026-07"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Last month's spend does not count against this month.
	exceed, err := l.WouldExceedBudget(ctx, 0.05, "2026-08")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if exceed {
		t.Fatal("prior-period spend must not count against the current period")
	}
}

func TestZeroCeilingDisablesEnforcement(t *testing.T) {
	budget := testBudget()
	budget.MonthlyCeilingUSD = 0
	l := ledger.NewCostLedger(newLedgerStore(t), budget)

	exceed, err := l.WouldExceedBudget(context.Background(), 1e9, "2026-08")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if exceed {
		t.Fatal("zero ceiling must disable enforcement")
	}
}

func TestSnapshotThresholds(t *testing.T) {
	l := ledger.NewCostLedger(newLedgerStore(t), testBudget())
	ctx := context.Background()
	period := "2026-08"

	if _, err := l.Record(ctx, &store.CostEntry{VideoID: "vid-1", Model: "m", CostUSD: 9.0, PeriodKey: period}); err != nil {
		t.Fatalf("record: %v", err)
	}

	snap, err := l.Current(ctx, period)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !snap.OverWarnThreshold() {
		t.Fatalf("expected warn threshold crossed: %+v", snap)
	}
	if snap.OverCeiling() {
		t.Fatalf("ceiling not yet crossed: %+v", snap)
	}
}

func TestFailureLedgerLifecycle(t *testing.T) {
	st := newLedgerStore(t)
	l := ledger.NewFailureLedger(st)
	ctx := context.Background()

	entry := &store.FailureEntry{VideoID: "vid-1", Stage: "extract", ErrorKind: "video_not_found"}
	if err := l.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, entry); err != nil {
		t.Fatalf("record again: %v", err)
	}

	got, err := l.Get(ctx, "vid-1", "extract")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.AttemptCount != 2 {
		t.Fatalf("entry = %+v", got)
	}

	if err := l.Clear(ctx, "vid-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	all, err := l.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty ledger, got %v", all)
	}
}

func TestClearStageLeavesOtherStages(t *testing.T) {
	st := newLedgerStore(t)
	l := ledger.NewFailureLedger(st)
	ctx := context.Background()

	if err := l.Record(ctx, &store.FailureEntry{VideoID: "vid-1", Stage: "extract", ErrorKind: "transient"}); err != nil {
		t.Fatalf("record extract: %v", err)
	}
	if err := l.Record(ctx, &store.FailureEntry{VideoID: "vid-1", Stage: "distill", ErrorKind: "rate_limited"}); err != nil {
		t.Fatalf("record distill: %v", err)
	}

	if err := l.ClearStage(ctx, "vid-1", "extract"); err != nil {
		t.Fatalf("clear stage: %v", err)
	}

	cleared, err := l.Get(ctx, "vid-1", "extract")
	if err != nil {
		t.Fatalf("get extract: %v", err)
	}
	if cleared != nil {
		t.Fatalf("extract entry should be gone, got %+v", cleared)
	}
	remaining, err := l.Get(ctx, "vid-1", "distill")
	if err != nil {
		t.Fatalf("get distill: %v", err)
	}
	if remaining == nil || remaining.ErrorKind != "rate_limited" {
		t.Fatalf("distill entry = %+v", remaining)
	}
}
