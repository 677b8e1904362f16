// Package ledger tracks LLM spend against a monthly ceiling and records
// per-video failures for later reprocessing.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"distill/internal/config"
	"distill/internal/store"
)

// periodKeyLayout groups cost entries by calendar month.
const periodKeyLayout = "2006-01"

// PeriodKey returns the ledger period a timestamp belongs to.
func PeriodKey(t time.Time) string {
	return t.UTC().Format(periodKeyLayout)
}

// CurrentPeriodKey returns the period key for the present moment.
func CurrentPeriodKey() string {
	return PeriodKey(time.Now())
}

// Snapshot is a point-in-time view of recorded spend.
type Snapshot struct {
	GrandTotalUSD  float64
	PeriodKey      string
	PeriodTotalUSD float64
	CeilingUSD     float64
	WarnAtUSD      float64
}

// OverWarnThreshold reports whether period spend has crossed the warning line.
func (s Snapshot) OverWarnThreshold() bool {
	return s.WarnAtUSD > 0 && s.PeriodTotalUSD >= s.WarnAtUSD
}

// OverCeiling reports whether period spend has crossed the hard ceiling.
func (s Snapshot) OverCeiling() bool {
	return s.CeilingUSD > 0 && s.PeriodTotalUSD > s.CeilingUSD
}

// CostLedger serializes budget checks and spend commits over the store.
// The mutex keeps check-then-record sequences atomic for concurrent callers.
type CostLedger struct {
	mu     sync.Mutex
	store  *store.Store
	budget config.Budget
}

// NewCostLedger builds a ledger over the given store and budget settings.
func NewCostLedger(st *store.Store, budget config.Budget) *CostLedger {
	return &CostLedger{store: st, budget: budget}
}

// Estimate projects the USD cost of a call from its token counts.
func (l *CostLedger) Estimate(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*l.budget.PromptRatePerMTok/1e6 +
		float64(completionTokens)*l.budget.CompletionRatePerMTok/1e6
}

// NominalEstimate projects the cost of a typical item before its prompt
// exists, using the configured nominal prompt size.
func (l *CostLedger) NominalEstimate(completionTokens int) float64 {
	return l.Estimate(l.budget.NominalPromptTokens, completionTokens)
}

// WouldExceedBudget reports whether committing an estimated charge in the
// given period would push period spend strictly past the ceiling. A zero
// ceiling disables enforcement.
func (l *CostLedger) WouldExceedBudget(ctx context.Context, estimatedUSD float64, periodKey string) (bool, error) {
	if l.budget.MonthlyCeilingUSD <= 0 {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	_, period, err := l.store.SumCosts(ctx, periodKey)
	if err != nil {
		return false, err
	}
	return period+estimatedUSD > l.budget.MonthlyCeilingUSD, nil
}

// Record commits a charged call to the ledger and returns the new grand
// total. Every charged call is recorded, over budget or not.
func (l *CostLedger) Record(ctx context.Context, entry *store.CostEntry) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PeriodKey == "" {
		entry.PeriodKey = PeriodKey(entry.CreatedAt)
	}
	if err := l.store.AppendCostEntry(ctx, entry); err != nil {
		return 0, err
	}
	grand, _, err := l.store.SumCosts(ctx, entry.PeriodKey)
	if err != nil {
		return 0, fmt.Errorf("read totals after record: %w", err)
	}
	return grand, nil
}

// Current returns the spend snapshot for the given period.
func (l *CostLedger) Current(ctx context.Context, periodKey string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	grand, period, err := l.store.SumCosts(ctx, periodKey)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		GrandTotalUSD:  grand,
		PeriodKey:      periodKey,
		PeriodTotalUSD: period,
		CeilingUSD:     l.budget.MonthlyCeilingUSD,
		WarnAtUSD:      l.budget.WarnAtUSD,
	}, nil
}

// Totals returns per-period spend ordered oldest period first.
func (l *CostLedger) Totals(ctx context.Context) ([]store.CostPeriodTotal, error) {
	return l.store.SumCostsByPeriod(ctx)
}

// Entries returns cost entries, optionally restricted to one period.
func (l *CostLedger) Entries(ctx context.Context, periodKey string) ([]*store.CostEntry, error) {
	return l.store.ListCostEntries(ctx, periodKey)
}
