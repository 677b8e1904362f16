package ledger

import (
	"context"

	"distill/internal/store"
)

// FailureLedger records the latest failure per (video, stage) pair so that
// failed items can be listed and reprocessed.
type FailureLedger struct {
	store *store.Store
}

// NewFailureLedger builds a ledger over the given store.
func NewFailureLedger(st *store.Store) *FailureLedger {
	return &FailureLedger{store: st}
}

// Record upserts a failure. Repeated failures of the same (video, stage)
// pair bump the attempt count rather than adding rows.
func (l *FailureLedger) Record(ctx context.Context, entry *store.FailureEntry) error {
	return l.store.UpsertFailure(ctx, entry)
}

// Get returns the failure record for a (video, stage) pair, nil when absent.
func (l *FailureLedger) Get(ctx context.Context, videoID, stage string) (*store.FailureEntry, error) {
	return l.store.GetFailure(ctx, videoID, stage)
}

// List returns all recorded failures, most recent attempt first.
func (l *FailureLedger) List(ctx context.Context) ([]*store.FailureEntry, error) {
	return l.store.ListFailures(ctx)
}

// Clear removes every failure record for a video, across all stages. Called
// when the video reaches any terminal state other than failed: success at the
// final stage implies every earlier stage passed too.
func (l *FailureLedger) Clear(ctx context.Context, videoID string) error {
	_, err := l.store.ClearFailures(ctx, videoID)
	return err
}

// ClearStage removes the failure record for one (video, stage) pair, leaving
// records for the video's other stages in place.
func (l *FailureLedger) ClearStage(ctx context.Context, videoID, stage string) error {
	_, err := l.store.ClearFailure(ctx, videoID, stage)
	return err
}
