package services

import "context"

type contextKey string

const (
	itemIDKey  contextKey = "item_id"
	stageKey   contextKey = "stage"
	batchIDKey contextKey = "batch_id"
)

// WithItemID attaches a video identifier to the context for log correlation.
func WithItemID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, itemIDKey, id)
}

// ItemIDFromContext returns the video identifier previously attached, if any.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(itemIDKey).(string)
	return id, ok && id != ""
}

// WithStage attaches the active pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the active stage name, if any.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// WithBatchID attaches a batch run identifier to the context.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch run identifier, if any.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(batchIDKey).(string)
	return id, ok && id != ""
}
