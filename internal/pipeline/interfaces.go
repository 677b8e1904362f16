package pipeline

import (
	"context"

	"distill/internal/services/llm"
	"distill/internal/services/youtube"
	"distill/internal/store"
)

// Extractor fetches catalog metadata and caption text. Satisfied by
// youtube.Client.
type Extractor interface {
	GetMetadata(ctx context.Context, videoID string) (*youtube.Metadata, error)
	GetTranscript(ctx context.Context, videoID string) (*youtube.Transcript, error)
}

// Distiller produces summary text from prompts. Satisfied by llm.Client.
type Distiller interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*llm.Completion, error)
	Model() string
}

// Repository persists videos and summaries. Satisfied by store.Store.
type Repository interface {
	HasSummary(ctx context.Context, videoID string) (bool, error)
	SaveVideo(ctx context.Context, video *store.Video) error
	SaveVideoWithSummary(ctx context.Context, video *store.Video, summary *store.Summary) error
}
