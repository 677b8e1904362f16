package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const summaryColumns = "video_id, category, summary_text, key_points_json, qa_sections_json, document, model, input_tokens, output_tokens, cost_usd, flagged, created_at"

// SaveSummary inserts or replaces the summary for a video.
func (s *Store) SaveSummary(ctx context.Context, summary *Summary) error {
	if summary == nil {
		return errors.New("summary is nil")
	}
	if err := summary.Validate(); err != nil {
		return err
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	return s.execSaveSummary(ctx, s.db, summary)
}

func (s *Store) execSaveSummary(ctx context.Context, db execer, summary *Summary) error {
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO summaries (`+summaryColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET
             category = excluded.category,
             summary_text = excluded.summary_text,
             key_points_json = excluded.key_points_json,
             qa_sections_json = excluded.qa_sections_json,
             document = excluded.document,
             model = excluded.model,
             input_tokens = excluded.input_tokens,
             output_tokens = excluded.output_tokens,
             cost_usd = excluded.cost_usd,
             flagged = excluded.flagged,
             created_at = excluded.created_at`,
		summary.VideoID,
		summary.Category,
		summary.SummaryText,
		marshalStrings(summary.KeyPoints),
		marshalStringMap(summary.QASections),
		summary.Document,
		summary.Model,
		summary.InputTokens,
		summary.OutputTokens,
		summary.CostUSD,
		boolToInt(summary.Flagged),
		summary.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// SaveVideoWithSummary writes the video record and its summary in one
// transaction. Either both rows land or neither does.
func (s *Store) SaveVideoWithSummary(ctx context.Context, video *Video, summary *Summary) error {
	if video == nil || summary == nil {
		return errors.New("video and summary are required")
	}
	if summary.VideoID != video.ID {
		return fmt.Errorf("summary video id %q does not match video %q", summary.VideoID, video.ID)
	}
	if err := summary.Validate(); err != nil {
		return err
	}
	if video.ExtractedAt.IsZero() {
		video.ExtractedAt = time.Now().UTC()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.execSaveVideo(ctx, tx, video); err != nil {
		return err
	}
	if err := s.execSaveSummary(ctx, tx, summary); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist tx: %w", err)
	}
	return nil
}

// GetSummary fetches the summary for a video. Returns nil when absent.
func (s *Store) GetSummary(ctx context.Context, videoID string) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM summaries WHERE video_id = ?`, videoID)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return summary, nil
}

// HasSummary reports whether a summary already exists for the video.
func (s *Store) HasSummary(ctx context.Context, videoID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM summaries WHERE video_id = ?`, videoID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check summary: %w", err)
	}
	return count > 0, nil
}

// ListSummaries returns all summaries ordered by creation time.
func (s *Store) ListSummaries(ctx context.Context) ([]*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+summaryColumns+` FROM summaries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func scanSummary(sc scanner) (*Summary, error) {
	var (
		videoID      string
		category     string
		summaryText  string
		keyPointsRaw sql.NullString
		qaRaw        sql.NullString
		document     string
		model        string
		inputTokens  int
		outputTokens int
		costUSD      float64
		flagged      int
		createdRaw   sql.NullString
	)
	if err := sc.Scan(
		&videoID,
		&category,
		&summaryText,
		&keyPointsRaw,
		&qaRaw,
		&document,
		&model,
		&inputTokens,
		&outputTokens,
		&costUSD,
		&flagged,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	return &Summary{
		VideoID:      videoID,
		Category:     category,
		SummaryText:  summaryText,
		KeyPoints:    unmarshalStrings(keyPointsRaw),
		QASections:   unmarshalStringMap(qaRaw),
		Document:     document,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      costUSD,
		Flagged:      flagged != 0,
		CreatedAt:    timeFromColumn(createdRaw),
	}, nil
}
