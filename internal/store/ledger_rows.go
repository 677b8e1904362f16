package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CostEntry is one charged LLM call.
type CostEntry struct {
	ID           int64
	VideoID      string
	Title        string
	PeriodKey    string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMS    int64
	CreatedAt    time.Time
}

// FailureEntry records the most recent failure of a video at a stage.
type FailureEntry struct {
	VideoID       string
	Stage         string
	Title         string
	ErrorKind     string
	Message       string
	AttemptCount  int
	FirstFailedAt time.Time
	LastAttemptAt time.Time
}

const costColumns = "id, video_id, title, period_key, model, input_tokens, output_tokens, cost_usd, latency_ms, created_at"

// AppendCostEntry records a charged call. Entries are append-only.
func (s *Store) AppendCostEntry(ctx context.Context, entry *CostEntry) error {
	if entry == nil {
		return errors.New("cost entry is nil")
	}
	if entry.VideoID == "" || entry.PeriodKey == "" {
		return errors.New("cost entry requires video id and period key")
	}
	if entry.CostUSD < 0 {
		return errors.New("cost entry must not be negative")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cost_entries (video_id, title, period_key, model, input_tokens, output_tokens, cost_usd, latency_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.VideoID,
		nullableString(entry.Title),
		entry.PeriodKey,
		entry.Model,
		entry.InputTokens,
		entry.OutputTokens,
		entry.CostUSD,
		entry.LatencyMS,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append cost entry: %w", err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		entry.ID = id
	}
	return nil
}

// SumCosts returns the all-time total and the total for one period.
func (s *Store) SumCosts(ctx context.Context, periodKey string) (grand, period float64, err error) {
	err = s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(cost_usd), 0),
                COALESCE(SUM(CASE WHEN period_key = ? THEN cost_usd ELSE 0 END), 0)
         FROM cost_entries`,
		periodKey,
	).Scan(&grand, &period)
	if err != nil {
		return 0, 0, fmt.Errorf("sum costs: %w", err)
	}
	return grand, period, nil
}

// CostPeriodTotal aggregates one period's charged calls.
type CostPeriodTotal struct {
	PeriodKey   string
	TotalUSD    float64
	Items       int
	LastEntryAt time.Time
}

// SumCostsByPeriod returns per-period totals ordered oldest period first.
func (s *Store) SumCostsByPeriod(ctx context.Context) ([]CostPeriodTotal, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT period_key, SUM(cost_usd), COUNT(*), MAX(created_at)
         FROM cost_entries GROUP BY period_key ORDER BY period_key`,
	)
	if err != nil {
		return nil, fmt.Errorf("sum costs by period: %w", err)
	}
	defer rows.Close()

	var totals []CostPeriodTotal
	for rows.Next() {
		var (
			total   CostPeriodTotal
			lastRaw sql.NullString
		)
		if err := rows.Scan(&total.PeriodKey, &total.TotalUSD, &total.Items, &lastRaw); err != nil {
			return nil, err
		}
		total.LastEntryAt = timeFromColumn(lastRaw)
		totals = append(totals, total)
	}
	return totals, rows.Err()
}

// ListCostEntries returns cost entries ordered oldest first, optionally
// restricted to one period.
func (s *Store) ListCostEntries(ctx context.Context, periodKey string) ([]*CostEntry, error) {
	query := `SELECT ` + costColumns + ` FROM cost_entries`
	var args []any
	if periodKey != "" {
		query += ` WHERE period_key = ?`
		args = append(args, periodKey)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cost entries: %w", err)
	}
	defer rows.Close()

	var entries []*CostEntry
	for rows.Next() {
		var (
			entry      CostEntry
			title      sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.VideoID,
			&title,
			&entry.PeriodKey,
			&entry.Model,
			&entry.InputTokens,
			&entry.OutputTokens,
			&entry.CostUSD,
			&entry.LatencyMS,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		entry.Title = title.String
		entry.CreatedAt = timeFromColumn(createdRaw)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

const failureColumns = "video_id, stage, title, error_kind, message, attempt_count, first_failed_at, last_attempt_at"

// UpsertFailure records a failure, bumping the attempt count when the
// (video, stage) pair already exists.
func (s *Store) UpsertFailure(ctx context.Context, entry *FailureEntry) error {
	if entry == nil {
		return errors.New("failure entry is nil")
	}
	if entry.VideoID == "" || entry.Stage == "" {
		return errors.New("failure entry requires video id and stage")
	}
	now := time.Now().UTC()
	if entry.LastAttemptAt.IsZero() {
		entry.LastAttemptAt = now
	}
	if entry.FirstFailedAt.IsZero() {
		entry.FirstFailedAt = now
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO failure_entries (`+failureColumns+`)
         VALUES (?, ?, ?, ?, ?, 1, ?, ?)
         ON CONFLICT(video_id, stage) DO UPDATE SET
             title = excluded.title,
             error_kind = excluded.error_kind,
             message = excluded.message,
             attempt_count = failure_entries.attempt_count + 1,
             last_attempt_at = excluded.last_attempt_at`,
		entry.VideoID,
		entry.Stage,
		nullableString(entry.Title),
		entry.ErrorKind,
		nullableString(entry.Message),
		entry.FirstFailedAt.UTC().Format(time.RFC3339Nano),
		entry.LastAttemptAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert failure: %w", err)
	}
	return nil
}

// GetFailure fetches the failure record for a (video, stage) pair. Returns
// nil when absent.
func (s *Store) GetFailure(ctx context.Context, videoID, stage string) (*FailureEntry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+failureColumns+` FROM failure_entries WHERE video_id = ? AND stage = ?`,
		videoID, stage,
	)
	entry, err := scanFailure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failure: %w", err)
	}
	return entry, nil
}

// ListFailures returns all recorded failures ordered by most recent attempt.
func (s *Store) ListFailures(ctx context.Context) ([]*FailureEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+failureColumns+` FROM failure_entries ORDER BY last_attempt_at DESC, video_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var entries []*FailureEntry
	for rows.Next() {
		entry, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ClearFailures removes all failure records for a video. Returns the number
// removed.
func (s *Store) ClearFailures(ctx context.Context, videoID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM failure_entries WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, fmt.Errorf("clear failures: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailure removes the record for one (video, stage) pair. Returns the
// number removed.
func (s *Store) ClearFailure(ctx context.Context, videoID, stage string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM failure_entries WHERE video_id = ? AND stage = ?`, videoID, stage)
	if err != nil {
		return 0, fmt.Errorf("clear failure: %w", err)
	}
	return res.RowsAffected()
}

func scanFailure(sc scanner) (*FailureEntry, error) {
	var (
		entry    FailureEntry
		title    sql.NullString
		message  sql.NullString
		firstRaw sql.NullString
		lastRaw  sql.NullString
	)
	if err := sc.Scan(
		&entry.VideoID,
		&entry.Stage,
		&title,
		&entry.ErrorKind,
		&message,
		&entry.AttemptCount,
		&firstRaw,
		&lastRaw,
	); err != nil {
		return nil, err
	}
	entry.Title = title.String
	entry.Message = message.String
	entry.FirstFailedAt = timeFromColumn(firstRaw)
	entry.LastAttemptAt = timeFromColumn(lastRaw)
	return &entry, nil
}
