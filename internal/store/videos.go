package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const videoColumns = "id, title, channel_name, channel_id, duration_seconds, published_at, description, tags_json, has_transcript, transcript_text, transcript_language, transcript_auto_generated, extracted_at"

// SaveVideo inserts or replaces the extracted record for a video.
func (s *Store) SaveVideo(ctx context.Context, video *Video) error {
	if video == nil {
		return errors.New("video is nil")
	}
	if video.ID == "" {
		return errors.New("video id is required")
	}
	if video.ExtractedAt.IsZero() {
		video.ExtractedAt = time.Now().UTC()
	}
	return s.execSaveVideo(ctx, s.db, video)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execSaveVideo(ctx context.Context, db execer, video *Video) error {
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO videos (`+videoColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title,
             channel_name = excluded.channel_name,
             channel_id = excluded.channel_id,
             duration_seconds = excluded.duration_seconds,
             published_at = excluded.published_at,
             description = excluded.description,
             tags_json = excluded.tags_json,
             has_transcript = excluded.has_transcript,
             transcript_text = excluded.transcript_text,
             transcript_language = excluded.transcript_language,
             transcript_auto_generated = excluded.transcript_auto_generated,
             extracted_at = excluded.extracted_at`,
		video.ID,
		video.Title,
		nullableString(video.ChannelName),
		nullableString(video.ChannelID),
		video.DurationSeconds,
		nullableTime(video.PublishedAt),
		nullableString(video.Description),
		marshalStrings(video.Tags),
		boolToInt(video.HasTranscript),
		nullableString(video.TranscriptText),
		nullableString(video.TranscriptLanguage),
		boolToInt(video.TranscriptAutoGenerated),
		video.ExtractedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	return nil
}

// GetVideo fetches a video by identifier. Returns nil when absent.
func (s *Store) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListVideos returns all stored videos ordered by extraction time.
func (s *Store) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY extracted_at`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// ListVideoIDsByTag returns the ids of stored videos carrying the tag,
// compared case-insensitively, ordered by extraction time.
func (s *Store) ListVideoIDsByTag(ctx context.Context, tag string) ([]string, error) {
	videos, err := s.ListVideos(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, video := range videos {
		for _, candidate := range video.Tags {
			if strings.EqualFold(candidate, tag) {
				ids = append(ids, video.ID)
				break
			}
		}
	}
	return ids, nil
}

func scanVideo(sc scanner) (*Video, error) {
	var (
		id            string
		title         string
		channelName   sql.NullString
		channelID     sql.NullString
		duration      int
		publishedRaw  sql.NullString
		description   sql.NullString
		tagsRaw       sql.NullString
		hasTranscript int
		transcript    sql.NullString
		language      sql.NullString
		autoGenerated int
		extractedRaw  sql.NullString
	)
	if err := sc.Scan(
		&id,
		&title,
		&channelName,
		&channelID,
		&duration,
		&publishedRaw,
		&description,
		&tagsRaw,
		&hasTranscript,
		&transcript,
		&language,
		&autoGenerated,
		&extractedRaw,
	); err != nil {
		return nil, err
	}

	return &Video{
		ID:                      id,
		Title:                   title,
		ChannelName:             channelName.String,
		ChannelID:               channelID.String,
		DurationSeconds:         duration,
		PublishedAt:             timeFromColumn(publishedRaw),
		Description:             description.String,
		Tags:                    unmarshalStrings(tagsRaw),
		HasTranscript:           hasTranscript != 0,
		TranscriptText:          transcript.String,
		TranscriptLanguage:      language.String,
		TranscriptAutoGenerated: autoGenerated != 0,
		ExtractedAt:             timeFromColumn(extractedRaw),
	}, nil
}
