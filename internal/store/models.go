package store

import (
	"errors"
	"time"
)

// Transcript is the resolved caption text for a video. A nil Transcript is a
// valid resolution: the video simply has none.
type Transcript struct {
	Text          string
	Language      string
	AutoGenerated bool
}

// Video is the extracted catalog record for one item.
type Video struct {
	ID              string
	Title           string
	ChannelName     string
	ChannelID       string
	DurationSeconds int
	PublishedAt     time.Time
	Description     string
	Tags            []string

	HasTranscript           bool
	TranscriptText          string
	TranscriptLanguage      string
	TranscriptAutoGenerated bool

	ExtractedAt time.Time
}

// SetTranscript copies a resolved transcript onto the record.
func (v *Video) SetTranscript(t *Transcript) {
	if t == nil {
		v.HasTranscript = false
		v.TranscriptText = ""
		v.TranscriptLanguage = ""
		v.TranscriptAutoGenerated = false
		return
	}
	v.HasTranscript = true
	v.TranscriptText = t.Text
	v.TranscriptLanguage = t.Language
	v.TranscriptAutoGenerated = t.AutoGenerated
}

// Summary is the distilled artifact for one video.
type Summary struct {
	VideoID     string
	Category    string
	SummaryText string
	KeyPoints   []string
	// QASections maps each question label to its answer body.
	QASections map[string]string
	// Document is the full rendered markdown artifact, footer included.
	Document string

	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	// Flagged marks a summary that failed validation after its one
	// regeneration pass and was accepted anyway.
	Flagged   bool
	CreatedAt time.Time
}

// Validate enforces the summary invariants before persistence.
func (s *Summary) Validate() error {
	switch {
	case s.VideoID == "":
		return errors.New("summary: video id is required")
	case s.CostUSD < 0:
		return errors.New("summary: cost must not be negative")
	case s.InputTokens < 0 || s.OutputTokens < 0:
		return errors.New("summary: token counts must not be negative")
	}
	return nil
}
