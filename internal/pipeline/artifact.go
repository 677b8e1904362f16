package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"distill/internal/store"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// RenderDocument assembles the final markdown artifact for a summary: a
// title heading, the distilled body, and a source footer.
func RenderDocument(video *store.Video, body string, distilledAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(video.Title))
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "Source: %s%s\n", watchURLPrefix, video.ID)
	if video.ChannelName != "" {
		fmt.Fprintf(&b, "Channel: %s\n", video.ChannelName)
	}
	if video.DurationSeconds > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", formatDuration(video.DurationSeconds))
	}
	fmt.Fprintf(&b, "Distilled: %s\n", distilledAt.UTC().Format("2006-01-02"))
	return b.String()
}

// WriteArtifact stores the rendered document as <dir>/<video id>.md.
func WriteArtifact(dir, videoID, document string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create summaries dir: %w", err)
	}
	path := filepath.Join(dir, videoID+".md")
	if err := os.WriteFile(path, []byte(document), 0o644); err != nil {
		return "", fmt.Errorf("write summary artifact: %w", err)
	}
	return path, nil
}

func formatDuration(seconds int) string {
	if seconds < 3600 {
		return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
