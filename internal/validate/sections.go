package validate

import (
	"errors"
	"strings"

	"distill/internal/prompt"
)

// Document is the parsed form of a distilled summary.
type Document struct {
	Summary   string
	KeyPoints []string
	// Sections maps each Q&A label to its answer body.
	Sections map[string]string
}

const (
	summaryHeading   = "## Summary"
	keyPointsHeading = "## Key Points"
)

// ParseDocument splits a distilled candidate into its summary paragraph, key
// points, and Q&A sections. Unknown leading or trailing text is tolerated;
// an entirely unstructured payload is an error.
func ParseDocument(text string) (Document, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Document{}, errors.New("empty summary text")
	}

	doc := Document{Sections: make(map[string]string, 4)}

	labels := make([]string, 0, 6)
	labels = append(labels, summaryHeading, keyPointsHeading)
	labels = append(labels, prompt.RequiredSections()...)

	cuts := findCuts(trimmed, labels)
	if len(cuts) == 0 {
		return Document{}, errors.New("summary has no recognizable sections")
	}

	for i, cut := range cuts {
		end := len(trimmed)
		if i+1 < len(cuts) {
			end = cuts[i+1].start
		}
		body := strings.TrimSpace(trimmed[cut.bodyStart:end])
		switch cut.label {
		case summaryHeading:
			doc.Summary = body
		case keyPointsHeading:
			doc.KeyPoints = parseBullets(body)
		default:
			doc.Sections[cut.label] = body
		}
	}
	return doc, nil
}

type cut struct {
	label     string
	start     int
	bodyStart int
}

// findCuts locates each known label in the text, matching the label with or
// without the surrounding markdown the model was asked for.
func findCuts(text string, labels []string) []cut {
	lower := strings.ToLower(text)
	found := make([]cut, 0, len(labels))
	for _, label := range labels {
		idx := strings.Index(lower, strings.ToLower(label))
		if idx < 0 {
			continue
		}
		start := idx
		// Pull leading markdown decoration into the cut.
		for start > 0 && (text[start-1] == '*' || text[start-1] == '#' || text[start-1] == ' ') {
			start--
		}
		bodyStart := idx + len(label)
		// Skip trailing decoration after the label.
		for bodyStart < len(text) && (text[bodyStart] == '*' || text[bodyStart] == ':' || text[bodyStart] == ' ') {
			bodyStart++
		}
		found = append(found, cut{label: label, start: start, bodyStart: bodyStart})
	}
	// Insertion sort by position; the list never exceeds six entries.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].start < found[j-1].start; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}
	return found
}

func parseBullets(body string) []string {
	var points []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimSpace(line)
		if line != "" {
			points = append(points, line)
		}
	}
	return points
}
