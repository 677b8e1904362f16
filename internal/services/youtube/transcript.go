package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"distill/internal/services"
)

// GetTranscript resolves caption text for a video. A video without captions
// returns (nil, nil): absence is an expected outcome, not a failure.
func (c *Client) GetTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	track, err := c.pickCaptionTrack(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, nil
	}

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", track.LangCode)
	if track.Kind != "" {
		params.Set("kind", track.Kind)
	}
	body, err := c.doRequest(ctx, c.cfg.TimedTextBaseURL, params, "transcript")
	if err != nil {
		return nil, err
	}

	text, err := parseTimedText(body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transcript", "parse", "", err)
	}
	if text == "" {
		return nil, nil
	}
	return &Transcript{
		Text:          text,
		Language:      normalizeLanguage(track.LangCode),
		AutoGenerated: track.Kind == "asr",
	}, nil
}

type captionTrack struct {
	LangCode string `xml:"lang_code,attr"`
	Kind     string `xml:"kind,attr"`
}

type captionTrackList struct {
	Tracks []captionTrack `xml:"track"`
}

// pickCaptionTrack lists available tracks and prefers, in order: manual
// English, any manual track, auto-generated English, any track at all.
func (c *Client) pickCaptionTrack(ctx context.Context, videoID string) (*captionTrack, error) {
	params := url.Values{}
	params.Set("type", "list")
	params.Set("v", videoID)
	body, err := c.doRequest(ctx, c.cfg.TimedTextBaseURL, params, "transcript")
	if err != nil {
		return nil, err
	}

	var list captionTrackList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, services.Wrap(services.ErrTransient, "transcript", "list tracks", "", err)
	}
	if len(list.Tracks) == 0 {
		return nil, nil
	}

	var manual, manualEnglish, autoEnglish *captionTrack
	for i := range list.Tracks {
		track := &list.Tracks[i]
		english := strings.HasPrefix(strings.ToLower(track.LangCode), "en")
		if track.Kind == "asr" {
			if english && autoEnglish == nil {
				autoEnglish = track
			}
			continue
		}
		if manual == nil {
			manual = track
		}
		if english && manualEnglish == nil {
			manualEnglish = track
		}
	}
	switch {
	case manualEnglish != nil:
		return manualEnglish, nil
	case manual != nil:
		return manual, nil
	case autoEnglish != nil:
		return autoEnglish, nil
	default:
		return &list.Tracks[0], nil
	}
}

type timedTextDocument struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// parseTimedText flattens a timedtext document into one whitespace-normalized
// string.
func parseTimedText(body []byte) (string, error) {
	if len(body) == 0 {
		return "", errors.New("empty timedtext body")
	}
	var doc timedTextDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		if text := strings.Join(strings.Fields(line.Text), " "); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// normalizeLanguage canonicalizes a caption language code ("en-US" stays
// "en-US", "EN_us" becomes "en-US"). Unparseable codes pass through as-is.
func normalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

func decodeJSON(body []byte, target any) error {
	if len(body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(body, target)
}
