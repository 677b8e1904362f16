// Package youtube fetches video metadata through the YouTube Data API and
// caption text through the timedtext endpoint. All calls share one throttle
// so the process stays under the configured request rate.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"distill/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultDataBaseURL = "https://www.googleapis.com/youtube/v3"
	defaultTimedText   = "https://www.youtube.com/api/timedtext"
	defaultPageSize    = 50
)

// Config captures the runtime settings for the catalog extractor.
type Config struct {
	APIKey            string
	BaseURL           string
	TimedTextBaseURL  string
	RequestsPerSecond float64
	ChannelPageSize   int
	TimeoutSeconds    int
}

// Metadata is the catalog record returned for one video.
type Metadata struct {
	ID              string
	Title           string
	ChannelName     string
	ChannelID       string
	DurationSeconds int
	PublishedAt     time.Time
	Description     string
	Tags            []string
}

// Transcript is resolved caption text. A nil Transcript means the video has
// no captions, which is not an error.
type Transcript struct {
	Text          string
	Language      string
	AutoGenerated bool
}

// Client talks to the YouTube Data API v3.
type Client struct {
	cfg        Config
	httpClient *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleep overrides how throttle waits are performed (useful for tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient constructs a catalog client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		sleep:      sleepWithContext,
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultDataBaseURL
	}
	if client.cfg.TimedTextBaseURL == "" {
		client.cfg.TimedTextBaseURL = defaultTimedText
	}
	if client.cfg.ChannelPageSize <= 0 || client.cfg.ChannelPageSize > 50 {
		client.cfg.ChannelPageSize = defaultPageSize
	}
	if cfg.RequestsPerSecond > 0 {
		client.minInterval = time.Duration(float64(time.Second) / cfg.RequestsPerSecond)
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// throttle spaces requests so the client never exceeds the configured rate.
func (c *Client) throttle(ctx context.Context) error {
	if c.minInterval <= 0 {
		return ctx.Err()
	}
	c.throttleMu.Lock()
	wait := c.minInterval - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.throttleMu.Unlock()

	if wait > 0 {
		return c.sleep(ctx, wait)
	}
	return ctx.Err()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetMetadata fetches title, channel, duration, and tags for one video.
func (c *Client) GetMetadata(ctx context.Context, videoID string) (*Metadata, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "metadata", "video id required", nil)
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", videoID)
	params.Set("key", c.cfg.APIKey)

	var payload videoListResponse
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/videos", params, "metadata", &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "extract", "metadata",
			fmt.Sprintf("video %s does not exist or is private", videoID), nil)
	}

	item := payload.Items[0]
	published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	return &Metadata{
		ID:              item.ID,
		Title:           item.Snippet.Title,
		ChannelName:     item.Snippet.ChannelTitle,
		ChannelID:       item.Snippet.ChannelID,
		DurationSeconds: parseISO8601Duration(item.ContentDetails.Duration),
		PublishedAt:     published,
		Description:     item.Snippet.Description,
		Tags:            item.Snippet.Tags,
	}, nil
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string   `json:"title"`
			Description  string   `json:"description"`
			ChannelID    string   `json:"channelId"`
			ChannelTitle string   `json:"channelTitle"`
			PublishedAt  string   `json:"publishedAt"`
			Tags         []string `json:"tags"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// parseISO8601Duration converts a PT#H#M#S duration to whole seconds.
// Malformed input yields zero.
func parseISO8601Duration(value string) int {
	value = strings.TrimPrefix(strings.TrimSpace(value), "P")
	value = strings.TrimPrefix(value, "T")
	total := 0
	number := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			number = number*10 + int(r-'0')
		case r == 'H':
			total += number * 3600
			number = 0
		case r == 'M':
			total += number * 60
			number = 0
		case r == 'S':
			total += number
			number = 0
		default:
			number = 0
		}
	}
	return total
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("youtube request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// RetryAfterDelay exposes the server-requested delay for retry scheduling.
func (e *httpStatusError) RetryAfterDelay() time.Duration {
	return e.RetryAfter
}

// doRequest throttles, issues the request, and classifies any failure.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, op string) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "extract", op, "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		statusErr := &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
		return nil, classifyStatusError(op, statusErr)
	}
	return body, nil
}

func classifyStatusError(op string, statusErr *httpStatusError) error {
	switch {
	case statusErr.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrQuotaExceeded, "extract", op, "api quota exhausted", statusErr)
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "extract", op, "", statusErr)
	case statusErr.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "extract", op, "", statusErr)
	case statusErr.StatusCode == http.StatusRequestTimeout,
		statusErr.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "extract", op, "", statusErr)
	default:
		return services.Wrap(nil, "extract", op, "unexpected status", statusErr)
	}
}

func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "extract", op, "", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "extract", op, "", err)
	}
	return services.Wrap(services.ErrTransient, "extract", op, "", err)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, op string, target any) error {
	body, err := c.doRequest(ctx, endpoint, params, op)
	if err != nil {
		return err
	}
	if err := decodeJSON(body, target); err != nil {
		return services.Wrap(services.ErrTransient, "extract", op, "decode response", err)
	}
	return nil
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
