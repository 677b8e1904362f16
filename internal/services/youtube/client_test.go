package youtube_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"distill/internal/services"
	"distill/internal/services/youtube"
)

const videoJSON = `{
  "items": [{
    "id": "vid-1",
    "snippet": {
      "title": "How Bees Make Honey",
      "description": "A close look at honey production.",
      "channelId": "UC123",
      "channelTitle": "Nature Shorts",
      "publishedAt": "2026-03-14T09:00:00Z",
      "tags": ["nature", "bees"]
    },
    "contentDetails": {"duration": "PT12M34S"}
  }]
}`

func newTestClient(t *testing.T, handler http.Handler) *youtube.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return youtube.NewClient(youtube.Config{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		TimedTextBaseURL: server.URL + "/timedtext",
	})
}

func TestGetMetadata(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		if got := r.URL.Query().Get("part"); got != "snippet,contentDetails" {
			t.Errorf("part = %q", got)
		}
		_, _ = w.Write([]byte(videoJSON))
	}))

	meta, err := client.GetMetadata(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if meta.Title != "How Bees Make Honey" {
		t.Fatalf("title = %q", meta.Title)
	}
	if meta.DurationSeconds != 12*60+34 {
		t.Fatalf("duration = %d", meta.DurationSeconds)
	}
	if !meta.PublishedAt.Equal(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("published at = %v", meta.PublishedAt)
	}
	if len(meta.Tags) != 2 {
		t.Fatalf("tags = %v", meta.Tags)
	}
}

func TestGetMetadataNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": []}`))
	}))

	_, err := client.GetMetadata(context.Background(), "absent")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Kind(err) != "video_not_found" {
		t.Fatalf("kind = %q", services.Kind(err))
	}
	if services.IsRetryable(err) {
		t.Fatal("missing video must not be retryable")
	}
}

func TestGetMetadataQuotaExceeded(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.GetMetadata(context.Background(), "vid-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Kind(err) != "quota_exceeded" {
		t.Fatalf("kind = %q", services.Kind(err))
	}
	if services.IsRetryable(err) {
		t.Fatal("quota exhaustion must not be retryable")
	}
}

func TestGetMetadataRateLimited(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetMetadata(context.Background(), "vid-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("rate limit must be retryable: %v", err)
	}
	if got := services.RetryAfter(err); got != 3*time.Second {
		t.Fatalf("retry after = %v", got)
	}
}

func TestGetTranscriptPrefersManualEnglish(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("type") == "list":
			_, _ = w.Write([]byte(`<transcript_list>
  <track lang_code="de" />
  <track lang_code="en" kind="asr" />
  <track lang_code="en" />
</transcript_list>`))
		default:
			if query.Get("lang") != "en" || query.Get("kind") != "" {
				t.Errorf("unexpected track request: %v", query)
			}
			_, _ = w.Write([]byte(`<transcript>
  <text start="0" dur="2">Bees collect nectar</text>
  <text start="2" dur="2">from flowers.</text>
</transcript>`))
		}
	}))

	transcript, err := client.GetTranscript(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if transcript == nil {
		t.Fatal("expected transcript")
	}
	if transcript.Text != "Bees collect nectar from flowers." {
		t.Fatalf("text = %q", transcript.Text)
	}
	if transcript.Language != "en" {
		t.Fatalf("language = %q", transcript.Language)
	}
	if transcript.AutoGenerated {
		t.Fatal("manual track must not be marked auto-generated")
	}
}

func TestGetTranscriptAbsenceIsNotError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<transcript_list></transcript_list>`))
	}))

	transcript, err := client.GetTranscript(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if transcript != nil {
		t.Fatalf("expected nil transcript, got %+v", transcript)
	}
}

func TestGetTranscriptAutoGeneratedFallback(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "list" {
			_, _ = w.Write([]byte(`<transcript_list><track lang_code="en" kind="asr" /></transcript_list>`))
			return
		}
		_, _ = w.Write([]byte(`<transcript><text>auto captions</text></transcript>`))
	}))

	transcript, err := client.GetTranscript(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if transcript == nil || !transcript.AutoGenerated {
		t.Fatalf("expected auto-generated transcript, got %+v", transcript)
	}
}

func TestListPlaylistItemsPagination(t *testing.T) {
	page := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlistItems" {
			t.Errorf("path = %q", r.URL.Path)
		}
		page++
		if page == 1 {
			if got := r.URL.Query().Get("pageToken"); got != "" {
				t.Errorf("first page token = %q", got)
			}
			_, _ = w.Write([]byte(`{"nextPageToken":"p2","items":[{"contentDetails":{"videoId":"a"}},{"contentDetails":{"videoId":"b"}}]}`))
			return
		}
		if got := r.URL.Query().Get("pageToken"); got != "p2" {
			t.Errorf("second page token = %q", got)
		}
		_, _ = w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"c"}}]}`))
	}))

	ids, err := client.ListPlaylistItems(context.Background(), "PL1", 0)
	if err != nil {
		t.Fatalf("list playlist: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestListPlaylistItemsHonorsLimit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nextPageToken":"more","items":[{"contentDetails":{"videoId":"a"}},{"contentDetails":{"videoId":"b"}}]}`))
	}))

	ids, err := client.ListPlaylistItems(context.Background(), "PL1", 2)
	if err != nil {
		t.Fatalf("list playlist: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestListChannelUploads(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			_, _ = w.Write([]byte(`{"items":[{"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}}]}`))
		case "/playlistItems":
			if got := r.URL.Query().Get("playlistId"); got != "UU123" {
				t.Errorf("playlist id = %q", got)
			}
			_, _ = w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"a"}}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))

	ids, err := client.ListChannelUploads(context.Background(), "UC123", 0)
	if err != nil {
		t.Fatalf("list uploads: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestThrottleSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(videoJSON))
	}))
	t.Cleanup(server.Close)

	var waits []time.Duration
	client := youtube.NewClient(youtube.Config{
		APIKey:            "test-key",
		BaseURL:           server.URL,
		RequestsPerSecond: 2,
	}, youtube.WithSleep(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.GetMetadata(ctx, "vid-1"); err != nil {
			t.Fatalf("get metadata %d: %v", i, err)
		}
	}
	if len(waits) < 2 {
		t.Fatalf("expected throttle waits after the first request, got %v", waits)
	}
	for _, wait := range waits {
		if wait <= 0 {
			t.Fatalf("throttle wait must be positive, got %v", waits)
		}
	}
}
