package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"distill/internal/services"
	"distill/internal/services/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *llm.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return llm.NewClient(llm.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test/model",
	})
}

func completionBody(content string, promptTokens, completionTokens int) []byte {
	payload := map[string]any{
		"model": "test/model",
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestCompleteParsesContentAndUsage(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test/model" {
			t.Errorf("model = %q", req.Model)
		}
		if req.MaxTokens != 1500 {
			t.Errorf("max_tokens = %d", req.MaxTokens)
		}
		_, _ = w.Write(completionBody("## Summary\nBees.", 900, 300))
	})

	completion, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if completion.Text != "## Summary\nBees." {
		t.Fatalf("text = %q", completion.Text)
	}
	if completion.InputTokens != 900 || completion.OutputTokens != 300 {
		t.Fatalf("usage = %d/%d", completion.InputTokens, completion.OutputTokens)
	}
	if completion.Latency <= 0 {
		t.Fatalf("latency = %v", completion.Latency)
	}
}

func TestCompleteTooManyRequests(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Kind(err) != "rate_limited" {
		t.Fatalf("kind = %q", services.Kind(err))
	}
	if !services.IsRetryable(err) {
		t.Fatal("rate limit must be retryable")
	}
	if got := services.RetryAfter(err); got != 7*time.Second {
		t.Fatalf("retry after = %v", got)
	}
}

func TestCompleteServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("5xx must be retryable: %v", err)
	}
}

func TestCompleteUnauthorizedIsFatal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.IsRetryable(err) {
		t.Fatalf("auth failure must not be retryable: %v", err)
	}
	if services.Kind(err) != "invalid_configuration" {
		t.Fatalf("kind = %q", services.Kind(err))
	}
}

func TestCompleteToleratesDeltaSchema(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"delta":{"content":"from delta"}}]}`))
	})

	completion, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Text != "from delta" {
		t.Fatalf("text = %q", completion.Text)
	}
	if completion.Model != "test/model" {
		t.Fatalf("model fallback = %q", completion.Model)
	}
}

func TestCompleteEmptyContentIsRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	})

	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("empty content should be retryable: %v", err)
	}
}

func TestCompleteMissingAPIKey(t *testing.T) {
	client := llm.NewClient(llm.Config{Model: "test/model"})
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Kind(err) != "invalid_configuration" {
		t.Fatalf("kind = %q", services.Kind(err))
	}
}
