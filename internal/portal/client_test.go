package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL string, maxRetries int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:      serverURL,
		MaxRetries:   maxRetries,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestClient_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	result, err := client.Do(context.Background(), http.MethodGet, "/ping", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status ok, got %v", result["status"])
	}
}

func TestClient_AllAttempts503(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)

	_, err := client.Do(context.Background(), http.MethodGet, "/search", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	// maxRetries=2 — ровно 3 попытки
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}

	// Исходная ошибка сохраняется
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %T", err)
	}
	if remote.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", remote.StatusCode)
	}
	if !remote.Retryable {
		t.Error("503 should be retryable")
	}
}

func TestClient_404_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.Do(context.Background(), http.MethodGet, "/missing", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	// 404 не повторяется
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %T", err)
	}
	if remote.Retryable {
		t.Error("404 should not be retryable")
	}
	if remote.StatusClass() != "4xx" {
		t.Errorf("expected status class 4xx, got %s", remote.StatusClass())
	}
}

func TestClient_RetryAfterHint(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	// Базовая задержка 10ms, но подсказка сервера — 1 секунда
	start := time.Now()
	_, err := client.Do(context.Background(), http.MethodGet, "/search", nil)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 900*time.Millisecond {
		t.Errorf("retry should honor Retry-After hint, waited only %v", elapsed)
	}
}

func TestClient_RecoversAfterTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"records": []any{map[string]any{"title": "RFP-1"}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)

	records, err := client.SearchRFPs(context.Background(), map[string]any{"keyword": "software"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Две 503 и затем успех — всего 3 вызова
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "RFP-1" {
		t.Errorf("expected RFP-1, got %v", records[0]["title"])
	}
}

func TestClient_429_Retryable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.Do(context.Background(), http.MethodGet, "/search", nil)
	if err != nil {
		t.Fatalf("429 should be retried: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestClient_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL:      server.URL,
		MaxRetries:   5,
		InitialDelay: time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Do(ctx, http.MethodGet, "/search", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClient_MissingBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	if err != ErrMissingBaseURL {
		t.Errorf("expected ErrMissingBaseURL, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"0", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q): expected %v, got %v", tt.header, tt.want, got)
		}
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	at := time.Now().Add(3 * time.Second).UTC()
	got := parseRetryAfter(at.Format(http.TimeFormat))
	if got <= 0 || got > 3*time.Second {
		t.Errorf("expected duration within (0, 3s], got %v", got)
	}
}
