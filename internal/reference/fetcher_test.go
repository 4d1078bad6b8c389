package reference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/conflictmap/internal/model"
)

func testFetcher() *Fetcher {
	cfg := model.DefaultConfig().HTTP
	cfg.Timeout = 5
	cfg.UserAgent = "conflictmap-test/1.0"
	cfg.MaxBodyBytes = 1 << 20
	return NewFetcher(cfg)
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "conflictmap-test/1.0" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	doc, err := testFetcher().FetchWithRetry(context.Background(), server.URL, htmlAccept)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(doc.Body) != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected body: %s", doc.Body)
	}
	if doc.ContentType != "text/html" {
		t.Errorf("Unexpected content type: %s", doc.ContentType)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	doc, err := testFetcher().FetchWithRetry(context.Background(), server.URL, "")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(doc.Body) != "OK" {
		t.Errorf("Unexpected body: %s", doc.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testFetcher().FetchWithRetry(context.Background(), server.URL, "")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 status error, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	if _, err := testFetcher().FetchWithRetry(context.Background(), server.URL, ""); err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetch_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "0123456789")
	}))
	defer server.Close()

	cfg := model.DefaultConfig().HTTP
	cfg.MaxBodyBytes = 4
	doc, err := NewFetcher(cfg).Fetch(context.Background(), server.URL, "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(doc.Body) != "0123" {
		t.Errorf("Expected truncated body, got %q", doc.Body)
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &StatusError{StatusCode: 503}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"403", &StatusError{StatusCode: 403}, false},
		{"transport", errors.New("fetch: connection refused"), true},
		{"request", errors.New("create request: invalid URL"), false},
		{"body", errors.New("read body: unexpected EOF"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "localhost,.internal.example")

	tests := []struct {
		url     string
		proxied bool
	}{
		{"http://en.wikipedia.org/wiki/Korean_War", true},
		{"http://localhost:8080/", false},
		{"http://data.internal.example/x", false},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
		u, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s): %v", tt.url, err)
		}
		if (u != nil) != tt.proxied {
			t.Errorf("proxy(%s) = %v, want proxied=%v", tt.url, u, tt.proxied)
		}
	}
}
