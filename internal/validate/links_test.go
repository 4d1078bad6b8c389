package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/reference"
	"github.com/ppiankov/conflictmap/internal/worker"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	validateSleepFunc = func(d time.Duration) {}
}

func testFetcher() *reference.Fetcher {
	cfg := model.DefaultConfig().HTTP
	cfg.Timeout = 5
	cfg.UserAgent = "conflictmap-test/1.0"
	return reference.NewFetcher(cfg)
}

func conflictWithLink(id, link string) model.Conflict {
	return model.Conflict{ID: id, Name: id, WikiLink: link}
}

func TestLinkChecker_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2023 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewLinkChecker(testFetcher(), 4, nil, nil, nil)
	results := checker.Check(context.Background(), []model.Conflict{
		conflictWithLink("korea", server.URL+"/wiki/Korean_War"),
		conflictWithLink("no-link", ""),
	})

	if len(results) != 1 {
		t.Fatalf("Expected conflicts without links to be skipped, got %d results", len(results))
	}
	r := results[0]
	if r.ConflictID != "korea" || !r.IsAccessible || r.IsDead || r.StatusCode != http.StatusOK {
		t.Errorf("Unexpected result: %+v", r)
	}
	if r.LastModified == nil || r.LastModified.Year() != 2023 {
		t.Errorf("Expected Last-Modified to be parsed, got %v", r.LastModified)
	}
}

func TestLinkChecker_DeadAndRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	results := NewLinkChecker(testFetcher(), 4, nil, nil, nil).Check(context.Background(), []model.Conflict{
		conflictWithLink("gone", server.URL+"/gone"),
		conflictWithLink("moved", server.URL+"/old"),
	})

	if !results[0].IsDead || results[0].IsAccessible {
		t.Errorf("Expected 410 to be dead: %+v", results[0])
	}
	if !results[1].IsAccessible || results[1].RedirectURL != server.URL+"/new" {
		t.Errorf("Expected redirect to be recorded: %+v", results[1])
	}
}

func TestLinkChecker_HeadNotAllowedFallsBackToGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	results := NewLinkChecker(testFetcher(), 1, nil, nil, nil).Check(context.Background(), []model.Conflict{
		conflictWithLink("x", server.URL),
	})
	if !results[0].IsAccessible {
		t.Errorf("Expected GET fallback to succeed: %+v", results[0])
	}
}

func TestLinkChecker_Robots(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		pageHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := testFetcher()
	results := NewLinkChecker(f, 2, nil, reference.NewRobotsChecker(f), worker.NewLimiter(100, 10)).Check(context.Background(), []model.Conflict{
		conflictWithLink("private", server.URL+"/private/page"),
		conflictWithLink("public", server.URL+"/public"),
	})

	if !results[0].Disallowed || results[0].IsAccessible {
		t.Errorf("Expected robots.txt to block: %+v", results[0])
	}
	if !results[1].IsAccessible {
		t.Errorf("Expected public page accessible: %+v", results[1])
	}
	if pageHits.Load() != 1 {
		t.Errorf("Expected only the public page to be requested, got %d", pageHits.Load())
	}
}

func TestLinkChecker_Concurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	conflicts := make([]model.Conflict, 10)
	for i := range conflicts {
		conflicts[i] = conflictWithLink(fmt.Sprintf("c%d", i), fmt.Sprintf("%s/%d", server.URL, i))
	}

	start := time.Now()
	results := NewLinkChecker(testFetcher(), 10, nil, nil, nil).Check(context.Background(), conflicts)
	duration := time.Since(start)

	if len(results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(results))
	}
	if duration > 500*time.Millisecond {
		t.Errorf("Audit took too long (%v), concurrent execution may not be working", duration)
	}
	for i, r := range results {
		if r.ConflictID != fmt.Sprintf("c%d", i) {
			t.Errorf("Expected input order, got %s at %d", r.ConflictID, i)
		}
	}
}

func TestLinkChecker_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := NewLinkChecker(testFetcher(), 1, nil, nil, nil).Check(ctx, []model.Conflict{
		conflictWithLink("slow", server.URL),
	})
	if len(results) != 1 || results[0].IsAccessible || results[0].Error == "" {
		t.Errorf("Expected failure after cancellation: %+v", results)
	}
}

func TestCheckWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewLinkChecker(testFetcher(), 1, nil, nil, nil).checkWithRetry(context.Background(), "x", server.URL)
	if !result.IsAccessible {
		t.Errorf("Expected success after retries: %+v", result)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestCheckWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := NewLinkChecker(testFetcher(), 1, nil, nil, nil).checkWithRetry(context.Background(), "x", server.URL)
	if !result.IsDead {
		t.Errorf("Expected dead link: %+v", result)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestIsRetryableLinkCheck(t *testing.T) {
	tests := []struct {
		name      string
		check     model.LinkCheck
		retryable bool
	}{
		{"503", model.LinkCheck{StatusCode: 503}, true},
		{"429", model.LinkCheck{StatusCode: 429}, true},
		{"404", model.LinkCheck{StatusCode: 404}, false},
		{"200", model.LinkCheck{StatusCode: 200}, false},
		{"timeout", model.LinkCheck{Error: "request failed: i/o timeout"}, true},
		{"refused", model.LinkCheck{Error: "request failed: connection refused"}, true},
		{"robots", model.LinkCheck{Error: "disallowed by robots.txt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableLinkCheck(tt.check); got != tt.retryable {
				t.Errorf("isRetryableLinkCheck(%+v) = %v, want %v", tt.check, got, tt.retryable)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]model.LinkCheck{
		{IsAccessible: true, Authority: model.TierSecondary},
		{IsAccessible: true, Authority: model.TierPrimary},
		{IsDead: true, Authority: model.TierSecondary},
		{Disallowed: true, Authority: model.TierTertiary},
	})
	if s.Checked != 4 || s.Accessible != 2 || s.Dead != 1 || s.Disallowed != 1 {
		t.Errorf("Unexpected summary: %+v", s)
	}
	if s.ByTier[model.TierSecondary] != 2 {
		t.Errorf("Expected 2 secondary links, got %d", s.ByTier[model.TierSecondary])
	}
}
