package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://en.wikipedia.org/wiki/Korean_War"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "https://history.state.gov"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	url := "https://en.wikipedia.org/wiki/Gulf_War"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// burst of one is spent
	if limiter.Allow(url) {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}
	if !limiter.Allow("https://www.britannica.com") {
		t.Errorf("expected allow for other domain")
	}
}

func TestLimiter_SetDomainRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	domain := "slow.example.org"

	limiter.SetDomainRate(domain, 0.1, 1)

	if !limiter.Allow("http://" + domain) {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("http://" + domain) {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("http://fast.example.org") {
		t.Errorf("other domain should pass")
	}
}

func TestIntervalLimiter_WaitKey(t *testing.T) {
	limiter := NewIntervalLimiter(60 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.WaitKey(ctx, "perplexity"); err != nil {
			t.Fatalf("WaitKey failed: %v", err)
		}
	}

	// first call is free, the next two wait one interval each
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("expected spaced calls, took %v", elapsed)
	}
}

func TestIntervalLimiter_Disabled(t *testing.T) {
	limiter := NewIntervalLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := limiter.WaitKey(ctx, "perplexity"); err != nil {
			t.Fatalf("WaitKey failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected no limiting, took %v", elapsed)
	}

	var nilLimiter *Limiter
	if err := nilLimiter.WaitKey(ctx, "anything"); err != nil {
		t.Errorf("nil limiter should not block: %v", err)
	}
}

func TestLimiter_WaitKeyCancelled(t *testing.T) {
	limiter := NewIntervalLimiter(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.WaitKey(ctx, "openai"); err != nil {
		t.Fatalf("first WaitKey failed: %v", err)
	}

	cancel()
	if err := limiter.WaitKey(ctx, "openai"); err == nil {
		t.Error("expected error after cancel")
	}
}

func TestExtractDomain(t *testing.T) {
	domain, err := extractDomain("https://en.wikipedia.org/wiki/Iraq_War")
	if err != nil {
		t.Fatalf("extractDomain failed: %v", err)
	}
	if domain != "en.wikipedia.org" {
		t.Errorf("expected en.wikipedia.org, got %s", domain)
	}

	_, err = extractDomain("::invalid")
	if err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
