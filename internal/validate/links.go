package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/reference"
	"github.com/ppiankov/conflictmap/internal/worker"
)

const validateMaxRetries = 3

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

// LinkChecker audits the reference links (wikiLink) of conflicts concurrently
type LinkChecker struct {
	httpClient *http.Client
	userAgent  string
	maxWorkers int
	authority  *AuthorityClassifier
	robots     *reference.RobotsChecker
	limiter    *worker.Limiter
}

// NewLinkChecker creates a link checker sharing the fetcher's client.
// robots and limiter are optional.
func NewLinkChecker(f *reference.Fetcher, maxWorkers int, authConfig *model.AuthorityConfig, robots *reference.RobotsChecker, limiter *worker.Limiter) *LinkChecker {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	return &LinkChecker{
		httpClient: f.Client(),
		userAgent:  f.UserAgent(),
		maxWorkers: maxWorkers,
		authority:  NewAuthorityClassifier(authConfig),
		robots:     robots,
		limiter:    limiter,
	}
}

// Check audits every conflict that has a reference link, in input order.
// Conflicts without a link are skipped.
func (v *LinkChecker) Check(ctx context.Context, conflicts []model.Conflict) []model.LinkCheck {
	var targets []model.Conflict
	for _, c := range conflicts {
		if strings.TrimSpace(c.WikiLink) != "" {
			targets = append(targets, c)
		}
	}

	results := make([]model.LinkCheck, len(targets))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, c := range targets {
		wg.Add(1)
		go func(idx int, c model.Conflict) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.LinkCheck{
					ConflictID: c.ID,
					URL:        c.WikiLink,
					Authority:  v.authority.Classify(c.WikiLink),
					Error:      "context cancelled",
				}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = v.checkWithRetry(ctx, c.ID, c.WikiLink)
		}(i, c)
	}

	wg.Wait()
	return results
}

// checkOne issues a HEAD request (GET when HEAD is refused) for one link
func (v *LinkChecker) checkOne(ctx context.Context, conflictID, rawURL string) model.LinkCheck {
	result := model.LinkCheck{
		ConflictID: conflictID,
		URL:        rawURL,
		Authority:  v.authority.Classify(rawURL),
	}

	if v.robots != nil && !v.robots.IsAllowed(ctx, rawURL) {
		result.Disallowed = true
		result.Error = reference.ErrDisallowed.Error()
		return result
	}

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx, rawURL); err != nil {
			result.Error = fmt.Sprintf("rate limit: %v", err)
			return result
		}
	}

	resp, err := v.do(ctx, http.MethodHead, rawURL)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		_ = resp.Body.Close()
		resp, err = v.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		result.Error = err.Error()
		result.IsDead = ctx.Err() == nil
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.IsAccessible = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.IsDead = true
	}

	if final := resp.Request.URL.String(); final != rawURL {
		result.RedirectURL = final
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			result.LastModified = &t
		}
	}

	return result
}

func (v *LinkChecker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// checkWithRetry retries transient failures with exponential backoff
func (v *LinkChecker) checkWithRetry(ctx context.Context, conflictID, rawURL string) model.LinkCheck {
	var result model.LinkCheck
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = v.checkOne(ctx, conflictID, rawURL)
		if !isRetryableLinkCheck(result) || ctx.Err() != nil {
			return result
		}
		if attempt < validateMaxRetries-1 {
			validateSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

// isRetryableLinkCheck reports transient failures: 5xx, 429 and network errors
func isRetryableLinkCheck(result model.LinkCheck) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return result.Error != "" && isRetryableNetworkError(result.Error)
}

func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

// Summary counts the outcome of an audit
type Summary struct {
	Checked    int
	Accessible int
	Dead       int
	Disallowed int
	ByTier     map[model.AuthorityTier]int
}

// Summarize tallies link checks
func Summarize(checks []model.LinkCheck) Summary {
	s := Summary{Checked: len(checks), ByTier: make(map[model.AuthorityTier]int)}
	for _, c := range checks {
		switch {
		case c.IsAccessible:
			s.Accessible++
		case c.Disallowed:
			s.Disallowed++
		case c.IsDead:
			s.Dead++
		}
		s.ByTier[c.Authority]++
	}
	return s
}
