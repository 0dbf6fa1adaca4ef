// Package scorer evaluates business websites for broken-or-outdated
// signals. Hard failures (unreachable, server errors, parked domains)
// score high; weak signals (DIY builders) score low to limit false
// positives.
package scorer

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/resilience"
)

// maxBodyBytes bounds how much of a page is read for analysis.
const maxBodyBytes = 2 << 20

// FetchResult is a completed page fetch, body already drained.
type FetchResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
	Duration   time.Duration
	Redirects  int
}

// Renderer fetches a page through a real browser. Used as a fallback
// for JavaScript-only sites.
type Renderer interface {
	Render(ctx context.Context, url string) (*FetchResult, error)
}

// Fetcher performs polite, rate-limited page fetches with structured
// failure classification.
type Fetcher struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
	timeout   time.Duration
	maxRedir  int
	userAgent string
	retry     resilience.RetryConfig
}

// NewFetcher builds a Fetcher from scoring configuration. The shared
// budget (may be nil) caps retries across the whole run.
func NewFetcher(cfg config.ScoringConfig, retryCfg config.RetryConfig, budget *resilience.Budget) *Fetcher {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}
	rc := resilience.RetryConfig{
		MaxAttempts:    retryCfg.MaxAttempts,
		InitialBackoff: time.Duration(retryCfg.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(retryCfg.MaxBackoffMs) * time.Millisecond,
		Multiplier:     retryCfg.Multiplier,
		JitterFraction: retryCfg.JitterFraction,
		Budget:         budget,
		ShouldRetry:    resilience.Retryable,
		OnRetry:        resilience.RetryLogger("scorer", "fetch_website"),
	}
	return &Fetcher{
		transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		timeout:   time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		maxRedir:  cfg.MaxRedirects,
		userAgent: cfg.UserAgent,
		retry:     rc,
	}
}

// NormalizeURL ensures the URL has a scheme, defaulting to https.
func NormalizeURL(url string) string {
	if url == "" {
		return url
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "https://" + url
	}
	return url
}

// Fetch retrieves a page with retries on recoverable failures. When
// the fetch fails for a reason other than a certificate problem, one
// attempt is made on the opposite scheme (http<->https) before giving
// up: plenty of small-business sites answer only one of the two.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	url := NormalizeURL(rawURL)

	res, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*FetchResult, error) {
		return f.fetchOnce(ctx, url)
	})
	if err == nil {
		return res, nil
	}

	// Certificate failures are a scoring signal in their own right;
	// masking them behind a scheme fallback would lose the lead.
	if resilience.Classify(err) != resilience.FailureSSL && ctx.Err() == nil {
		if res2, err2 := f.fetchOnce(ctx, oppositeScheme(url)); err2 == nil {
			return res2, nil
		}
	}

	return nil, err
}

func oppositeScheme(url string) string {
	if rest, ok := strings.CutPrefix(url, "https://"); ok {
		return "http://" + rest
	}
	return "https://" + strings.TrimPrefix(url, "http://")
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*FetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scorer: rate limiter wait")
	}

	var redirects int
	client := &http.Client{
		Transport: f.transport,
		Timeout:   f.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			redirects = len(via)
			if len(via) >= f.maxRedir {
				return resilience.ErrTooManyRedirects
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: build request for %s", url)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
		Duration:   time.Since(start),
		Redirects:  redirects,
	}, nil
}
