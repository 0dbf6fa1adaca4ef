package scorer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
)

const healthyHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="description" content="Joe's Plumbing - fast, reliable local service in Austin.">
<title>Joe's Plumbing | Austin TX</title>
<style>@media (max-width: 600px) { body { font-size: 14px; } }</style>
</head>
<body>
<h1>Joe's Plumbing</h1>
<p>Quality plumbing service since 1995. Call us today for a free estimate.</p>
<footer>&copy; 2026 Joe's Plumbing. All rights reserved.</footer>
</body>
</html>`

const outdatedHTML = `<html>
<head><title>Home</title></head>
<body>
<marquee>Welcome to our website!!!</marquee>
<p>Best deals in town. Call now. We have been serving the community for years
and offer a wide range of services to meet all of your needs.</p>
<script src="/js/jquery-1.4.2.min.js"></script>
<div>Copyright © 2015 Smith &amp; Sons</div>
</body>
</html>`

const parkedHTML = `<html>
<head><title>example.com</title></head>
<body>
<h1>This domain is for sale!</h1>
<p>Interested in example.com? Buy this domain today at hugedomains.com.</p>
</body>
</html>`

// testScoringConfig mirrors the shipped defaults with a high rate
// limit and short timeout so tests stay fast.
func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		WeightUnreachable:  100,
		WeightDNSFailed:    100,
		WeightTimeout:      90,
		WeightServerError:  85,
		WeightSSLError:     80,
		WeightParkedDomain: 75,
		WeightFetchFailed:  70,
		WeightEmptyPage:    60,
		Weight403404:       50,
		WeightUnderConstr:  50,
		WeightClientError:  40,
		WeightBotProtect:   50,

		WeightFlash:         40,
		WeightHTTPOnly:      30,
		WeightOldCopyright:  25,
		WeightNoViewport:    20,
		WeightNotResponsive: 15,
		WeightLastModified:  20,
		WeightSlowResponse:  15,
		WeightRedirectChain: 15,
		WeightOutdatedTech:  10,
		WeightMissingMeta:   10,
		WeightMissingH1:     10,
		WeightGenericTitle:  10,

		WeightWix:         5,
		WeightSquarespace: 5,
		WeightWeebly:      8,
		WeightGoDaddy:     10,
		WeightDIYDefault:  5,
		WeightSocialOnly:  30,
		WeightNoWebsite:   50,

		MinScoreToInclude:      40,
		UnverifiedScoreCap:     39,
		CopyrightStaleYears:    2,
		LastModifiedStaleYears: 2,
		SlowResponseMs:         3000,
		RedirectChainThreshold: 3,
		RequestTimeoutSecs:     5,
		MaxRedirects:           5,
		RequestsPerSecond:      1000,

		UnverifiedReasons: []string{"timeout", "bot_protection"},
		UserAgent:         "leadscout-test/1.0",
	}
}

func newTestScorer(cfg config.ScoringConfig) *Scorer {
	retry := config.RetryConfig{
		MaxAttempts:      1,
		InitialBackoffMs: 1,
		MaxBackoffMs:     10,
		Multiplier:       2.0,
	}
	s := New(cfg, NewFetcher(cfg, retry, nil), nil)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEvaluate_HealthySiteScoresLow(t *testing.T) {
	srv := serveHTML(t, healthyHTML)
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	// Only no_https fires against a plain-http test server.
	assert.Less(t, result.Score, 40)
	assert.Equal(t, 200, result.HTTPStatus)
	assert.NotContains(t, result.Reasons, model.ReasonParkedDomain)
	assert.NotContains(t, result.Reasons, model.ReasonNoViewport)
	assert.NotContains(t, result.Reasons, model.ReasonMissingMetaDesc)
}

func TestEvaluate_OutdatedSiteScoresHigh(t *testing.T) {
	srv := serveHTML(t, outdatedHTML)
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	assert.GreaterOrEqual(t, result.Score, 40)
	assert.Contains(t, result.Reasons, "copyright_2015")
	assert.Contains(t, result.Reasons, model.ReasonNoViewport)
	assert.Contains(t, result.Reasons, model.ReasonNotResponsive)
	assert.Contains(t, result.Reasons, "outdated_marquee")
	assert.Contains(t, result.Reasons, "outdated_old_jquery")
	assert.Contains(t, result.Reasons, model.ReasonMissingH1)
	assert.Contains(t, result.Reasons, model.ReasonGenericTitle)
}

func TestEvaluate_ParkedDomain(t *testing.T) {
	srv := serveHTML(t, parkedHTML)
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonParkedDomain)
	assert.GreaterOrEqual(t, result.Score, 75)
}

func TestEvaluate_UnderConstruction(t *testing.T) {
	srv := serveHTML(t, `<html><head><title>Acme Roofing</title></head>
<body><p>Our website is coming soon. In the meantime call us at 555-0100 for
estimates, repairs, inspections, and emergency service around the clock.</p></body></html>`)
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonUnderConstr)
	assert.NotContains(t, result.Reasons, model.ReasonParkedDomain)
}

func TestEvaluate_StatusCodes(t *testing.T) {
	cases := []struct {
		status     int
		wantReason string
		wantWeight int
	}{
		{500, "server_error_500", 85},
		{503, "server_error_503", 85},
		{404, "http_404", 50},
		{403, "http_403", 50},
		{410, "client_error_410", 40},
	}
	for _, c := range cases {
		t.Run(c.wantReason, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(c.status)
				fmt.Fprint(w, outdatedHTML)
			}))
			t.Cleanup(srv.Close)

			s := newTestScorer(testScoringConfig())
			result := s.Evaluate(context.Background(), srv.URL)

			assert.Contains(t, result.Reasons, c.wantReason)
			assert.GreaterOrEqual(t, result.Score, c.wantWeight)
			assert.Equal(t, c.status, result.HTTPStatus)
		})
	}
}

func TestEvaluate_EmptyPage(t *testing.T) {
	srv := serveHTML(t, "<html></html>")
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonEmptyPage)
	assert.Equal(t, 60, result.Score)
}

func TestEvaluate_Timeout_CappedUnverified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprint(w, healthyHTML)
	}))
	t.Cleanup(srv.Close)

	cfg := testScoringConfig()
	cfg.RequestTimeoutSecs = 1
	s := newTestScorer(cfg)

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonTimeout)
	assert.Contains(t, result.Reasons, model.ReasonUnverified)
	assert.Equal(t, 39, result.Score)
	assert.NotEmpty(t, result.Error)
}

func TestEvaluate_Timeout_IncludeUnverifiedKeepsScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprint(w, healthyHTML)
	}))
	t.Cleanup(srv.Close)

	cfg := testScoringConfig()
	cfg.RequestTimeoutSecs = 1
	cfg.IncludeUnverifiedLeads = true
	s := newTestScorer(cfg)

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonTimeout)
	assert.Contains(t, result.Reasons, model.ReasonUnverified)
	assert.Equal(t, 90, result.Score)
}

func TestEvaluate_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := newTestScorer(testScoringConfig())
	result := s.Evaluate(context.Background(), url)

	assert.Contains(t, result.Reasons, model.ReasonUnreachable)
	assert.Equal(t, 100, result.Score)
	// unreachable is verifiable: the site is genuinely down.
	assert.NotContains(t, result.Reasons, model.ReasonUnverified)
}

func TestEvaluate_SSLError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, healthyHTML)
	}))
	t.Cleanup(srv.Close)

	s := newTestScorer(testScoringConfig())
	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonSSLError)
	assert.Equal(t, 80, result.Score)
}

func TestEvaluate_BotProtection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("cf-ray", "8f3a2b1c9d0e1234-DFW")
		w.WriteHeader(403)
		fmt.Fprint(w, "<html><body>Checking your browser before accessing</body></html>")
	}))
	t.Cleanup(srv.Close)

	s := newTestScorer(testScoringConfig())
	result := s.Evaluate(context.Background(), srv.URL)

	assert.Equal(t, []string{model.ReasonBotProtection, model.ReasonUnverified}, result.Reasons)
	assert.Equal(t, 39, result.Score)
}

func TestEvaluate_JSRequiredTag(t *testing.T) {
	srv := serveHTML(t, "<html><body>You need to enable JavaScript to run this app.</body></html>")
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonJSRequired)
	assert.NotContains(t, result.Reasons, model.ReasonEmptyPage)
	assert.NotContains(t, result.Reasons, model.ReasonUnverified)
	assert.Equal(t, 0, result.Score)
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, url string) (*FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{StatusCode: 200, Body: []byte(f.html), FinalURL: url}, nil
}

func TestEvaluate_HeadlessFallbackRecoversContent(t *testing.T) {
	srv := serveHTML(t, "<html><body>You need to enable JavaScript to run this app.</body></html>")

	cfg := testScoringConfig()
	cfg.HeadlessFallbackEnabled = true
	retry := config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 10, Multiplier: 2.0}
	s := New(cfg, NewFetcher(cfg, retry, nil), &fakeRenderer{html: healthyHTML})
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	result := s.Evaluate(context.Background(), srv.URL)

	assert.NotContains(t, result.Reasons, model.ReasonJSRequired)
	assert.NotContains(t, result.Reasons, model.ReasonEmptyPage)
	assert.Less(t, result.Score, 40)
}

func TestEvaluate_HeadlessFallbackAfterFailedFetch(t *testing.T) {
	// Sites that reject plain HTTP clients outright still render in a
	// browser; a failed fetch falls through to the headless pass.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := testScoringConfig()
	cfg.HeadlessFallbackEnabled = true
	retry := config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 10, Multiplier: 2.0}
	renderer := &fakeRenderer{html: healthyHTML}
	s := New(cfg, NewFetcher(cfg, retry, nil), renderer)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	result := s.Evaluate(context.Background(), url)

	assert.Equal(t, 1, renderer.calls)
	assert.NotContains(t, result.Reasons, model.ReasonUnreachable)
	assert.Less(t, result.Score, 40)
	assert.Equal(t, 200, result.HTTPStatus)
}

func TestEvaluate_NoHeadlessFallbackOnCertFailure(t *testing.T) {
	// A bad certificate is a scoring signal, not a fetch problem; the
	// browser pass must not mask it.
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, healthyHTML)
	}))
	t.Cleanup(srv.Close)

	cfg := testScoringConfig()
	cfg.HeadlessFallbackEnabled = true
	retry := config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 10, Multiplier: 2.0}
	renderer := &fakeRenderer{html: healthyHTML}
	s := New(cfg, NewFetcher(cfg, retry, nil), renderer)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Zero(t, renderer.calls)
	assert.Contains(t, result.Reasons, model.ReasonSSLError)
	assert.Equal(t, 80, result.Score)
}

func TestEvaluate_SocialOnlyExcluded(t *testing.T) {
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), "https://www.facebook.com/joesplumbing")

	assert.Equal(t, []string{model.ReasonSocialExcluded}, result.Reasons)
	assert.Equal(t, 0, result.Score)
}

func TestEvaluate_SocialOnlyIncluded(t *testing.T) {
	cfg := testScoringConfig()
	cfg.IncludeSocialOnlyLeads = true
	s := newTestScorer(cfg)

	result := s.Evaluate(context.Background(), "https://instagram.com/joesplumbing")

	assert.Equal(t, []string{model.ReasonSocialOnly}, result.Reasons)
	assert.Equal(t, 30, result.Score)
}

func TestEvaluate_SlowResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, healthyHTML)
	}))
	t.Cleanup(srv.Close)

	cfg := testScoringConfig()
	cfg.SlowResponseMs = 1
	s := newTestScorer(cfg)

	result := s.Evaluate(context.Background(), srv.URL)

	found := false
	for _, r := range result.Reasons {
		if len(r) > len("slow_response_") && r[:len("slow_response_")] == "slow_response_" {
			found = true
		}
	}
	assert.True(t, found, "expected a slow_response reason, got %v", result.Reasons)
}

func TestEvaluate_RedirectChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/b", 302) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/c", 302) })
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/final", 302) })
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, healthyHTML) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := newTestScorer(testScoringConfig())
	result := s.Evaluate(context.Background(), srv.URL+"/a")

	assert.Contains(t, result.Reasons, "redirect_chain_3")
}

func TestEvaluate_TooManyRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/loop", 302) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := newTestScorer(testScoringConfig())
	result := s.Evaluate(context.Background(), srv.URL+"/loop")

	assert.Contains(t, result.Reasons, model.ReasonFetchFailed)
	assert.Equal(t, 70, result.Score)
}

func TestEvaluate_StaleLastModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Last-Modified", "Tue, 12 Apr 2016 09:00:00 GMT")
		fmt.Fprint(w, healthyHTML)
	}))
	t.Cleanup(srv.Close)

	s := newTestScorer(testScoringConfig())
	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, "last_modified_2016")
}

func TestEvaluate_DIYBuilder(t *testing.T) {
	srv := serveHTML(t, `<html>
<head>
<meta name="viewport" content="width=device-width">
<meta name="description" content="Great cuts at great prices, walk-ins welcome every day.">
<title>Main Street Barbershop</title>
<style>@media screen { body {} }</style>
</head>
<body><h1>Main Street Barbershop</h1>
<p>Serving downtown since 2005. Book online or call us today for an appointment.</p>
<script src="https://static.parastorage.com/wix.com/sdk.js"></script>
<footer>© 2026 Main Street Barbershop</footer></body></html>`)
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, "diy_wix")
}

func TestEvaluate_MarketingSignalsDoNotScore(t *testing.T) {
	srv := serveHTML(t, `<html>
<head>
<meta name="viewport" content="width=device-width">
<meta name="description" content="Fast friendly service, free quotes, licensed and insured.">
<title>Ace Electric | Denver CO</title>
<style>@media screen { body {} }</style>
<script src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC123"></script>
<script src="https://connect.facebook.net/en_US/fbevents.js"></script>
</head>
<body><h1>Ace Electric</h1>
<p>Residential and commercial electrical work across the metro area.</p>
<footer>© 2026 Ace Electric</footer></body></html>`)
	s := newTestScorer(testScoringConfig())

	result := s.Evaluate(context.Background(), srv.URL)

	assert.Contains(t, result.Reasons, model.ReasonHasGTM)
	assert.Contains(t, result.Reasons, model.ReasonHasFBPixel)
	// Marketing tags are informational; only no_https scores here.
	assert.Equal(t, 30, result.Score)
}

func TestEvaluateWithIsolation_PanicBecomesSentinel(t *testing.T) {
	// A scorer with no fetcher panics on use; isolation must convert
	// that into the worst-case sentinel.
	s := New(testScoringConfig(), nil, nil)
	s.now = time.Now

	result := s.EvaluateWithIsolation(context.Background(), "http://example.com")

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, []string{model.ReasonEvaluationError}, result.Reasons)
	assert.NotEmpty(t, result.Error)
}

func TestEvaluate_ContextCancelled(t *testing.T) {
	srv := serveHTML(t, healthyHTML)
	s := newTestScorer(testScoringConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := s.Evaluate(ctx, srv.URL)
	require.NotEmpty(t, result.Reasons)
	assert.NotEmpty(t, result.Error)
}
