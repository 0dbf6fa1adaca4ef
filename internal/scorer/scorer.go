package scorer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/resilience"
)

// Scorer evaluates websites against the signal battery. It is
// threshold-agnostic: the inclusion cutoff lives in config and is
// applied by the pipeline.
type Scorer struct {
	cfg      config.ScoringConfig
	fetcher  *Fetcher
	renderer Renderer

	// now is swapped in tests that pin the copyright-staleness clock.
	now func() time.Time
}

// New builds a Scorer. renderer may be nil to disable the headless
// fallback regardless of configuration.
func New(cfg config.ScoringConfig, fetcher *Fetcher, renderer Renderer) *Scorer {
	return &Scorer{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: renderer,
		now:      time.Now,
	}
}

// Evaluate fetches and scores a website. Higher score = more likely
// broken or outdated. Reasons preserve trigger order.
func (s *Scorer) Evaluate(ctx context.Context, rawURL string) model.ScoringResult {
	url := NormalizeURL(rawURL)
	result := model.ScoringResult{URL: url}

	if isSocialURL(url) {
		if s.cfg.IncludeSocialOnlyLeads {
			result.Score = s.cfg.WeightSocialOnly
			result.Reasons = []string{model.ReasonSocialOnly}
		} else {
			result.Reasons = []string{model.ReasonSocialExcluded}
		}
		return result
	}

	res, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		res = s.renderAfterFailure(ctx, url, err)
		if res == nil {
			return s.failureResult(url, err)
		}
	}
	result.HTTPStatus = res.StatusCode
	result.ResponseTimeMS = res.Duration.Milliseconds()
	result.FinalURL = res.FinalURL

	if blocked, kind := DetectBlock(res.StatusCode, res.Header, res.Body); blocked {
		zap.L().Debug("bot protection detected",
			zap.String("component", "scorer"),
			zap.String("url", url),
			zap.String("block_type", string(kind)),
		)
		result.Score = s.cfg.WeightBotProtect
		result.Reasons = []string{model.ReasonBotProtection}
		return s.applyUnverifiedCap(result)
	}

	jsRequired := RequiresJavaScript(res.Body)
	if jsRequired && s.cfg.HeadlessFallbackEnabled && s.renderer != nil {
		if rendered, rerr := s.renderer.Render(ctx, res.FinalURL); rerr == nil && len(rendered.Body) > len(res.Body) {
			res.Body = rendered.Body
			if rendered.FinalURL != "" {
				res.FinalURL = rendered.FinalURL
				result.FinalURL = rendered.FinalURL
			}
			jsRequired = false
		} else if rerr != nil {
			zap.L().Debug("headless fallback failed",
				zap.String("component", "scorer"),
				zap.String("url", url),
				zap.Error(rerr),
			)
		}
	}

	score := 0
	var reasons []string

	switch {
	case res.StatusCode >= 500 && res.StatusCode < 600:
		score += s.cfg.WeightServerError
		reasons = append(reasons, fmt.Sprintf("server_error_%d", res.StatusCode))
	case res.StatusCode == 403 || res.StatusCode == 404:
		// Even 403/404 is a problem for a business site.
		score += s.cfg.Weight403404
		reasons = append(reasons, fmt.Sprintf("http_%d", res.StatusCode))
	case res.StatusCode >= 400 && res.StatusCode < 500:
		score += s.cfg.WeightClientError
		reasons = append(reasons, fmt.Sprintf("client_error_%d", res.StatusCode))
	}

	html := string(res.Body)
	if len(html) < 100 {
		if jsRequired {
			reasons = append(reasons, model.ReasonJSRequired)
		} else {
			score += s.cfg.WeightEmptyPage
			reasons = append(reasons, model.ReasonEmptyPage)
		}
		result.Score = score
		result.Reasons = reasons
		return s.applyUnverifiedCap(result)
	}

	htmlLower := strings.ToLower(html)
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))

	if isParkedDomain(htmlLower) {
		score += s.cfg.WeightParkedDomain
		reasons = append(reasons, model.ReasonParkedDomain)
	} else if isUnderConstruction(htmlLower) {
		score += s.cfg.WeightUnderConstr
		reasons = append(reasons, model.ReasonUnderConstr)
	}

	if strings.HasPrefix(res.FinalURL, "http://") {
		score += s.cfg.WeightHTTPOnly
		reasons = append(reasons, model.ReasonNoHTTPS)
	}

	now := s.now()
	if year := extractCopyrightYear(html, now); year > 0 {
		if now.Year()-year >= s.cfg.CopyrightStaleYears {
			score += s.cfg.WeightOldCopyright
			reasons = append(reasons, model.CopyrightReason(year))
		}
	}

	if docErr == nil {
		hasViewport, hasResponsive := mobileFriendly(doc, htmlLower)
		if !hasViewport {
			score += s.cfg.WeightNoViewport
			reasons = append(reasons, model.ReasonNoViewport)
			if !hasResponsive {
				score += s.cfg.WeightNotResponsive
				reasons = append(reasons, model.ReasonNotResponsive)
			}
		}
	}

	for _, tech := range outdatedTech(htmlLower) {
		if tech == "flash" {
			score += s.cfg.WeightFlash
		} else {
			score += s.cfg.WeightOutdatedTech
		}
		reasons = append(reasons, "outdated_"+tech)
	}

	if s.cfg.SlowResponseMs > 0 && result.ResponseTimeMS > int64(s.cfg.SlowResponseMs) {
		score += s.cfg.WeightSlowResponse
		reasons = append(reasons, model.SlowResponseReason(result.ResponseTimeMS))
	}

	if s.cfg.RedirectChainThreshold > 0 && res.Redirects >= s.cfg.RedirectChainThreshold {
		score += s.cfg.WeightRedirectChain
		reasons = append(reasons, model.RedirectChainReason(res.Redirects))
	}

	if year := lastModifiedYear(res.Header.Get("Last-Modified")); year > 0 {
		if now.Year()-year >= s.cfg.LastModifiedStaleYears {
			score += s.cfg.WeightLastModified
			reasons = append(reasons, model.LastModifiedReason(year))
		}
	}

	if docErr == nil {
		missingMeta, missingH1, genericTitle := seoSignals(doc)
		if missingMeta {
			score += s.cfg.WeightMissingMeta
			reasons = append(reasons, model.ReasonMissingMetaDesc)
		}
		if missingH1 {
			score += s.cfg.WeightMissingH1
			reasons = append(reasons, model.ReasonMissingH1)
		}
		if genericTitle {
			score += s.cfg.WeightGenericTitle
			reasons = append(reasons, model.ReasonGenericTitle)
		}
	}

	if builder := detectDIYBuilder(htmlLower, res.FinalURL); builder != "" {
		score += s.diyWeight(builder)
		reasons = append(reasons, "diy_"+builder)
	}

	if jsRequired {
		reasons = append(reasons, model.ReasonJSRequired)
	}

	gtm, fbPixel, gclid := marketingSignals(htmlLower)
	if gtm {
		reasons = append(reasons, model.ReasonHasGTM)
	}
	if fbPixel {
		reasons = append(reasons, model.ReasonHasFBPixel)
	}
	if gclid {
		reasons = append(reasons, model.ReasonHasGclid)
	}

	result.Score = score
	result.Reasons = reasons
	return s.applyUnverifiedCap(result)
}

// EvaluateWithIsolation never lets a failure escape: panics and
// unclassified errors become the worst-case sentinel so one bad site
// cannot take down a run.
func (s *Scorer) EvaluateWithIsolation(ctx context.Context, rawURL string) (result model.ScoringResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("unexpected panic evaluating website",
				zap.String("component", "scorer"),
				zap.String("url", rawURL),
				zap.Any("panic", r),
			)
			result = model.ScoringResult{
				URL:     NormalizeURL(rawURL),
				Score:   100, // assume broken if we can't check
				Reasons: []string{model.ReasonEvaluationError},
				Error:   fmt.Sprint(r),
			}
		}
	}()
	return s.Evaluate(ctx, rawURL)
}

// renderAfterFailure drives a real browser at a site whose fetch
// failed. Some sites refuse plain HTTP clients outright yet serve a
// browser fine; scoring those as unreachable ships a false positive.
// Certificate failures never fall back: a bad certificate is a scoring
// signal, not a fetch problem. Returns nil when the fallback is
// unavailable or also fails.
func (s *Scorer) renderAfterFailure(ctx context.Context, url string, fetchErr error) *FetchResult {
	if !s.cfg.HeadlessFallbackEnabled || s.renderer == nil {
		return nil
	}
	if resilience.Classify(fetchErr) == resilience.FailureSSL {
		return nil
	}
	rendered, err := s.renderer.Render(ctx, url)
	if err != nil {
		zap.L().Debug("headless fallback after failed fetch",
			zap.String("component", "scorer"),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil
	}
	return rendered
}

func (s *Scorer) failureResult(url string, err error) model.ScoringResult {
	result := model.ScoringResult{URL: url, Error: err.Error()}

	switch resilience.Classify(err) {
	case resilience.FailureDNS:
		result.Score = s.cfg.WeightDNSFailed
		result.Reasons = []string{model.ReasonDNSFailed}
	case resilience.FailureTimeout:
		result.Score = s.cfg.WeightTimeout
		result.Reasons = []string{model.ReasonTimeout}
	case resilience.FailureSSL:
		result.Score = s.cfg.WeightSSLError
		result.Reasons = []string{model.ReasonSSLError}
	case resilience.FailureRefused:
		result.Score = s.cfg.WeightUnreachable
		result.Reasons = []string{model.ReasonUnreachable}
	default:
		result.Score = s.cfg.WeightFetchFailed
		result.Reasons = []string{model.ReasonFetchFailed}
	}

	return s.applyUnverifiedCap(result)
}

func (s *Scorer) diyWeight(builder string) int {
	switch builder {
	case "wix":
		return s.cfg.WeightWix
	case "squarespace":
		return s.cfg.WeightSquarespace
	case "weebly":
		return s.cfg.WeightWeebly
	case "godaddy_builder":
		return s.cfg.WeightGoDaddy
	default:
		return s.cfg.WeightDIYDefault
	}
}

// applyUnverifiedCap marks results whose every scoring reason comes
// from a condition we could not see past (timeouts, bot walls). Such
// leads may not be broken at all, so their score is capped below the
// inclusion threshold unless the operator opts in.
func (s *Scorer) applyUnverifiedCap(result model.ScoringResult) model.ScoringResult {
	unverifiedSet := make(map[string]bool, len(s.cfg.UnverifiedReasons))
	for _, r := range s.cfg.UnverifiedReasons {
		unverifiedSet[r] = true
	}

	scoring := 0
	for _, r := range result.Reasons {
		if model.MarketingSignalReasons[r] || r == model.ReasonJSRequired {
			continue
		}
		if !unverifiedSet[r] {
			return result
		}
		scoring++
	}
	if scoring == 0 {
		return result
	}

	if !s.cfg.IncludeUnverifiedLeads && result.Score > s.cfg.UnverifiedScoreCap {
		result.Score = s.cfg.UnverifiedScoreCap
	}
	result.Reasons = append(result.Reasons, model.ReasonUnverified)
	return result
}
