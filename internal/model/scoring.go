package model

import (
	"fmt"
	"strings"
)

// Reason tokens emitted by the scorer. Several tokens are parametric
// (a value is embedded in the token) and must be matched by prefix,
// not compared as an enum: copyright_<year>, server_error_<code>,
// client_error_<code>, http_<code>, slow_response_<ms>ms,
// redirect_chain_<n>, last_modified_<year>, outdated_<tech>,
// diy_<builder>.
const (
	ReasonSSLError         = "ssl_error"
	ReasonTimeout          = "timeout"
	ReasonDNSFailed        = "dns_failed"
	ReasonUnreachable      = "unreachable"
	ReasonFetchFailed      = "fetch_failed"
	ReasonEmptyPage        = "empty_page"
	ReasonParkedDomain     = "parked_domain"
	ReasonUnderConstr      = "under_construction"
	ReasonNoHTTPS          = "no_https"
	ReasonNoViewport       = "no_viewport"
	ReasonNotResponsive    = "not_responsive"
	ReasonMissingMetaDesc  = "missing_meta_description"
	ReasonMissingH1        = "missing_h1"
	ReasonGenericTitle     = "generic_title"
	ReasonNoWebsite        = "no_website"
	ReasonBotProtection    = "bot_protection"
	ReasonJSRequired       = "js_required"
	ReasonSocialOnly       = "social_only"
	ReasonSocialExcluded   = "social_only_excluded"
	ReasonUnverified       = "unverified"
	ReasonEvaluationError  = "evaluation_error"
	ReasonHasGTM           = "has_gtm"
	ReasonHasFBPixel       = "has_fb_pixel"
	ReasonHasGclid         = "has_gclid"
)

// MarketingSignalReasons are informational tags that never contribute
// to the score.
var MarketingSignalReasons = map[string]bool{
	ReasonHasGTM:     true,
	ReasonHasFBPixel: true,
	ReasonHasGclid:   true,
}

// ScoringResult is the outcome of one website evaluation attempt.
// Immutable once constructed.
type ScoringResult struct {
	URL            string   `json:"url"`
	Score          int      `json:"score"`
	Reasons        []string `json:"reasons"` // ordered; first-triggered first
	HTTPStatus     int      `json:"http_status,omitempty"`
	ResponseTimeMS int64    `json:"response_time_ms,omitempty"`
	FinalURL       string   `json:"final_url,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// HasReason reports whether the result carries the exact token.
func (r ScoringResult) HasReason(token string) bool {
	for _, t := range r.Reasons {
		if t == token {
			return true
		}
	}
	return false
}

// CopyrightReason builds the parametric stale-copyright token.
func CopyrightReason(year int) string { return fmt.Sprintf("copyright_%d", year) }

// SlowResponseReason builds the parametric slow-response token from the
// measured response time.
func SlowResponseReason(ms int64) string { return fmt.Sprintf("slow_response_%dms", ms) }

// RedirectChainReason builds the parametric redirect-chain token.
func RedirectChainReason(hops int) string { return fmt.Sprintf("redirect_chain_%d", hops) }

// LastModifiedReason builds the parametric stale Last-Modified token.
func LastModifiedReason(year int) string { return fmt.Sprintf("last_modified_%d", year) }

// ParseReasons splits a stored comma-separated reason string back into
// ordered tokens. JSON-array storage is handled by the store; this
// helper covers the legacy comma form used in exports.
func ParseReasons(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PrimaryReason returns the first reason that is neither a marketing
// tag nor the unverified marker. It drives the suggested pitch shown
// to operators.
func PrimaryReason(reasons []string) string {
	for _, t := range reasons {
		if MarketingSignalReasons[t] || t == ReasonUnverified {
			continue
		}
		return t
	}
	return ""
}

// HasMarketingSignal reports whether any marketing tag is present.
func HasMarketingSignal(reasons []string) bool {
	for _, t := range reasons {
		if MarketingSignalReasons[t] {
			return true
		}
	}
	return false
}

// SuggestedPitch maps the primary reason to a one-line outreach angle.
func SuggestedPitch(reasons []string) string {
	reason := PrimaryReason(reasons)
	switch {
	case reason == "":
		return "I spotted a few issues on your website that may be hurting conversions."
	case reason == ReasonSSLError || reason == ReasonNoHTTPS:
		return "I noticed your site shows as not secure - that warning drives customers away."
	case reason == ReasonNoViewport || reason == ReasonNotResponsive:
		return "I checked your site on mobile and it's difficult to use - most customers are on phones."
	case reason == ReasonTimeout || strings.HasPrefix(reason, "slow_response"):
		return "Your site takes too long to load, which hurts rankings and conversions."
	case strings.HasPrefix(reason, "server_error_") || strings.HasPrefix(reason, "http_") ||
		reason == ReasonUnreachable || reason == ReasonDNSFailed:
		return "Your site is returning an error for visitors, which means lost leads right now."
	case reason == ReasonParkedDomain || reason == ReasonUnderConstr:
		return "Your domain is showing a placeholder page instead of your business."
	case strings.HasPrefix(reason, "copyright_"):
		return "Your site footer shows an outdated copyright year, which signals neglect to visitors."
	case reason == ReasonMissingMetaDesc || reason == ReasonMissingH1 || reason == ReasonGenericTitle:
		return "Your site is missing basic SEO elements that help customers find you."
	case strings.HasPrefix(reason, "outdated_"):
		return "Your site uses outdated technology that can break on modern browsers."
	case strings.HasPrefix(reason, "diy_"):
		return "Your site is on a template builder that often limits SEO and performance."
	}
	return "I noticed a few website issues that could be costing you customers."
}
