package scorer

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot protection detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks a fetched page for signs of anti-bot protection.
// A blocked page tells us nothing about the real site, so callers
// short-circuit scoring and mark the result unverified.
func DetectBlock(statusCode int, header http.Header, body []byte) (bool, BlockType) {
	// Cloudflare: 403/503 with cf-* headers.
	if statusCode == 403 || statusCode == 503 {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Cloudflare challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
		return true, BlockCloudflare
	}

	// Captcha markers need status-code support or co-occurrence: plenty
	// of legitimate contact forms mention a captcha once.
	captchaMarkers := 0
	for _, m := range []string{"captcha", "recaptcha", "hcaptcha", "are you a robot", "verify you are human"} {
		if strings.Contains(lower, m) {
			captchaMarkers++
		}
	}
	if captchaMarkers > 0 && (statusCode == 403 || statusCode == 429 || captchaMarkers >= 2) {
		return true, BlockCaptcha
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

// RequiresJavaScript reports whether a near-empty page asks the
// visitor to enable JavaScript. Unlike a block, this only tags the
// result; a browser render can still recover the real content.
func RequiresJavaScript(body []byte) bool {
	if len(body) >= 2000 {
		return false
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "enable javascript") ||
		strings.Contains(lower, "javascript is required") ||
		strings.Contains(lower, "javascript to run this app")
}
