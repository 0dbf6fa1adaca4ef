package scorer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Parked domain indicators (case-insensitive).
var parkedIndicators = []string{
	"domain for sale",
	"this domain is for sale",
	"buy this domain",
	"domain parking",
	"parked domain",
	"domain has expired",
	"future home of",
	"hostgator.com",
	"godaddy.com/domainsearch",
	"sedoparking.com",
	"domainmarket.com",
	"hugedomains.com",
	"afternic.com",
	"dan.com/buy-domain",
}

var underConstructionIndicators = []string{
	"this site is under construction",
	"under construction",
	"website coming soon",
	"coming soon",
	"page under development",
}

// DIY website builders. Self-hosted WordPress is fine; wordpress.com
// hosting is the builder signal.
var diyBuilders = []struct {
	pattern string
	name    string
}{
	{"wix.com", "wix"},
	{"wixsite.com", "wix"},
	{"squarespace.com", "squarespace"},
	{"weebly.com", "weebly"},
	{"site123.com", "site123"},
	{"godaddy.com/websites", "godaddy_builder"},
	{"wordpress.com", "wordpress_com"},
	{"jimdo.com", "jimdo"},
	{"webflow.io", "webflow"},
	{"carrd.co", "carrd"},
}

// Copyright year extraction requires copyright context to avoid false
// positives from phone numbers, addresses, and prices.
var copyrightPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)©\s*(\d{4})`),
	regexp.MustCompile(`(?i)copyright\s*(?:©)?\s*(\d{4})`),
	regexp.MustCompile(`(?i)\(c\)\s*(\d{4})`),
	regexp.MustCompile(`(?i)all rights reserved[^0-9]*(\d{4})`),
}

var oldJQueryRe = regexp.MustCompile(`jquery[.-]?([12])\.\d+`)

var genericTitles = map[string]bool{
	"home":      true,
	"home page": true,
	"homepage":  true,
	"index":     true,
	"untitled":  true,
	"welcome":   true,
	"new page":  true,
	"my site":   true,
	"website":   true,
}

var socialHosts = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
}

// isSocialURL reports whether the URL points at a social-media profile
// rather than a real website.
func isSocialURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	host := lower
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	for _, s := range socialHosts {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// extractCopyrightYear finds the page's copyright year, preferring the
// footer region. Returns 0 when no plausible year is found.
func extractCopyrightYear(html string, now time.Time) int {
	htmlLower := strings.ToLower(html)

	// Prefer the last footer-ish marker on the page.
	footerStart := -1
	for _, marker := range []string{"<footer", `class="footer"`, `id="footer"`, "</body>"} {
		if pos := strings.LastIndex(htmlLower, marker); pos > footerStart {
			footerStart = pos
		}
	}

	// Search the footer area, or the last 20% of the page without one.
	var searchArea string
	if footerStart > 0 {
		searchArea = html[footerStart:]
	} else {
		searchArea = html[len(html)*8/10:]
	}

	maxPlausible := now.Year() + 1
	if y := maxCopyrightYear(searchArea, maxPlausible); y > 0 {
		return y
	}

	// Fall back to the whole document, still requiring copyright context.
	return maxCopyrightYear(html, maxPlausible)
}

func maxCopyrightYear(area string, maxPlausible int) int {
	best := 0
	for _, re := range copyrightPatterns {
		for _, m := range re.FindAllStringSubmatch(area, -1) {
			y, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if y >= 1990 && y <= maxPlausible && y > best {
				best = y
			}
		}
	}
	return best
}

func isParkedDomain(htmlLower string) bool {
	for _, indicator := range parkedIndicators {
		if strings.Contains(htmlLower, indicator) {
			return true
		}
	}
	return false
}

func isUnderConstruction(htmlLower string) bool {
	for _, indicator := range underConstructionIndicators {
		if strings.Contains(htmlLower, indicator) {
			return true
		}
	}
	return false
}

// detectDIYBuilder returns the builder name or "".
func detectDIYBuilder(htmlLower, finalURL string) string {
	urlLower := strings.ToLower(finalURL)
	for _, b := range diyBuilders {
		if strings.Contains(htmlLower, b.pattern) || strings.Contains(urlLower, b.pattern) {
			return b.name
		}
	}
	return ""
}

// mobileFriendly reports viewport and responsive-design hints.
func mobileFriendly(doc *goquery.Document, htmlLower string) (hasViewport, hasResponsive bool) {
	hasViewport = doc.Find(`meta[name="viewport"]`).Length() > 0

	for _, hint := range []string{"@media", "bootstrap", "tailwind", "foundation", "responsive", "mobile-friendly"} {
		if strings.Contains(htmlLower, hint) {
			hasResponsive = true
			break
		}
	}
	return hasViewport, hasResponsive
}

// outdatedTech returns the outdated technologies present on the page.
func outdatedTech(htmlLower string) []string {
	var outdated []string

	if strings.Contains(htmlLower, "<object") &&
		(strings.Contains(htmlLower, "flash") || strings.Contains(htmlLower, ".swf")) {
		outdated = append(outdated, "flash")
	}
	if strings.Contains(htmlLower, "<frameset") || strings.Contains(htmlLower, "<frame ") {
		outdated = append(outdated, "frames")
	}
	if strings.Contains(htmlLower, "<marquee") {
		outdated = append(outdated, "marquee")
	}
	if strings.Contains(htmlLower, "<blink") {
		outdated = append(outdated, "blink_tag")
	}
	if oldJQueryRe.MatchString(htmlLower) {
		outdated = append(outdated, "old_jquery")
	}
	return outdated
}

// seoSignals checks for missing basics: meta description, h1, and a
// non-generic title.
func seoSignals(doc *goquery.Document) (missingMeta, missingH1, genericTitle bool) {
	desc, ok := doc.Find(`meta[name="description"]`).Attr("content")
	missingMeta = !ok || strings.TrimSpace(desc) == ""

	missingH1 = doc.Find("h1").Length() == 0

	title := strings.TrimSpace(strings.ToLower(doc.Find("title").First().Text()))
	genericTitle = title == "" || genericTitles[title]
	return missingMeta, missingH1, genericTitle
}

// marketingSignals tags advertising and analytics tooling already on
// the page. Informational only, never scored.
func marketingSignals(htmlLower string) (gtm, fbPixel, gclid bool) {
	gtm = strings.Contains(htmlLower, "googletagmanager.com") || strings.Contains(htmlLower, "gtm-")
	fbPixel = strings.Contains(htmlLower, "connect.facebook.net") || strings.Contains(htmlLower, "fbq(")
	gclid = strings.Contains(htmlLower, "gclid")
	return gtm, fbPixel, gclid
}

// lastModifiedYear parses the Last-Modified header year, 0 if absent
// or unparseable.
func lastModifiedYear(header string) int {
	if header == "" {
		return 0
	}
	t, err := time.Parse(time.RFC1123, header)
	if err != nil {
		if t, err = time.Parse(time.RFC1123Z, header); err != nil {
			return 0
		}
	}
	return t.Year()
}
