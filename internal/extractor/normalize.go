package extractor

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nameNoise    = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	reviewNumRe  = regexp.MustCompile(`([\d,]+)\s*review`)
	anyNumberRe  = regexp.MustCompile(`[\d,]+`)
	stripMarksTf = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeName produces a dedupe key for a business name: lowercase,
// diacritics stripped, punctuation removed, whitespace collapsed.
// "José's Café  &  Grill" and "Joses Cafe Grill" collide on purpose.
func NormalizeName(name string) string {
	folded, _, err := transform.String(stripMarksTf, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = nameNoise.ReplaceAllString(folded, " ")
	folded = spaceRuns.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// parseReviewCount pulls the review count out of label text like
// "4.6 stars 1,284 Reviews". Returns -1 when no figure is present.
func parseReviewCount(label string) int {
	lower := strings.ToLower(label)
	m := reviewNumRe.FindStringSubmatch(lower)
	if m == nil {
		// Bare "(213)" style labels carry only the number.
		if strings.Contains(lower, "star") || strings.Contains(lower, "review") {
			m = []string{"", anyNumberRe.FindString(lower)}
		}
	}
	if m == nil || m[1] == "" {
		return -1
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return -1
	}
	return n
}

// unwrapRedirect resolves a tracking-redirect link to its target when
// the href points through a google.com/url hop.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "google.com/url") {
		return href
	}
	qIdx := strings.Index(href, "?")
	if qIdx < 0 {
		return href
	}
	for _, param := range strings.Split(href[qIdx+1:], "&") {
		if v, found := strings.CutPrefix(param, "q="); found {
			if decoded, err := url.QueryUnescape(v); err == nil {
				return decoded
			}
			return v
		}
	}
	return href
}
