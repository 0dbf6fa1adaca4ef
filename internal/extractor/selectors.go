package extractor

import (
	"context"
	"time"
)

// Chain is an ordered list of selector strategies. Earlier entries are
// the most specific and most fragile; later entries are broader
// fallbacks.
type Chain []string

// Selector chains for the maps results UI. Order matters: each chain
// is tried front to back and the first hit wins.
var (
	consentButtons = Chain{
		`button[aria-label='Accept all']`,
		`button[aria-label='Reject all']`,
		`[aria-label='Accept all']`,
		`[aria-label='Accept cookies']`,
		`form[action*='consent'] button`,
	}

	resultsFeed = Chain{
		`div[role='feed']`,
		`div[aria-label*='Results']`,
		`div.m6QErb[aria-label]`,
	}

	businessCards = Chain{
		`div[role='feed'] > div > div[jsaction]`,
		`div[role='article']`,
		`a[href*='/maps/place/']`,
	}

	businessName = Chain{
		`h1.DUwDvf`,
		`h1[data-attrid='title']`,
		`div[role='main'] h1`,
		`h1`,
	}

	websiteLink = Chain{
		`a[data-item-id='authority']`,
		`a[aria-label*='Website']`,
		`a.CsEnBe[href*='http']`,
	}

	addressField = Chain{
		`button[data-item-id='address']`,
		`[data-item-id='address']`,
		`button[aria-label*='Address']`,
	}

	phoneField = Chain{
		`button[data-item-id*='phone']`,
		`[data-item-id*='phone']`,
		`button[aria-label*='Phone']`,
	}

	reviewCountField = Chain{
		`div.F7nice span[aria-label*='review']`,
		`span[aria-label*='reviews']`,
		`button[jsaction*='reviewChart'] span`,
	}
)

// firstVisible waits on each selector in turn and returns the first
// that shows a visible element. The per-selector timeout is the chain
// timeout divided across entries so a dead first strategy cannot eat
// the whole budget.
func firstVisible(ctx context.Context, p Page, chain Chain, timeout time.Duration) (string, bool) {
	per := timeout / time.Duration(len(chain))
	if per < 500*time.Millisecond {
		per = 500 * time.Millisecond
	}
	for _, sel := range chain {
		if ctx.Err() != nil {
			return "", false
		}
		if err := p.WaitVisible(ctx, sel, per); err == nil {
			return sel, true
		}
	}
	return "", false
}

// firstCount returns the first selector in the chain that matches at
// least one element, with its match count.
func firstCount(ctx context.Context, p Page, chain Chain) (string, int) {
	for _, sel := range chain {
		n, err := p.Count(ctx, sel)
		if err != nil {
			continue
		}
		if n > 0 {
			return sel, n
		}
	}
	return "", 0
}

// firstText returns the first non-empty text produced by the chain.
func firstText(ctx context.Context, p Page, chain Chain) (string, bool) {
	for _, sel := range chain {
		text, err := p.Text(ctx, sel)
		if err != nil {
			continue
		}
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// firstAttr returns the first present attribute value along the chain.
// Elements whose attribute is missing fall through to Text.
func firstAttr(ctx context.Context, p Page, chain Chain, attr string) (string, bool) {
	for _, sel := range chain {
		val, ok, err := p.Attr(ctx, sel, attr)
		if err != nil {
			continue
		}
		if ok && val != "" {
			return val, true
		}
	}
	return "", false
}

// firstAttrOrText prefers the attribute but accepts the element text,
// matching how aria-labels carry the clean value on maps cards.
func firstAttrOrText(ctx context.Context, p Page, chain Chain, attr string) (string, bool) {
	for _, sel := range chain {
		val, ok, err := p.Attr(ctx, sel, attr)
		if err != nil {
			continue
		}
		if ok && val != "" {
			return val, true
		}
		text, err := p.Text(ctx, sel)
		if err == nil && text != "" {
			return text, true
		}
	}
	return "", false
}
