package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
)

// Engine runs maps extraction passes. One Engine serves the whole
// process; each Scrape call opens its own browser session.
type Engine struct {
	cfg     config.ScraperConfig
	debug   *DebugSink
	newPage func(ctx context.Context) (Page, func(), error)

	// settle is the pause given to the maps UI after a navigation or
	// click before reading from it.
	settle time.Duration
}

// NewEngine builds an Engine backed by headless Chrome.
func NewEngine(cfg config.ScraperConfig) *Engine {
	return &Engine{
		cfg:    cfg,
		debug:  NewDebugSink(cfg),
		settle: time.Second,
		newPage: func(ctx context.Context) (Page, func(), error) {
			return newBrowserPage(ctx, cfg)
		},
	}
}

// Scrape extracts businesses for one (city, category) query.
// Structural failures (navigation, missing feed with an error) abort
// the query; per-card failures are isolated and skipped.
func (e *Engine) Scrape(ctx context.Context, city, category string) ([]model.Business, error) {
	page, cleanup, err := e.newPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "extractor: open browser page")
	}
	defer cleanup()

	return e.scrapeQuery(ctx, page, city, category)
}

// ScrapeWithIsolation converts every failure mode, panics included,
// into a returned error so the orchestrator can keep the run alive.
func (e *Engine) ScrapeWithIsolation(ctx context.Context, city, category string) (results []model.Business, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("extractor panic",
				zap.String("component", "extractor"),
				zap.String("city", city),
				zap.String("category", category),
				zap.Any("panic", r),
			)
			results = nil
			err = eris.Errorf("extractor: panic scraping %s in %s: %v", category, city, r)
		}
	}()
	return e.Scrape(ctx, city, category)
}

func (e *Engine) scrapeQuery(ctx context.Context, page Page, city, category string) ([]model.Business, error) {
	query := fmt.Sprintf("%s in %s", category, city)
	searchURL := "https://www.google.com/maps/search/" + url.QueryEscape(query)
	log := zap.L().With(
		zap.String("component", "extractor"),
		zap.String("query", query),
	)
	log.Info("scraping query")

	if err := page.Navigate(ctx, searchURL); err != nil {
		return nil, eris.Wrapf(err, "extractor: navigate to %s", searchURL)
	}

	e.handleConsent(ctx, page, log)

	timeout := time.Duration(e.cfg.TimeoutMs) * time.Millisecond
	feedSel, found := firstVisible(ctx, page, resultsFeed, timeout)
	if !found {
		log.Warn("no results feed found")
		e.debug.Save(ctx, page, "no_feed_"+query)
		return nil, nil
	}

	e.scrollResults(ctx, page, feedSel, log)

	cardSel, cardCount := firstCount(ctx, page, businessCards)
	log.Info("found business cards", zap.Int("count", cardCount))
	if cardCount == 0 {
		e.debug.Save(ctx, page, "no_cards_"+query)
		return nil, nil
	}

	max := e.cfg.MaxResultsPerQuery
	if cardCount < max {
		max = cardCount
	}

	var results []model.Business
	seenIDs := make(map[string]bool)
	seenNames := make(map[string]bool)

	for i := 0; i < max; i++ {
		if ctx.Err() != nil {
			return results, eris.Wrap(ctx.Err(), "extractor: cancelled mid-query")
		}

		clicked, err := page.ClickNth(ctx, cardSel, i)
		if err != nil || !clicked {
			log.Debug("card click failed", zap.Int("card", i), zap.Error(err))
			continue
		}
		sleep(ctx, e.settle)

		biz, err := e.extractDetails(ctx, page, city, category)
		if err != nil {
			log.Debug("card extraction failed", zap.Int("card", i), zap.Error(err))
			continue
		}
		if biz == nil {
			continue
		}

		nameKey := NormalizeName(biz.Name) + "|" + NormalizeName(biz.Address)
		if seenIDs[biz.PlaceID] || seenNames[nameKey] {
			continue
		}
		seenIDs[biz.PlaceID] = true
		seenNames[nameKey] = true
		results = append(results, *biz)
		log.Debug("extracted business",
			zap.String("name", biz.Name),
			zap.String("website", biz.Website),
		)

		sleep(ctx, time.Duration(e.cfg.CardDelayMs)*time.Millisecond)
	}

	log.Info("scrape complete", zap.Int("businesses", len(results)))
	return results, nil
}

// handleConsent dismisses a cookie-consent interstitial if one is up.
// Absence of the dialog is the common case and not an error.
func (e *Engine) handleConsent(ctx context.Context, page Page, log *zap.Logger) {
	sleep(ctx, e.settle)
	for _, sel := range consentButtons {
		visible, err := page.IsVisible(ctx, sel)
		if err != nil || !visible {
			continue
		}
		if err := page.Click(ctx, sel); err != nil {
			continue
		}
		log.Info("dismissed consent dialog", zap.String("selector", sel))
		sleep(ctx, e.settle)
		return
	}
}

// scrollResults loads more cards by scrolling the feed, stopping on
// three consecutive stagnant counts, the scroll cap, or enough results.
func (e *Engine) scrollResults(ctx context.Context, page Page, feedSel string, log *zap.Logger) {
	lastCount := 0
	noChange := 0

	for i := 0; i < e.cfg.MaxScrolls; i++ {
		if ctx.Err() != nil {
			return
		}
		if err := page.ScrollBy(ctx, feedSel, 1000); err != nil {
			log.Warn("scroll failed", zap.Int("iteration", i), zap.Error(err))
			return
		}
		sleep(ctx, time.Duration(e.cfg.ScrollPauseMs)*time.Millisecond)

		_, count := firstCount(ctx, page, businessCards)
		if count == lastCount {
			noChange++
			if noChange >= 3 {
				log.Debug("scrolling stagnated", zap.Int("scrolls", i+1))
				return
			}
		} else {
			noChange = 0
		}
		lastCount = count

		if count >= e.cfg.MaxResultsPerQuery {
			log.Debug("reached max results", zap.Int("count", count))
			return
		}
	}
}

// extractDetails reads the open detail panel. A missing name voids the
// card; everything else is optional.
func (e *Engine) extractDetails(ctx context.Context, page Page, city, category string) (*model.Business, error) {
	sleep(ctx, 3*e.settle/2)

	currentURL, err := page.Location(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "extractor: read detail url")
	}

	name, ok := firstText(ctx, page, businessName)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, nil
	}

	biz := &model.Business{
		PlaceID:     DerivePlaceID(currentURL),
		CID:         ExtractCID(currentURL),
		Name:        strings.TrimSpace(name),
		ReviewCount: -1,
		City:        city,
		Category:    category,
	}

	if href, ok := firstAttr(ctx, page, websiteLink, "href"); ok {
		biz.Website = unwrapRedirect(href)
	}

	if addr, ok := firstAttrOrText(ctx, page, addressField, "aria-label"); ok {
		biz.Address = strings.TrimSpace(strings.TrimPrefix(addr, "Address: "))
	}

	if phone, ok := firstAttrOrText(ctx, page, phoneField, "aria-label"); ok {
		biz.Phone = strings.TrimSpace(strings.TrimPrefix(phone, "Phone: "))
	}

	if label, ok := firstAttrOrText(ctx, page, reviewCountField, "aria-label"); ok {
		biz.ReviewCount = parseReviewCount(label)
	}

	return biz, nil
}

// sleep waits without outliving the context.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
