package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/sells-group/leadscout/internal/config"
)

// browserPage implements Page over a dedicated headless Chrome tab.
type browserPage struct {
	ctx       context.Context
	opTimeout time.Duration
}

// newBrowserPage launches a browser session. The returned cleanup
// tears down the tab and the browser process.
func newBrowserPage(ctx context.Context, cfg config.ScraperConfig) (Page, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	cleanup := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// Launch the browser eagerly so failures surface here, not on the
	// first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cleanup()
		return nil, nil, err
	}

	return &browserPage{
		ctx:       browserCtx,
		opTimeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}, cleanup, nil
}

func (p *browserPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (p *browserPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.opTimeout, chromedp.Navigate(url))
}

func (p *browserPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *browserPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	js := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return !!el && el.offsetParent !== null; })()`,
		selector)
	err := p.run(ctx, p.opTimeout, chromedp.Evaluate(js, &visible))
	return visible, err
}

func (p *browserPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, p.opTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *browserPage) ClickNth(ctx context.Context, selector string, n int) (bool, error) {
	var clicked bool
	js := fmt.Sprintf(
		`(() => { const els = document.querySelectorAll(%q); if (els.length <= %d) return false; els[%d].click(); return true; })()`,
		selector, n, n)
	err := p.run(ctx, p.opTimeout, chromedp.Evaluate(js, &clicked))
	return clicked, err
}

func (p *browserPage) Count(ctx context.Context, selector string) (int, error) {
	var count int
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	err := p.run(ctx, p.opTimeout, chromedp.Evaluate(js, &count))
	return count, err
}

func (p *browserPage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	js := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return el ? el.innerText.trim() : ""; })()`,
		selector)
	err := p.run(ctx, p.opTimeout, chromedp.Evaluate(js, &text))
	return text, err
}

func (p *browserPage) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	var result struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	js := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); if (!el || el.getAttribute(%q) === null) return {present: false, value: ""}; return {present: true, value: el.getAttribute(%q)}; })()`,
		selector, name, name)
	err := p.run(ctx, p.opTimeout, chromedp.Evaluate(js, &result))
	return result.Value, result.Present, err
}

func (p *browserPage) ScrollBy(ctx context.Context, selector string, pixels int) error {
	js := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); if (el) el.scrollBy(0, %d); })()`,
		selector, pixels)
	return p.run(ctx, p.opTimeout, chromedp.Evaluate(js, nil))
}

func (p *browserPage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, p.opTimeout, chromedp.Location(&loc))
	return loc, err
}

func (p *browserPage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *browserPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, p.opTimeout, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}
