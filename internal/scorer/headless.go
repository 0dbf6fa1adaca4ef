package scorer

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// HeadlessRenderer renders JavaScript-only pages in headless Chrome so
// they can be scored on their real content instead of an empty shell.
type HeadlessRenderer struct {
	userAgent string
	timeout   time.Duration
}

// NewHeadlessRenderer builds a renderer. Each Render call launches its
// own browser context; render volume is low (only JS-shell pages) so
// the launch cost is acceptable.
func NewHeadlessRenderer(userAgent string, timeout time.Duration) *HeadlessRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HeadlessRenderer{userAgent: userAgent, timeout: timeout}
}

// Render navigates to the URL and returns the rendered document.
func (r *HeadlessRenderer) Render(ctx context.Context, url string) (*FetchResult, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, r.timeout)
	defer cancelTimeout()

	var html, finalURL string
	start := time.Now()
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second), // let client-side rendering settle
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: headless render %s", url)
	}

	return &FetchResult{
		StatusCode: 200,
		Body:       []byte(html),
		FinalURL:   finalURL,
		Duration:   time.Since(start),
	}, nil
}
