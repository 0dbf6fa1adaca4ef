// Package extractor pulls business listings out of maps search
// results. Every DOM lookup goes through an ordered selector chain so
// a single upstream markup change degrades one strategy instead of
// the whole pass.
package extractor

import (
	"context"
	"time"
)

// Page abstracts the browser operations the extractor needs. The
// production implementation drives headless Chrome; tests use a fake.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector matches a visible element
	// or the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	IsVisible(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	// ClickNth clicks the n-th element matching selector, reporting
	// whether such an element existed.
	ClickNth(ctx context.Context, selector string, n int) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	Text(ctx context.Context, selector string) (string, error)
	// Attr returns the attribute value and whether the element and
	// attribute were present.
	Attr(ctx context.Context, selector, name string) (string, bool, error)
	ScrollBy(ctx context.Context, selector string, pixels int) error
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}
