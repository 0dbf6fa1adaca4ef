package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/config"
)

var unsafeDumpChars = regexp.MustCompile(`[^\w\-]`)

// DebugSink captures page state (screenshot + HTML) when a structural
// failure leaves us with nothing else to diagnose from.
type DebugSink struct {
	dir        string
	screenshot bool
	htmlDump   bool
}

// NewDebugSink builds a sink from scraper config. A sink with both
// captures disabled is valid and does nothing.
func NewDebugSink(cfg config.ScraperConfig) *DebugSink {
	return &DebugSink{
		dir:        cfg.DebugDir,
		screenshot: cfg.ScreenshotOnFail,
		htmlDump:   cfg.HTMLDumpOnFail,
	}
}

// Save writes a timestamped snapshot of the page. Failures here are
// logged and swallowed: a broken dump must never fail the scrape.
func (d *DebugSink) Save(ctx context.Context, p Page, label string) {
	if d == nil || (!d.screenshot && !d.htmlDump) {
		return
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		zap.L().Warn("debug dump: create dir", zap.String("dir", d.dir), zap.Error(err))
		return
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	safe := unsafeDumpChars.ReplaceAllString(label, "_")
	if len(safe) > 50 {
		safe = safe[:50]
	}
	base := filepath.Join(d.dir, fmt.Sprintf("%s_%s", stamp, safe))

	if d.screenshot {
		if buf, err := p.Screenshot(ctx); err != nil {
			zap.L().Warn("debug dump: screenshot", zap.String("label", label), zap.Error(err))
		} else if err := os.WriteFile(base+".png", buf, 0o644); err != nil {
			zap.L().Warn("debug dump: write screenshot", zap.Error(err))
		}
	}

	if d.htmlDump {
		if html, err := p.HTML(ctx); err != nil {
			zap.L().Warn("debug dump: html", zap.String("label", label), zap.Error(err))
		} else if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
			zap.L().Warn("debug dump: write html", zap.Error(err))
		}
	}
}
