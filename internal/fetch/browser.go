package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// MinContentLength is the shortest job posting text accepted without browser rendering.
const MinContentLength = 500

// consentButtons matches the usual cookie banner accept buttons.
const consentButtons = `button[id*="accept"], button[class*="accept"], button[aria-label*="Accept"]`

// NeedsRendering reports whether text extracted over plain HTTP is probably a client-side
// rendered shell. Only job boards are rendered; personal pages are taken as served.
func NeedsRendering(p Platform, text string) bool {
	if p != PlatformUnknown && !p.IsJobBoard() {
		return false
	}
	return len(strings.TrimSpace(text)) < MinContentLength
}

// RenderOptions configures Render.
type RenderOptions struct {
	Timeout time.Duration
	// Settle is how long to wait after the body is ready for scripts to hydrate the page.
	Settle time.Duration
	Logger *zap.Logger
}

// Render loads rawURL in headless Chrome and returns the resulting HTML. Chrome or Chromium must
// be installed.
func Render(ctx context.Context, rawURL string, opts RenderOptions) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 3 * time.Second
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(DefaultUserAgent),
	)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancelRun()

	start := time.Now()
	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(opts.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// A missing banner is not an error.
			_ = chromedp.Click(consentButtons, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	logger.Debug("rendered page", zap.String("url", rawURL), zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)))
	return html, nil
}
