package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"knowledge-acquisition-api/internal/useragent"
)

// ChromedpRenderer starts a short-lived Chrome per render. Slower than the
// rod pool but holds no browser between requests.
type ChromedpRenderer struct {
	timeout time.Duration
}

func NewChromedpRenderer(timeout time.Duration) *ChromedpRenderer {
	return &ChromedpRenderer{timeout: timeout}
}

// Render navigates to url and returns the outer HTML of the document.
func (r *ChromedpRenderer) Render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(useragent.RandomDesktop()),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	taskCtx, cancel = context.WithTimeout(taskCtx, r.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp execution failed: %w", err)
	}

	slog.Debug("Rendered page with chromedp", "url", url, "bytes", len(html))
	return html, nil
}

// Cleanup is a no-op; every Render tears down its own browser.
func (r *ChromedpRenderer) Cleanup() {}
