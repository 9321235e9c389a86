package pagefetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Fetcher renders a page URL to its settled DOM as HTML.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// ChromeFetcher drives a headless Chrome instance. Each fetch gets its own
// browser context so tasks stay isolated; the settle delay gives client-side
// rendering time to finish before the DOM is captured.
type ChromeFetcher struct {
	timeout     time.Duration
	settleDelay time.Duration
}

// NewChromeFetcher constructs a fetcher with the given per-fetch timeout and
// post-navigation settle delay.
func NewChromeFetcher(timeout, settleDelay time.Duration) *ChromeFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if settleDelay <= 0 {
		settleDelay = 2 * time.Second
	}
	return &ChromeFetcher{timeout: timeout, settleDelay: settleDelay}
}

// Fetch navigates to the URL, waits for client-side content to settle, scrolls
// to the bottom to trigger lazy loading, and returns the outer HTML.
func (f *ChromeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.settleDelay),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(f.settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("pagefetch: render %s: %w", pageURL, err)
	}
	if html == "" {
		return "", fmt.Errorf("pagefetch: empty document for %s", pageURL)
	}
	return html, nil
}

var _ Fetcher = (*ChromeFetcher)(nil)
