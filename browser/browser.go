// Package browser wraps chromedp behind the single capability the scraper
// needs: render a page and hand back its DOM.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configure the headless browser session.
type Options struct {
	Headless  bool
	UserAgent string
	// NavTimeout bounds each individual navigation, not the session.
	NavTimeout time.Duration
}

// Session owns one browser process and one tab, reused for every navigation
// in a run. It is not safe for concurrent use; the scraper navigates
// strictly sequentially.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration
}

// NewSession launches the browser and opens the tab used for the whole run.
// A launch failure here is fatal to the caller: nothing can be scraped
// without a browser.
func NewSession(opts Options) (*Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// chromedp starts the browser lazily; run an empty task list now so a
	// broken Chrome install surfaces before the page loop starts.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	timeout := opts.NavTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Session{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		navTimeout:  timeout,
	}, nil
}

// Navigate loads url in the session's tab and returns the rendered document.
// The caller's ctx cancels the navigation early; otherwise the session's
// per-navigation timeout applies.
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(s.ctx, s.navTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	return html, nil
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}
