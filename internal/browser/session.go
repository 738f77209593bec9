// Package browser owns the headless browsing sessions used to load map
// search pages. A session wraps one browser tab; navigation, settle wait,
// and markup retrieval form a sequential unit per session.
package browser

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// Fetcher is the page-level contract consumed by the crawler.
type Fetcher interface {
	// FetchListing navigates to url, waits for client-side rendering to
	// settle, and returns the fully rendered markup.
	FetchListing(ctx context.Context, url string) (string, error)

	// CaptureSnapshot writes a screenshot of the current view to path.
	CaptureSnapshot(ctx context.Context, path string) error
}

// Options configures the browser allocator and its sessions.
type Options struct {
	Headless    bool
	SettleDelay time.Duration // wait after navigation for rendering
	NavTimeout  time.Duration // upper bound per navigation
	UserAgent   string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

func (o Options) withDefaults() Options {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 60 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	return o
}

// Session is a single live browsing tab. It must handle one navigation at a
// time; the pool enforces exclusive ownership while acquired.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

// FetchListing navigates the session to url, sleeps the settle delay, and
// returns the rendered document markup.
func (s *Session) FetchListing(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	navCtx, cancel := context.WithTimeout(s.ctx, s.opts.NavTimeout)
	defer cancel()

	var markup string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(s.opts.SettleDelay),
		chromedp.OuterHTML("html", &markup),
	)
	if err != nil {
		return "", eris.Wrapf(err, "browser: fetch %s", url)
	}
	return markup, nil
}

// CaptureSnapshot screenshots the session's current view into path,
// creating the parent directory when needed.
func (s *Session) CaptureSnapshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	capCtx, cancel := context.WithTimeout(s.ctx, s.opts.NavTimeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(capCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return eris.Wrap(err, "browser: capture screenshot")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "browser: create snapshot dir %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return eris.Wrapf(err, "browser: write snapshot %s", path)
	}
	return nil
}
