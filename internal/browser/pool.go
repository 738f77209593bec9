package browser

import (
	"context"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// Pool manages a fixed set of sessions sharing one browser process.
// Sessions are handed out exclusively: a worker holds a session for the
// full navigate-settle-read unit before releasing it.
type Pool struct {
	allocCancel context.CancelFunc
	sessions    chan *Session
	all         []*Session
}

// NewPool starts a browser allocator and n tab sessions. Each session is
// started eagerly so a broken browser install fails at construction rather
// than mid-crawl.
func NewPool(ctx context.Context, n int, opts Options) (*Pool, error) {
	if n <= 0 {
		n = 1
	}
	opts = opts.withDefaults()

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)

	p := &Pool{
		allocCancel: allocCancel,
		sessions:    make(chan *Session, n),
	}

	for i := 0; i < n; i++ {
		sctx, scancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(sctx); err != nil {
			scancel()
			p.Close()
			return nil, eris.Wrap(err, "browser: start session")
		}
		s := &Session{ctx: sctx, cancel: scancel, opts: opts}
		p.all = append(p.all, s)
		p.sessions <- s
	}

	return p, nil
}

// Acquire blocks until a session is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (Fetcher, error) {
	select {
	case s := <-p.sessions:
		return s, nil
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "browser: acquire session")
	}
}

// Release returns a session to the pool.
func (p *Pool) Release(f Fetcher) {
	if s, ok := f.(*Session); ok {
		p.sessions <- s
	}
}

// Close tears down all sessions and the shared browser process.
func (p *Pool) Close() {
	for _, s := range p.all {
		s.cancel()
	}
	p.allocCancel()
}
