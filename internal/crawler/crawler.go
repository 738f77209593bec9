// Package crawler walks a lat/lon grid and turns map search listings into
// durable POI records.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Inlionden/siteselection/internal/browser"
	"github.com/Inlionden/siteselection/internal/config"
	"github.com/Inlionden/siteselection/internal/extract"
	"github.com/Inlionden/siteselection/internal/geo"
	"github.com/Inlionden/siteselection/internal/resilience"
	"github.com/Inlionden/siteselection/internal/sink"
)

// maxConsecutiveSinkFailures aborts the crawl when sink writes keep failing
// (disk full and the like). Sinks are the only record of completed work, so
// a systemic write failure makes further crawling pointless.
const maxConsecutiveSinkFailures = 5

// SessionPool provides exclusive browsing sessions to workers. A session
// must process one navigation at a time, so a worker holds its session for
// the full fetch before releasing it.
type SessionPool interface {
	Acquire(ctx context.Context) (browser.Fetcher, error)
	Release(browser.Fetcher)
}

// Options is the immutable per-run crawl configuration.
type Options struct {
	Rect             Rect
	Categories       []config.Category
	Output           config.OutputConfig
	Zoom             int
	MaxResults       int
	Workers          int
	PolitenessRPS    float64
	Screenshots      bool
	IncludeTimestamp bool
}

// Result summarizes a finished (or interrupted) crawl.
type Result struct {
	Cells       int
	Tasks       int
	TasksFailed int
	Records     int
	Elapsed     time.Duration
}

// Crawler drives the grid crawl: one task per (cell, term) pair, a bounded
// worker pool over a session pool, and append-only CSV sinks. A failed task
// never aborts the run; only cancellation or systemic sink failure does.
type Crawler struct {
	sessions SessionPool
	sinks    *sink.Set
	limiter  *rate.Limiter
	opts     Options
	retry    resilience.RetryConfig
}

// New creates a Crawler with the given dependencies.
func New(sessions SessionPool, sinks *sink.Set, opts Options) *Crawler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	rps := opts.PolitenessRPS
	if rps <= 0 {
		rps = 1
	}
	return &Crawler{
		sessions: sessions,
		sinks:    sinks,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		opts:     opts,
		retry:    resilience.DefaultRetryConfig(),
	}
}

// sinkError marks a persistence failure so the run loop can escalate when
// they become systemic.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

func (c *Crawler) categoryPath(category, term string) string {
	return filepath.Join(c.opts.Output.CategoriesDir(),
		strings.ReplaceAll(category, " ", "_"),
		strings.ReplaceAll(term, " ", "_")+".csv")
}

func (c *Crawler) snapshotPath(cell Cell) string {
	name := fmt.Sprintf("shot_r%d_c%d_%.6f_%.6f.png", cell.Row, cell.Col, cell.Lat(), cell.Lon())
	return filepath.Join(c.opts.Output.CategoriesDir(), name)
}

// Run executes the crawl over all generated tasks. Records flushed before a
// cancellation or failure are durable; re-running appends to the same sinks.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "crawler"))
	start := time.Now()

	cells := Cells(c.opts.Rect)
	tasks := Tasks(cells, c.opts.Categories)
	if len(tasks) == 0 {
		return nil, eris.New("crawler: nothing to crawl (empty grid or categories)")
	}

	// The combined sink gets its header up front so it exists even when the
	// first tasks find nothing.
	header := Header(c.opts.IncludeTimestamp)
	if err := c.sinks.Append(c.opts.Output.CombinedPath(), header, nil); err != nil {
		return nil, eris.Wrap(err, "crawler: init combined sink")
	}

	log.Info("starting grid crawl",
		zap.Int("cells", len(cells)),
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", c.opts.Workers),
	)

	var done, failed, records, sinkFailures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for _, task := range tasks {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err := c.limiter.Wait(gctx); err != nil {
				return err
			}

			n, err := c.runTask(gctx, task)
			switch {
			case err == nil:
				records.Add(int64(n))
				sinkFailures.Store(0)
			default:
				failed.Add(1)
				log.Warn("task failed",
					zap.String("category", task.Category),
					zap.String("term", task.Term),
					zap.Int("row", task.Cell.Row),
					zap.Int("col", task.Cell.Col),
					zap.Error(err),
				)
				var sErr *sinkError
				if errors.As(err, &sErr) {
					if sinkFailures.Add(1) >= maxConsecutiveSinkFailures {
						return eris.Wrap(err, "crawler: sink writes failing persistently")
					}
				}
			}

			if d := done.Add(1); d%10 == 0 {
				log.Info("progress",
					zap.Int64("tasks_done", d),
					zap.Int("tasks_total", len(tasks)),
					zap.Int64("records", records.Load()),
				)
			}
			return nil
		})
	}

	err := g.Wait()
	res := &Result{
		Cells:       len(cells),
		Tasks:       len(tasks),
		TasksFailed: int(failed.Load()),
		Records:     int(records.Load()),
		Elapsed:     time.Since(start),
	}
	if err != nil {
		return res, eris.Wrap(err, "crawler: run")
	}

	log.Info("crawl complete",
		zap.Int("cells", res.Cells),
		zap.Int("tasks", res.Tasks),
		zap.Int("tasks_failed", res.TasksFailed),
		zap.Int("records", res.Records),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// runTask performs one (cell, term) search: fetch, extract, resolve,
// persist to the category sink and the combined sink.
func (c *Crawler) runTask(ctx context.Context, task Task) (int, error) {
	session, err := c.sessions.Acquire(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "crawler: acquire session")
	}
	defer c.sessions.Release(session)

	url := geo.BuildSearchURL(task.Term, task.Cell.Lat(), task.Cell.Lon(), c.opts.Zoom)

	markup, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		return session.FetchListing(ctx, url)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "crawler: fetch listing %s", url)
	}

	if c.opts.Screenshots {
		if err := session.CaptureSnapshot(ctx, c.snapshotPath(task.Cell)); err != nil {
			zap.L().Warn("snapshot failed",
				zap.Int("row", task.Cell.Row),
				zap.Int("col", task.Cell.Col),
				zap.Error(err),
			)
		}
	}

	candidates, err := extract.Candidates(markup, c.opts.MaxResults)
	if err != nil {
		return 0, eris.Wrap(err, "crawler: extract candidates")
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]string, 0, len(candidates))
	for _, cand := range candidates {
		rows = append(rows, c.assemble(cand, task, now).Row(c.opts.IncludeTimestamp))
	}

	header := Header(c.opts.IncludeTimestamp)
	if err := c.sinks.Append(c.categoryPath(task.Category, task.Term), header, rows); err != nil {
		return 0, &sinkError{err: err}
	}
	if err := c.sinks.Append(c.opts.Output.CombinedPath(), header, rows); err != nil {
		return 0, &sinkError{err: err}
	}
	return len(rows), nil
}

// assemble resolves candidate coordinates, substituting the cell center
// when resolution fails so every record stays plottable, and computes the
// distance from the cell center.
func (c *Crawler) assemble(cand extract.Candidate, task Task, at time.Time) Record {
	point, resolved := geo.ResolveCoordinates(cand.Link)
	if !resolved {
		point = task.Cell.Center
	}
	return Record{
		Name:      cand.Name,
		Rating:    cand.Rating,
		Reviews:   cand.Reviews,
		Point:     point,
		Resolved:  resolved,
		Query:     task.Term,
		Center:    task.Cell.Center,
		DistanceM: geo.Distance(task.Cell.Center, point),
		CrawledAt: at,
	}
}
