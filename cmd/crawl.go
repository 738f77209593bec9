package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Inlionden/siteselection/internal/browser"
	"github.com/Inlionden/siteselection/internal/crawler"
	"github.com/Inlionden/siteselection/internal/sink"
	"github.com/Inlionden/siteselection/internal/store"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the grid POI crawl",
	Long: `Walk the configured lat/lon grid and search every category term at each
cell, appending extracted POI records to the combined and per-category CSV
sinks. Re-running resumes by appending; flushed records are never lost.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyCrawlFlags(cmd)
		if err := cfg.Validate("crawl"); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "crawl"))

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "crawl: init run store")
		}
		defer st.Close() //nolint:errcheck

		pool, err := browser.NewPool(ctx, cfg.Search.Workers, browser.Options{
			Headless:    cfg.Browser.Headless,
			SettleDelay: time.Duration(cfg.Browser.SettleDelaySecs) * time.Second,
			NavTimeout:  time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
			UserAgent:   cfg.Browser.UserAgent,
		})
		if err != nil {
			return eris.Wrap(err, "crawl: start browser pool")
		}
		defer pool.Close()

		opts := crawlerOptions()
		runID, err := st.CreateRun(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "crawl: create run")
		}
		log.Info("run created", zap.String("run_id", runID))

		res, runErr := crawler.New(pool, sink.NewSet(), opts).Run(ctx)

		// Bookkeeping must still happen when ctx was cancelled.
		bg := context.Background()
		if runErr != nil {
			if err := st.FailRun(bg, runID, runErr.Error()); err != nil {
				log.Error("record run failure", zap.Error(err))
			}
			return eris.Wrap(runErr, "crawl")
		}

		if err := st.CompleteRun(bg, runID, runStats(res)); err != nil {
			log.Error("record run completion", zap.Error(err))
		}

		log.Info("crawl finished",
			zap.String("run_id", runID),
			zap.Int("cells", res.Cells),
			zap.Int("tasks", res.Tasks),
			zap.Int("tasks_failed", res.TasksFailed),
			zap.Int("records", res.Records),
			zap.Duration("elapsed", res.Elapsed),
		)
		return nil
	},
}

func init() {
	crawlCmd.Flags().Int("workers", 0, "browsing sessions and concurrent tasks (default from config)")
	crawlCmd.Flags().Bool("screenshots", false, "capture a snapshot per grid cell")
	crawlCmd.Flags().Bool("include-timestamp", false, "add a UTC_Time column to the output schema")
	rootCmd.AddCommand(crawlCmd)
}

// applyCrawlFlags overlays explicit command-line flags onto the loaded
// configuration.
func applyCrawlFlags(cmd *cobra.Command) {
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Search.Workers = workers
	}
	if cmd.Flags().Changed("screenshots") {
		cfg.Search.Screenshots, _ = cmd.Flags().GetBool("screenshots")
	}
	if cmd.Flags().Changed("include-timestamp") {
		cfg.Search.IncludeTimestamp, _ = cmd.Flags().GetBool("include-timestamp")
	}
}

func runStats(res *crawler.Result) store.Stats {
	return store.Stats{
		Cells:       res.Cells,
		Tasks:       res.Tasks,
		TasksFailed: res.TasksFailed,
		Records:     res.Records,
	}
}

func crawlerOptions() crawler.Options {
	return crawler.Options{
		Rect: crawler.Rect{
			StartLat: cfg.Grid.StartLat,
			StartLon: cfg.Grid.StartLon,
			EndLat:   cfg.Grid.EndLat,
			EndLon:   cfg.Grid.EndLon,
			StepLat:  cfg.Grid.StepLat,
			StepLon:  cfg.Grid.StepLon,
		},
		Categories:       cfg.Categories,
		Output:           cfg.Output,
		Zoom:             cfg.Search.Zoom,
		MaxResults:       cfg.Search.MaxResults,
		Workers:          cfg.Search.Workers,
		PolitenessRPS:    cfg.Search.PolitenessRPS,
		Screenshots:      cfg.Search.Screenshots,
		IncludeTimestamp: cfg.Search.IncludeTimestamp,
	}
}
