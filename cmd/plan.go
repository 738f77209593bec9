package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Inlionden/siteselection/internal/crawler"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the crawl grid without browsing",
	Long: `Print the grid cells and the task count the current configuration would
produce. Useful for sizing a crawl before committing browser time to it.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate("crawl"); err != nil {
			return err
		}

		rect := crawler.Rect{
			StartLat: cfg.Grid.StartLat,
			StartLon: cfg.Grid.StartLon,
			EndLat:   cfg.Grid.EndLat,
			EndLon:   cfg.Grid.EndLon,
			StepLat:  cfg.Grid.StepLat,
			StepLon:  cfg.Grid.StepLon,
		}
		cells := crawler.Cells(rect)
		tasks := crawler.Tasks(cells, cfg.Categories)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROW\tCOL\tCENTER LAT\tCENTER LON")
		for _, c := range cells {
			fmt.Fprintf(w, "%d\t%d\t%.6f\t%.6f\n", c.Row, c.Col, c.Lat(), c.Lon())
		}
		if err := w.Flush(); err != nil {
			return err
		}

		terms := 0
		for _, cat := range cfg.Categories {
			terms += len(cat.Terms)
		}
		fmt.Printf("\n%d cells x %d terms = %d tasks\n", len(cells), terms, len(tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
