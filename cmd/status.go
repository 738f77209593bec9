package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Inlionden/siteselection/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recent crawl runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "status: init run store")
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return eris.Wrap(err, "status: list runs")
		}
		if len(runs) == 0 {
			fmt.Println("no crawl runs recorded")
			return nil
		}

		printRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

func printRuns(out io.Writer, runs []store.Run) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tELAPSED\tTASKS\tFAILED\tRECORDS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.ID),
			r.Status,
			r.StartedAt.Format(time.RFC3339),
			runElapsed(r),
			r.Tasks,
			r.TasksFailed,
			p.Sprintf("%d", r.Records),
		)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runElapsed(r store.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
}
