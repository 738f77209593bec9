package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Inlionden/siteselection/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the combined dataset to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("dataset"); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = filepath.Join(cfg.Output.Dir, "dataset.xlsx")
		}

		in := cfg.Output.CombinedPath()
		rows, err := export.ToXLSX(in, out, "dataset")
		if err != nil {
			return eris.Wrap(err, "export")
		}

		zap.L().Info("dataset exported",
			zap.String("in", in),
			zap.String("out", out),
			zap.Int("rows", rows),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output workbook path (default <output.dir>/dataset.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
