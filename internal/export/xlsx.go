// Package export converts crawl datasets to spreadsheet formats.
package export

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ToXLSX converts the CSV dataset at inPath into an XLSX workbook with a
// single sheet. Returns the number of data rows written (header excluded).
func ToXLSX(inPath, outPath, sheetName string) (int, error) {
	f, err := os.Open(inPath)
	if err != nil {
		return 0, eris.Wrapf(err, "export: open %s", inPath)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return 0, eris.Wrapf(err, "export: read %s", inPath)
	}
	if len(rows) == 0 {
		return 0, eris.Errorf("export: %s is empty", inPath)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return 0, eris.Wrapf(err, "export: add sheet %s", sheetName)
	}

	for _, row := range rows {
		out := sheet.AddRow()
		for _, field := range row {
			out.AddCell().Value = field
		}
	}

	if err := file.Save(outPath); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", outPath)
	}
	return len(rows) - 1, nil
}
