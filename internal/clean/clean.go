// Package clean implements the post-crawl cleaning step: duplicate removal
// and mean imputation of missing coordinates. It consumes the combined sink
// verbatim and never touches the crawl output in place.
package clean

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
)

// Result summarizes one cleaning pass.
type Result struct {
	RowsIn       int
	Duplicates   int
	ImputedCells int
	RowsOut      int
}

// Clean reads the combined dataset at inPath and writes the cleaned dataset
// to outPath. Duplicate rows (full-row identity) are dropped keeping the
// first occurrence, non-numeric Latitude/Longitude values become missing,
// and missing coordinates are filled with the per-column mean of the valid
// values. When a column has no valid values at all, its missing entries are
// left as-is.
func Clean(inPath, outPath string) (*Result, error) {
	f, err := os.Open(inPath)
	if err != nil {
		return nil, eris.Wrapf(err, "clean: open %s", inPath)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "clean: read %s", inPath)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("clean: %s is empty", inPath)
	}

	header := rows[0]
	data := rows[1:]
	res := &Result{RowsIn: len(data)}

	deduped := dropDuplicates(data)
	res.Duplicates = len(data) - len(deduped)

	latIdx := indexOf(header, "Latitude")
	lonIdx := indexOf(header, "Longitude")
	for _, idx := range []int{latIdx, lonIdx} {
		if idx >= 0 {
			res.ImputedCells += imputeColumn(deduped, idx)
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return nil, eris.Wrapf(err, "clean: create %s", outPath)
	}

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		_ = out.Close()
		return nil, eris.Wrap(err, "clean: write header")
	}
	for _, row := range deduped {
		if err := w.Write(row); err != nil {
			_ = out.Close()
			return nil, eris.Wrap(err, "clean: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = out.Close()
		return nil, eris.Wrapf(err, "clean: flush %s", outPath)
	}
	if err := out.Close(); err != nil {
		return nil, eris.Wrapf(err, "clean: close %s", outPath)
	}

	res.RowsOut = len(deduped)
	return res, nil
}

func dropDuplicates(rows [][]string) [][]string {
	seen := make(map[string]struct{}, len(rows))
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// rowKey joins fields with a separator that cannot occur inside CSV fields
// read by encoding/csv (unit separator).
func rowKey(row []string) string {
	key := ""
	for i, field := range row {
		if i > 0 {
			key += "\x1f"
		}
		key += field
	}
	return key
}

// imputeColumn replaces non-numeric values in column idx with the mean of
// the numeric ones, rendered to six decimal places. Returns the number of
// cells changed.
func imputeColumn(rows [][]string, idx int) int {
	var (
		sum   float64
		count int
	)
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if v, err := strconv.ParseFloat(row[idx], 64); err == nil {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}

	mean := sum / float64(count)
	imputed := 0
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if _, err := strconv.ParseFloat(row[idx], 64); err != nil {
			row[idx] = strconv.FormatFloat(mean, 'f', 6, 64)
			imputed++
		}
	}
	return imputed
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
