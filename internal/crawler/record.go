package crawler

import (
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Record is the finalized, persisted unit of crawl output. Latitude and
// longitude are either resolved from the candidate's location reference or
// fall back to the cell center, never partially present.
type Record struct {
	Name      string
	Rating    string
	Reviews   string
	Point     orb.Point
	Resolved  bool
	Query     string
	Center    orb.Point
	DistanceM float64
	CrawledAt time.Time
}

// Header returns the sink schema. When includeTimestamp is set a UTC_Time
// column sits between Search Query and CenterLat.
func Header(includeTimestamp bool) []string {
	h := []string{"Name", "Rating", "Number of Reviews", "Latitude", "Longitude", "Search Query"}
	if includeTimestamp {
		h = append(h, "UTC_Time")
	}
	return append(h, "CenterLat", "CenterLon", "Distance_m")
}

// Row renders the record for a sink: coordinates to six decimal places,
// distance to one.
func (r Record) Row(includeTimestamp bool) []string {
	row := []string{
		r.Name,
		r.Rating,
		r.Reviews,
		strconv.FormatFloat(r.Point.Lat(), 'f', 6, 64),
		strconv.FormatFloat(r.Point.Lon(), 'f', 6, 64),
		r.Query,
	}
	if includeTimestamp {
		row = append(row, r.CrawledAt.UTC().Format(time.RFC3339))
	}
	return append(row,
		strconv.FormatFloat(r.Center.Lat(), 'f', 6, 64),
		strconv.FormatFloat(r.Center.Lon(), 'f', 6, 64),
		strconv.FormatFloat(r.DistanceM, 'f', 1, 64),
	)
}
