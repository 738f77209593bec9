package crawler

import (
	"github.com/paulmach/orb"

	"github.com/Inlionden/siteselection/internal/config"
)

// boundEpsilon absorbs floating-point drift so end bounds stay inclusive.
const boundEpsilon = 1e-12

// Rect is the crawl rectangle with per-axis step sizes in degrees.
type Rect struct {
	StartLat float64
	StartLon float64
	EndLat   float64
	EndLon   float64
	StepLat  float64
	StepLon  float64
}

// Bound returns the rectangle as an orb bound (south-west to north-east).
func (r Rect) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.StartLon, r.StartLat},
		Max: orb.Point{r.EndLon, r.EndLat},
	}
}

// Cell is one sampled center point of the crawl rectangle, identified by
// its row/column index. Immutable once produced.
type Cell struct {
	Row    int
	Col    int
	Center orb.Point
}

func (c Cell) Lat() float64 { return c.Center.Lat() }
func (c Cell) Lon() float64 { return c.Center.Lon() }

// Cells generates the grid in row-major order: ascending latitude outer,
// ascending longitude inner. End bounds are inclusive up to boundEpsilon.
// Non-positive steps yield no cells.
func Cells(r Rect) []Cell {
	if r.StepLat <= 0 || r.StepLon <= 0 {
		return nil
	}

	var cells []Cell
	row := 0
	for lat := r.StartLat; lat <= r.EndLat+boundEpsilon; lat += r.StepLat {
		col := 0
		for lon := r.StartLon; lon <= r.EndLon+boundEpsilon; lon += r.StepLon {
			cells = append(cells, Cell{Row: row, Col: col, Center: orb.Point{lon, lat}})
			col++
		}
		row++
	}
	return cells
}

// Task pairs one grid cell with one category query term. One task yields
// zero or more records; tasks carry no identity beyond their triple.
type Task struct {
	Category string
	Term     string
	Cell     Cell
}

// Tasks crosses cells with the ordered category mapping. Cell order is
// outermost so a crawl finishes an area before moving north.
func Tasks(cells []Cell, categories []config.Category) []Task {
	var tasks []Task
	for _, cell := range cells {
		for _, cat := range categories {
			for _, term := range cat.Terms {
				tasks = append(tasks, Task{Category: cat.Name, Term: term, Cell: cell})
			}
		}
	}
	return tasks
}
