package crawler

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Inlionden/siteselection/internal/browser"
	"github.com/Inlionden/siteselection/internal/config"
	"github.com/Inlionden/siteselection/internal/sink"
)

// fakeFetcher serves canned markup per search term and records snapshots.
type fakeFetcher struct {
	markupFor func(url string) (string, error)
	snapshots []string
}

func (f *fakeFetcher) FetchListing(_ context.Context, url string) (string, error) {
	return f.markupFor(url)
}

func (f *fakeFetcher) CaptureSnapshot(_ context.Context, path string) error {
	f.snapshots = append(f.snapshots, path)
	return nil
}

// fakePool hands out a single fake fetcher without concurrency limits.
type fakePool struct {
	fetcher *fakeFetcher
}

func (p *fakePool) Acquire(context.Context) (browser.Fetcher, error) { return p.fetcher, nil }

func (p *fakePool) Release(browser.Fetcher) {}

func listingMarkup(entries ...[3]string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, e := range entries {
		fmt.Fprintf(&b, `<div class="Nv2PK">
			<a href=%q></a>
			<div class="qBF1Pd">%s</div>
			<span class="MW4etd">4.2</span>
			<span class="UY7F9">(%s)</span>
		</div>`, e[1], e[0], e[2])
	}
	b.WriteString("</body></html>")
	return b.String()
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Rect:          Rect{StartLat: 38.84, StartLon: -77.05, EndLat: 38.84, EndLon: -77.05, StepLat: 0.02, StepLon: 0.02},
		Categories:    []config.Category{{Name: "Event Venue", Terms: []string{"Arena"}}},
		Output:        config.OutputConfig{Dir: t.TempDir()},
		Zoom:          15,
		MaxResults:    10,
		Workers:       1,
		PolitenessRPS: 1000,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRun_WritesBothSinks(t *testing.T) {
	opts := testOptions(t)
	markup := listingMarkup(
		[3]string{"Resolved Arena", "/maps/place/Resolved+Arena/@38.900000,-77.030000,15z", "120"},
	)
	pool := &fakePool{fetcher: &fakeFetcher{markupFor: func(string) (string, error) { return markup, nil }}}

	res, err := New(pool, sink.NewSet(), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cells)
	assert.Equal(t, 1, res.Tasks)
	assert.Equal(t, 0, res.TasksFailed)
	assert.Equal(t, 1, res.Records)

	combined := readCSV(t, opts.Output.CombinedPath())
	require.Len(t, combined, 2)
	assert.Equal(t, Header(false), combined[0])

	row := combined[1]
	assert.Equal(t, "Resolved Arena", row[0])
	assert.Equal(t, "4.2", row[1])
	assert.Equal(t, "120", row[2])
	assert.Equal(t, "38.900000", row[3])
	assert.Equal(t, "-77.030000", row[4])
	assert.Equal(t, "Arena", row[5])
	assert.Equal(t, "38.840000", row[6])
	assert.Equal(t, "-77.050000", row[7])
	assert.NotEqual(t, "0.0", row[8], "resolved point away from center has distance")

	perCategory := readCSV(t, filepath.Join(opts.Output.CategoriesDir(), "Event_Venue", "Arena.csv"))
	require.Len(t, perCategory, 2)
	assert.Equal(t, combined[1], perCategory[1])
}

func TestRun_FallbackToCellCenter(t *testing.T) {
	opts := testOptions(t)
	markup := listingMarkup([3]string{"No Coords Venue", "/relative/link", "5"})
	pool := &fakePool{fetcher: &fakeFetcher{markupFor: func(string) (string, error) { return markup, nil }}}

	_, err := New(pool, sink.NewSet(), opts).Run(context.Background())
	require.NoError(t, err)

	combined := readCSV(t, opts.Output.CombinedPath())
	require.Len(t, combined, 2)
	row := combined[1]
	assert.Equal(t, "38.840000", row[3], "latitude falls back to cell center")
	assert.Equal(t, "-77.050000", row[4], "longitude falls back to cell center")
	assert.Equal(t, "0.0", row[8], "fallback records carry zero distance")
}

func TestRun_TaskFailureDoesNotAbort(t *testing.T) {
	opts := testOptions(t)
	opts.Categories = []config.Category{{Name: "Event Venue", Terms: []string{"Stadium", "Arena"}}}

	markup := listingMarkup([3]string{"Good Venue", "/maps/place/g/@38.850000,-77.040000,15z", "9"})
	fetcher := &fakeFetcher{markupFor: func(url string) (string, error) {
		if strings.Contains(url, "Stadium") {
			return "", fmt.Errorf("navigation failed")
		}
		return markup, nil
	}}

	c := New(&fakePool{fetcher: fetcher}, sink.NewSet(), opts)
	c.retry.MaxAttempts = 1
	c.retry.InitialBackoff = 1

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TasksFailed)
	assert.Equal(t, 1, res.Records)

	combined := readCSV(t, opts.Output.CombinedPath())
	require.Len(t, combined, 2)
	assert.Equal(t, "Good Venue", combined[1][0])
}

func TestRun_EmptyListingStillCreatesCombinedHeader(t *testing.T) {
	opts := testOptions(t)
	pool := &fakePool{fetcher: &fakeFetcher{markupFor: func(string) (string, error) {
		return "<html><body></body></html>", nil
	}}}

	res, err := New(pool, sink.NewSet(), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Records)

	combined := readCSV(t, opts.Output.CombinedPath())
	require.Len(t, combined, 1)
	assert.Equal(t, Header(false), combined[0])

	// No per-category sink is created for an empty listing.
	assert.NoFileExists(t, filepath.Join(opts.Output.CategoriesDir(), "Event_Venue", "Arena.csv"))
}

func TestRun_CapsResultsPerQuery(t *testing.T) {
	opts := testOptions(t)
	opts.MaxResults = 3

	var entries [][3]string
	for i := 0; i < 8; i++ {
		entries = append(entries, [3]string{
			fmt.Sprintf("Venue %d", i),
			fmt.Sprintf("/maps/place/v%d/@38.850000,-77.040000,15z", i),
			"1",
		})
	}
	markup := listingMarkup(entries...)
	pool := &fakePool{fetcher: &fakeFetcher{markupFor: func(string) (string, error) { return markup, nil }}}

	res, err := New(pool, sink.NewSet(), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Records)
}

func TestRun_SnapshotsWhenEnabled(t *testing.T) {
	opts := testOptions(t)
	opts.Screenshots = true

	fetcher := &fakeFetcher{markupFor: func(string) (string, error) {
		return "<html><body></body></html>", nil
	}}
	_, err := New(&fakePool{fetcher: fetcher}, sink.NewSet(), opts).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fetcher.snapshots, 1)
	assert.Contains(t, fetcher.snapshots[0], "shot_r0_c0_38.840000_-77.050000.png")
}

func TestRun_ResumeAppendsWithoutDuplicateHeader(t *testing.T) {
	opts := testOptions(t)
	markup := listingMarkup([3]string{"Venue", "/maps/place/v/@38.850000,-77.040000,15z", "1"})
	pool := &fakePool{fetcher: &fakeFetcher{markupFor: func(string) (string, error) { return markup, nil }}}

	_, err := New(pool, sink.NewSet(), opts).Run(context.Background())
	require.NoError(t, err)
	_, err = New(pool, sink.NewSet(), opts).Run(context.Background())
	require.NoError(t, err)

	combined := readCSV(t, opts.Output.CombinedPath())
	require.Len(t, combined, 3, "one header, one row per run")
	assert.Equal(t, Header(false), combined[0])
	assert.NotEqual(t, Header(false), combined[1])
}

func TestRun_NoTasks(t *testing.T) {
	opts := testOptions(t)
	opts.Categories = nil

	_, err := New(&fakePool{fetcher: &fakeFetcher{}}, sink.NewSet(), opts).Run(context.Background())
	assert.Error(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	opts := testOptions(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	markup := listingMarkup([3]string{"Venue", "/maps/place/v", "1"})
	pool := &fakePool{fetcher: &fakeFetcher{markupFor: func(string) (string, error) { return markup, nil }}}

	_, err := New(pool, sink.NewSet(), opts).Run(ctx)
	assert.Error(t, err)
}
