package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestConfig() *Config {
	return &Config{
		Output: OutputConfig{Dir: "Dataset"},
		Grid: GridConfig{
			StartLat: 38.836359, StartLon: -77.048358,
			EndLat: 38.974690, EndLon: -77.013404,
			StepLat: 0.02, StepLon: 0.02,
		},
		Search: SearchConfig{
			Zoom:          15,
			MaxResults:    10,
			PolitenessRPS: 1.0,
			Workers:       1,
		},
		Server:     ServerConfig{Port: 8080},
		Categories: DefaultCategories(),
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Run from a temp dir so a developer config.yaml is not picked up.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Dataset", cfg.Output.Dir)
	assert.Equal(t, 38.836359, cfg.Grid.StartLat)
	assert.Equal(t, 0.02, cfg.Grid.StepLat)
	assert.Equal(t, 15, cfg.Search.Zoom)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 1, cfg.Search.Workers)
	assert.True(t, cfg.Search.Screenshots)
	assert.False(t, cfg.Search.IncludeTimestamp)
	assert.Equal(t, 3, cfg.Browser.SettleDelaySecs)
	assert.Equal(t, "info", cfg.Log.Level)
	require.Len(t, cfg.Categories, 1)
	assert.Equal(t, "Event Venue", cfg.Categories[0].Name)
	assert.Equal(t, []string{"Conference Center", "Convention Center", "Stadium", "Arena"}, cfg.Categories[0].Terms)
}

func TestOutputPaths(t *testing.T) {
	o := OutputConfig{Dir: "Dataset"}
	assert.Equal(t, filepath.Join("Dataset", "dataset.csv"), o.CombinedPath())
	assert.Equal(t, filepath.Join("Dataset", "categories"), o.CategoriesDir())
	assert.Equal(t, filepath.Join("Dataset", "updated_dataset1.csv"), o.CleanPath())
}

func TestLoadCategories_OrderPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := `categories:
  - name: Event Venue
    terms: [Stadium, Arena]
  - name: Hotel
    terms: [Hotel, Motel, Hostel]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cats, err := LoadCategories(path)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Event Venue", cats[0].Name)
	assert.Equal(t, []string{"Stadium", "Arena"}, cats[0].Terms)
	assert.Equal(t, "Hotel", cats[1].Name)
	assert.Equal(t, []string{"Hotel", "Motel", "Hostel"}, cats[1].Terms)
}

func TestLoadCategories_EmptyPathUsesDefaults(t *testing.T) {
	cats, err := LoadCategories("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCategories(), cats)
}

func TestLoadCategories_MissingFile(t *testing.T) {
	_, err := LoadCategories(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadCategories_EmptyMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: []\n"), 0o644))

	_, err := LoadCategories(path)
	assert.Error(t, err)
}

func TestValidateCrawl_OK(t *testing.T) {
	assert.NoError(t, defaultTestConfig().Validate("crawl"))
}

func TestValidateCrawl_BadStep(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Grid.StepLat = 0
	assert.Error(t, cfg.Validate("crawl"))
}

func TestValidateCrawl_InvertedBounds(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Grid.EndLat = cfg.Grid.StartLat - 1
	assert.Error(t, cfg.Validate("crawl"))
}

func TestValidateCrawl_WorkerBounds(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Search.Workers = 0
	assert.Error(t, cfg.Validate("crawl"))

	cfg.Search.Workers = 17
	assert.Error(t, cfg.Validate("crawl"))
}

func TestValidateCrawl_NoCategories(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Categories = nil
	assert.Error(t, cfg.Validate("crawl"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate("serve"))
}

func TestValidateUnknownSection(t *testing.T) {
	assert.Error(t, defaultTestConfig().Validate("bogus"))
}
