// Package config loads application configuration and initializes logging.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. It is read once at
// startup and never mutated by the crawl engine.
type Config struct {
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Grid    GridConfig    `yaml:"grid" mapstructure:"grid"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`

	// Categories is loaded from Search.CategoriesFile when set, otherwise
	// the built-in default mapping applies.
	Categories []Category `yaml:"-" mapstructure:"-"`
}

// OutputConfig configures where sinks and artifacts live.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CombinedPath is the combined dataset sink receiving every record.
func (o OutputConfig) CombinedPath() string {
	return filepath.Join(o.Dir, "dataset.csv")
}

// CategoriesDir holds per-category sinks and snapshot artifacts.
func (o OutputConfig) CategoriesDir() string {
	return filepath.Join(o.Dir, "categories")
}

// CleanPath is where the cleaned dataset is written.
func (o OutputConfig) CleanPath() string {
	return filepath.Join(o.Dir, "updated_dataset1.csv")
}

// GridConfig describes the crawl rectangle and its step sizes in degrees.
type GridConfig struct {
	StartLat float64 `yaml:"start_lat" mapstructure:"start_lat"`
	StartLon float64 `yaml:"start_lon" mapstructure:"start_lon"`
	EndLat   float64 `yaml:"end_lat" mapstructure:"end_lat"`
	EndLon   float64 `yaml:"end_lon" mapstructure:"end_lon"`
	StepLat  float64 `yaml:"step_lat" mapstructure:"step_lat"`
	StepLon  float64 `yaml:"step_lon" mapstructure:"step_lon"`
}

// SearchConfig configures query construction and crawl pacing.
type SearchConfig struct {
	Zoom             int     `yaml:"zoom" mapstructure:"zoom"`
	MaxResults       int     `yaml:"max_results" mapstructure:"max_results"`
	PolitenessRPS    float64 `yaml:"politeness_rps" mapstructure:"politeness_rps"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	Screenshots      bool    `yaml:"screenshots" mapstructure:"screenshots"`
	IncludeTimestamp bool    `yaml:"include_timestamp" mapstructure:"include_timestamp"`
	CategoriesFile   string  `yaml:"categories_file" mapstructure:"categories_file"`
}

// BrowserConfig configures the headless browsing sessions.
type BrowserConfig struct {
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	SettleDelaySecs int    `yaml:"settle_delay_secs" mapstructure:"settle_delay_secs"`
	NavTimeoutSecs  int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// StoreConfig configures the crawl run log database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only dataset API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Category maps a category name to its ordered list of search terms. Term
// order drives traversal order within a grid cell.
type Category struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// DefaultCategories is the built-in category mapping used when no
// categories file is configured.
func DefaultCategories() []Category {
	return []Category{{
		Name:  "Event Venue",
		Terms: []string{"Conference Center", "Convention Center", "Stadium", "Arena"},
	}}
}

// Load reads configuration from config.yaml and SITESELECTION_* environment
// variables, then resolves the category mapping.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITESELECTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults mirror the historical crawl area and pacing.
	v.SetDefault("output.dir", "Dataset")
	v.SetDefault("grid.start_lat", 38.836359)
	v.SetDefault("grid.start_lon", -77.048358)
	v.SetDefault("grid.end_lat", 38.974690)
	v.SetDefault("grid.end_lon", -77.013404)
	v.SetDefault("grid.step_lat", 0.02)
	v.SetDefault("grid.step_lon", 0.02)
	v.SetDefault("search.zoom", 15)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.politeness_rps", 1.0)
	v.SetDefault("search.workers", 1)
	v.SetDefault("search.screenshots", true)
	v.SetDefault("search.include_timestamp", false)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.settle_delay_secs", 3)
	v.SetDefault("browser.nav_timeout_secs", 60)
	v.SetDefault("store.path", filepath.Join("Dataset", "runs.db"))
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	cats, err := LoadCategories(cfg.Search.CategoriesFile)
	if err != nil {
		return nil, err
	}
	cfg.Categories = cats

	return &cfg, nil
}

// LoadCategories reads the ordered category mapping from a YAML file of the
// shape:
//
//	categories:
//	  - name: Event Venue
//	    terms: [Conference Center, Stadium]
//
// Viper is deliberately not used here: it decodes maps with unordered keys,
// and term order matters for traversal determinism. An empty path returns
// the built-in defaults.
func LoadCategories(path string) ([]Category, error) {
	if path == "" {
		return DefaultCategories(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read categories %s", path)
	}

	var wrapper struct {
		Categories []Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "config: parse categories %s", path)
	}
	if len(wrapper.Categories) == 0 {
		return nil, eris.Errorf("config: no categories in %s", path)
	}
	for _, c := range wrapper.Categories {
		if c.Name == "" || len(c.Terms) == 0 {
			return nil, eris.Errorf("config: every category needs a name and terms in %s", path)
		}
	}
	return wrapper.Categories, nil
}

// Validate checks the configuration required by a command group.
func (c *Config) Validate(section string) error {
	switch section {
	case "crawl":
		if c.Grid.StepLat <= 0 || c.Grid.StepLon <= 0 {
			return eris.New("config: grid step sizes must be positive")
		}
		if c.Grid.EndLat < c.Grid.StartLat || c.Grid.EndLon < c.Grid.StartLon {
			return eris.New("config: grid end must not precede start")
		}
		if c.Search.MaxResults <= 0 {
			return eris.New("config: search.max_results must be positive")
		}
		if c.Search.Workers < 1 || c.Search.Workers > 16 {
			return eris.New("config: search.workers must be between 1 and 16")
		}
		if len(c.Categories) == 0 {
			return eris.New("config: at least one category is required")
		}
	case "dataset":
		if c.Output.Dir == "" {
			return eris.New("config: output.dir is required")
		}
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return eris.Errorf("config: invalid server port %d", c.Server.Port)
		}
	default:
		return eris.Errorf("config: unknown validation section %q", section)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
