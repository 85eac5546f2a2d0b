// Package common provides shared configuration, logging and utilities.
package common

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration. It is loaded once at startup
// and passed by value into constructors; nothing mutates it after a run
// starts.
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig     `toml:"logging"`
	Storage     StorageConfig     `toml:"storage"`
	Source      SourceConfig      `toml:"source"`
	Writer      WriterConfig      `toml:"writer"`
	Batch       BatchConfig       `toml:"batch"`
	Schedule    ScheduleConfig    `toml:"schedule"`
	Groups      GroupsConfig      `toml:"groups"`
	Indicators  []IndicatorConfig `toml:"indicators"`
	Derived     []DerivedConfig   `toml:"derived"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Type   string          `toml:"type" validate:"oneof=badger file"`
	Badger BadgerConfig    `toml:"badger"`
	File   FileStoreConfig `toml:"file"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// FileStoreConfig configures the per-instrument tabular cache layout.
type FileStoreConfig struct {
	Path string `toml:"path"`
}

type SourceConfig struct {
	Type string `toml:"type" validate:"oneof=file api"`
	// Dir is the directory of per-instrument CSV files (type = "file").
	Dir string `toml:"dir"`
	// API settings (type = "api").
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit" validate:"gte=0"` // requests per second
}

type WriterConfig struct {
	Type       string           `toml:"type" validate:"oneof=none sqlite clickhouse"`
	SQLitePath string           `toml:"sqlite_path"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
}

type ClickHouseConfig struct {
	Addr     string `toml:"addr"`
	Database string `toml:"database"`
	Table    string `toml:"table"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type BatchConfig struct {
	Concurrency  int  `toml:"concurrency" validate:"gt=0"`
	ForceRebuild bool `toml:"force_rebuild"`

	// Tolerance is the numerical tolerance for the warm-up identity check
	// during incremental merges.
	Tolerance float64 `toml:"tolerance" validate:"gte=0"`
}

type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"` // cron expression for scheduled runs
}

// GroupsConfig points at the directory of threshold-group YAML files.
type GroupsConfig struct {
	Dir string `toml:"dir"`
}

// IndicatorConfig declares one indicator family with its window periods.
// The set of configurations is resolved once at run start; indicator columns
// are never discovered dynamically.
type IndicatorConfig struct {
	Family     string `toml:"family" validate:"required"`
	Periods    []int  `toml:"periods" validate:"dive,gt=0"`
	Annualized bool   `toml:"annualized"`
}

// DerivedConfig declares a derived difference field between two computed
// fields, e.g. wma_diff_5_20 = wma_5 - wma_20.
type DerivedConfig struct {
	Name       string `toml:"name" validate:"required"`
	Minuend    string `toml:"minuend" validate:"required"`
	Subtrahend string `toml:"subtrahend" validate:"required"`
	Percent    bool   `toml:"percent"`
}

// NewDefaultConfig returns the built-in defaults, matching the daily-update
// use case: badger cache, file source, no result writer.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data/cache",
			},
			File: FileStoreConfig{
				Path: "./data/cache",
			},
		},
		Source: SourceConfig{
			Type:      "file",
			Dir:       "./data/source",
			RateLimit: 10,
		},
		Writer: WriterConfig{
			Type: "none",
		},
		Batch: BatchConfig{
			Concurrency: 8,
			Tolerance:   1e-6,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "30 17 * * 1-5", // weekdays after market close
		},
		Groups: GroupsConfig{
			Dir: "./groups",
		},
		Indicators: []IndicatorConfig{
			{Family: "wma", Periods: []int{3, 5, 10, 20}},
			{Family: "ema", Periods: []int{12, 26}},
			{Family: "vol", Periods: []int{10, 20, 30}, Annualized: true},
			{Family: "vma", Periods: []int{5, 10}},
			{Family: "obv"},
		},
		Derived: []DerivedConfig{
			{Name: "wma_diff_5_20", Minuend: "wma_5", Subtrahend: "wma_20"},
			{Name: "wma_diff_5_20_pct", Minuend: "wma_5", Subtrahend: "wma_20", Percent: true},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 ->
// file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads a single config file (or pure defaults when path is "").
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// applyEnvOverrides applies METIOR_* environment variable overrides, the
// highest priority configuration source below CLI flags.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("METIOR_ENV"); env != "" {
		config.Environment = env
	}
	if level := os.Getenv("METIOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if dir := os.Getenv("METIOR_SOURCE_DIR"); dir != "" {
		config.Source.Dir = dir
	}
	if key := os.Getenv("METIOR_API_KEY"); key != "" {
		config.Source.APIKey = key
	}
	if path := os.Getenv("METIOR_CACHE_PATH"); path != "" {
		config.Storage.Badger.Path = path
		config.Storage.File.Path = path
	}
	if v := os.Getenv("METIOR_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Batch.Concurrency = n
		}
	}
	if v := os.Getenv("METIOR_FORCE_REBUILD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Batch.ForceRebuild = b
		}
	}
}

// Validate checks the configuration using go-playground/validator plus the
// cross-field rules the tag syntax cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Source.Type == "api" && c.Source.BaseURL == "" {
		return fmt.Errorf("invalid configuration: source.base_url required for api source")
	}
	if c.Writer.Type == "sqlite" && c.Writer.SQLitePath == "" {
		return fmt.Errorf("invalid configuration: writer.sqlite_path required for sqlite writer")
	}
	if c.Writer.Type == "clickhouse" && c.Writer.ClickHouse.Addr == "" {
		return fmt.Errorf("invalid configuration: writer.clickhouse.addr required for clickhouse writer")
	}
	if len(c.Indicators) == 0 {
		return fmt.Errorf("invalid configuration: at least one indicator family required")
	}
	return nil
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
