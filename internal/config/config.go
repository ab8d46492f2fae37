package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/harrison/filebatch/internal/executor"
	"github.com/harrison/filebatch/internal/logger"
	"github.com/harrison/filebatch/internal/models"
	"gopkg.in/yaml.v3"
)

// HistoryConfig represents the run history store configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath overrides the database location (default: $FILEBATCH_HOME/history.db)
	DBPath string `yaml:"db_path"`

	// KeepRuns is the number of most recent runs kept after each run (0 = keep all)
	KeepRuns int `yaml:"keep_runs"`
}

// FilterConfig represents which files a run considers
type FilterConfig struct {
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	ExcludeDirs    []string `yaml:"exclude_dirs"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
	ExcludeHidden  bool     `yaml:"exclude_hidden"`
	Gitignore      bool     `yaml:"gitignore"`
	MaxDepth       int      `yaml:"max_depth"`
	MinSize        int64    `yaml:"min_size"`
	MaxSize        int64    `yaml:"max_size"`
}

// Config represents filebatch configuration options
type Config struct {
	// Workers is the number of worker goroutines
	Workers int `yaml:"workers"`

	// MaxInFlight bounds submitted-but-uncollected tasks (0 = twice Workers)
	MaxInFlight int `yaml:"max_in_flight"`

	// TaskTimeout is the per-file time budget (0 = none)
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written
	LogDir string `yaml:"log_dir"`

	// DryRun reports what would change without modifying files
	DryRun bool `yaml:"dry_run"`

	History HistoryConfig `yaml:"history"`
	Filter  FilterConfig  `yaml:"filter"`
}

// DefaultExcludeDirs are never descended into unless the configuration replaces them.
var DefaultExcludeDirs = []string{".git", ".hg", ".svn", ".filebatch", "__pycache__", "node_modules"}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Workers:     runtime.NumCPU(),
		MaxInFlight: 0,
		TaskTimeout: 0,
		LogLevel:    "info",
		LogDir:      ".filebatch/logs",
		DryRun:      false,
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   "",
			KeepRuns: 200,
		},
		Filter: FilterConfig{
			ExcludeDirs: append([]string(nil), DefaultExcludeDirs...),
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are strings in YAML ("30s"), so decode through a mirror struct
	type yamlConfig struct {
		Workers     int           `yaml:"workers"`
		MaxInFlight int           `yaml:"max_in_flight"`
		TaskTimeout string        `yaml:"task_timeout"`
		LogLevel    string        `yaml:"log_level"`
		LogDir      string        `yaml:"log_dir"`
		DryRun      bool          `yaml:"dry_run"`
		History     HistoryConfig `yaml:"history"`
		Filter      FilterConfig  `yaml:"filter"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.Workers != 0 {
		cfg.Workers = yamlCfg.Workers
	}
	if yamlCfg.MaxInFlight != 0 {
		cfg.MaxInFlight = yamlCfg.MaxInFlight
	}
	if yamlCfg.TaskTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.TaskTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid task_timeout format %q: %w", yamlCfg.TaskTimeout, err)
		}
		cfg.TaskTimeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.DryRun {
		cfg.DryRun = yamlCfg.DryRun
	}

	// Nested sections merge key by key so absent keys keep their defaults
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["history"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
			if _, exists := section["keep_runs"]; exists {
				cfg.History.KeepRuns = yamlCfg.History.KeepRuns
			}
		}

		if section, ok := rawMap["filter"].(map[string]interface{}); ok {
			f := yamlCfg.Filter
			if _, exists := section["include"]; exists {
				cfg.Filter.Include = f.Include
			}
			if _, exists := section["exclude"]; exists {
				cfg.Filter.Exclude = f.Exclude
			}
			if _, exists := section["exclude_dirs"]; exists {
				cfg.Filter.ExcludeDirs = f.ExcludeDirs
			}
			if _, exists := section["follow_symlinks"]; exists {
				cfg.Filter.FollowSymlinks = f.FollowSymlinks
			}
			if _, exists := section["exclude_hidden"]; exists {
				cfg.Filter.ExcludeHidden = f.ExcludeHidden
			}
			if _, exists := section["gitignore"]; exists {
				cfg.Filter.Gitignore = f.Gitignore
			}
			if _, exists := section["max_depth"]; exists {
				cfg.Filter.MaxDepth = f.MaxDepth
			}
			if _, exists := section["min_size"]; exists {
				cfg.Filter.MinSize = f.MinSize
			}
			if _, exists := section["max_size"]; exists {
				cfg.Filter.MaxSize = f.MaxSize
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .filebatch/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".filebatch", "config.yaml"))
}

// Overrides carries CLI flag values. Nil fields leave the configuration untouched.
type Overrides struct {
	Workers        *int
	MaxInFlight    *int
	TaskTimeout    *time.Duration
	LogLevel       *string
	LogDir         *string
	DryRun         *bool
	NoHistory      *bool
	Include        *[]string
	Exclude        *[]string
	ExcludeDirs    *[]string
	FollowSymlinks *bool
	ExcludeHidden  *bool
	Gitignore      *bool
	MaxDepth       *int
	MinSize        *int64
	MaxSize        *int64
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// Extra exclude dirs from flags add to the configured ones rather than replace them
func (c *Config) MergeWithFlags(o Overrides) {
	if o.Workers != nil {
		c.Workers = *o.Workers
	}
	if o.MaxInFlight != nil {
		c.MaxInFlight = *o.MaxInFlight
	}
	if o.TaskTimeout != nil {
		c.TaskTimeout = *o.TaskTimeout
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.LogDir != nil {
		c.LogDir = *o.LogDir
	}
	if o.DryRun != nil {
		c.DryRun = *o.DryRun
	}
	if o.NoHistory != nil && *o.NoHistory {
		c.History.Enabled = false
	}
	if o.Include != nil {
		c.Filter.Include = *o.Include
	}
	if o.Exclude != nil {
		c.Filter.Exclude = *o.Exclude
	}
	if o.ExcludeDirs != nil {
		c.Filter.ExcludeDirs = append(c.Filter.ExcludeDirs, *o.ExcludeDirs...)
	}
	if o.FollowSymlinks != nil {
		c.Filter.FollowSymlinks = *o.FollowSymlinks
	}
	if o.ExcludeHidden != nil {
		c.Filter.ExcludeHidden = *o.ExcludeHidden
	}
	if o.Gitignore != nil {
		c.Filter.Gitignore = *o.Gitignore
	}
	if o.MaxDepth != nil {
		c.Filter.MaxDepth = *o.MaxDepth
	}
	if o.MinSize != nil {
		c.Filter.MinSize = *o.MinSize
	}
	if o.MaxSize != nil {
		c.Filter.MaxSize = *o.MaxSize
	}
}

// EffectiveMaxInFlight resolves the in-flight bound, defaulting to twice the worker count.
func (c *Config) EffectiveMaxInFlight() int {
	if c.MaxInFlight == 0 {
		return 2 * c.Workers
	}
	return c.MaxInFlight
}

// FilterRule builds the walker's filter rule. Include suffixes from the
// configuration win over defaults; when none are configured, fallback is used.
func (c *Config) FilterRule(fallbackInclude []string) models.FilterRule {
	include := c.Filter.Include
	if len(include) == 0 {
		include = fallbackInclude
	}
	return models.NewFilterRule(models.RuleOptions{
		Include:          include,
		Exclude:          c.Filter.Exclude,
		ExcludeDirs:      c.Filter.ExcludeDirs,
		FollowSymlinks:   c.Filter.FollowSymlinks,
		ExcludeHidden:    c.Filter.ExcludeHidden,
		RespectGitignore: c.Filter.Gitignore,
		MaxDepth:         c.Filter.MaxDepth,
		MinSize:          c.Filter.MinSize,
		MaxSize:          c.Filter.MaxSize,
	})
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.MaxInFlight != 0 && c.MaxInFlight < c.Workers {
		return fmt.Errorf("max_in_flight must be >= workers (%d), got %d", c.Workers, c.MaxInFlight)
	}
	if c.MaxInFlight > executor.MaxInFlightLimit {
		return fmt.Errorf("max_in_flight must be <= %d, got %d", executor.MaxInFlightLimit, c.MaxInFlight)
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("task_timeout must be >= 0, got %v", c.TaskTimeout)
	}

	if !logger.ValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Filter.MaxDepth < 0 {
		return fmt.Errorf("filter.max_depth must be >= 0, got %d", c.Filter.MaxDepth)
	}
	if c.Filter.MinSize < 0 || c.Filter.MaxSize < 0 {
		return fmt.Errorf("filter sizes must be >= 0")
	}
	if c.Filter.MaxSize > 0 && c.Filter.MinSize > c.Filter.MaxSize {
		return fmt.Errorf("filter.min_size (%d) exceeds filter.max_size (%d)", c.Filter.MinSize, c.Filter.MaxSize)
	}

	if c.History.KeepRuns < 0 {
		return fmt.Errorf("history.keep_runs must be >= 0, got %d", c.History.KeepRuns)
	}

	return nil
}
