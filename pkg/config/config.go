package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "CANTINE_"

// Config holds the trainer configuration
type Config struct {
	Root      string `yaml:"root" env:"ROOT"`
	DataPath  string `yaml:"data_path" env:"DATA_PATH"`
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
	CacheDir  string `yaml:"cache_dir" env:"CACHE_DIR"`

	Seed           int64   `yaml:"seed" env:"SEED"`
	TestSize       float64 `yaml:"test_size" env:"TEST_SIZE"`
	NumTrees       int     `yaml:"num_trees" env:"NUM_TREES"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" env:"MIN_SAMPLES_LEAF"`
	Workers        int     `yaml:"workers" env:"WORKERS"`
	Progress       bool    `yaml:"progress" env:"PROGRESS"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	RunStore     bool   `yaml:"run_store" env:"RUN_STORE"`
	RunStorePath string `yaml:"run_store_path" env:"RUN_STORE_PATH"`

	ElasticsearchURL   string `yaml:"elasticsearch_url" env:"ELASTICSEARCH_URL"`
	ElasticsearchIndex string `yaml:"elasticsearch_index" env:"ELASTICSEARCH_INDEX"`
}

// LoadOptions carries the values supplied on the command line.
type LoadOptions struct {
	Root string // overrides every other source when set
	File string // optional YAML file
}

// Default returns the configuration used when nothing else is supplied
func Default() *Config {
	return &Config{
		DataPath:           filepath.Join("data", "cantine.csv"),
		OutputDir:          "artifacts",
		Seed:               42,
		TestSize:           0.3,
		NumTrees:           300,
		MinSamplesLeaf:     1,
		Workers:            runtime.NumCPU(),
		Progress:           true,
		LogLevel:           "info",
		LogFormat:          "text",
		RunStore:           true,
		ElasticsearchIndex: "cantine-training-runs",
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence, then resolves paths.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := cfg.mergeYAML(opts.File); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if opts.Root != "" {
		cfg.Root = opts.Root
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// resolvePaths anchors every relative path on Root.
func (c *Config) resolvePaths() error {
	if c.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		c.Root = wd
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %q: %w", c.Root, err)
	}
	c.Root = root

	c.DataPath = c.anchor(c.DataPath)
	c.OutputDir = c.anchor(c.OutputDir)

	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.OutputDir, "transform_cache")
	} else {
		c.CacheDir = c.anchor(c.CacheDir)
	}

	if c.RunStorePath == "" {
		c.RunStorePath = filepath.Join(c.OutputDir, "runs.db")
	} else {
		c.RunStorePath = c.anchor(c.RunStorePath)
	}

	return nil
}

func (c *Config) anchor(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("test_size must be in (0, 1), got %v", c.TestSize)
	}
	if c.NumTrees < 1 {
		return fmt.Errorf("num_trees must be at least 1, got %d", c.NumTrees)
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1, got %d", c.MinSamplesLeaf)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}

	return nil
}

// PublishEnabled reports whether runs should be indexed into Elasticsearch
func (c *Config) PublishEnabled() bool {
	return c.ElasticsearchURL != ""
}
