package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults tests that an empty environment reproduces the fixed training setup
func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(LoadOptions{Root: root})
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, filepath.Join(root, "data", "cantine.csv"), cfg.DataPath)
	assert.Equal(t, filepath.Join(root, "artifacts"), cfg.OutputDir)
	assert.Equal(t, filepath.Join(root, "artifacts", "transform_cache"), cfg.CacheDir)
	assert.Equal(t, filepath.Join(root, "artifacts", "runs.db"), cfg.RunStorePath)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 0.3, cfg.TestSize)
	assert.Equal(t, 300, cfg.NumTrees)
	assert.Equal(t, 1, cfg.MinSamplesLeaf)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.RunStore)
	assert.False(t, cfg.PublishEnabled())
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

// TestLoadPrecedence tests env > yaml > defaults
func TestLoadPrecedence(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "train.yaml")
	yamlDoc := `
num_trees: 50
log_level: debug
output_dir: out
elasticsearch_url: http://localhost:9200
`
	require.NoError(t, os.WriteFile(file, []byte(yamlDoc), 0644))

	t.Setenv("CANTINE_NUM_TREES", "25")
	t.Setenv("CANTINE_TEST_SIZE", "0.25")

	cfg, err := Load(LoadOptions{Root: root, File: file})
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.NumTrees, "env should win over yaml")
	assert.Equal(t, 0.25, cfg.TestSize)
	assert.Equal(t, "debug", cfg.LogLevel, "yaml should win over defaults")
	assert.Equal(t, filepath.Join(root, "out"), cfg.OutputDir)
	assert.Equal(t, filepath.Join(root, "out", "transform_cache"), cfg.CacheDir)
	assert.True(t, cfg.PublishEnabled())
}

func TestLoadRootFlagWinsOverEnv(t *testing.T) {
	flagRoot := t.TempDir()
	t.Setenv("CANTINE_ROOT", t.TempDir())

	cfg, err := Load(LoadOptions{Root: flagRoot})
	require.NoError(t, err)
	assert.Equal(t, flagRoot, cfg.Root)
}

func TestLoadAbsolutePathsKept(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(t.TempDir(), "survey.csv")
	t.Setenv("CANTINE_DATA_PATH", data)

	cfg, err := Load(LoadOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, data, cfg.DataPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(LoadOptions{Root: t.TempDir(), File: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"test size zero", func(c *Config) { c.TestSize = 0 }, "test_size"},
		{"test size one", func(c *Config) { c.TestSize = 1 }, "test_size"},
		{"no trees", func(c *Config) { c.NumTrees = 0 }, "num_trees"},
		{"leaf size", func(c *Config) { c.MinSamplesLeaf = 0 }, "min_samples_leaf"},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg := Default()
	cfg.Workers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Workers)
}
