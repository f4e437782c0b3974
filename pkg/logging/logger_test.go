package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger := New()

	assert.NotNil(t, logger)
	assert.Equal(t, INFO, logger.level)
	assert.Equal(t, "text", logger.format)
	assert.Equal(t, "cantine-trainer", logger.service)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, INFO, ParseLevel("info"))
	assert.Equal(t, WARN, ParseLevel("warn"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig("warn", "text", &buf)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warning")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] visible warning")
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig("debug", "text", &buf)

	logger.Info("split done",
		Component("splitter"),
		Int("train_rows", 14),
		Float("ratio", 0.5),
		String("path", "data/cantine.csv"),
	)

	out := buf.String()
	assert.Contains(t, out, "[INFO] split done")
	assert.Contains(t, out, "component=splitter")
	assert.Contains(t, out, "train_rows=14")
	assert.Contains(t, out, "ratio=0.500")
	assert.Contains(t, out, "path=data/cantine.csv")
	assert.Contains(t, out, "logger_test.go")

	// keys are sorted
	assert.Less(t, strings.Index(out, "path="), strings.Index(out, "ratio="))
	assert.Less(t, strings.Index(out, "ratio="), strings.Index(out, "train_rows="))
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig("info", "JSON", &buf)

	logger.Error("load failed", errors.New("boom"), Component("loader"), RunID("abc"))

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "load failed", entry.Message)
	assert.Equal(t, "boom", entry.Error)
	assert.Equal(t, "loader", entry.Component)
	assert.Equal(t, "abc", entry.RunID)
	assert.Equal(t, "cantine-trainer", entry.Service)
}

func TestFieldLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig("debug", "text", &buf)

	child := logger.WithFields(Component("trainer")).WithFields(Int("trees", 300))
	child.Info("fitting")
	child.Error("failed", errors.New("bad"), Bool("cached", false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "component=trainer")
	assert.Contains(t, lines[0], "trees=300")
	assert.Contains(t, lines[1], `error="bad"`)
	assert.Contains(t, lines[1], "cached=false")
	assert.Equal(t, &buf, child.Output())
}

func TestFieldLogger_DoesNotShareBackingArray(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig("info", "text", &buf)

	base := logger.WithFields(String("a", "1"))
	base.Info("first", String("b", "2"))
	base.Info("second", String("c", "3"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[1], "b=2")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() { logger.Info("nothing") })
}

func TestLogger_Format(t *testing.T) {
	logger := NewFromConfig("info", "JSON", nil)
	assert.Equal(t, "json", logger.Format())
	assert.Equal(t, "json", logger.WithFields(Component("runner")).Format())

	logger.SetFormat("text")
	assert.Equal(t, "text", logger.Format())
}
