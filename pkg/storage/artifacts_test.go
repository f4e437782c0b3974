package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
)

type blobModel struct {
	payload string
	err     error
}

func (b blobModel) Save(w io.Writer) error {
	if b.err != nil {
		return b.err
	}
	_, err := io.WriteString(w, b.payload)
	return err
}

func sampleReport() models.ImportanceReport {
	return models.ImportanceReport{Top2: []models.FeatureScore{
		{Name: "satisfaction", Importance: 0.41},
		{Name: "type_repas_vegetarien", Importance: 0.17},
	}}
}

func TestArtifactWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	aw := NewArtifactWriter(dir)

	metrics := models.Metrics{Accuracy: 0.9, Recall: 0.8, F1: 0.75}
	out, err := aw.Write(blobModel{payload: "model-v1"}, metrics, sampleReport())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ModelFile), out.ModelPath)
	assert.Equal(t, filepath.Join(dir, MetricsFile), out.MetricsPath)
	assert.Equal(t, filepath.Join(dir, ImportanceFile), out.ImportancePath)

	blob, err := os.ReadFile(out.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "model-v1", string(blob))

	raw, err := os.ReadFile(out.MetricsPath)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"accuracy\": 0.9,\n  \"recall\": 0.8,\n  \"f1\": 0.75\n}", string(raw))

	gotMetrics, err := ReadMetrics(out.MetricsPath)
	require.NoError(t, err)
	assert.Equal(t, metrics, gotMetrics)

	raw, err = os.ReadFile(out.ImportancePath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\"top2\": [\n    [\n      \"satisfaction\",\n      0.41\n    ],")

	gotReport, err := ReadImportanceReport(out.ImportancePath)
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), gotReport)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files are left behind")
}

func TestArtifactWriter_Overwrites(t *testing.T) {
	dir := t.TempDir()
	aw := NewArtifactWriter(dir)

	_, err := aw.Write(blobModel{payload: "first"}, models.Metrics{Accuracy: 0.5}, sampleReport())
	require.NoError(t, err)
	out, err := aw.Write(blobModel{payload: "second"}, models.Metrics{Accuracy: 0.6}, sampleReport())
	require.NoError(t, err)

	blob, err := os.ReadFile(out.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(blob))

	m, err := ReadMetrics(out.MetricsPath)
	require.NoError(t, err)
	assert.Equal(t, 0.6, m.Accuracy)
}

func TestArtifactWriter_ModelFailure(t *testing.T) {
	dir := t.TempDir()
	aw := NewArtifactWriter(dir)

	_, err := aw.Write(blobModel{err: errors.New("encode failed")}, models.Metrics{}, sampleReport())
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadJSON_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadMetrics(filepath.Join(dir, "absent.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"top2": [["a"]]}`), 0644))
	_, err = ReadImportanceReport(bad)
	assert.Error(t, err)
}
