// Package storage persists training outputs: the model blob, the JSON
// reports and the on-disk transformer cache.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
)

// Artifact file names inside the output directory
const (
	ModelFile      = "model.gob"
	MetricsFile    = "metrics.json"
	ImportanceFile = "feature_importances_top2.json"
)

// ModelEncoder is anything that can serialize a fitted model
type ModelEncoder interface {
	Save(w io.Writer) error
}

// Artifacts lists the files written for one run
type Artifacts struct {
	ModelPath      string
	MetricsPath    string
	ImportancePath string
}

// ArtifactWriter writes run outputs under Dir, replacing earlier ones
type ArtifactWriter struct {
	Dir string
}

// NewArtifactWriter creates a writer for dir
func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{Dir: dir}
}

// Write creates Dir if needed and writes the model, the metrics and the
// importance report.
func (aw *ArtifactWriter) Write(model ModelEncoder, metrics models.Metrics, report models.ImportanceReport) (*Artifacts, error) {
	if err := os.MkdirAll(aw.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	out := &Artifacts{
		ModelPath:      filepath.Join(aw.Dir, ModelFile),
		MetricsPath:    filepath.Join(aw.Dir, MetricsFile),
		ImportancePath: filepath.Join(aw.Dir, ImportanceFile),
	}

	if err := writeModel(out.ModelPath, model); err != nil {
		return nil, err
	}
	if err := writeJSON(out.MetricsPath, metrics); err != nil {
		return nil, err
	}
	if err := writeJSON(out.ImportancePath, report); err != nil {
		return nil, err
	}
	return out, nil
}

// writeModel encodes into a temporary file first so a failed encode never
// leaves a truncated model behind.
func writeModel(path string, model ModelEncoder) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := model.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadMetrics loads a metrics.json file
func ReadMetrics(path string) (models.Metrics, error) {
	var m models.Metrics
	if err := readJSON(path, &m); err != nil {
		return models.Metrics{}, err
	}
	return m, nil
}

// ReadImportanceReport loads a feature_importances_top2.json file
func ReadImportanceReport(path string) (models.ImportanceReport, error) {
	var r models.ImportanceReport
	if err := readJSON(path, &r); err != nil {
		return models.ImportanceReport{}, err
	}
	return r, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
