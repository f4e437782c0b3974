package metadatastore

import "github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"

// RunStore is the interface for training run persistence.
// It records what each run trained on and how the model scored; the model
// artifacts themselves stay on disk.
type RunStore interface {
	// SaveRun inserts or replaces a run by ID
	SaveRun(run *models.TrainingRun) error
	// GetRun returns ErrRunNotFound for an unknown ID
	GetRun(id string) (*models.TrainingRun, error)
	// ListRuns returns every run, newest first
	ListRuns() ([]*models.TrainingRun, error)
	// ListRunsByDataHash returns the runs trained on one dataset version, newest first
	ListRunsByDataHash(hash string) ([]*models.TrainingRun, error)
	Close() error
}
