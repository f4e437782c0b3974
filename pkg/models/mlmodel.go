package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ModelType represents the type of ML model
type ModelType string

const (
	ModelTypeRandomForest ModelType = "random_forest"
)

// RunStatus represents the outcome of a training run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Metrics holds the held-out scores written to metrics.json
type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	Recall   float64 `json:"recall"`
	F1       float64 `json:"f1"`
}

// Validate checks that every score lies in [0, 1]
func (m Metrics) Validate() error {
	for name, v := range map[string]float64{"accuracy": m.Accuracy, "recall": m.Recall, "f1": m.F1} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s out of range: %v", name, v)
		}
	}
	return nil
}

// FeatureScore pairs an expanded feature name with its importance.
// It serializes as a two-element JSON array: ["name", score].
type FeatureScore struct {
	Name       string
	Importance float64
}

// MarshalJSON implements json.Marshaler
func (f FeatureScore) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{f.Name, f.Importance})
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FeatureScore) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("feature score: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("feature score: expected [name, score], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &f.Name); err != nil {
		return fmt.Errorf("feature score name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &f.Importance); err != nil {
		return fmt.Errorf("feature score value: %w", err)
	}
	return nil
}

// ImportanceReport is the content of feature_importances_top2.json
type ImportanceReport struct {
	Top2 []FeatureScore `json:"top2"`
}

// Hyperparameters records the classifier and split settings of a run
type Hyperparameters struct {
	NumTrees        int     `json:"n_estimators"`
	MaxFeatures     string  `json:"max_features"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	MinSamplesSplit int     `json:"min_samples_split"`
	ClassWeight     string  `json:"class_weight"`
	Bootstrap       bool    `json:"bootstrap"`
	Seed            int64   `json:"random_state"`
	TestSize        float64 `json:"test_size"`
}

// TrainingRun is the record kept for every execution of the trainer
type TrainingRun struct {
	ID              string          `json:"id"`
	ModelType       ModelType       `json:"model_type"`
	Status          RunStatus       `json:"status"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	DataPath        string          `json:"data_path"`
	DataHash        string          `json:"data_hash"`
	TotalRows       int             `json:"total_rows"`
	TrainRows       int             `json:"train_rows"`
	TestRows        int             `json:"test_rows"`
	CacheHit        bool            `json:"transform_cache_hit"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Metrics         Metrics         `json:"metrics"`
	TopFeatures     []FeatureScore  `json:"top_features"`
	ModelPath       string          `json:"model_path"`
	MetricsPath     string          `json:"metrics_path"`
	ImportancePath  string          `json:"importance_path"`
	Error           string          `json:"error,omitempty"`
}

// Duration returns the wall time of the run, or zero while it is running
func (r *TrainingRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
