package training

import (
	"context"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
	"gonum.org/v1/gonum/mat"
)

// Classifier defines the contract for models fitted on dense feature matrices
type Classifier interface {
	// Fit trains the model on X with integer labels y
	Fit(ctx context.Context, X *mat.Dense, y []int) error

	// Predict returns one label per row of X
	Predict(X *mat.Dense) ([]int, error)

	// PredictProba returns one probability column per known class
	PredictProba(X *mat.Dense) (*mat.Dense, error)

	// GetType returns the model type
	GetType() models.ModelType
}

var _ Classifier = (*RandomForestClassifier)(nil)

// GetType returns the model type
func (rf *RandomForestClassifier) GetType() models.ModelType {
	return models.ModelTypeRandomForest
}

// Hyperparameters records the forest settings alongside the split fraction
// used to produce its training data.
func (rf *RandomForestClassifier) Hyperparameters(testSize float64) models.Hyperparameters {
	return models.Hyperparameters{
		NumTrees:        rf.NumTrees,
		MaxFeatures:     rf.MaxFeatures,
		MinSamplesLeaf:  rf.MinSamplesLeaf,
		MinSamplesSplit: rf.MinSamplesSplit,
		ClassWeight:     rf.ClassWeight,
		Bootstrap:       rf.Bootstrap,
		Seed:            rf.RandomSeed,
		TestSize:        testSize,
	}
}
