// Package mlmodel wires preprocessing and the forest into a persisted pipeline
// and scores it.
package mlmodel

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/dataset"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/logging"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/mlmodel/preprocess"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/mlmodel/training"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
)

// Static column groups of the survey
var (
	CategoricalFeatures = []string{dataset.ColClasse, dataset.ColTypeRepas}
	NumericFeatures     = []string{
		dataset.ColAge, dataset.ColCalories, dataset.ColCoutRepas,
		dataset.ColFreqConsommation, dataset.ColSatisfaction,
	}
)

// TransformCache persists fitted transformers together with their output so
// identical inputs skip re-fitting.
type TransformCache interface {
	Load(ct *preprocess.ColumnTransformer, t preprocess.Table) (*preprocess.ColumnTransformer, *mat.Dense, bool, error)
	Store(ct *preprocess.ColumnTransformer, t preprocess.Table, X *mat.Dense) error
}

// Pipeline is the preprocessing step followed by the classifier. It is the
// unit of persistence.
type Pipeline struct {
	Preprocessor *preprocess.ColumnTransformer
	Model        *training.RandomForestClassifier
	FeatureNames []string

	cache    TransformCache
	logger   logging.Interface
	cacheHit bool
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithTransformCache enables caching of the transformer step
func WithTransformCache(c TransformCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithLogger sets the logger used for cache diagnostics
func WithLogger(l logging.Interface) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates an unfitted pipeline around model using the survey column groups
func NewPipeline(model *training.RandomForestClassifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		Preprocessor: preprocess.NewColumnTransformer(CategoricalFeatures, NumericFeatures),
		Model:        model,
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit fits the transformer then the classifier on train. Cache failures are
// logged and otherwise ignored.
func (p *Pipeline) Fit(ctx context.Context, train *dataset.Dataset) error {
	if train.Len() == 0 {
		return fmt.Errorf("empty training set")
	}

	X, err := p.fitTransform(train)
	if err != nil {
		return fmt.Errorf("failed to fit preprocessor: %w", err)
	}
	p.FeatureNames = p.Preprocessor.FeatureNames()

	if err := p.Model.Fit(ctx, X, train.Labels()); err != nil {
		return fmt.Errorf("failed to fit model: %w", err)
	}
	return nil
}

func (p *Pipeline) fitTransform(train *dataset.Dataset) (*mat.Dense, error) {
	p.cacheHit = false

	if p.cache != nil {
		fitted, X, hit, err := p.cache.Load(p.Preprocessor, train)
		if err != nil {
			p.logger.Warn("transform cache read failed", logging.Component("pipeline"), logging.Error(err))
		}
		if hit {
			if rows, _ := X.Dims(); rows == train.Len() {
				p.Preprocessor = fitted
				p.cacheHit = true
				p.logger.Debug("transform cache hit", logging.Component("pipeline"))
				return X, nil
			}
			p.logger.Warn("transform cache entry has wrong shape, refitting", logging.Component("pipeline"))
		}
	}

	X, err := p.Preprocessor.FitTransform(train)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Store(p.Preprocessor, train, X); err != nil {
			p.logger.Warn("transform cache write failed", logging.Component("pipeline"), logging.Error(err))
		}
	}
	return X, nil
}

// CacheHit reports whether the last Fit reused a cached transformer
func (p *Pipeline) CacheHit() bool {
	return p.cacheHit
}

// Transform applies the fitted preprocessor to ds
func (p *Pipeline) Transform(ds *dataset.Dataset) (*mat.Dense, error) {
	return p.Preprocessor.Transform(ds)
}

// Predict returns one label per row of ds
func (p *Pipeline) Predict(ds *dataset.Dataset) ([]int, error) {
	X, err := p.Transform(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to transform: %w", err)
	}
	return p.Model.Predict(X)
}

// PredictProba returns class probabilities, one column per entry of Model.Classes
func (p *Pipeline) PredictProba(ds *dataset.Dataset) (*mat.Dense, error) {
	X, err := p.Transform(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to transform: %w", err)
	}
	return p.Model.PredictProba(X)
}

// TopFeatures returns the k most important expanded features
func (p *Pipeline) TopFeatures(k int) ([]models.FeatureScore, error) {
	return TopFeatures(p.FeatureNames, p.Model.FeatureImportances, k)
}

// Save gob-encodes the fitted pipeline to w
func (p *Pipeline) Save(w io.Writer) error {
	if p.Model == nil || len(p.Model.Trees) == 0 {
		return fmt.Errorf("pipeline is not fitted")
	}
	if err := gob.NewEncoder(w).Encode(p); err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}
	return nil
}

// LoadPipeline decodes a pipeline written by Save
func LoadPipeline(r io.Reader) (*Pipeline, error) {
	p := &Pipeline{logger: logging.Discard()}
	if err := gob.NewDecoder(r).Decode(p); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline: %w", err)
	}
	if p.Preprocessor == nil || p.Model == nil {
		return nil, fmt.Errorf("decoded pipeline is incomplete")
	}
	if err := p.Model.Validate(); err != nil {
		return nil, fmt.Errorf("decoded model is invalid: %w", err)
	}
	return p, nil
}

// LoadPipelineFile reads a pipeline from path
func LoadPipelineFile(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()
	return LoadPipeline(f)
}
