// Package runner executes one training run end to end: load, split, fit,
// evaluate, persist, then record and publish the outcome.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/config"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/dataset"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/logging"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/metadatastore"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/mlmodel"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/mlmodel/training"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/publish"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/storage"
)

// SplitRationale is logged after the train/test split
const SplitRationale = "train/test split: required to estimate generalization performance and to detect overfitting"

// TopK is the number of features written to the importance report
const TopK = 2

type options struct {
	progress  training.ProgressFunc
	store     metadatastore.RunStore
	publisher publish.Publisher
}

// Option customizes a run
type Option func(*options)

// WithProgress reports each fitted tree
func WithProgress(fn training.ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithRunStore records the run in store instead of the configured registry.
// The caller keeps ownership of store.
func WithRunStore(store metadatastore.RunStore) Option {
	return func(o *options) { o.store = store }
}

// WithPublisher publishes the run with p instead of the configured publisher
func WithPublisher(p publish.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// Run trains, evaluates and persists one model as described by cfg. The
// returned run is non-nil whenever the run got an ID, including on failure.
func Run(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...Option) (*models.TrainingRun, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	run := &models.TrainingRun{
		ID:        uuid.NewString(),
		ModelType: models.ModelTypeRandomForest,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
		DataPath:  cfg.DataPath,
	}
	log := logger.WithFields(logging.RunID(run.ID), logging.Component("runner"))

	if err := train(ctx, cfg, logger, log, o, run); err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		run.FinishedAt = time.Now().UTC()
		log.Error("training run failed", err)
		return run, err
	}

	run.Status = models.RunStatusSucceeded
	run.FinishedAt = time.Now().UTC()
	log.Info("training run finished", logging.Float("duration_seconds", run.Duration().Seconds()))

	record(cfg, log, o, run)
	publishRun(ctx, cfg, log, o, run)
	return run, nil
}

func train(ctx context.Context, cfg *config.Config, logger *logging.Logger, log *logging.FieldLogger, o *options, run *models.TrainingRun) error {
	ds, err := dataset.Load(cfg.DataPath)
	if err != nil {
		return err
	}
	run.DataHash = ds.Hash()
	run.TotalRows = ds.Len()
	log.Info("dataset loaded", logging.String("path", cfg.DataPath), logging.Int("rows", ds.Len()), logging.String("hash", run.DataHash))

	trainSet, testSet, err := dataset.StratifiedSplit(ds, cfg.TestSize, cfg.Seed)
	if err != nil {
		return fmt.Errorf("failed to split dataset: %w", err)
	}
	run.TrainRows = trainSet.Len()
	run.TestRows = testSet.Len()
	log.Info(SplitRationale, logging.Int("train_rows", run.TrainRows), logging.Int("test_rows", run.TestRows))

	model := training.NewRandomForestClassifier(
		training.WithNumTrees(cfg.NumTrees),
		training.WithMinSamplesLeaf(cfg.MinSamplesLeaf),
		training.WithRandomSeed(cfg.Seed),
		training.WithWorkers(cfg.Workers),
		training.WithProgress(o.progress),
	)
	run.Hyperparameters = model.Hyperparameters(cfg.TestSize)

	pipe := mlmodel.NewPipeline(model,
		mlmodel.WithTransformCache(storage.NewTransformCache(cfg.CacheDir)),
		mlmodel.WithLogger(log),
	)
	if err := pipe.Fit(ctx, trainSet); err != nil {
		return err
	}
	run.CacheHit = pipe.CacheHit()
	log.Debug("model fitted", logging.Int("features", len(pipe.FeatureNames)), logging.Bool("transform_cache_hit", run.CacheHit))

	ev, err := mlmodel.Evaluate(pipe, testSet)
	if err != nil {
		return err
	}
	run.Metrics = ev.Metrics()
	log.Info("test metrics",
		logging.Float("accuracy", run.Metrics.Accuracy),
		logging.Float("recall", run.Metrics.Recall),
		logging.Float("f1", run.Metrics.F1),
	)
	logReport(logger, log, ev)

	top, err := pipe.TopFeatures(TopK)
	if err != nil {
		return err
	}
	run.TopFeatures = top
	for i, f := range top {
		log.Info("important feature", logging.Int("rank", i+1), logging.String("feature", f.Name), logging.Float("importance", f.Importance))
	}

	artifacts, err := storage.NewArtifactWriter(cfg.OutputDir).Write(pipe, run.Metrics, models.ImportanceReport{Top2: top})
	if err != nil {
		return err
	}
	run.ModelPath = artifacts.ModelPath
	run.MetricsPath = artifacts.MetricsPath
	run.ImportancePath = artifacts.ImportancePath
	log.Info("artifacts written", logging.String("dir", cfg.OutputDir))
	return nil
}

// logReport prints the classification report as a raw block in text mode
// and as a single field in JSON mode.
func logReport(logger *logging.Logger, log *logging.FieldLogger, ev *mlmodel.Evaluation) {
	if logger.Format() == "json" {
		log.Info("classification report", logging.String("report", ev.Report()))
		return
	}
	log.Info("classification report")
	ev.WriteReport(logger.Output())
}

func record(cfg *config.Config, log *logging.FieldLogger, o *options, run *models.TrainingRun) {
	store := o.store
	if store == nil {
		if !cfg.RunStore {
			return
		}
		s, err := metadatastore.NewSQLiteStore(cfg.RunStorePath)
		if err != nil {
			log.Warn("run registry unavailable", logging.Error(err))
			return
		}
		defer s.Close()
		store = s
	}

	if err := store.SaveRun(run); err != nil {
		log.Warn("failed to record run", logging.Error(err))
		return
	}
	log.Debug("run recorded")
}

func publishRun(ctx context.Context, cfg *config.Config, log *logging.FieldLogger, o *options, run *models.TrainingRun) {
	pub := o.publisher
	if pub == nil {
		if !cfg.PublishEnabled() {
			pub = publish.Nop{}
		} else {
			es, err := publish.NewElasticsearchPublisher(cfg.ElasticsearchURL, cfg.ElasticsearchIndex)
			if err != nil {
				log.Warn("metrics publisher unavailable", logging.Error(err))
				return
			}
			log.Debug("publishing run", logging.String("index", es.Index()))
			pub = es
		}
	}

	if err := pub.Publish(ctx, run); err != nil {
		log.Warn("failed to publish run", logging.Error(err))
		return
	}
	log.Debug("run published")
}
