// Package publish ships finished training runs to external dashboards.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
)

// Publisher sends one document per training run
type Publisher interface {
	Publish(ctx context.Context, run *models.TrainingRun) error
}

// Nop discards every run
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, *models.TrainingRun) error { return nil }

// RunDocument is the flattened form of a run indexed for Grafana
type RunDocument struct {
	Timestamp       time.Time `json:"@timestamp"`
	RunID           string    `json:"run_id"`
	ModelType       string    `json:"model_type"`
	Status          string    `json:"status"`
	DurationSeconds float64   `json:"duration_seconds"`
	DataPath        string    `json:"data_path"`
	DataHash        string    `json:"data_hash"`
	TrainRows       int       `json:"train_rows"`
	TestRows        int       `json:"test_rows"`
	CacheHit        bool      `json:"transform_cache_hit"`
	NumTrees        int       `json:"n_estimators"`
	Seed            int64     `json:"random_state"`
	Accuracy        float64   `json:"accuracy"`
	Recall          float64   `json:"recall"`
	F1              float64   `json:"f1"`
	TopFeature      string    `json:"top_feature,omitempty"`
	TopImportance   float64   `json:"top_feature_importance,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// NewRunDocument flattens run into its indexed form
func NewRunDocument(run *models.TrainingRun) RunDocument {
	doc := RunDocument{
		Timestamp:       run.FinishedAt,
		RunID:           run.ID,
		ModelType:       string(run.ModelType),
		Status:          string(run.Status),
		DurationSeconds: run.Duration().Seconds(),
		DataPath:        run.DataPath,
		DataHash:        run.DataHash,
		TrainRows:       run.TrainRows,
		TestRows:        run.TestRows,
		CacheHit:        run.CacheHit,
		NumTrees:        run.Hyperparameters.NumTrees,
		Seed:            run.Hyperparameters.Seed,
		Accuracy:        run.Metrics.Accuracy,
		Recall:          run.Metrics.Recall,
		F1:              run.Metrics.F1,
		Error:           run.Error,
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = run.StartedAt
	}
	if len(run.TopFeatures) > 0 {
		doc.TopFeature = run.TopFeatures[0].Name
		doc.TopImportance = run.TopFeatures[0].Importance
	}
	return doc
}

// ElasticsearchPublisher indexes runs into a single Elasticsearch index
type ElasticsearchPublisher struct {
	client *elasticsearch.Client
	index  string
}

var _ Publisher = (*ElasticsearchPublisher)(nil)

// NewElasticsearchPublisher creates a publisher for the cluster at url
func NewElasticsearchPublisher(url, index string) (*ElasticsearchPublisher, error) {
	if index == "" {
		return nil, fmt.Errorf("elasticsearch index is required")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchPublisher{client: client, index: index}, nil
}

// Index returns the target index name
func (p *ElasticsearchPublisher) Index() string {
	return p.index
}

// Publish indexes run under its ID, replacing an earlier document for the same run
func (p *ElasticsearchPublisher) Publish(ctx context.Context, run *models.TrainingRun) error {
	body, err := json.Marshal(NewRunDocument(run))
	if err != nil {
		return fmt.Errorf("failed to marshal run document: %w", err)
	}

	res, err := p.client.Index(
		p.index,
		bytes.NewReader(body),
		p.client.Index.WithDocumentID(run.ID),
		p.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index run %s: %w", run.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("failed to index run %s: %s: %s", run.ID, res.Status(), bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
