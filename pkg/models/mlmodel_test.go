package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureScore_JSONPair(t *testing.T) {
	report := ImportanceReport{Top2: []FeatureScore{
		{Name: "satisfaction", Importance: 0.41},
		{Name: "classe_CE1", Importance: 0.2},
	}}

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"top2": [["satisfaction", 0.41], ["classe_CE1", 0.2]]}`, string(data))

	var back ImportanceReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, report, back)
}

func TestFeatureScore_UnmarshalRejectsBadShape(t *testing.T) {
	var f FeatureScore
	assert.Error(t, json.Unmarshal([]byte(`["only-name"]`), &f))
	assert.Error(t, json.Unmarshal([]byte(`{"name": "x"}`), &f))
	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &f))
}

func TestMetrics_Validate(t *testing.T) {
	assert.NoError(t, Metrics{Accuracy: 1, Recall: 0, F1: 0.5}.Validate())
	assert.Error(t, Metrics{Accuracy: 1.2}.Validate())
	assert.Error(t, Metrics{F1: -0.1}.Validate())
}

func TestMetrics_JSONKeys(t *testing.T) {
	data, err := json.Marshal(Metrics{Accuracy: 0.9, Recall: 0.8, F1: 0.85})
	require.NoError(t, err)
	assert.JSONEq(t, `{"accuracy": 0.9, "recall": 0.8, "f1": 0.85}`, string(data))
}

func TestTrainingRun_Duration(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	run := &TrainingRun{StartedAt: start}
	assert.Equal(t, time.Duration(0), run.Duration())

	run.FinishedAt = start.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, run.Duration())
}
