package mlmodel

import (
	"fmt"
	"sort"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
)

// TopFeatures returns the k features with the highest importance in
// descending order. Equal scores keep their original index order.
func TopFeatures(names []string, importances []float64, k int) ([]models.FeatureScore, error) {
	if len(names) != len(importances) {
		return nil, fmt.Errorf("got %d feature names for %d importances", len(names), len(importances))
	}
	if k < 0 {
		return nil, fmt.Errorf("k must not be negative, got %d", k)
	}

	scores := make([]models.FeatureScore, len(names))
	for i, name := range names {
		scores[i] = models.FeatureScore{Name: name, Importance: importances[i]}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Importance > scores[j].Importance
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}
