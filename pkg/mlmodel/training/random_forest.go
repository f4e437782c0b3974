package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Class weighting and feature sampling modes
const (
	ClassWeightBalanced = "balanced"
	ClassWeightNone     = ""
	MaxFeaturesSqrt     = "sqrt"
	MaxFeaturesAll      = "all"
)

// ProgressFunc is called once per fitted tree. It may be called from several
// goroutines at once.
type ProgressFunc func(done, total int)

// RandomForestClassifier implements a bagged ensemble of CART trees with soft voting.
type RandomForestClassifier struct {
	NumTrees        int    `json:"num_trees"`
	MaxDepth        int    `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	MaxFeatures     string `json:"max_features"`
	ClassWeight     string `json:"class_weight"`
	Bootstrap       bool   `json:"bootstrap"`
	RandomSeed      int64  `json:"random_seed"`
	Workers         int    `json:"-"`

	Trees              []*DecisionTreeClassifier `json:"trees"`
	Classes            []int                     `json:"classes"` // ascending
	NumFeatures        int                       `json:"num_features"`
	FeatureImportances []float64                 `json:"feature_importances"`

	progress ProgressFunc
}

// Option configures a RandomForestClassifier
type Option func(*RandomForestClassifier)

// WithNumTrees sets the number of trees
func WithNumTrees(n int) Option {
	return func(rf *RandomForestClassifier) { rf.NumTrees = n }
}

// WithMinSamplesLeaf sets the minimum number of samples per leaf
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.MinSamplesLeaf = n }
}

// WithMaxDepth limits tree depth; 0 means unlimited
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.MaxDepth = d }
}

// WithMaxFeatures sets the per-split feature sampling mode
func WithMaxFeatures(mode string) Option {
	return func(rf *RandomForestClassifier) { rf.MaxFeatures = mode }
}

// WithClassWeight sets the class weighting mode
func WithClassWeight(mode string) Option {
	return func(rf *RandomForestClassifier) { rf.ClassWeight = mode }
}

// WithBootstrap toggles bootstrap sampling
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.Bootstrap = b }
}

// WithRandomSeed sets the master seed
func WithRandomSeed(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.RandomSeed = seed }
}

// WithWorkers bounds the number of trees fitted concurrently
func WithWorkers(n int) Option {
	return func(rf *RandomForestClassifier) { rf.Workers = n }
}

// WithProgress registers a per-tree callback
func WithProgress(fn ProgressFunc) Option {
	return func(rf *RandomForestClassifier) { rf.progress = fn }
}

// NewRandomForestClassifier creates a forest with 300 balanced, fully grown
// trees using sqrt feature sampling and seed 42, then applies opts.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		NumTrees:        300,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     MaxFeaturesSqrt,
		ClassWeight:     ClassWeightBalanced,
		Bootstrap:       true,
		RandomSeed:      42,
		Workers:         runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// maxFeaturesFor resolves the sampling mode against p input features
func (rf *RandomForestClassifier) maxFeaturesFor(p int) int {
	switch rf.MaxFeatures {
	case MaxFeaturesAll:
		return p
	default:
		m := int(math.Sqrt(float64(p)))
		if m < 1 {
			m = 1
		}
		return m
	}
}

// Fit builds the forest. Tree seeds are drawn in tree order from a generator
// seeded with RandomSeed, so the result does not depend on scheduling.
func (rf *RandomForestClassifier) Fit(ctx context.Context, X *mat.Dense, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(y) != rows {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if rf.NumTrees < 1 {
		return fmt.Errorf("num_trees must be at least 1, got %d", rf.NumTrees)
	}

	rf.Classes = uniqueInts(y)
	rf.NumFeatures = cols
	classIndex := make(map[int]int, len(rf.Classes))
	for i, c := range rf.Classes {
		classIndex[c] = i
	}
	encoded := make([]int, rows)
	for i, label := range y {
		encoded[i] = classIndex[label]
	}

	classWeights := rf.classWeights(encoded, len(rf.Classes))
	maxFeatures := rf.maxFeaturesFor(cols)

	master := rand.New(rand.NewSource(rf.RandomSeed))
	seeds := make([]int64, rf.NumTrees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*DecisionTreeClassifier, rf.NumTrees)
	var done atomic.Int64

	workers := rf.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < rf.NumTrees; i++ {
		if gctx.Err() != nil {
			break
		}
		treeIdx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seeds[treeIdx]))
			weights := rf.sampleWeights(rng, encoded, classWeights)

			tree := NewDecisionTreeClassifier(rf.MaxDepth, rf.MinSamplesSplit, rf.MinSamplesLeaf, maxFeatures)
			if err := tree.Fit(X, encoded, len(rf.Classes), weights, rng); err != nil {
				return fmt.Errorf("tree %d training failed: %w", treeIdx, err)
			}
			trees[treeIdx] = tree

			n := done.Add(1)
			if rf.progress != nil {
				rf.progress(int(n), rf.NumTrees)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rf.Trees = trees
	rf.FeatureImportances = rf.computeImportances()
	return nil
}

// classWeights returns n / (k * count_c) per class under "balanced", else ones.
func (rf *RandomForestClassifier) classWeights(y []int, k int) []float64 {
	weights := make([]float64, k)
	if rf.ClassWeight != ClassWeightBalanced {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}

	counts := make([]float64, k)
	for _, c := range y {
		counts[c]++
	}
	n := float64(len(y))
	for c := range weights {
		if counts[c] > 0 {
			weights[c] = n / (float64(k) * counts[c])
		}
	}
	return weights
}

// sampleWeights multiplies class weights by bootstrap draw counts.
func (rf *RandomForestClassifier) sampleWeights(rng *rand.Rand, y []int, classWeights []float64) []float64 {
	n := len(y)
	weights := make([]float64, n)

	if !rf.Bootstrap {
		for i, c := range y {
			weights[i] = classWeights[c]
		}
		return weights
	}

	for i := 0; i < n; i++ {
		weights[rng.Intn(n)]++
	}
	for i, c := range y {
		weights[i] *= classWeights[c]
	}
	return weights
}

// computeImportances averages the normalized per-tree importances over the
// trees that split at least once, then renormalizes to sum to 1.
func (rf *RandomForestClassifier) computeImportances() []float64 {
	out := make([]float64, rf.NumFeatures)
	used := 0
	for _, tree := range rf.Trees {
		if tree.GetNumNodes() <= 1 {
			continue
		}
		floats.Add(out, tree.FeatureImportances())
		used++
	}
	if used == 0 {
		return out
	}
	floats.Scale(1/float64(used), out)
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// PredictProba returns the mean class distribution over trees, one row per
// sample and one column per entry of Classes.
func (rf *RandomForestClassifier) PredictProba(X *mat.Dense) (*mat.Dense, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("model not trained")
	}
	rows, cols := X.Dims()
	if cols != rf.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", rf.NumFeatures, cols)
	}

	k := len(rf.Classes)
	proba := mat.NewDense(rows, k, nil)
	row := make([]float64, cols)
	acc := make([]float64, k)

	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		for j := range acc {
			acc[j] = 0
		}
		for _, tree := range rf.Trees {
			p, err := tree.PredictProbaRow(row)
			if err != nil {
				return nil, err
			}
			floats.Add(acc, p)
		}
		floats.Scale(1/float64(len(rf.Trees)), acc)
		proba.SetRow(i, acc)
	}
	return proba, nil
}

// Predict returns the most probable class per sample. Ties go to the lower class.
func (rf *RandomForestClassifier) Predict(X *mat.Dense) ([]int, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	rows, _ := proba.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		p := proba.RawRowView(i)
		best := 0
		for j := 1; j < len(p); j++ {
			if p[j] > p[best] {
				best = j
			}
		}
		out[i] = rf.Classes[best]
	}
	return out, nil
}

// GetModelInfo returns summary information about the fitted forest
func (rf *RandomForestClassifier) GetModelInfo() map[string]any {
	nodes, depth := 0, 0
	for _, tree := range rf.Trees {
		nodes += tree.GetNumNodes()
		if d := tree.GetDepth(); d > depth {
			depth = d
		}
	}
	return map[string]any{
		"model_type":        "random_forest",
		"num_trees":         len(rf.Trees),
		"num_features":      rf.NumFeatures,
		"classes":           rf.Classes,
		"total_nodes":       nodes,
		"max_depth_reached": depth,
		"max_features":      rf.MaxFeatures,
		"class_weight":      rf.ClassWeight,
	}
}

// Validate checks that the forest has been fitted consistently
func (rf *RandomForestClassifier) Validate() error {
	if len(rf.Trees) == 0 {
		return fmt.Errorf("model has no trees")
	}
	if len(rf.Classes) == 0 {
		return fmt.Errorf("model has no classes")
	}
	for i, tree := range rf.Trees {
		if tree == nil || tree.Root == nil {
			return fmt.Errorf("tree %d is not trained", i)
		}
		if tree.NumFeatures != rf.NumFeatures {
			return fmt.Errorf("tree %d expects %d features, forest has %d", i, tree.NumFeatures, rf.NumFeatures)
		}
	}
	if len(rf.FeatureImportances) != rf.NumFeatures {
		return fmt.Errorf("feature importances length %d does not match %d features", len(rf.FeatureImportances), rf.NumFeatures)
	}
	return nil
}

func uniqueInts(values []int) []int {
	seen := make(map[int]struct{}, 2)
	var out []int
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
