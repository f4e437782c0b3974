package training

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	// featureThreshold is the smallest gap between two values treated as distinct
	featureThreshold = 1e-7
	// minImpurity below which a node is considered pure
	minImpurity = 1e-7
)

// TreeNode represents a node in the decision tree
type TreeNode struct {
	Leaf            bool      `json:"leaf"`
	Feature         int       `json:"feature"`
	Threshold       float64   `json:"threshold"`       // x[Feature] <= Threshold goes left
	Value           []float64 `json:"value,omitempty"` // class distribution, leaves only
	Samples         int       `json:"samples"`
	WeightedSamples float64   `json:"weighted_samples"`
	Impurity        float64   `json:"impurity"`
	Left            *TreeNode `json:"left,omitempty"`
	Right           *TreeNode `json:"right,omitempty"`
}

// DecisionTreeClassifier is a CART tree grown on weighted Gini impurity.
type DecisionTreeClassifier struct {
	Root            *TreeNode `json:"root"`
	MaxDepth        int       `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	MaxFeatures     int       `json:"max_features"` // features drawn per split, 0 means all
	NumFeatures     int       `json:"num_features"`
	NumClasses      int       `json:"num_classes"`
	// ImpurityDecrease is the unnormalized weighted impurity decrease per feature
	ImpurityDecrease []float64 `json:"impurity_decrease"`
}

// NewDecisionTreeClassifier creates a tree with the given stopping rules
func NewDecisionTreeClassifier(maxDepth, minSamplesSplit, minSamplesLeaf, maxFeatures int) *DecisionTreeClassifier {
	if maxDepth < 0 {
		maxDepth = 0
	}
	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf < 1 {
		minSamplesLeaf = 1
	}
	return &DecisionTreeClassifier{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
		MaxFeatures:     maxFeatures,
	}
}

// valIdx pairs a feature value with its sample row
type valIdx struct {
	v float64
	s int
}

type treeBuilder struct {
	tree    *DecisionTreeClassifier
	x       []float64
	stride  int
	y       []int
	w       []float64
	samples []int
	scratch []valIdx
	rng     *rand.Rand
}

// Fit grows the tree. y holds class indices in [0, numClasses). Rows with a
// zero weight are left out, which is how bootstrap counts are applied.
func (dt *DecisionTreeClassifier) Fit(X *mat.Dense, y []int, numClasses int, sampleWeight []float64, rng *rand.Rand) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(y) != rows {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if sampleWeight != nil && len(sampleWeight) != rows {
		return fmt.Errorf("sample weights must match number of samples")
	}
	if numClasses < 1 {
		return fmt.Errorf("need at least one class")
	}

	w := sampleWeight
	if w == nil {
		w = make([]float64, rows)
		for i := range w {
			w[i] = 1
		}
	}

	samples := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		if y[i] < 0 || y[i] >= numClasses {
			return fmt.Errorf("label %d at row %d out of range", y[i], i)
		}
		if w[i] > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return fmt.Errorf("all sample weights are zero")
	}

	dt.NumFeatures = cols
	dt.NumClasses = numClasses
	dt.ImpurityDecrease = make([]float64, cols)

	raw := X.RawMatrix()
	b := &treeBuilder{
		tree:    dt,
		x:       raw.Data,
		stride:  raw.Stride,
		y:       y,
		w:       w,
		samples: samples,
		scratch: make([]valIdx, len(samples)),
		rng:     rng,
	}
	dt.Root = b.build(0, len(samples), 0)
	return nil
}

func (b *treeBuilder) build(start, end, depth int) *TreeNode {
	dt := b.tree
	counts := make([]float64, dt.NumClasses)
	total := 0.0
	for _, s := range b.samples[start:end] {
		counts[b.y[s]] += b.w[s]
		total += b.w[s]
	}

	n := end - start
	node := &TreeNode{
		Samples:         n,
		WeightedSamples: total,
		Impurity:        gini(counts, total),
	}

	if (dt.MaxDepth > 0 && depth >= dt.MaxDepth) ||
		n < dt.MinSamplesSplit ||
		n < 2*dt.MinSamplesLeaf ||
		node.Impurity <= minImpurity {
		return b.leaf(node, counts, total)
	}

	best, ok := b.findBestSplit(start, end, counts, total)
	if !ok {
		return b.leaf(node, counts, total)
	}

	pos := b.partition(start, end, best.feature, best.threshold)

	node.Feature = best.feature
	node.Threshold = best.threshold
	dt.ImpurityDecrease[best.feature] += total*node.Impurity -
		best.leftWeight*best.leftImpurity - best.rightWeight*best.rightImpurity

	node.Left = b.build(start, pos, depth+1)
	node.Right = b.build(pos, end, depth+1)
	return node
}

func (b *treeBuilder) leaf(node *TreeNode, counts []float64, total float64) *TreeNode {
	node.Leaf = true
	node.Value = make([]float64, len(counts))
	if total > 0 {
		for k, c := range counts {
			node.Value[k] = c / total
		}
	}
	return node
}

type split struct {
	feature       int
	threshold     float64
	proxy         float64
	leftWeight    float64
	rightWeight   float64
	leftImpurity  float64
	rightImpurity float64
}

// findBestSplit draws features in random order and evaluates them until
// MaxFeatures non-constant ones have been seen. The best split is kept even
// when it does not lower the impurity.
func (b *treeBuilder) findBestSplit(start, end int, counts []float64, total float64) (split, bool) {
	dt := b.tree
	maxFeatures := dt.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > dt.NumFeatures {
		maxFeatures = dt.NumFeatures
	}

	var best split
	found := false
	n := end - start
	vals := b.scratch[:n]
	left := make([]float64, len(counts))
	right := make([]float64, len(counts))

	visited := 0
	for _, f := range b.rng.Perm(dt.NumFeatures) {
		if visited >= maxFeatures {
			break
		}

		for i, s := range b.samples[start:end] {
			vals[i] = valIdx{v: b.x[s*b.stride+f], s: s}
		}
		sort.Slice(vals, func(i, j int) bool { return vals[i].v < vals[j].v })

		if vals[n-1].v <= vals[0].v+featureThreshold {
			continue
		}
		visited++

		for k := range left {
			left[k] = 0
			right[k] = counts[k]
		}
		wl := 0.0

		for i := 0; i < n-1; i++ {
			s := vals[i].s
			left[b.y[s]] += b.w[s]
			right[b.y[s]] -= b.w[s]
			wl += b.w[s]

			if vals[i+1].v <= vals[i].v+featureThreshold {
				continue
			}
			nl := i + 1
			if nl < dt.MinSamplesLeaf || n-nl < dt.MinSamplesLeaf {
				continue
			}

			wr := total - wl
			gl := gini(left, wl)
			gr := gini(right, wr)
			proxy := -(wl*gl + wr*gr)

			if !found || proxy > best.proxy {
				threshold := (vals[i].v + vals[i+1].v) / 2
				if threshold >= vals[i+1].v {
					threshold = vals[i].v
				}
				best = split{
					feature:       f,
					threshold:     threshold,
					proxy:         proxy,
					leftWeight:    wl,
					rightWeight:   wr,
					leftImpurity:  gl,
					rightImpurity: gr,
				}
				found = true
			}
		}
	}

	return best, found
}

// partition reorders samples[start:end] so rows going left come first and
// returns the boundary.
func (b *treeBuilder) partition(start, end, feature int, threshold float64) int {
	i, j := start, end-1
	for i <= j {
		if b.x[b.samples[i]*b.stride+feature] <= threshold {
			i++
			continue
		}
		b.samples[i], b.samples[j] = b.samples[j], b.samples[i]
		j--
	}
	return i
}

// gini returns the weighted Gini impurity of a class histogram
func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

// PredictProbaRow returns the class distribution of the leaf reached by x
func (dt *DecisionTreeClassifier) PredictProbaRow(x []float64) ([]float64, error) {
	if dt.Root == nil {
		return nil, fmt.Errorf("model not trained")
	}
	if len(x) != dt.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}
	return dt.traverseToLeaf(x).Value, nil
}

func (dt *DecisionTreeClassifier) traverseToLeaf(x []float64) *TreeNode {
	node := dt.Root
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// FeatureImportances returns the impurity decrease per feature normalized to
// sum to 1, or all zeros for a tree that never split.
func (dt *DecisionTreeClassifier) FeatureImportances() []float64 {
	out := make([]float64, len(dt.ImpurityDecrease))
	total := 0.0
	for _, v := range dt.ImpurityDecrease {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range dt.ImpurityDecrease {
		out[i] = v / total
	}
	return out
}

// GetNumNodes returns the total number of nodes
func (dt *DecisionTreeClassifier) GetNumNodes() int {
	return countNodes(dt.Root)
}

func countNodes(node *TreeNode) int {
	if node == nil {
		return 0
	}
	return 1 + countNodes(node.Left) + countNodes(node.Right)
}

// GetDepth returns the depth of the deepest leaf
func (dt *DecisionTreeClassifier) GetDepth() int {
	return nodeDepth(dt.Root)
}

func nodeDepth(node *TreeNode) int {
	if node == nil || node.Leaf {
		return 0
	}
	l, r := nodeDepth(node.Left), nodeDepth(node.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}
