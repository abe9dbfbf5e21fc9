package predict

import (
	"context"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Node is one node of a regression tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value"`
}

// Tree is a CART regression tree stored as a flat node list; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree to a leaf.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// ForestModel averages bootstrap-trained regression trees.
type ForestModel struct {
	Trees       []*Tree   `json:"trees"`
	Importances []float64 `json:"importances"` // normalized impurity decrease per feature
}

// Predict returns the mean tree prediction.
func (f *ForestModel) Predict(x []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

type treeParams struct {
	maxDepth        int // 0 = unlimited
	minSamplesSplit int
	minSamplesLeaf  int
}

// fitForest grows p.NEstimators trees in parallel. Tree i bootstraps from a
// generator seeded with (seed, i), so the result does not depend on
// scheduling.
func fitForest(ctx context.Context, X [][]float64, y []float64, p Params, seed uint64) (*ForestModel, error) {
	if err := checkDesign(X, y); err != nil {
		return nil, err
	}
	if p.NEstimators < 1 {
		return nil, eris.Errorf("predict: n_estimators must be positive, got %d", p.NEstimators)
	}
	tp := treeParams{
		maxDepth:        p.MaxDepth,
		minSamplesSplit: max(p.MinSamplesSplit, 2),
		minSamplesLeaf:  max(p.MinSamplesLeaf, 1),
	}
	nFeatures := len(X[0])

	trees := make([]*Tree, p.NEstimators)
	imps := make([][]float64, p.NEstimators)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			sample := make([]int, len(X))
			for k := range sample {
				sample[k] = rng.IntN(len(X))
			}
			b := &treeBuilder{x: X, y: y, params: tp, importance: make([]float64, nFeatures)}
			b.grow(sample, 0)
			trees[i] = &Tree{Nodes: b.nodes}
			imps[i] = normalize(b.importance)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "predict: grow forest")
	}

	total := make([]float64, nFeatures)
	for _, imp := range imps {
		for j, v := range imp {
			total[j] += v
		}
	}
	return &ForestModel{Trees: trees, Importances: normalize(total)}, nil
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	params     treeParams
	nodes      []Node
	importance []float64
}

// grow adds the subtree for samples and returns its root index.
func (b *treeBuilder) grow(samples []int, depth int) int {
	n := len(samples)
	var sum, sumSq float64
	for _, i := range samples {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	mean := sum / float64(n)
	sse := sumSq - sum*sum/float64(n)

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: mean})

	if n < b.params.minSamplesSplit || n < 2*b.params.minSamplesLeaf ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth) || sse <= 1e-12 {
		return idx
	}

	feature, threshold, gain, ok := b.bestSplit(samples, sse)
	if !ok {
		return idx
	}
	b.importance[feature] += gain

	var left, right []int
	for _, i := range samples {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: mean}
	return idx
}

// bestSplit scans every feature for the threshold that most reduces the sum
// of squared errors while leaving at least minSamplesLeaf samples per side.
func (b *treeBuilder) bestSplit(samples []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	n := len(samples)
	minLeaf := b.params.minSamplesLeaf
	sorted := make([]int, n)

	var totalSum, totalSq float64
	for _, i := range samples {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}

	for f := range b.x[0] {
		copy(sorted, samples)
		sort.Slice(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		var leftSum, leftSq float64
		for k := 1; k < n; k++ {
			yi := b.y[sorted[k-1]]
			leftSum += yi
			leftSq += yi * yi
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := b.x[sorted[k-1]][f], b.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k), float64(n-k)
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if g := parentSSE - sse; !ok || g > gain {
				mid := lo + (hi-lo)/2
				if mid >= hi {
					mid = lo
				}
				feature, threshold, gain, ok = f, mid, g, true
			}
		}
	}
	return feature, threshold, gain, ok
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}
