package classifier

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is a binary regression tree node. Leaves carry the mean target
// of their training rows; interior nodes split on Feature < Threshold.
// Fields are exported for msgpack persistence.
type treeNode struct {
	Leaf      bool      `msgpack:"leaf"`
	Value     float64   `msgpack:"value"`
	Feature   int       `msgpack:"feature"`
	Threshold float64   `msgpack:"threshold"`
	Left      *treeNode `msgpack:"left,omitempty"`
	Right     *treeNode `msgpack:"right,omitempty"`
}

// predict walks the tree for one feature row.
func (n *treeNode) predict(x []float64) float64 {
	node := n
	for !node.Leaf {
		if x[node.Feature] < node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// treeParams controls tree growth.
type treeParams struct {
	maxDepth    int
	minLeaf     int
	featureFrac float64 // fraction of features considered per split, 1 = all
}

// growTree fits a variance-reducing regression tree to targets. rows holds
// indices into X/targets so callers can pass bootstrap samples without
// copying data. rng is only consulted when featureFrac < 1.
func growTree(X [][]float64, targets []float64, rows []int, params treeParams, rng *rand.Rand) *treeNode {
	return growNode(X, targets, rows, params, rng, 0)
}

func growNode(X [][]float64, targets []float64, rows []int, params treeParams, rng *rand.Rand, depth int) *treeNode {
	mean := meanTarget(targets, rows)
	if depth >= params.maxDepth || len(rows) < 2*params.minLeaf || pureTargets(targets, rows) {
		return &treeNode{Leaf: true, Value: mean}
	}

	feature, threshold, ok := bestSplit(X, targets, rows, params, rng)
	if !ok {
		return &treeNode{Leaf: true, Value: mean}
	}

	var left, right []int
	for _, row := range rows {
		if X[row][feature] < threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) < params.minLeaf || len(right) < params.minLeaf {
		return &treeNode{Leaf: true, Value: mean}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growNode(X, targets, left, params, rng, depth+1),
		Right:     growNode(X, targets, right, params, rng, depth+1),
	}
}

// bestSplit scans candidate features for the threshold minimizing the
// weighted target variance of the two children.
func bestSplit(X [][]float64, targets []float64, rows []int, params treeParams, rng *rand.Rand) (feature int, threshold float64, ok bool) {
	width := len(X[rows[0]])
	candidates := candidateFeatures(width, params.featureFrac, rng)

	bestScore := math.Inf(1)
	values := make([]float64, len(rows))

	for _, f := range candidates {
		for i, row := range rows {
			values[i] = X[row][f]
		}
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)

		for i := 1; i < len(sorted); i++ {
			if sorted[i] == sorted[i-1] {
				continue
			}
			t := (sorted[i] + sorted[i-1]) / 2
			score := splitScore(X, targets, rows, f, t)
			if score < bestScore {
				bestScore = score
				feature = f
				threshold = t
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// splitScore returns the summed squared deviation of targets around each
// child's mean.
func splitScore(X [][]float64, targets []float64, rows []int, feature int, threshold float64) float64 {
	var leftSum, leftSq, rightSum, rightSq float64
	var leftN, rightN int
	for _, row := range rows {
		t := targets[row]
		if X[row][feature] < threshold {
			leftSum += t
			leftSq += t * t
			leftN++
		} else {
			rightSum += t
			rightSq += t * t
			rightN++
		}
	}
	if leftN == 0 || rightN == 0 {
		return math.Inf(1)
	}
	leftVar := leftSq - leftSum*leftSum/float64(leftN)
	rightVar := rightSq - rightSum*rightSum/float64(rightN)
	return leftVar + rightVar
}

// candidateFeatures returns the feature indices considered for a split.
func candidateFeatures(width int, frac float64, rng *rand.Rand) []int {
	if frac >= 1 || rng == nil {
		all := make([]int, width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	count := int(math.Ceil(frac * float64(width)))
	if count < 1 {
		count = 1
	}
	perm := rng.Perm(width)
	return perm[:count]
}

func meanTarget(targets []float64, rows []int) float64 {
	var sum float64
	for _, row := range rows {
		sum += targets[row]
	}
	return sum / float64(len(rows))
}

func pureTargets(targets []float64, rows []int) bool {
	first := targets[rows[0]]
	for _, row := range rows[1:] {
		if targets[row] != first {
			return false
		}
	}
	return true
}
