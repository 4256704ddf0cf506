package classifier

import "math/rand"

// RandomForest bags variance-reducing trees over bootstrap samples with
// per-split feature subsampling. The predicted probability is the mean leaf
// value across trees, with leaves holding the AI-label fraction of their
// training rows.
type RandomForest struct {
	Trees []*treeNode `msgpack:"trees"`
	Seed  int64       `msgpack:"seed"`
}

const (
	forestTrees       = 60
	forestMaxDepth    = 8
	forestMinLeaf     = 2
	forestFeatureFrac = 0.35
)

func newRandomForest(seed int64) *RandomForest {
	return &RandomForest{Seed: seed}
}

// Kind implements Classifier.
func (f *RandomForest) Kind() Kind {
	return KindRandomForest
}

// Fit implements Classifier.
func (f *RandomForest) Fit(X [][]float64, y []int) error {
	if err := validateTrainingData(X, y); err != nil {
		return err
	}

	targets := make([]float64, len(y))
	for i, label := range y {
		targets[i] = float64(label)
	}

	rng := rand.New(rand.NewSource(f.Seed))
	params := treeParams{
		maxDepth:    forestMaxDepth,
		minLeaf:     forestMinLeaf,
		featureFrac: forestFeatureFrac,
	}

	f.Trees = make([]*treeNode, forestTrees)
	rows := make([]int, len(X))
	for t := range forestTrees {
		for i := range rows {
			rows[i] = rng.Intn(len(X))
		}
		f.Trees[t] = growTree(X, targets, rows, params, rng)
	}
	return nil
}

// PredictProba implements Classifier.
func (f *RandomForest) PredictProba(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0.5
	}
	var sum float64
	for _, tree := range f.Trees {
		sum += tree.predict(x)
	}
	return clampProbability(sum / float64(len(f.Trees)))
}
