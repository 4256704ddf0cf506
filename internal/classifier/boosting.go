package classifier

import (
	"math"
	"math/rand"
)

// GradientBoosting boosts shallow regression trees on logistic-loss
// pseudo-residuals. The raw score starts at the log-odds of the training
// prior and accumulates shrunken tree outputs.
type GradientBoosting struct {
	InitScore    float64     `msgpack:"init_score"`
	LearningRate float64     `msgpack:"learning_rate"`
	Trees        []*treeNode `msgpack:"trees"`
	Seed         int64       `msgpack:"seed"`
}

const (
	boostingRounds   = 80
	boostingRate     = 0.1
	boostingMaxDepth = 3
	boostingMinLeaf  = 2
)

func newGradientBoosting(seed int64) *GradientBoosting {
	return &GradientBoosting{LearningRate: boostingRate, Seed: seed}
}

// Kind implements Classifier.
func (g *GradientBoosting) Kind() Kind {
	return KindGradientBoosting
}

// Fit implements Classifier.
func (g *GradientBoosting) Fit(X [][]float64, y []int) error {
	if err := validateTrainingData(X, y); err != nil {
		return err
	}

	positive := 0
	for _, label := range y {
		positive += label
	}
	prior := clampProbability(float64(positive) / float64(len(y)))
	g.InitScore = math.Log(prior / (1 - prior))

	scores := make([]float64, len(X))
	for i := range scores {
		scores[i] = g.InitScore
	}

	rows := make([]int, len(X))
	for i := range rows {
		rows[i] = i
	}

	residuals := make([]float64, len(X))
	rng := rand.New(rand.NewSource(g.Seed))
	params := treeParams{
		maxDepth:    boostingMaxDepth,
		minLeaf:     boostingMinLeaf,
		featureFrac: 1,
	}

	g.Trees = make([]*treeNode, 0, boostingRounds)
	for range boostingRounds {
		for i := range residuals {
			residuals[i] = float64(y[i]) - sigmoid(scores[i])
		}

		tree := growTree(X, residuals, rows, params, rng)
		g.Trees = append(g.Trees, tree)

		for i, row := range X {
			scores[i] += g.LearningRate * tree.predict(row)
		}
	}
	return nil
}

// PredictProba implements Classifier.
func (g *GradientBoosting) PredictProba(x []float64) float64 {
	score := g.InitScore
	for _, tree := range g.Trees {
		score += g.LearningRate * tree.predict(x)
	}
	return clampProbability(sigmoid(score))
}
