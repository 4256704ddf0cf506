package classifier

import "math"

// Logistic is an L2-regularized logistic regression fitted with full-batch
// gradient descent over standardized features.
type Logistic struct {
	Weights []float64 `msgpack:"weights"`
	Bias    float64   `msgpack:"bias"`
	Means   []float64 `msgpack:"means"`
	Scales  []float64 `msgpack:"scales"`
}

const (
	logisticEpochs       = 300
	logisticLearningRate = 0.1
	logisticL2           = 1e-3
)

func newLogistic() *Logistic {
	return &Logistic{}
}

// Kind implements Classifier.
func (l *Logistic) Kind() Kind {
	return KindLogistic
}

// Fit implements Classifier.
func (l *Logistic) Fit(X [][]float64, y []int) error {
	if err := validateTrainingData(X, y); err != nil {
		return err
	}

	rows := len(X)
	width := len(X[0])
	l.Means, l.Scales = standardization(X)
	l.Weights = make([]float64, width)
	l.Bias = 0

	scaled := make([][]float64, rows)
	for i, row := range X {
		scaled[i] = l.scale(row)
	}

	gradients := make([]float64, width)
	for range logisticEpochs {
		for j := range gradients {
			gradients[j] = logisticL2 * l.Weights[j]
		}
		var biasGradient float64

		for i, row := range scaled {
			predicted := sigmoid(l.linear(row))
			residual := predicted - float64(y[i])
			for j, v := range row {
				gradients[j] += residual * v / float64(rows)
			}
			biasGradient += residual / float64(rows)
		}

		for j := range l.Weights {
			l.Weights[j] -= logisticLearningRate * gradients[j]
		}
		l.Bias -= logisticLearningRate * biasGradient
	}

	return nil
}

// PredictProba implements Classifier.
func (l *Logistic) PredictProba(x []float64) float64 {
	return sigmoid(l.linear(l.scale(x)))
}

func (l *Logistic) linear(scaled []float64) float64 {
	z := l.Bias
	for j, w := range l.Weights {
		z += w * scaled[j]
	}
	return z
}

func (l *Logistic) scale(x []float64) []float64 {
	scaled := make([]float64, len(x))
	for j, v := range x {
		scaled[j] = (v - l.Means[j]) / l.Scales[j]
	}
	return scaled
}

// standardization computes per-feature means and scales, with zero-variance
// features assigned unit scale so they contribute nothing after centering.
func standardization(X [][]float64) (means, scales []float64) {
	rows := float64(len(X))
	width := len(X[0])
	means = make([]float64, width)
	scales = make([]float64, width)

	for _, row := range X {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= rows
	}

	for _, row := range X {
		for j, v := range row {
			d := v - means[j]
			scales[j] += d * d
		}
	}
	for j := range scales {
		variance := scales[j] / rows
		if variance <= 0 {
			scales[j] = 1
		} else {
			scales[j] = math.Sqrt(variance)
		}
	}
	return means, scales
}
