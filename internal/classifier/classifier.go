// Package classifier implements the ensemble-member classifier kinds used
// by the trainer and detector. Members are a configuration-time enumeration
// of kinds, each exposing fit and predict-proba over positional feature
// value slices.
package classifier

import (
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aprice/audiodetect-go/internal/errors"
)

// Kind identifies an ensemble-member classifier type.
type Kind string

const (
	KindLogistic         Kind = "logistic"
	KindRandomForest     Kind = "random_forest"
	KindGradientBoosting Kind = "gradient_boosting"
)

// Kinds lists all supported classifier kinds in canonical order.
func Kinds() []Kind {
	return []Kind{KindLogistic, KindRandomForest, KindGradientBoosting}
}

// Classifier is a binary classifier over positional feature values. The
// positive class (label 1) is AI-generated. Implementations are immutable
// after Fit and safe for concurrent prediction.
type Classifier interface {
	// Fit trains on feature rows X and labels y (0 = real, 1 = AI).
	Fit(X [][]float64, y []int) error
	// PredictProba returns the probability that x belongs to the AI class.
	PredictProba(x []float64) float64
	// Kind returns the classifier kind identifier.
	Kind() Kind
}

// New constructs an unfitted classifier of the given kind with seeded
// randomness.
func New(kind Kind, seed int64) (Classifier, error) {
	switch kind {
	case KindLogistic:
		return newLogistic(), nil
	case KindRandomForest:
		return newRandomForest(seed), nil
	case KindGradientBoosting:
		return newGradientBoosting(seed), nil
	default:
		return nil, errors.Newf("unknown classifier kind %q", kind).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Context("kind", string(kind)).
			Build()
	}
}

// Marshal serializes a fitted classifier for persistence.
func Marshal(c Classifier) ([]byte, error) {
	data, err := msgpack.Marshal(c)
	if err != nil {
		return nil, errors.Newf("failed to serialize %s classifier: %v", c.Kind(), err).
			Component("classifier").
			Category(errors.CategoryFileIO).
			Build()
	}
	return data, nil
}

// Unmarshal reconstructs a fitted classifier of the given kind.
func Unmarshal(kind Kind, data []byte) (Classifier, error) {
	var c Classifier
	switch kind {
	case KindLogistic:
		c = &Logistic{}
	case KindRandomForest:
		c = &RandomForest{}
	case KindGradientBoosting:
		c = &GradientBoosting{}
	default:
		return nil, errors.Newf("unknown classifier kind %q in stored artifact", kind).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("kind", string(kind)).
			Build()
	}
	if err := msgpack.Unmarshal(data, c); err != nil {
		return nil, errors.Newf("failed to deserialize %s classifier: %v", kind, err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Build()
	}
	return c, nil
}

// validateTrainingData checks the shape constraints shared by all kinds.
func validateTrainingData(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.Newf("training data has %d rows and %d labels", len(X), len(y)).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}
	width := len(X[0])
	if width == 0 {
		return errors.Newf("training rows have no features").
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}
	for i, row := range X {
		if len(row) != width {
			return errors.Newf("training row %d has %d features, want %d", i, len(row), width).
				Component("classifier").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return errors.Newf("label %d at row %d is not binary", label, i).
				Component("classifier").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	return nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// clampProbability keeps probabilities strictly inside (0, 1) so logit
// transforms stay finite.
func clampProbability(p float64) float64 {
	const eps = 1e-12
	return math.Min(1-eps, math.Max(eps, p))
}
