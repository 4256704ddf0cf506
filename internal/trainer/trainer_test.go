package trainer

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aprice/audiodetect-go/internal/classifier"
	"github.com/aprice/audiodetect-go/internal/errors"
	"github.com/aprice/audiodetect-go/internal/features"
	"github.com/aprice/audiodetect-go/internal/modelstore"
)

var testKeys = []string{"fft_benford_chi2", "fft_benford_mad", "rms_energy", "skewness"}

func testSchema() *features.Schema {
	return features.NewSchema(features.SchemaVersion, testKeys)
}

// syntheticDataset builds a linearly separable labeled dataset: AI samples
// have clearly larger chi-square and MAD values, matching the detector's
// working hypothesis.
func syntheticDataset(seed int64, perLabel int) []features.LabeledSample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]features.LabeledSample, 0, 2*perLabel)
	for i := range 2 * perLabel {
		label := features.LabelReal
		offset := 0.0
		if i%2 == 1 {
			label = features.LabelAI
			offset = 5.0
		}
		vec := features.Vector{
			"fft_benford_chi2": offset + rng.NormFloat64(),
			"fft_benford_mad":  offset/10 + rng.NormFloat64()*0.1,
			"rms_energy":       rng.Float64(),
			"skewness":         rng.NormFloat64(),
		}
		samples = append(samples, features.LabeledSample{Vector: vec, Label: label})
	}
	return samples
}

func testConfig(base string) Config {
	return Config{
		BasePath:   base,
		Models:     []classifier.Kind{classifier.KindLogistic},
		Seed:       42,
		SplitRatio: 0.8,
	}
}

func TestTrainEmptyDataset(t *testing.T) {
	t.Parallel()

	report, err := Train(testSchema(), nil, testConfig(t.TempDir()))
	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInsufficientData))
}

func TestTrainSingleLabelDataset(t *testing.T) {
	t.Parallel()

	samples := syntheticDataset(1, 10)
	onlyReal := make([]features.LabeledSample, 0, len(samples))
	for _, s := range samples {
		if s.Label == features.LabelReal {
			onlyReal = append(onlyReal, s)
		}
	}

	report, err := Train(testSchema(), onlyReal, testConfig(t.TempDir()))
	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInsufficientData))
	assert.Contains(t, err.Error(), string(features.LabelAI))
}

func TestTrainSchemaMismatchNamesKey(t *testing.T) {
	t.Parallel()

	samples := syntheticDataset(2, 10)
	delete(samples[7].Vector, "rms_energy")

	report, err := Train(testSchema(), samples, testConfig(t.TempDir()))
	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), "rms_energy")
	assert.Contains(t, err.Error(), "sample 7")
}

func TestTrainProducesMetricsAndArtifacts(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	cfg := testConfig(base)
	cfg.Models = classifier.Kinds()
	samples := syntheticDataset(3, 50)

	report, err := Train(testSchema(), samples, cfg)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, testSchema().Fingerprint(), report.SchemaFingerprint)
	assert.Equal(t, 80, report.TrainSize)
	assert.Equal(t, 20, report.ValidationSize)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Metrics, len(classifier.Kinds()))

	for name, m := range report.Metrics {
		for metric, value := range m.ToMap() {
			assert.GreaterOrEqual(t, value, 0.0, "%s %s", name, metric)
			assert.LessOrEqual(t, value, 1.0, "%s %s", name, metric)
		}
		// The dataset is trivially separable.
		assert.Greater(t, m.Accuracy, 0.9, "%s accuracy", name)
	}

	slots, err := modelstore.List(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"gradient_boosting", "logistic", "random_forest"}, slots)

	_, meta, err := modelstore.Load(base, "logistic")
	require.NoError(t, err)
	assert.Equal(t, report.RunID, meta.RunID)
	assert.Equal(t, report.SchemaFingerprint, meta.SchemaFingerprint)
	assert.Equal(t, testKeys, meta.SchemaKeys)
}

func TestTrainVersionTagAddressesDistinctSlot(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	samples := syntheticDataset(4, 20)

	cfg := testConfig(base)
	_, err := Train(testSchema(), samples, cfg)
	require.NoError(t, err)

	cfg.VersionTag = "v2"
	_, err = Train(testSchema(), samples, cfg)
	require.NoError(t, err)

	slots, err := modelstore.List(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"logistic", "logistic-v2"}, slots)
}

func TestTrainSeedReproducibility(t *testing.T) {
	t.Parallel()

	samples := syntheticDataset(5, 30)

	first, err := Train(testSchema(), samples, testConfig(t.TempDir()))
	require.NoError(t, err)
	second, err := Train(testSchema(), samples, testConfig(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.TrainSize, second.TrainSize)
}

func TestTrainLockedBaseFails(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	held := flock.New(filepath.Join(base, ".train.lock"))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = held.Unlock() }()

	report, err := Train(testSchema(), syntheticDataset(6, 10), testConfig(base))
	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
}

func TestStratifiedSplitPreservesProportions(t *testing.T) {
	t.Parallel()

	// 30 real, 90 AI: both partitions keep the 1:3 ratio.
	samples := make([]features.LabeledSample, 0, 120)
	for i := range 120 {
		label := features.LabelAI
		if i < 30 {
			label = features.LabelReal
		}
		samples = append(samples, features.LabeledSample{
			Vector: features.Vector{"x": float64(i)},
			Label:  label,
		})
	}

	train, valid := stratifiedSplit(samples, 0.8, 1)
	assert.Len(t, train, 96)
	assert.Len(t, valid, 24)

	countReal := func(indices []int) int {
		n := 0
		for _, idx := range indices {
			if samples[idx].Label == features.LabelReal {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 24, countReal(train))
	assert.Equal(t, 6, countReal(valid))

	// No index appears twice.
	seen := map[int]bool{}
	for _, idx := range append(append([]int{}, train...), valid...) {
		assert.False(t, seen[idx], "index %d duplicated", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, 120)
}

func TestTrainPartialFailureReported(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir())
	cfg.Models = []classifier.Kind{classifier.KindLogistic, classifier.Kind("bogus")}

	report, err := Train(testSchema(), syntheticDataset(7, 20), cfg)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Contains(t, report.Metrics, "logistic")
	assert.Contains(t, report.Errors, "bogus")
}

func TestTrainFailFast(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir())
	cfg.Models = []classifier.Kind{classifier.Kind("bogus"), classifier.KindLogistic}
	cfg.FailFast = true

	report, err := Train(testSchema(), syntheticDataset(8, 20), cfg)
	assert.Nil(t, report)
	assert.Error(t, err)
}

func TestTrainAllMembersFail(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir())
	cfg.Models = []classifier.Kind{classifier.Kind("bogus")}

	report, err := Train(testSchema(), syntheticDataset(9, 20), cfg)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Empty(t, report.Metrics)
	assert.Contains(t, report.Errors, "bogus")
}

func TestRocAUC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		probabilities []float64
		y             []int
		want          float64
	}{
		{"perfect ranking", []float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1}, 1.0},
		{"inverted ranking", []float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1}, 0.0},
		{"all tied", []float64{0.5, 0.5, 0.5, 0.5}, []int{0, 1, 0, 1}, 0.5},
		{"single class", []float64{0.4, 0.6}, []int{1, 1}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, rocAUC(tt.probabilities, tt.y), 1e-12)
		})
	}
}
