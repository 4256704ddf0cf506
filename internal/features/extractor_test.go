package features

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aprice/audiodetect-go/internal/errors"
)

// testSignal generates a deterministic pseudo-audio signal: a sum of tones
// with seeded noise, normalized to [-1, 1].
func testSignal(seed int64, length int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, length)
	for i := range samples {
		t := float64(i) / 44100.0
		samples[i] = 0.4*math.Sin(2*math.Pi*440*t) +
			0.2*math.Sin(2*math.Pi*1370*t) +
			0.1*(rng.Float64()*2-1)
	}
	return samples
}

func TestExtractSchemaStability(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())

	first, err := e.Extract(testSignal(1, 8192))
	require.NoError(t, err)
	second, err := e.Extract(testSignal(99, 16384))
	require.NoError(t, err)

	// Different inputs, identical key sets, both matching the schema.
	ok, divergent := e.Schema().Matches(first)
	assert.True(t, ok, "first vector diverged at %q", divergent)
	ok, divergent = e.Schema().Matches(second)
	assert.True(t, ok, "second vector diverged at %q", divergent)
	assert.Equal(t, len(e.Schema().Keys), len(first))
	assert.Equal(t, len(first), len(second))
}

func TestExtractDeterministic(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	samples := testSignal(3, 8192)

	first, err := e.Extract(samples)
	require.NoError(t, err)
	second, err := e.Extract(samples)
	require.NoError(t, err)

	// Bit-identical, not just within tolerance.
	assert.Equal(t, first, second)
}

func TestExtractAllValuesFinite(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	vec, err := e.Extract(testSignal(5, 8192))
	require.NoError(t, err)

	for key, value := range vec {
		assert.False(t, math.IsNaN(value) || math.IsInf(value, 0),
			"feature %q has non-finite value %v", key, value)
	}
}

func TestExtractBenfordKeysPresent(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	vec, err := e.Extract(testSignal(8, 8192))
	require.NoError(t, err)

	for _, prefix := range []string{"fft", "amp"} {
		assert.Contains(t, vec, prefix+"_benford_chi2")
		assert.Contains(t, vec, prefix+"_benford_p")
		assert.Contains(t, vec, prefix+"_benford_mad")
		assert.Contains(t, vec, prefix+"_benford_valid")

		assert.GreaterOrEqual(t, vec[prefix+"_benford_chi2"], 0.0)
		assert.GreaterOrEqual(t, vec[prefix+"_benford_p"], 0.0)
		assert.LessOrEqual(t, vec[prefix+"_benford_p"], 1.0)
		assert.Equal(t, 1.0, vec[prefix+"_benford_valid"])

		var propSum float64
		for d := 1; d <= 9; d++ {
			propSum += vec[prefix+"_benford_d"+string(rune('0'+d))]
		}
		assert.InDelta(t, 1.0, propSum, 1e-9)
	}
}

// TestExtractDegenerateSubstitution covers the substitution policy: silence
// has no nonzero magnitudes, so both Benford blocks carry sentinel values
// with valid=0 while the key set stays unchanged.
func TestExtractDegenerateSubstitution(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	silence := make([]float64, 8192)

	vec, err := e.Extract(silence)
	require.NoError(t, err)

	ok, divergent := e.Schema().Matches(vec)
	assert.True(t, ok, "silence vector diverged at %q", divergent)

	for _, prefix := range []string{"fft", "amp"} {
		assert.Equal(t, 0.0, vec[prefix+"_benford_valid"])
		assert.Equal(t, 0.0, vec[prefix+"_benford_chi2"])
		assert.Equal(t, 1.0, vec[prefix+"_benford_p"])
		assert.Equal(t, 0.0, vec[prefix+"_benford_mad"])
	}

	// Descriptors of a constant signal must be defined and finite.
	assert.Equal(t, 0.0, vec["rms_energy"])
	assert.Equal(t, 0.0, vec["skewness"])
}

func TestExtractTooShortInput(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())

	for _, samples := range [][]float64{nil, {}, testSignal(1, 100)} {
		vec, err := e.Extract(samples)
		assert.Nil(t, vec)
		require.Error(t, err)
		assert.True(t, errors.IsDegenerateInput(err))
	}
}

func TestSchemaFingerprint(t *testing.T) {
	t.Parallel()

	base := NewSchema("v1", []string{"a", "b", "c"})

	assert.Equal(t, base.Fingerprint(), NewSchema("v1", []string{"a", "b", "c"}).Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), NewSchema("v2", []string{"a", "b", "c"}).Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), NewSchema("v1", []string{"a", "b"}).Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), NewSchema("v1", []string{"c", "b", "a"}).Fingerprint())
}

func TestSchemaValues(t *testing.T) {
	t.Parallel()

	schema := NewSchema("v1", []string{"x", "y"})

	t.Run("ordered values", func(t *testing.T) {
		t.Parallel()
		values, err := schema.Values(Vector{"y": 2, "x": 1})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, values)
	})

	t.Run("missing key named", func(t *testing.T) {
		t.Parallel()
		_, err := schema.Values(Vector{"x": 1})
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryFeatureSchema))
		assert.Contains(t, err.Error(), "y")
	})

	t.Run("non-finite value named", func(t *testing.T) {
		t.Parallel()
		_, err := schema.Values(Vector{"x": 1, "y": math.NaN()})
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryInvalidFeatureValue))
		assert.Contains(t, err.Error(), "y")
	})
}

func TestValidateDatasetNamesDivergentKey(t *testing.T) {
	t.Parallel()

	schema := NewSchema("v1", []string{"a", "b"})
	samples := []LabeledSample{
		{Vector: Vector{"a": 1, "b": 2}, Label: LabelReal},
		{Vector: Vector{"a": 1, "c": 3}, Label: LabelAI},
	}

	err := schema.ValidateDataset(samples)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), `"b"`)
	assert.Contains(t, err.Error(), "sample 1")
}
