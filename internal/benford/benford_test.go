package benford

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aprice/audiodetect-go/internal/errors"
)

func TestLeadingDigit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		magnitude float64
		want      int
	}{
		{"integer", 123, 1},
		{"sub-unit decimal", 0.0456, 4},
		{"negative magnitude", -789, 7},
		{"exactly one", 1, 1},
		{"nine point nine", 9.9, 9},
		{"power of ten", 1000, 1},
		{"tiny value", 3.2e-15, 3},
		{"huge value", 8.1e20, 8},
		{"zero", 0, 0},
		{"NaN", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 0},
		{"negative infinity", math.Inf(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, LeadingDigit(tt.magnitude))
		})
	}
}

// TestAnalyzeKnownDistribution checks the documented scenario: five values
// with leading digits 1..5 and the expected histogram from N=5.
func TestAnalyzeKnownDistribution(t *testing.T) {
	t.Parallel()

	// MinSamples is 10, so double the five canonical values.
	magnitudes := []float64{123, 234, 345, 456, 567, 123, 234, 345, 456, 567}

	stats, err := Analyze(magnitudes)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.SampleCount)
	assert.Equal(t, [Digits]int{2, 2, 2, 2, 2, 0, 0, 0, 0}, stats.Observed)

	// Expected counts are N * log10(1 + 1/d): for N=10 digit 1 expects
	// ~3.010 and digit 9 expects ~0.458.
	assert.InDelta(t, 10*math.Log10(2), stats.Expected[0], 1e-9)
	assert.InDelta(t, 10*math.Log10(1+1.0/9), stats.Expected[8], 1e-9)

	var wantChi2 float64
	for i := range stats.Observed {
		diff := float64(stats.Observed[i]) - stats.Expected[i]
		wantChi2 += diff * diff / stats.Expected[i]
	}
	assert.InDelta(t, wantChi2, stats.ChiSquare, 1e-12)
	assert.GreaterOrEqual(t, stats.ChiSquare, 0.0)
	assert.GreaterOrEqual(t, stats.PValue, 0.0)
	assert.LessOrEqual(t, stats.PValue, 1.0)
}

// TestAnalyzeHistogramSumInvariant verifies that the observed histogram sums
// exactly to the number of retained nonzero finite entries.
func TestAnalyzeHistogramSumInvariant(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	magnitudes := make([]float64, 0, 600)
	retained := 0
	for range 500 {
		m := rng.ExpFloat64() * math.Pow(10, float64(rng.Intn(6)-3))
		magnitudes = append(magnitudes, m)
		if m != 0 {
			retained++
		}
	}
	// Entries that must be discarded.
	magnitudes = append(magnitudes, 0, 0, math.NaN(), math.Inf(1), math.Inf(-1))

	stats, err := Analyze(magnitudes)
	require.NoError(t, err)

	sum := 0
	for _, count := range stats.Observed {
		sum += count
	}
	assert.Equal(t, retained, sum)
	assert.Equal(t, retained, stats.SampleCount)
}

func TestAnalyzeBenfordConformingData(t *testing.T) {
	t.Parallel()

	// Exponentially growing sequences are the textbook Benford generator.
	magnitudes := make([]float64, 0, 2000)
	value := 1.0
	for range 2000 {
		value *= 1.01
		magnitudes = append(magnitudes, value)
	}

	stats, err := Analyze(magnitudes)
	require.NoError(t, err)

	// Conforming data should not be rejected at any sane significance level.
	assert.Greater(t, stats.PValue, 0.01)
}

func TestAnalyzeUniformLeadingDigitsRejected(t *testing.T) {
	t.Parallel()

	// Equal counts of every leading digit are maximally non-Benford.
	magnitudes := make([]float64, 0, 900)
	for d := 1; d <= 9; d++ {
		for range 100 {
			magnitudes = append(magnitudes, float64(d))
		}
	}

	stats, err := Analyze(magnitudes)
	require.NoError(t, err)
	assert.Less(t, stats.PValue, 0.001)
}

func TestAnalyzeDegenerateInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		magnitudes []float64
	}{
		{"empty", nil},
		{"all zeros", make([]float64, 50)},
		{"all non-finite", []float64{math.NaN(), math.Inf(1), math.Inf(-1)}},
		{"below threshold", []float64{123, 234, 345, 456, 567}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stats, err := Analyze(tt.magnitudes)
			assert.Nil(t, stats)
			require.Error(t, err)
			assert.True(t, errors.IsDegenerateInput(err))
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	magnitudes := make([]float64, 200)
	for i := range magnitudes {
		magnitudes[i] = rng.Float64() * 1000
	}

	first, err := Analyze(magnitudes)
	require.NoError(t, err)
	second, err := Analyze(magnitudes)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMeanAbsoluteDeviation(t *testing.T) {
	t.Parallel()

	// Perfectly Benford-proportioned observed counts give near-zero MAD.
	stats := &Statistics{}
	total := 0
	for d := 1; d <= 9; d++ {
		count := int(math.Round(100000 * math.Log10(1+1/float64(d))))
		stats.Observed[d-1] = count
		total += count
	}
	stats.SampleCount = total

	assert.InDelta(t, 0.0, stats.MeanAbsoluteDeviation(), 1e-4)
}
