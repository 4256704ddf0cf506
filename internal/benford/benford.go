// Package benford computes leading-digit distributions of magnitude
// sequences and their goodness of fit against Benford's law.
//
// Benford's law predicts that in many naturally occurring numeric
// collections the leading digit d appears with probability log10(1 + 1/d).
// AI-generated audio tends to deviate from this distribution in its
// transform-coefficient magnitudes, which is what the feature extractor
// exploits.
package benford

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aprice/audiodetect-go/internal/errors"
)

// Digits is the number of leading-digit buckets (digits 1 through 9).
const Digits = 9

// DegreesOfFreedom for the chi-square test over the digit buckets.
const DegreesOfFreedom = Digits - 1

// MinSamples is the minimum number of retained nonzero magnitudes required
// for a meaningful statistic. Below this the chi-square approximation is
// unusable and Analyze reports a degenerate-input error.
const MinSamples = 10

// Statistics holds the observed leading-digit distribution of a magnitude
// sequence and its goodness of fit against the Benford distribution.
type Statistics struct {
	Observed    [Digits]int     // observed counts, index 0 is digit 1
	Expected    [Digits]float64 // expected counts under Benford's law
	ChiSquare   float64         // chi-square statistic, >= 0
	PValue      float64         // survival probability, in [0, 1]
	SampleCount int             // retained nonzero finite magnitudes
}

// Proportions returns the observed digit distribution normalized to sum
// to one.
func (s *Statistics) Proportions() [Digits]float64 {
	var props [Digits]float64
	if s.SampleCount == 0 {
		return props
	}
	n := float64(s.SampleCount)
	for i, count := range s.Observed {
		props[i] = float64(count) / n
	}
	return props
}

// MeanAbsoluteDeviation returns the mean absolute deviation between the
// observed digit proportions and the theoretical Benford proportions.
func (s *Statistics) MeanAbsoluteDeviation() float64 {
	props := s.Proportions()
	var sum float64
	for i := range props {
		sum += math.Abs(props[i] - expectedProportion(i+1))
	}
	return sum / Digits
}

// expectedProportion returns the Benford probability of leading digit d.
func expectedProportion(d int) float64 {
	return math.Log10(1 + 1/float64(d))
}

// LeadingDigit returns the first nonzero base-10 digit of the magnitude, or
// 0 when none exists (zero or non-finite input).
func LeadingDigit(magnitude float64) int {
	m := math.Abs(magnitude)
	if m == 0 || math.IsInf(m, 0) || math.IsNaN(m) {
		return 0
	}
	// Scale into [1, 10) and truncate. Floating-point log/pow can land a
	// hair outside the interval, so correct with at most one more step.
	exponent := math.Floor(math.Log10(m))
	m /= math.Pow(10, exponent)
	for m >= 10 {
		m /= 10
	}
	for m < 1 {
		m *= 10
	}
	return int(m)
}

// Analyze computes the leading-digit distribution of the magnitudes and the
// chi-square goodness of fit against Benford's law. Zero and non-finite
// entries are discarded before digit extraction. The function is pure: it
// depends only on its input and is deterministic across calls.
func Analyze(magnitudes []float64) (*Statistics, error) {
	stats := &Statistics{}

	for _, m := range magnitudes {
		digit := LeadingDigit(m)
		if digit == 0 {
			continue
		}
		stats.Observed[digit-1]++
		stats.SampleCount++
	}

	if stats.SampleCount < MinSamples {
		return nil, errors.Newf("too few nonzero magnitudes for Benford analysis: got %d, need at least %d",
			stats.SampleCount, MinSamples).
			Component("benford").
			Category(errors.CategoryDegenerateInput).
			Context("retained_count", stats.SampleCount).
			Context("min_samples", MinSamples).
			Build()
	}

	n := float64(stats.SampleCount)
	for i := range stats.Expected {
		stats.Expected[i] = n * expectedProportion(i+1)
	}

	for i := range stats.Observed {
		diff := float64(stats.Observed[i]) - stats.Expected[i]
		stats.ChiSquare += diff * diff / stats.Expected[i]
	}

	chi2 := distuv.ChiSquared{K: DegreesOfFreedom}
	stats.PValue = chi2.Survival(stats.ChiSquare)

	return stats, nil
}
