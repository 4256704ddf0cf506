// Package features turns raw audio sample sequences into fixed-schema
// feature vectors combining Benford leading-digit statistics with
// complementary signal descriptors.
package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/aprice/audiodetect-go/internal/benford"
	"github.com/aprice/audiodetect-go/internal/errors"
)

// Transform prefixes under which Benford statistics are folded into the
// vector.
const (
	prefixFFT = "fft" // per-frame FFT coefficient magnitudes
	prefixAmp = "amp" // absolute sample amplitudes
)

// amplitudeBins is the histogram resolution for the amplitude entropy
// descriptor.
const amplitudeBins = 50

// benfordPrefixes lists the magnitude transforms in canonical order.
var benfordPrefixes = []string{prefixFFT, prefixAmp}

// descriptorKeys lists the complementary statistical descriptors in
// canonical order.
var descriptorKeys = []string{
	"skewness",
	"kurtosis",
	"amplitude_entropy",
	"spectral_entropy",
	"rms_energy",
	"zero_crossing_rate",
	"spectral_centroid",
	"spectral_rolloff",
}

// Config controls framing for the spectral transform.
type Config struct {
	FrameSize int // FFT frame length in samples
	HopSize   int // hop between frames in samples
}

// DefaultConfig returns the extraction parameters used unless configured
// otherwise.
func DefaultConfig() Config {
	return Config{FrameSize: 2048, HopSize: 512}
}

// Extractor computes fixed-schema feature vectors from sample sequences.
// It is stateless apart from its configuration and safe for concurrent use.
type Extractor struct {
	cfg    Config
	schema *Schema
	fft    *fourier.FFT
}

// NewExtractor creates an extractor for the given configuration.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{
		cfg:    cfg,
		schema: buildSchema(),
		fft:    fourier.NewFFT(cfg.FrameSize),
	}
}

// Schema returns the versioned key set every extracted vector carries.
func (e *Extractor) Schema() *Schema {
	return e.schema
}

// buildSchema assembles the canonical key order: Benford keys per transform
// prefix, then the descriptor keys.
func buildSchema() *Schema {
	keys := make([]string, 0, len(benfordPrefixes)*13+len(descriptorKeys))
	for _, prefix := range benfordPrefixes {
		keys = append(keys,
			prefix+"_benford_chi2",
			prefix+"_benford_p",
			prefix+"_benford_mad",
		)
		for d := 1; d <= benford.Digits; d++ {
			keys = append(keys, prefix+"_benford_d"+string(rune('0'+d)))
		}
		keys = append(keys, prefix+"_benford_valid")
	}
	keys = append(keys, descriptorKeys...)
	return NewSchema(SchemaVersion, keys)
}

// Extract computes the feature vector for the raw samples. Identical input
// yields a bit-identical vector. Inputs shorter than one frame fail with a
// degenerate-input error; a degenerate magnitude sequence within an
// otherwise valid input is substituted with sentinel values and flagged
// through the corresponding <prefix>_benford_valid key.
func (e *Extractor) Extract(samples []float64) (Vector, error) {
	if len(samples) < e.cfg.FrameSize {
		return nil, errors.Newf("input has %d samples, need at least one full frame of %d",
			len(samples), e.cfg.FrameSize).
			Component("features").
			Category(errors.CategoryDegenerateInput).
			Context("sample_count", len(samples)).
			Context("frame_size", e.cfg.FrameSize).
			Build()
	}

	vec := make(Vector, len(e.schema.Keys))

	spectral := e.spectralMagnitudes(samples)
	foldBenford(vec, prefixFFT, spectral)

	amplitudes := make([]float64, len(samples))
	for i, s := range samples {
		amplitudes[i] = math.Abs(s)
	}
	foldBenford(vec, prefixAmp, amplitudes)

	vec["skewness"] = finiteOrZero(stat.Skew(samples, nil))
	vec["kurtosis"] = finiteOrZero(stat.ExKurtosis(samples, nil))
	vec["amplitude_entropy"] = amplitudeEntropy(amplitudes)
	vec["spectral_entropy"] = spectralEntropy(spectral, e.fft.Len()/2+1)
	vec["rms_energy"] = rmsEnergy(samples)
	vec["zero_crossing_rate"] = zeroCrossingRate(samples)

	centroid, rolloff := spectralShape(spectral, e.fft.Len()/2+1)
	vec["spectral_centroid"] = centroid
	vec["spectral_rolloff"] = rolloff

	return vec, nil
}

// foldBenford adds the Benford statistics of a magnitude sequence under the
// given key prefix. Degenerate sequences are substituted with sentinels
// (chi2=0, p=1, mad=0, all digit proportions 0) and valid=0 so the key set
// never changes.
func foldBenford(vec Vector, prefix string, magnitudes []float64) {
	stats, err := benford.Analyze(magnitudes)
	if err != nil {
		vec[prefix+"_benford_chi2"] = 0
		vec[prefix+"_benford_p"] = 1
		vec[prefix+"_benford_mad"] = 0
		for d := 1; d <= benford.Digits; d++ {
			vec[prefix+"_benford_d"+string(rune('0'+d))] = 0
		}
		vec[prefix+"_benford_valid"] = 0
		return
	}

	vec[prefix+"_benford_chi2"] = stats.ChiSquare
	vec[prefix+"_benford_p"] = stats.PValue
	vec[prefix+"_benford_mad"] = stats.MeanAbsoluteDeviation()
	props := stats.Proportions()
	for d := 1; d <= benford.Digits; d++ {
		vec[prefix+"_benford_d"+string(rune('0'+d))] = props[d-1]
	}
	vec[prefix+"_benford_valid"] = 1
}

// spectralMagnitudes concatenates the FFT coefficient magnitudes of every
// full frame, skipping the DC coefficient of each frame.
func (e *Extractor) spectralMagnitudes(samples []float64) []float64 {
	frameSize := e.cfg.FrameSize
	hop := e.cfg.HopSize
	coeffCount := frameSize/2 + 1

	frames := 1 + (len(samples)-frameSize)/hop
	magnitudes := make([]float64, 0, frames*(coeffCount-1))
	coeffs := make([]complex128, coeffCount)

	for start := 0; start+frameSize <= len(samples); start += hop {
		e.fft.Coefficients(coeffs, samples[start:start+frameSize])
		for _, c := range coeffs[1:] {
			magnitudes = append(magnitudes, cmplx.Abs(c))
		}
	}
	return magnitudes
}

// rmsEnergy returns the root-mean-square amplitude of the samples.
func rmsEnergy(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// zeroCrossingRate returns the fraction of adjacent sample pairs whose sign
// differs.
func zeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// amplitudeEntropy returns the normalized Shannon entropy of the amplitude
// histogram, in [0, 1].
func amplitudeEntropy(amplitudes []float64) float64 {
	var maxAmp float64
	for _, a := range amplitudes {
		if a > maxAmp {
			maxAmp = a
		}
	}
	if maxAmp == 0 {
		return 0
	}

	counts := make([]float64, amplitudeBins)
	for _, a := range amplitudes {
		bin := int(a / maxAmp * float64(amplitudeBins))
		if bin >= amplitudeBins {
			bin = amplitudeBins - 1
		}
		counts[bin]++
	}
	total := float64(len(amplitudes))
	for i := range counts {
		counts[i] /= total
	}
	return finiteOrZero(stat.Entropy(counts) / math.Log(amplitudeBins))
}

// spectralEntropy returns the normalized entropy of the mean power spectrum
// across frames, in [0, 1].
func spectralEntropy(magnitudes []float64, coeffCount int) float64 {
	bins := coeffCount - 1
	if bins <= 1 || len(magnitudes) < bins {
		return 0
	}

	power := make([]float64, bins)
	var total float64
	for i, m := range magnitudes {
		p := m * m
		power[i%bins] += p
		total += p
	}
	if total == 0 {
		return 0
	}
	for i := range power {
		power[i] /= total
	}
	return finiteOrZero(stat.Entropy(power) / math.Log(float64(bins)))
}

// spectralShape returns the spectral centroid and the 85% energy rolloff
// point of the mean magnitude spectrum, both as normalized bin positions
// in [0, 1].
func spectralShape(magnitudes []float64, coeffCount int) (centroid, rolloff float64) {
	bins := coeffCount - 1
	if bins <= 1 || len(magnitudes) < bins {
		return 0, 0
	}

	spectrum := make([]float64, bins)
	for i, m := range magnitudes {
		spectrum[i%bins] += m
	}

	var total, weighted float64
	for i, m := range spectrum {
		total += m
		weighted += float64(i) * m
	}
	if total == 0 {
		return 0, 0
	}
	centroid = weighted / total / float64(bins-1)

	target := 0.85 * total
	var cumulative float64
	for i, m := range spectrum {
		cumulative += m
		if cumulative >= target {
			rolloff = float64(i) / float64(bins-1)
			break
		}
	}
	return centroid, rolloff
}

// finiteOrZero clamps NaN and infinite descriptor values to zero so no
// non-finite value leaks into downstream statistics.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
