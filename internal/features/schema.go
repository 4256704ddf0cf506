package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/aprice/audiodetect-go/internal/errors"
)

// SchemaVersion tags the current feature key set. Any change to the
// transform or descriptor set must bump this so trainers and detectors can
// detect mismatches structurally.
const SchemaVersion = "v1"

// Vector maps feature names to double-precision values. Every vector
// produced by one extractor version carries an identical key set.
type Vector map[string]float64

// Label classifies a sample as naturally recorded or AI-generated.
type Label string

const (
	LabelReal Label = "real"
	LabelAI   Label = "ai-generated"
)

// LabeledSample pairs a feature vector with its ground-truth label.
type LabeledSample struct {
	Vector Vector
	Label  Label
}

// Schema is the versioned, ordered feature key set of an extractor
// configuration. The key order is canonical: trainers and detectors use it
// to turn vectors into positional value slices.
type Schema struct {
	Version string
	Keys    []string
}

// NewSchema builds a schema from a version tag and canonical key order.
func NewSchema(version string, keys []string) *Schema {
	return &Schema{Version: version, Keys: slices.Clone(keys)}
}

// Fingerprint returns a stable identifier over the schema version and the
// canonical key order. Two schemas with the same fingerprint accept the
// same vectors.
func (s *Schema) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(s.Version))
	for _, key := range s.Keys {
		h.Write([]byte{0})
		h.Write([]byte(key))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Matches reports whether the vector's key set equals the schema's key set
// exactly. The returned key names the first divergence: a key missing from
// the vector or an extra key the schema does not know.
func (s *Schema) Matches(vec Vector) (bool, string) {
	for _, key := range s.Keys {
		if _, ok := vec[key]; !ok {
			return false, key
		}
	}
	if len(vec) != len(s.Keys) {
		known := make(map[string]struct{}, len(s.Keys))
		for _, key := range s.Keys {
			known[key] = struct{}{}
		}
		extras := make([]string, 0, 1)
		for key := range vec {
			if _, ok := known[key]; !ok {
				extras = append(extras, key)
			}
		}
		slices.Sort(extras)
		return false, extras[0]
	}
	return true, ""
}

// Values orders the vector's values canonically. It fails with a
// feature-schema error listing every missing key, or an
// invalid-feature-value error naming the first non-finite entry.
func (s *Schema) Values(vec Vector) ([]float64, error) {
	var missing []string
	for _, key := range s.Keys {
		if _, ok := vec[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf("feature vector is missing required keys: %s", strings.Join(missing, ", ")).
			Component("features").
			Category(errors.CategoryFeatureSchema).
			Context("missing_keys", missing).
			Build()
	}

	values := make([]float64, len(s.Keys))
	for i, key := range s.Keys {
		v := vec[key]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Newf("feature %q has non-finite value %v", key, v).
				Component("features").
				Category(errors.CategoryInvalidFeatureValue).
				Context("feature_key", key).
				Build()
		}
		values[i] = v
	}
	return values, nil
}

// ValidateDataset checks that every labeled sample shares the schema's
// exact key set, failing with a schema-mismatch error naming the first
// divergent key and the offending sample index.
func (s *Schema) ValidateDataset(samples []LabeledSample) error {
	for i := range samples {
		if ok, divergent := s.Matches(samples[i].Vector); !ok {
			return errors.Newf("sample %d diverges from feature schema at key %q", i, divergent).
				Component("features").
				Category(errors.CategorySchemaMismatch).
				Context("sample_index", i).
				Context("divergent_key", divergent).
				Build()
		}
	}
	return nil
}

// ParseLabel converts a string into a Label.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelReal:
		return LabelReal, nil
	case LabelAI:
		return LabelAI, nil
	default:
		return "", fmt.Errorf("unknown label %q, want %q or %q", s, LabelReal, LabelAI)
	}
}
