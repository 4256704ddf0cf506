// Package detector loads persisted ensembles and turns feature vectors
// into AI-versus-real verdicts with a per-model breakdown.
package detector

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/aprice/audiodetect-go/internal/classifier"
	"github.com/aprice/audiodetect-go/internal/errors"
	"github.com/aprice/audiodetect-go/internal/features"
	"github.com/aprice/audiodetect-go/internal/logging"
	"github.com/aprice/audiodetect-go/internal/modelstore"
)

// DefaultThreshold is the mean ensemble probability at or above which a
// vector is labeled AI-generated.
const DefaultThreshold = 0.5

// member is one loaded ensemble member.
type member struct {
	name  string
	model classifier.Classifier
}

// ModelScore is one entry of the per-model breakdown.
type ModelScore struct {
	Name        string
	Probability float64
}

// Result is the verdict for a single feature vector. The aggregate
// probability is the unweighted mean of the member probabilities; the
// breakdown preserves member order.
type Result struct {
	Label       features.Label
	Probability float64
	Breakdown   []ModelScore
}

// Ensemble is an immutable set of loaded models sharing one feature schema.
// It is safe for concurrent Predict and PredictBatch calls.
type Ensemble struct {
	schema    *features.Schema
	members   []member
	threshold float64
	workers   int
}

// Option adjusts ensemble behavior at load time.
type Option func(*Ensemble)

// WithThreshold overrides the default decision threshold.
func WithThreshold(threshold float64) Option {
	return func(e *Ensemble) { e.threshold = threshold }
}

// WithBatchWorkers caps the number of concurrent workers used by
// PredictBatch. Zero selects NumCPU.
func WithBatchWorkers(workers int) Option {
	return func(e *Ensemble) { e.workers = workers }
}

// Load reads every model slot under the base location and verifies each
// against the caller's feature schema. It fails with model-not-found when
// the location holds no artifacts and with schema-mismatch when a stored
// fingerprint disagrees with the supplied schema.
func Load(base string, schema *features.Schema, opts ...Option) (*Ensemble, error) {
	log := logging.ForService("detector")

	slots, err := modelstore.List(base)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, errors.Newf("no trained models found at %s", base).
			Component("detector").
			Category(errors.CategoryModelNotFound).
			Context("base_path", base).
			Build()
	}

	ensemble := &Ensemble{
		schema:    schema,
		threshold: DefaultThreshold,
	}

	fingerprint := schema.Fingerprint()
	for _, slot := range slots {
		model, meta, err := modelstore.Load(base, slot)
		if err != nil {
			return nil, err
		}
		if meta.SchemaFingerprint != fingerprint {
			return nil, errors.Newf("model %q was trained on schema %s but caller supplies %s (version %s)",
				slot, meta.SchemaFingerprint, fingerprint, schema.Version).
				Component("detector").
				Category(errors.CategorySchemaMismatch).
				Context("slot", slot).
				Context("stored_fingerprint", meta.SchemaFingerprint).
				Context("supplied_fingerprint", fingerprint).
				Build()
		}
		ensemble.members = append(ensemble.members, member{name: slot, model: model})
	}

	for _, opt := range opts {
		opt(ensemble)
	}
	if ensemble.workers <= 0 {
		ensemble.workers = runtime.NumCPU()
	}

	log.Info("ensemble loaded", "base", base, "members", len(ensemble.members))
	return ensemble, nil
}

// Predict runs every ensemble member on the vector and aggregates by
// unweighted mean probability. Missing schema keys and non-finite values
// are hard failures.
func (e *Ensemble) Predict(vec features.Vector) (*Result, error) {
	values, err := e.schema.Values(vec)
	if err != nil {
		return nil, err
	}
	return e.predictValues(values), nil
}

// predictValues scores an already validated, canonically ordered value
// slice.
func (e *Ensemble) predictValues(values []float64) *Result {
	breakdown := make([]ModelScore, len(e.members))
	var sum float64
	for i, m := range e.members {
		p := m.model.PredictProba(values)
		breakdown[i] = ModelScore{Name: m.name, Probability: p}
		sum += p
	}

	aggregate := sum / float64(len(e.members))
	label := features.LabelReal
	if aggregate >= e.threshold {
		label = features.LabelAI
	}
	return &Result{Label: label, Probability: aggregate, Breakdown: breakdown}
}

// PredictBatch scores every vector, preserving input order. It is
// semantically equivalent to calling Predict on each element; items are
// independent, so they are fanned out across workers. An empty batch
// returns an empty result slice.
func (e *Ensemble) PredictBatch(vecs []features.Vector) ([]*Result, error) {
	results := make([]*Result, len(vecs))
	if len(vecs) == 0 {
		return results, nil
	}

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range vecs {
		g.Go(func() error {
			result, err := e.Predict(vecs[i])
			if err != nil {
				return errors.Newf("batch item %d: %w", i, err).
					Component("detector").
					Category(categoryOf(err)).
					Context("batch_index", i).
					Build()
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Members returns the loaded member names in breakdown order.
func (e *Ensemble) Members() []string {
	names := make([]string, len(e.members))
	for i, m := range e.members {
		names[i] = m.name
	}
	return names
}

// categoryOf propagates the category of a wrapped enhanced error.
func categoryOf(err error) errors.ErrorCategory {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return errors.CategoryGeneric
}
