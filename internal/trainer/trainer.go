// Package trainer fits the configured classifier ensemble against labeled
// feature vectors, validates each member on a held-out partition and
// persists the artifacts.
package trainer

import (
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/aprice/audiodetect-go/internal/classifier"
	"github.com/aprice/audiodetect-go/internal/errors"
	"github.com/aprice/audiodetect-go/internal/features"
	"github.com/aprice/audiodetect-go/internal/logging"
	"github.com/aprice/audiodetect-go/internal/modelstore"
)

// lockFile is the advisory lock taken on the storage base for the duration
// of a training run. Concurrent runs against the same base fail fast
// instead of interleaving slot writes.
const lockFile = ".train.lock"

// Config controls one training run.
type Config struct {
	BasePath   string            // model artifact storage base
	Models     []classifier.Kind // ensemble members to fit
	Seed       int64             // split and classifier RNG seed
	SplitRatio float64           // training partition fraction
	FailFast   bool              // abort on the first member fit failure
	VersionTag string            // optional slot suffix; empty overwrites the plain slot
}

// Report summarizes a training run. Fit failures of individual members are
// partial failures: the member is omitted from Metrics and recorded in
// Errors instead.
type Report struct {
	RunID             string
	SchemaFingerprint string
	TrainSize         int
	ValidationSize    int
	Metrics           map[string]Metrics
	Errors            map[string]string
}

// Train fits every configured ensemble member on the labeled dataset and
// persists each fitted model with its metadata. The dataset must be
// non-empty, contain both labels and share the schema's exact key set.
func Train(schema *features.Schema, dataset []features.LabeledSample, cfg Config) (*Report, error) {
	log := logging.ForService("trainer")

	if err := checkDataset(dataset); err != nil {
		return nil, err
	}
	if err := schema.ValidateDataset(dataset); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, errors.Newf("failed to create model storage %s: %v", cfg.BasePath, err).
			Component("trainer").
			Category(errors.CategoryFileIO).
			Build()
	}

	baseLock := flock.New(filepath.Join(cfg.BasePath, lockFile))
	locked, err := baseLock.TryLock()
	if err != nil {
		return nil, errors.Newf("failed to acquire training lock for %s: %v", cfg.BasePath, err).
			Component("trainer").
			Category(errors.CategoryFileIO).
			Build()
	}
	if !locked {
		return nil, errors.Newf("another training run holds the lock on %s", cfg.BasePath).
			Component("trainer").
			Category(errors.CategoryConflict).
			Context("base_path", cfg.BasePath).
			Build()
	}
	defer func() {
		if err := baseLock.Unlock(); err != nil {
			log.Warn("failed to release training lock", "error", err)
		}
	}()

	trainIdx, validIdx := stratifiedSplit(dataset, cfg.SplitRatio, cfg.Seed)
	// Tiny datasets can leave the validation partition empty; members are
	// then scored on the training rows.
	if len(validIdx) == 0 {
		validIdx = trainIdx
	}

	trainX, trainY, err := matrix(schema, dataset, trainIdx)
	if err != nil {
		return nil, err
	}
	validX, validY, err := matrix(schema, dataset, validIdx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:             uuid.NewString(),
		SchemaFingerprint: schema.Fingerprint(),
		TrainSize:         len(trainIdx),
		ValidationSize:    len(validIdx),
		Metrics:           make(map[string]Metrics, len(cfg.Models)),
		Errors:            make(map[string]string),
	}

	log.Info("training ensemble",
		"run_id", report.RunID,
		"members", len(cfg.Models),
		"train_size", report.TrainSize,
		"validation_size", report.ValidationSize)

	for _, kind := range cfg.Models {
		slot := slotName(kind, cfg.VersionTag)
		metrics, err := fitAndPersist(kind, slot, trainX, trainY, validX, validY, schema, report.RunID, cfg)
		if err != nil {
			if cfg.FailFast {
				return nil, err
			}
			log.Error("ensemble member failed to fit", "member", kind, "error", err)
			report.Errors[string(kind)] = err.Error()
			continue
		}
		report.Metrics[string(kind)] = metrics
		log.Info("ensemble member trained",
			"member", kind,
			"accuracy", metrics.Accuracy,
			"auc", metrics.AUC)
	}

	if len(report.Metrics) == 0 {
		return report, errors.Newf("no ensemble member could be fitted (%d failures)", len(report.Errors)).
			Component("trainer").
			Category(errors.CategoryModelFit).
			Build()
	}
	return report, nil
}

// fitAndPersist trains one member, scores it on the validation partition
// and writes its slot.
func fitAndPersist(kind classifier.Kind, slot string, trainX [][]float64, trainY []int,
	validX [][]float64, validY []int, schema *features.Schema, runID string, cfg Config) (Metrics, error) {

	c, err := classifier.New(kind, cfg.Seed)
	if err != nil {
		return Metrics{}, err
	}
	if err := c.Fit(trainX, trainY); err != nil {
		return Metrics{}, err
	}

	probabilities := make([]float64, len(validX))
	for i, row := range validX {
		probabilities[i] = c.PredictProba(row)
	}
	metrics := evaluate(probabilities, validY)

	meta := &modelstore.Metadata{
		Name:              slot,
		Kind:              kind,
		SchemaVersion:     schema.Version,
		SchemaFingerprint: schema.Fingerprint(),
		SchemaKeys:        schema.Keys,
		TrainedAt:         time.Now().UTC(),
		RunID:             runID,
		Metrics:           metrics.ToMap(),
	}
	if err := modelstore.Save(cfg.BasePath, slot, c, meta); err != nil {
		return Metrics{}, err
	}
	return metrics, nil
}

// slotName maps an ensemble member to its storage slot. A version tag makes
// retraining non-destructive by addressing a distinct slot.
func slotName(kind classifier.Kind, versionTag string) string {
	if versionTag == "" {
		return string(kind)
	}
	return string(kind) + "-" + versionTag
}

// checkDataset enforces the insufficient-data preconditions: non-empty and
// at least one sample of each label.
func checkDataset(dataset []features.LabeledSample) error {
	if len(dataset) == 0 {
		return errors.Newf("training dataset is empty").
			Component("trainer").
			Category(errors.CategoryInsufficientData).
			Build()
	}
	counts := map[features.Label]int{}
	for i := range dataset {
		counts[dataset[i].Label]++
	}
	for _, label := range []features.Label{features.LabelReal, features.LabelAI} {
		if counts[label] == 0 {
			return errors.Newf("training dataset has no %q samples", label).
				Component("trainer").
				Category(errors.CategoryInsufficientData).
				Context("missing_label", string(label)).
				Build()
		}
	}
	return nil
}

// stratifiedSplit partitions sample indices into train and validation sets
// preserving label proportions. The shuffle is seeded for reproducibility.
func stratifiedSplit(dataset []features.LabeledSample, ratio float64, seed int64) (train, valid []int) {
	groups := map[features.Label][]int{}
	for i := range dataset {
		groups[dataset[i].Label] = append(groups[dataset[i].Label], i)
	}

	rng := rand.New(rand.NewSource(seed))
	for _, label := range []features.Label{features.LabelReal, features.LabelAI} {
		indices := groups[label]
		rng.Shuffle(len(indices), func(a, b int) {
			indices[a], indices[b] = indices[b], indices[a]
		})

		cut := int(ratio * float64(len(indices)))
		if cut == 0 && len(indices) > 0 {
			cut = 1
		}
		if cut == len(indices) && len(indices) > 1 {
			cut = len(indices) - 1
		}
		train = append(train, indices[:cut]...)
		valid = append(valid, indices[cut:]...)
	}
	return train, valid
}

// matrix extracts the selected rows as positional value slices and binary
// labels.
func matrix(schema *features.Schema, dataset []features.LabeledSample, indices []int) ([][]float64, []int, error) {
	X := make([][]float64, len(indices))
	y := make([]int, len(indices))
	for i, idx := range indices {
		values, err := schema.Values(dataset[idx].Vector)
		if err != nil {
			return nil, nil, err
		}
		X[i] = values
		if dataset[idx].Label == features.LabelAI {
			y[i] = 1
		}
	}
	return X, y, nil
}
