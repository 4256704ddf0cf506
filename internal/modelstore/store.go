// Package modelstore persists trained ensemble members. Each member
// occupies one slot directory under a base location, holding the
// serialized classifier and a YAML metadata record.
package modelstore

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aprice/audiodetect-go/internal/classifier"
	"github.com/aprice/audiodetect-go/internal/errors"
)

const (
	artifactFile = "model.msgpack"
	metadataFile = "metadata.yaml"
)

// Metadata is the per-slot record describing a persisted model.
type Metadata struct {
	Name              string             `yaml:"name"`
	Kind              classifier.Kind    `yaml:"kind"`
	SchemaVersion     string             `yaml:"schema_version"`
	SchemaFingerprint string             `yaml:"schema_fingerprint"`
	SchemaKeys        []string           `yaml:"schema_keys"`
	TrainedAt         time.Time          `yaml:"trained_at"`
	RunID             string             `yaml:"run_id"`
	Metrics           map[string]float64 `yaml:"metrics"`
}

// Save writes the classifier artifact and its metadata into the named slot,
// creating the slot directory as needed. Saving overwrites any prior
// artifact at the same slot.
func Save(base, slot string, c classifier.Classifier, meta *Metadata) error {
	slotDir := filepath.Join(base, slot)
	if err := os.MkdirAll(slotDir, 0o755); err != nil {
		return errors.Newf("failed to create model slot %s: %v", slotDir, err).
			Component("modelstore").
			Category(errors.CategoryFileIO).
			Context("slot", slot).
			Build()
	}

	artifact, err := classifier.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(slotDir, artifactFile), artifact, 0o644); err != nil {
		return errors.Newf("failed to write model artifact for slot %s: %v", slot, err).
			Component("modelstore").
			Category(errors.CategoryFileIO).
			Context("slot", slot).
			Build()
	}

	metaBytes, err := yaml.Marshal(meta)
	if err != nil {
		return errors.Newf("failed to encode metadata for slot %s: %v", slot, err).
			Component("modelstore").
			Category(errors.CategoryFileIO).
			Context("slot", slot).
			Build()
	}
	if err := os.WriteFile(filepath.Join(slotDir, metadataFile), metaBytes, 0o644); err != nil {
		return errors.Newf("failed to write metadata for slot %s: %v", slot, err).
			Component("modelstore").
			Category(errors.CategoryFileIO).
			Context("slot", slot).
			Build()
	}
	return nil
}

// Load reads one slot back into a fitted classifier and its metadata.
func Load(base, slot string) (classifier.Classifier, *Metadata, error) {
	slotDir := filepath.Join(base, slot)

	metaBytes, err := os.ReadFile(filepath.Join(slotDir, metadataFile))
	if err != nil {
		return nil, nil, errors.Newf("no metadata record in model slot %s: %v", slot, err).
			Component("modelstore").
			Category(errors.CategoryModelNotFound).
			Context("slot", slot).
			Build()
	}
	meta := &Metadata{}
	if err := yaml.Unmarshal(metaBytes, meta); err != nil {
		return nil, nil, errors.Newf("corrupt metadata record in model slot %s: %v", slot, err).
			Component("modelstore").
			Category(errors.CategoryModelLoad).
			Context("slot", slot).
			Build()
	}

	artifact, err := os.ReadFile(filepath.Join(slotDir, artifactFile))
	if err != nil {
		return nil, nil, errors.Newf("no model artifact in slot %s: %v", slot, err).
			Component("modelstore").
			Category(errors.CategoryModelNotFound).
			Context("slot", slot).
			Build()
	}

	c, err := classifier.Unmarshal(meta.Kind, artifact)
	if err != nil {
		return nil, nil, err
	}
	return c, meta, nil
}

// List returns the slot names under the base location in sorted order. A
// missing base directory is reported as an empty list; callers translate
// emptiness into a model-not-found condition where appropriate.
func List(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Newf("failed to list model storage %s: %v", base, err).
			Component("modelstore").
			Category(errors.CategoryFileIO).
			Build()
	}

	var slots []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(base, entry.Name(), metadataFile)); err == nil {
			slots = append(slots, entry.Name())
		}
	}
	slices.Sort(slots)
	return slots, nil
}
