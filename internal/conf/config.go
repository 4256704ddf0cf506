// Package conf defines the runtime settings for the detector and loads them
// through viper from defaults, an optional YAML config file and environment
// variables.
package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ExtractorSettings controls feature extraction.
type ExtractorSettings struct {
	FrameSize int // FFT frame length in samples
	HopSize   int // hop between frames in samples
}

// TrainerSettings controls ensemble training.
type TrainerSettings struct {
	Models     []string // ensemble member kinds to fit
	Seed       int64    // split and classifier RNG seed
	SplitRatio float64  // training partition fraction, e.g. 0.8
	FailFast   bool     // abort run on first member fit failure
	VersionTag string   // optional slot suffix, empty means overwrite
}

// DetectorSettings controls inference.
type DetectorSettings struct {
	Threshold    float64 // mean probability at or above which label is AI
	BatchWorkers int     // max concurrent workers in batch prediction, 0 = NumCPU
}

// OutputSettings controls CLI output.
type OutputSettings struct {
	Debug   bool   // enable debug logging
	LogPath string // optional rotated JSON log file, empty disables
}

// Settings contains all runtime configuration.
type Settings struct {
	ModelPath string // base directory for persisted model artifacts
	Extractor ExtractorSettings
	Trainer   TrainerSettings
	Detector  DetectorSettings
	Output    OutputSettings
}

// setDefaults registers the default value for every setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("modelpath", "models")
	v.SetDefault("extractor.framesize", 2048)
	v.SetDefault("extractor.hopsize", 512)
	v.SetDefault("trainer.models", []string{"logistic", "random_forest", "gradient_boosting"})
	v.SetDefault("trainer.seed", int64(42))
	v.SetDefault("trainer.splitratio", 0.8)
	v.SetDefault("trainer.failfast", false)
	v.SetDefault("trainer.versiontag", "")
	v.SetDefault("detector.threshold", 0.5)
	v.SetDefault("detector.batchworkers", 0)
	v.SetDefault("output.debug", false)
	v.SetDefault("output.logpath", "")
}

// Load reads settings from the optional config file path, environment
// variables prefixed with AUDIODETECT_, and built-in defaults, in that
// order of precedence.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("audiodetect")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks setting values that would cause confusing failures deeper
// in the pipeline.
func Validate(s *Settings) error {
	if s.Extractor.FrameSize < 16 {
		return fmt.Errorf("extractor.framesize must be at least 16, got %d", s.Extractor.FrameSize)
	}
	if s.Extractor.HopSize < 1 || s.Extractor.HopSize > s.Extractor.FrameSize {
		return fmt.Errorf("extractor.hopsize must be in [1, framesize], got %d", s.Extractor.HopSize)
	}
	if s.Trainer.SplitRatio <= 0 || s.Trainer.SplitRatio >= 1 {
		return fmt.Errorf("trainer.splitratio must be in (0, 1), got %g", s.Trainer.SplitRatio)
	}
	if s.Detector.Threshold < 0 || s.Detector.Threshold > 1 {
		return fmt.Errorf("detector.threshold must be in [0, 1], got %g", s.Detector.Threshold)
	}
	if len(s.Trainer.Models) == 0 {
		return fmt.Errorf("trainer.models must name at least one ensemble member")
	}
	return nil
}
