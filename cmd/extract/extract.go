// Package extract implements the dataset-preparation subcommand: it walks
// labeled audio directories, extracts feature vectors and writes them as a
// CSV dataset for training.
package extract

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aprice/audiodetect-go/internal/audiofile"
	"github.com/aprice/audiodetect-go/internal/conf"
	"github.com/aprice/audiodetect-go/internal/errors"
	"github.com/aprice/audiodetect-go/internal/features"
	"github.com/aprice/audiodetect-go/internal/logging"
)

var (
	humanDir   string
	aiDir      string
	outputPath string
)

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract features from labeled audio directories into a dataset CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if humanDir == "" || aiDir == "" {
				return fmt.Errorf("both --human and --ai directories are required")
			}
			return runExtract(settings)
		},
	}

	cmd.Flags().StringVar(&humanDir, "human", "", "directory of naturally recorded audio")
	cmd.Flags().StringVar(&aiDir, "ai", "", "directory of AI-generated audio")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "dataset.csv", "output dataset path")

	return cmd
}

func runExtract(settings *conf.Settings) error {
	log := logging.ForService("extract")
	extractor := features.NewExtractor(features.Config{
		FrameSize: settings.Extractor.FrameSize,
		HopSize:   settings.Extractor.HopSize,
	})

	var dataset []features.LabeledSample
	for _, source := range []struct {
		dir   string
		label features.Label
	}{
		{humanDir, features.LabelReal},
		{aiDir, features.LabelAI},
	} {
		samples, err := extractDir(extractor, source.dir, source.label, log)
		if err != nil {
			return err
		}
		if len(samples) == 0 {
			return fmt.Errorf("no usable audio files in %s", source.dir)
		}
		dataset = append(dataset, samples...)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create dataset file %s: %w", outputPath, err)
	}
	defer out.Close()

	if err := features.WriteCSV(out, extractor.Schema(), dataset); err != nil {
		return err
	}

	fmt.Printf("Wrote %d samples (%d features each) to %s\n",
		len(dataset), len(extractor.Schema().Keys), outputPath)
	return nil
}

func extractDir(extractor *features.Extractor, dir string, label features.Label, log *slog.Logger) ([]features.LabeledSample, error) {
	paths, err := audiofile.ListDir(dir)
	if err != nil {
		return nil, err
	}

	var samples []features.LabeledSample
	for _, path := range paths {
		raw, _, err := audiofile.ReadWAV(path)
		if err != nil {
			log.Warn("skipping undecodable file", "path", path, "error", err)
			continue
		}
		vec, err := extractor.Extract(raw)
		if err != nil {
			if errors.IsDegenerateInput(err) {
				log.Warn("skipping degenerate file", "path", path, "error", err)
				continue
			}
			return nil, err
		}
		samples = append(samples, features.LabeledSample{Vector: vec, Label: label})
	}

	log.Info("directory extracted", "dir", dir, "label", label, "samples", len(samples))
	return samples, nil
}
