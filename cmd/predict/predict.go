// Package predict implements the prediction subcommand for single audio
// files and directories.
package predict

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aprice/audiodetect-go/internal/audiofile"
	"github.com/aprice/audiodetect-go/internal/conf"
	"github.com/aprice/audiodetect-go/internal/detector"
	"github.com/aprice/audiodetect-go/internal/features"
	"github.com/aprice/audiodetect-go/internal/logging"
)

var (
	showBreakdown bool
	csvPath       string
)

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [files or directories]",
		Short: "Classify audio as AI-generated or real using the trained ensemble",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(settings, args)
		},
	}

	cmd.Flags().BoolVar(&showBreakdown, "breakdown", false, "show per-model probabilities")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write results to a CSV file")

	return cmd
}

func runPredict(settings *conf.Settings, targets []string) error {
	log := logging.ForService("predict")

	extractor := features.NewExtractor(features.Config{
		FrameSize: settings.Extractor.FrameSize,
		HopSize:   settings.Extractor.HopSize,
	})

	ensemble, err := detector.Load(settings.ModelPath, extractor.Schema(),
		detector.WithThreshold(settings.Detector.Threshold),
		detector.WithBatchWorkers(settings.Detector.BatchWorkers))
	if err != nil {
		return err
	}

	var paths []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", target, err)
		}
		if info.IsDir() {
			found, err := audiofile.ListDir(target)
			if err != nil {
				return err
			}
			paths = append(paths, found...)
		} else {
			paths = append(paths, target)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported audio files found")
	}

	vecs := make([]features.Vector, len(paths))
	for i, path := range paths {
		raw, _, err := audiofile.ReadWAV(path)
		if err != nil {
			return err
		}
		vecs[i], err = extractor.Extract(raw)
		if err != nil {
			return err
		}
	}

	results, err := ensemble.PredictBatch(vecs)
	if err != nil {
		return err
	}
	log.Info("prediction complete", "files", len(paths), "members", len(ensemble.Members()))

	printResults(paths, results)
	if csvPath != "" {
		if err := writeResultsCSV(csvPath, paths, results); err != nil {
			return err
		}
		fmt.Printf("Results written to %s\n", csvPath)
	}
	return nil
}

func printResults(paths []string, results []*detector.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)

	header := table.Row{"File", "Verdict", "Probability"}
	if showBreakdown && len(results) > 0 {
		for _, score := range results[0].Breakdown {
			header = append(header, score.Name)
		}
	}
	t.AppendHeader(header)

	for i, result := range results {
		row := table.Row{paths[i], result.Label, fmt.Sprintf("%.4f", result.Probability)}
		if showBreakdown {
			for _, score := range result.Breakdown {
				row = append(row, fmt.Sprintf("%.4f", score.Probability))
			}
		}
		t.AppendRow(row)
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

func writeResultsCSV(path string, paths []string, results []*detector.Result) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	header := []string{"file", "verdict", "probability"}
	if len(results) > 0 {
		for _, score := range results[0].Breakdown {
			header = append(header, score.Name)
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, result := range results {
		row := []string{paths[i], string(result.Label), strconv.FormatFloat(result.Probability, 'g', -1, 64)}
		for _, score := range result.Breakdown {
			row = append(row, strconv.FormatFloat(score.Probability, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
