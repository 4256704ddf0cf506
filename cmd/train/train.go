// Package train implements the model-training subcommand.
package train

import (
	"fmt"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aprice/audiodetect-go/internal/classifier"
	"github.com/aprice/audiodetect-go/internal/conf"
	"github.com/aprice/audiodetect-go/internal/features"
	"github.com/aprice/audiodetect-go/internal/logging"
	"github.com/aprice/audiodetect-go/internal/trainer"
)

var datasetPath string

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier ensemble from a feature dataset CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(settings)
		},
	}

	cmd.Flags().StringVarP(&datasetPath, "input", "i", "dataset.csv", "feature dataset CSV produced by extract")

	return cmd
}

func runTrain(settings *conf.Settings) error {
	log := logging.ForService("train")

	in, err := os.Open(datasetPath)
	if err != nil {
		return fmt.Errorf("failed to open dataset %s: %w", datasetPath, err)
	}
	defer in.Close()

	schema, dataset, err := features.ReadCSV(in)
	if err != nil {
		return err
	}
	log.Info("dataset loaded", "path", datasetPath, "samples", len(dataset), "features", len(schema.Keys))

	kinds := make([]classifier.Kind, 0, len(settings.Trainer.Models))
	for _, name := range settings.Trainer.Models {
		kinds = append(kinds, classifier.Kind(name))
	}

	report, err := trainer.Train(schema, dataset, trainer.Config{
		BasePath:   settings.ModelPath,
		Models:     kinds,
		Seed:       settings.Trainer.Seed,
		SplitRatio: settings.Trainer.SplitRatio,
		FailFast:   settings.Trainer.FailFast,
		VersionTag: settings.Trainer.VersionTag,
	})
	if err != nil {
		return err
	}

	printReport(report)
	for name, msg := range report.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s failed to train: %s\n", name, msg)
	}
	return nil
}

func printReport(report *trainer.Report) {
	fmt.Printf("Run %s: %d training / %d validation samples (schema %s)\n",
		report.RunID, report.TrainSize, report.ValidationSize, report.SchemaFingerprint[:12])

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Model", "Accuracy", "Precision", "Recall", "AUC"})
	for _, name := range sortedModelNames(report) {
		m := report.Metrics[name]
		t.AppendRow(table.Row{
			name,
			fmt.Sprintf("%.4f", m.Accuracy),
			fmt.Sprintf("%.4f", m.Precision),
			fmt.Sprintf("%.4f", m.Recall),
			fmt.Sprintf("%.4f", m.AUC),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func sortedModelNames(report *trainer.Report) []string {
	names := make([]string, 0, len(report.Metrics))
	for name := range report.Metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
