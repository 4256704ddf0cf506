// Package benchmark implements a throughput harness comparing sequential
// prediction against the concurrent batch path.
package benchmark

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aprice/audiodetect-go/internal/conf"
	"github.com/aprice/audiodetect-go/internal/detector"
	"github.com/aprice/audiodetect-go/internal/features"
	"github.com/aprice/audiodetect-go/internal/logging"
)

var (
	batchSize int
	rounds    int
)

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare sequential and batch prediction throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize < 1 {
				return fmt.Errorf("batch size must be positive, got %d", batchSize)
			}
			return runBenchmark(settings)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 256, "vectors per round")
	cmd.Flags().IntVar(&rounds, "rounds", 5, "measurement rounds")

	return cmd
}

func runBenchmark(settings *conf.Settings) error {
	log := logging.ForService("benchmark")

	extractor := features.NewExtractor(features.Config{
		FrameSize: settings.Extractor.FrameSize,
		HopSize:   settings.Extractor.HopSize,
	})
	schema := extractor.Schema()

	ensemble, err := detector.Load(settings.ModelPath, schema,
		detector.WithBatchWorkers(settings.Detector.BatchWorkers))
	if err != nil {
		return err
	}

	vecs := syntheticVectors(schema, batchSize)
	log.Info("benchmark starting",
		"members", len(ensemble.Members()), "batch_size", batchSize, "rounds", rounds)

	var sequentialTotal, batchTotal time.Duration
	for range rounds {
		start := time.Now()
		for _, vec := range vecs {
			if _, err := ensemble.Predict(vec); err != nil {
				return err
			}
		}
		sequentialTotal += time.Since(start)

		start = time.Now()
		if _, err := ensemble.PredictBatch(vecs); err != nil {
			return err
		}
		batchTotal += time.Since(start)
	}

	printComparison(sequentialTotal, batchTotal)
	return nil
}

// syntheticVectors builds schema-complete vectors with plausible value
// ranges. The harness measures throughput, not verdict quality.
func syntheticVectors(schema *features.Schema, n int) []features.Vector {
	rng := rand.New(rand.NewSource(1))
	vecs := make([]features.Vector, n)
	for i := range vecs {
		vec := make(features.Vector, len(schema.Keys))
		for _, key := range schema.Keys {
			vec[key] = rng.Float64() * 10
		}
		vecs[i] = vec
	}
	return vecs
}

func printComparison(sequential, batch time.Duration) {
	total := batchSize * rounds

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Path", "Total", "Per Vector", "Vectors/sec"})
	for _, row := range []struct {
		name    string
		elapsed time.Duration
	}{
		{"sequential", sequential},
		{"batch", batch},
	} {
		perVector := row.elapsed / time.Duration(total)
		rate := float64(total) / row.elapsed.Seconds()
		t.AppendRow(table.Row{row.name, row.elapsed.Round(time.Millisecond), perVector, fmt.Sprintf("%.0f", rate)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	if batch < sequential {
		fmt.Printf("Batch path is %.2fx faster.\n", sequential.Seconds()/batch.Seconds())
	} else {
		fmt.Printf("Sequential path is %.2fx faster.\n", batch.Seconds()/sequential.Seconds())
	}
}
