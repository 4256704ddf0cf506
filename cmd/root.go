package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aprice/audiodetect-go/cmd/benchmark"
	"github.com/aprice/audiodetect-go/cmd/extract"
	"github.com/aprice/audiodetect-go/cmd/predict"
	"github.com/aprice/audiodetect-go/cmd/train"
	"github.com/aprice/audiodetect-go/internal/conf"
)

// RootCommand creates and returns the root command with all subcommands
// attached.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "audiodetect",
		Short: "Detect AI-generated audio with Benford's-law statistics",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		extract.Command(settings),
		train.Command(settings),
		predict.Command(settings),
		benchmark.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVar(&settings.Output.Debug, "debug", settings.Output.Debug, "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.ModelPath, "models", "m", settings.ModelPath, "Base directory for trained model artifacts")
	rootCmd.PersistentFlags().Float64VarP(&settings.Detector.Threshold, "threshold", "t", settings.Detector.Threshold, "Mean probability at or above which audio is labeled AI-generated")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
