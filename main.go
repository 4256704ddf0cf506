package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aprice/audiodetect-go/cmd"
	"github.com/aprice/audiodetect-go/internal/conf"
	"github.com/aprice/audiodetect-go/internal/logging"
)

func main() {
	configPath := os.Getenv("AUDIODETECT_CONFIG")

	settings, err := conf.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var closeLog func() error

	rootCmd := cmd.RootCommand(settings)
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if settings.Output.Debug {
			level = slog.LevelDebug
		}

		// With a log path configured, records go to the rotated file and
		// stdout stays free for command output.
		if settings.Output.LogPath != "" {
			logger, closer, err := logging.NewFileLogger(settings.Output.LogPath, "audiodetect", level)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			closeLog = closer
			return nil
		}

		logging.Init(level)
		return nil
	}

	err = rootCmd.Execute()
	if closeLog != nil {
		_ = closeLog()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
