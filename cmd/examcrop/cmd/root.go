// Package cmd implements the examcrop CLI: a rootCmd carrying the
// persistent logging flags, with the extract operation as its default
// action.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kpark/examsplit/internal/version"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitPartial      = 10
	ExitFailed       = 20
	ExitInvalidInput = 30
)

var rootCmd = &cobra.Command{
	Use:   "examcrop",
	Short: "Split scanned exam PDFs into one cropped image per problem",
	Long: `examcrop rasterizes a PDF, detects its column layout, locates numbered
problem markers with a local OCR pass, and escalates only the columns
with detection gaps to a remote OCR engine before cropping each
problem to its own image file.

Example:
  examcrop --pdf exam.pdf --out ./out --strategy local_then_remote`,
	Version: version.String(),
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

// setupLogging configures the global slog logger from the persistent
// flags; --verbose overrides --log-level.
func setupLogging(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	levelStr, _ := cmd.Flags().GetString("log-level")

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	} else {
		switch levelStr {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Execute runs the CLI and returns the process exit code. Partial
// success and invalid input are distinguished from a hard failure.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitInvalidInput
	}
	return exitCode
}
