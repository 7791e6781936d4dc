package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kpark/examsplit/internal/config"
	"github.com/kpark/examsplit/internal/crop"
	"github.com/kpark/examsplit/internal/ocr/local"
	"github.com/kpark/examsplit/internal/ocr/remote"
	"github.com/kpark/examsplit/internal/orchestrator"
	"github.com/kpark/examsplit/internal/raster"
)

// exitCode is read by Execute() after rootCmd.Execute() returns nil;
// it is only meaningful once runExtract has completed.
var exitCode = ExitOK

func init() {
	flags := rootCmd.Flags()
	flags.String("pdf", "", "path to the exam PDF to process (required)")
	flags.String("out", "", "output directory for cropped problem images and manifest.json (required)")
	flags.String("strategy", string(config.StrategyLocalThenRemote),
		"OCR escalation strategy: local_only, local_then_remote, manual_fallback")
	flags.Int("dpi", config.DefaultDPI, "rasterization resolution in DPI")
	flags.Int("max-retries", config.DefaultMaxRetries, "maximum retry attempts per OCR call")
	flags.String("remote-credentials-file", "", "path to a file containing app_id=... and app_key=... lines")
	flags.String("remote-base-url", os.Getenv("REMOTE_OCR_BASE_URL"), "base URL of the remote OCR endpoint")
	flags.Int("expected-problems", 0, "expected problem count per column (0 = infer from stage 1)")
	flags.String("format", "png", "output image format: png or jpg")

	rootCmd.RunE = runExtract
}

// runExtract parses and validates flags, wires the orchestrator's
// dependencies, and drives a single job. A non-nil return from this
// function always means "invalid input" (exit 30); runtime failures
// that occur once the job has started are instead recorded into
// exitCode via the manifest's own status, keeping a malformed request
// distinguishable from a job that ran and failed.
func runExtract(cmd *cobra.Command, _ []string) error {
	logger := setupLogging(cmd)

	pdfPath, _ := cmd.Flags().GetString("pdf")
	outDir, _ := cmd.Flags().GetString("out")
	strategy, _ := cmd.Flags().GetString("strategy")
	dpi, _ := cmd.Flags().GetInt("dpi")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	credsFile, _ := cmd.Flags().GetString("remote-credentials-file")
	baseURL, _ := cmd.Flags().GetString("remote-base-url")
	expected, _ := cmd.Flags().GetInt("expected-problems")
	formatStr, _ := cmd.Flags().GetString("format")

	if pdfPath == "" {
		return fmt.Errorf("--pdf is required")
	}
	if outDir == "" {
		return fmt.Errorf("--out is required")
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return fmt.Errorf("--pdf: %w", err)
	}

	format := crop.FormatPNG
	switch formatStr {
	case "png":
		format = crop.FormatPNG
	case "jpg", "jpeg":
		format = crop.FormatJPEG
	default:
		return fmt.Errorf("--format: unknown value %q (must be png or jpg)", formatStr)
	}

	jobCfg := config.JobConfig{
		Strategy:             config.Strategy(strategy),
		DPI:                  dpi,
		MaxRetries:           maxRetries,
		MinLocalConfidence:   config.DefaultMinLocalConfidence,
		MinRemoteConfidence:  config.DefaultMinRemoteConfidence,
		ExpectedProblemCount: expected,
	}

	creds, err := resolveCredentials(credsFile)
	if err != nil {
		return err
	}
	jobCfg.RemoteCredentials = creds

	if err := jobCfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if jobCfg.MissingRemoteCredentials() {
		logger.Warn("no remote credentials configured; columns with detection gaps will complete partial")
	}

	localEngine := local.New(local.DefaultConfig())
	remoteEngine := remote.New(remote.Config{
		BaseURL:     baseURL,
		Credentials: creds,
	})

	deps := orchestrator.Deps{
		Rasterizer:   raster.NewPDFCPURasterizer(),
		LocalEngine:  localEngine,
		RemoteEngine: remoteEngine,
	}

	o := orchestrator.New(deps, jobCfg).
		WithLogger(logger).
		WithOutputFormat(format).
		WithProgress(orchestrator.NewLoggingProgress(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := jobID(pdfPath)
	result, runErr := o.ProcessJob(ctx, id, pdfPath, outDir)

	exitCode = result.Manifest.Status.ExitCode()
	if runErr != nil {
		logger.Error("job failed", "job_id", id, "error", runErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "job %s: status=%s\n", id, result.Manifest.Status)
	if result.ArchivePath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "archive: %s\n", result.ArchivePath)
	}
	return nil
}

// resolveCredentials layers --remote-credentials-file over the
// environment-derived credentials the config loader already knows how
// to read; the explicit flag wins.
func resolveCredentials(credsFile string) (*config.RemoteCredentials, error) {
	if credsFile == "" {
		loader := config.NewLoader()
		cfg, err := loader.Load()
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		return cfg.RemoteCredentials, nil
	}
	creds, err := config.LoadCredentialsFile(credsFile)
	if err != nil {
		return nil, fmt.Errorf("--remote-credentials-file: %w", err)
	}
	return creds, nil
}

// jobID derives a stable job identifier from the input PDF's base
// name, stripped of its extension; output lands under
// outputRoot/<job_id>/.
func jobID(pdfPath string) string {
	base := pdfPath
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' || base[i] == '\\' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
