// Package config holds the immutable per-job configuration together
// with its viper-based loader.
package config

import (
	"errors"
	"fmt"
)

// Strategy selects how aggressively the orchestrator escalates to the
// remote OCR engine.
type Strategy string

const (
	// StrategyLocalOnly never invokes the remote engine; gaps become
	// COMPLETE_PARTIAL.
	StrategyLocalOnly Strategy = "local_only"
	// StrategyLocalThenRemote is the default: stage 1 runs locally,
	// stage 2 escalates to remote only for columns with gaps.
	StrategyLocalThenRemote Strategy = "local_then_remote"
	// StrategyManualFallback is run exactly like StrategyLocalThenRemote;
	// the manifest does not record which strategy a job used.
	StrategyManualFallback Strategy = "manual_fallback"
)

// RemoteCredentials is the opaque blob the remote engine uses when
// Strategy != local_only; a job without it still validates (see
// MissingRemoteCredentials).
type RemoteCredentials struct {
	AppID  string
	AppKey string
}

// Empty reports whether no credential material was supplied.
func (c *RemoteCredentials) Empty() bool {
	return c == nil || (c.AppID == "" && c.AppKey == "")
}

const (
	// DefaultDPI is the rasterization resolution used when none is configured.
	DefaultDPI = 200
	// DefaultMaxRetries bounds local/remote OCR retry attempts.
	DefaultMaxRetries = 2
	// DefaultMinLocalConfidence is the local-engine confidence floor.
	DefaultMinLocalConfidence = 0.5
	// DefaultMinRemoteConfidence is the remote-engine confidence floor.
	DefaultMinRemoteConfidence = 0.7
)

// JobConfig is the immutable configuration for one extraction job.
type JobConfig struct {
	Strategy Strategy

	DPI        int
	MaxRetries int

	MinLocalConfidence  float64
	MinRemoteConfidence float64

	// ExpectedProblemCount is optional; zero means "infer from the
	// first successful pass".
	ExpectedProblemCount int

	RemoteCredentials *RemoteCredentials
}

// DefaultJobConfig returns the documented defaults.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Strategy:            StrategyLocalThenRemote,
		DPI:                 DefaultDPI,
		MaxRetries:          DefaultMaxRetries,
		MinLocalConfidence:  DefaultMinLocalConfidence,
		MinRemoteConfidence: DefaultMinRemoteConfidence,
	}
}

// Validate checks the job configuration's invariants, collecting every
// violation rather than stopping at the first one.
func (c JobConfig) Validate() error {
	var errs []error

	switch c.Strategy {
	case StrategyLocalOnly, StrategyLocalThenRemote, StrategyManualFallback:
	default:
		errs = append(errs, fmt.Errorf("strategy: unknown value %q", c.Strategy))
	}

	if c.DPI <= 0 {
		errs = append(errs, fmt.Errorf("dpi: must be > 0, got %d", c.DPI))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries: must be >= 0, got %d", c.MaxRetries))
	}
	if c.MinLocalConfidence < 0 || c.MinLocalConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_local_confidence: must be in [0,1], got %v", c.MinLocalConfidence))
	}
	if c.MinRemoteConfidence < 0 || c.MinRemoteConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_remote_confidence: must be in [0,1], got %v", c.MinRemoteConfidence))
	}
	if c.ExpectedProblemCount < 0 {
		errs = append(errs, fmt.Errorf("expected_problem_count: must be >= 0, got %d", c.ExpectedProblemCount))
	}

	return errors.Join(errs...)
}

// MissingRemoteCredentials reports whether the strategy wants the
// remote engine but no credentials were supplied. This is deliberately
// not a Validate() error: a credential-less job still runs, and every
// column with gaps degrades to COMPLETE_PARTIAL when the remote engine
// reports itself unavailable.
func (c JobConfig) MissingRemoteCredentials() bool {
	return c.Strategy != StrategyLocalOnly && c.RemoteCredentials.Empty()
}
