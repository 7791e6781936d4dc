package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/kpark/examsplit/internal/ocr"
)

// BackoffBase is the wall-clock base for exponential retry backoff.
const BackoffBase = 200 * time.Millisecond

// LocalOCRTimeout and RemoteOCRTimeout are the per-call OCR timeouts.
// Each retry attempt gets its own fresh deadline; a timed-out attempt
// is classified transient so runWithRetry retries it.
const (
	LocalOCRTimeout  = 60 * time.Second
	RemoteOCRTimeout = 120 * time.Second
)

// sleeper is injected so tests can run the retry loop without real
// wall-clock delay; production code uses realSleeper.
type sleeper func(ctx context.Context, d time.Duration) error

func realSleeper(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runFn is one attempt at an OCR call.
type runFn func(ctx context.Context) (ocr.Response, error)

// runWithRetry retries on FailureTransient up to maxRetries times with
// exponential backoff; it never retries FailurePermanent or
// FailureUnavailable. It returns the last response/error pair once the
// budget is exhausted.
func runWithRetry(ctx context.Context, fn runFn, maxRetries int, sleep sleeper) (ocr.Response, error) {
	var lastResp ocr.Response
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastResp, lastErr = resp, err

		var engErr *ocr.Error
		if !errors.As(err, &engErr) || engErr.Kind != ocr.FailureTransient {
			return lastResp, lastErr
		}
		if attempt == maxRetries {
			break
		}
		backoff := BackoffBase * time.Duration(1<<uint(attempt)) //nolint:gosec // attempt is small and bounded by maxRetries
		if sleepErr := sleep(ctx, backoff); sleepErr != nil {
			return lastResp, sleepErr
		}
	}
	return lastResp, lastErr
}
