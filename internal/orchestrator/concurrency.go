package orchestrator

import "context"

// DefaultRemoteConcurrency bounds in-flight remote OCR calls per job;
// the remote endpoint is a rate-limited external resource.
const DefaultRemoteConcurrency = 2

// remoteLimiter is a counting semaphore serializing access to the
// remote endpoint.
type remoteLimiter chan struct{}

// newRemoteLimiter builds a limiter allowing at most n concurrent
// acquisitions; n <= 0 is treated as DefaultRemoteConcurrency.
func newRemoteLimiter(n int) remoteLimiter {
	if n <= 0 {
		n = DefaultRemoteConcurrency
	}
	return make(remoteLimiter, n)
}

// acquire blocks until a slot is free or ctx is done.
func (l remoteLimiter) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l remoteLimiter) release() { <-l }
