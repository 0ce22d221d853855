// Package retry implements the backoff policy applied to chunk transfers.
//
// The policy is a pure decision function over the attempt count and the
// observed error; it holds no mutable state, so one value serves every chunk
// of a transfer as well as whole-operation failures.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	xferrors "github.com/blobkit/transfer/errors"
)

// shift counts at or past this are always clamped to MaxWait
const maxShift = 32

// Policy decides whether and how long to wait before retrying a failed
// attempt. The zero value retries nothing.
type Policy struct {
	// MaxAttempts is the total attempt limit, including the first
	MaxAttempts int

	// BaseWait is the wait before the second attempt
	BaseWait time.Duration

	// MaxWait caps the exponentially growing wait
	MaxWait time.Duration

	// JitterFraction scales the random jitter added to each wait, in
	// [0, 1]. Jitter desynchronizes retries across concurrent chunks.
	JitterFraction float64
}

// Decide reports whether the attempt that just failed (1-based) should be
// retried, and how long to wait first. Fatal and cancellation errors are
// never retried regardless of attempt count.
func (p Policy) Decide(attempt int, err error) (time.Duration, bool) {
	if err == nil || attempt >= p.MaxAttempts {
		return 0, false
	}
	if xferrors.IsCancelled(err) || !xferrors.IsTransient(err) {
		return 0, false
	}

	// The cap is compared before shifting: shifting first could overflow
	// time.Duration and slip a negative wait past the cap.
	wait := p.MaxWait
	if shift := uint(attempt - 1); shift < maxShift && p.BaseWait <= p.MaxWait>>shift {
		wait = p.BaseWait << shift
	}
	if p.JitterFraction > 0 {
		wait += time.Duration(rand.Float64() * p.JitterFraction * float64(wait))
	}
	return wait, true
}

// Sleep waits for the decided duration, returning early with the context's
// error if cancellation is observed.
func Sleep(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
