// Package pool runs chunk transfer work across a bounded set of workers.
//
// Workers pull chunks in sequence order, retry transient failures in place
// with per-chunk attempt counts, and cooperate on cancellation: the first
// fatal error stops new chunks from being issued and interrupts waits
// between retry attempts, while requests already in flight finish or fail
// naturally.
package pool

import (
	"context"
	"sync"

	"github.com/blobkit/transfer/internal/retry"
)

// Outcome records how one chunk fared.
type Outcome struct {
	// Seq is the chunk's sequence index
	Seq int

	// Bytes is the number of payload bytes transferred
	Bytes int64

	// Attempts is how many attempts the chunk took, including the
	// successful one; zero means the chunk was never started
	Attempts int

	// Err is the chunk's terminal error, nil on success
	Err error
}

// ChunkFunc performs one attempt at transferring one chunk and returns the
// number of payload bytes moved. It must honor ctx cancellation and must be
// restartable: each attempt begins from the start of the chunk's range.
type ChunkFunc func(ctx context.Context, seq, attempt int) (int64, error)

// Pool executes chunks with bounded concurrency and per-chunk retries.
type Pool struct {
	workers int
	policy  retry.Policy
}

// New creates a pool. Workers below 1 run sequentially on a single worker.
func New(workers int, policy retry.Policy) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, policy: policy}
}

// Run executes chunks 0..count-1 through fn. It returns outcomes ordered by
// sequence index together with the first fatal error, if any. On a fatal
// error the remaining unstarted chunks keep zero-valued outcomes.
func (p *Pool) Run(ctx context.Context, count int, fn ChunkFunc) ([]Outcome, error) {
	outcomes := make([]Outcome, count)
	for i := range outcomes {
		outcomes[i].Seq = i
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	semaphore := make(chan struct{}, p.workers)
issue:
	for seq := 0; seq < count; seq++ {
		select {
		case semaphore <- struct{}{}:
		case <-runCtx.Done():
			break issue
		}

		wg.Add(1)
		go func(seq int) {
			defer func() {
				<-semaphore
				wg.Done()
			}()
			out := p.runChunk(runCtx, seq, fn)
			outcomes[seq] = out
			if out.Err != nil {
				fail(out.Err)
			}
		}(seq)
	}
	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return outcomes, err
}

// runChunk drives one chunk through its retry loop on a single worker. A
// transient failure is retried in place, preserving the chunk's attempt
// count; requeueing would reset it.
func (p *Pool) runChunk(ctx context.Context, seq int, fn ChunkFunc) Outcome {
	out := Outcome{Seq: seq}
	for {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}
		out.Attempts++
		n, err := fn(ctx, seq, out.Attempts)
		if err == nil {
			out.Bytes = n
			return out
		}
		wait, retryable := p.policy.Decide(out.Attempts, err)
		if !retryable {
			out.Err = err
			return out
		}
		if sleepErr := retry.Sleep(ctx, wait); sleepErr != nil {
			out.Err = sleepErr
			return out
		}
	}
}
