// Package integrity computes an ordered content digest over chunks that may
// complete out of order.
//
// Chunks are folded into the digest strictly by sequence index. A chunk
// arriving ahead of its turn is buffered until the gap fills, so the final
// digest always equals one computed over the payload in a single sequential
// pass. In the steady state the buffer stays below the worker count, but it
// is not hard-bounded: while an early chunk is being retried its successors
// keep completing and buffering, so the worst case grows with the number of
// chunks still outstanding behind a stalled one.
package integrity

import (
	"fmt"
	"hash"
	"io"
	"sync"

	xferrors "github.com/blobkit/transfer/errors"
)

// Accumulator folds chunk bytes into a digest in sequence order. It can also
// drive an ordered writer, giving non-random-access destinations in-order
// writes from the same reorder buffer.
//
// Accumulator is safe for concurrent use by multiple workers.
type Accumulator struct {
	mu      sync.Mutex
	h       hash.Hash // nil when only ordering is needed
	ordered io.Writer // nil when only digesting is needed
	next    int
	total   int
	pending map[int][]byte
	bytes   int64
}

// New creates an accumulator expecting chunks 0..total-1. Either h or
// ordered may be nil, not both.
func New(h hash.Hash, total int, ordered io.Writer) *Accumulator {
	return &Accumulator{
		h:       h,
		ordered: ordered,
		total:   total,
		pending: make(map[int][]byte),
	}
}

// Ingest folds one chunk's bytes. If seq is the next expected index the
// bytes are folded immediately and any buffered successors drain in order;
// otherwise a copy is buffered until the gap fills. The caller may reuse
// data once Ingest returns.
func (a *Accumulator) Ingest(seq int, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if seq < a.next || seq >= a.total {
		return fmt.Errorf("%w: chunk %d outside expected window [%d, %d)", xferrors.ErrIncompleteRange, seq, a.next, a.total)
	}
	if _, dup := a.pending[seq]; dup {
		return fmt.Errorf("%w: chunk %d ingested twice", xferrors.ErrIncompleteRange, seq)
	}

	if seq != a.next {
		buf := make([]byte, len(data))
		copy(buf, data)
		a.pending[seq] = buf
		return nil
	}

	if err := a.fold(data); err != nil {
		return err
	}
	for {
		buf, ok := a.pending[a.next]
		if !ok {
			return nil
		}
		delete(a.pending, a.next)
		if err := a.fold(buf); err != nil {
			return err
		}
	}
}

// fold advances the expected index; a.mu must be held.
func (a *Accumulator) fold(data []byte) error {
	if a.h != nil {
		a.h.Write(data)
	}
	if a.ordered != nil && len(data) > 0 {
		if _, err := a.ordered.Write(data); err != nil {
			return fmt.Errorf("ordered write of chunk %d: %w", a.next, err)
		}
	}
	a.bytes += int64(len(data))
	a.next++
	return nil
}

// Bytes returns how many bytes have been folded so far.
func (a *Accumulator) Bytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

// Finalize returns the digest sum after every chunk has been ingested. It
// fails if any sequence index is missing, which indicates a bug in the
// caller rather than a service failure. The sum is nil when no hash was
// configured.
func (a *Accumulator) Finalize() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next != a.total {
		return nil, fmt.Errorf("%w: %d of %d chunks ingested", xferrors.ErrIncompleteRange, a.next, a.total)
	}
	if a.h == nil {
		return nil, nil
	}
	return a.h.Sum(nil), nil
}
