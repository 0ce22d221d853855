// Package coordinator orchestrates chunked transfers end to end.
//
// A coordinator drives one upload or download through its stages: planning
// (chunk layout and capability checks, before any network activity),
// in-flight (worker pool execution and the commit step), and validating
// (digest verification). Failures carry the stage they surfaced from and how
// many chunks had succeeded, for diagnostics. A coordinator is not reused:
// callers create a new one to retry a whole operation.
package coordinator

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"sync/atomic"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/internal/pool"
	"github.com/blobkit/transfer/internal/retry"
	"github.com/blobkit/transfer/xfertypes"
)

// Config is the resolved, validated configuration for one transfer.
type Config struct {
	ChunkSize           int64
	MaxConnections      int
	SingleShotThreshold int64
	MaxChunks           int
	ValidateContent     bool
	ExpectedDigest      string
	Retry               retry.Policy
	Progress            xfertypes.ProgressTracker
	NewHash             func() hash.Hash
	Info                xfertypes.ObjectInfo
}

// Coordinator runs a single transfer operation against a transport.
type Coordinator struct {
	transport xfertypes.Transport
	cfg       Config
}

// New creates a coordinator for one transfer operation.
func New(transport xfertypes.Transport, cfg Config) *Coordinator {
	return &Coordinator{transport: transport, cfg: cfg}
}

// newHash returns the digest state for content validation, MD5 by default
// to match common object-store content digests.
func (c *Coordinator) newHash() hash.Hash {
	if c.cfg.NewHash != nil {
		return c.cfg.NewHash()
	}
	return md5.New()
}

// fail builds the operation error surfaced to the caller, notifying the
// progress tracker and normalizing cancellation to the engine's sentinel.
func (c *Coordinator) fail(op string, stage xferrors.Stage, completed int, err error) error {
	if xferrors.IsCancelled(err) && !errors.Is(err, xferrors.ErrCancelled) {
		err = fmt.Errorf("%w: %v", xferrors.ErrCancelled, err)
	}
	opErr := xferrors.NewError(op, err).WithStage(stage).WithChunksCompleted(completed)
	if c.cfg.Progress != nil {
		c.cfg.Progress.Error(opErr)
	}
	return opErr
}

// chunkID derives a stable piece id from the chunk's byte offset, so retried
// uploads of the same chunk overwrite rather than duplicate the piece.
func chunkID(offset int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%032d", offset)))
}

// abortChunks discards uncommitted pieces best-effort after a failed upload.
// It runs even when the operation's context is already cancelled; errors are
// ignored, matching the advisory nature of the cleanup.
func (c *Coordinator) abortChunks(ctx context.Context, ids []string) {
	aborter, ok := c.transport.(xfertypes.Aborter)
	if !ok {
		return
	}
	_ = aborter.Abort(context.WithoutCancel(ctx), ids)
}

// publicOutcomes converts pool outcomes into their public form and counts
// the chunks that succeeded.
func publicOutcomes(outcomes []pool.Outcome) ([]xfertypes.ChunkOutcome, int) {
	public := make([]xfertypes.ChunkOutcome, len(outcomes))
	completed := 0
	for i, out := range outcomes {
		public[i] = xfertypes.ChunkOutcome{
			Seq:      out.Seq,
			Bytes:    out.Bytes,
			Attempts: out.Attempts,
			Err:      out.Err,
		}
		if out.Attempts > 0 && out.Err == nil {
			completed++
		}
	}
	return public, completed
}

// meter fans per-chunk progress into the caller's tracker.
type meter struct {
	tracker xfertypes.ProgressTracker
	total   int64
	done    atomic.Int64
}

func newMeter(tracker xfertypes.ProgressTracker, total int64) *meter {
	m := &meter{tracker: tracker, total: total}
	if tracker != nil {
		tracker.Update(0, total)
	}
	return m
}

func (m *meter) add(n int64) {
	cur := m.done.Add(n)
	if m.tracker != nil {
		m.tracker.Update(cur, m.total)
	}
}

func (m *meter) complete() {
	if m.tracker != nil {
		m.tracker.Update(m.total, m.total)
		m.tracker.Complete()
	}
}
