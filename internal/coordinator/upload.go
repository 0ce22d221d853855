package coordinator

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"time"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/internal/integrity"
	"github.com/blobkit/transfer/internal/planner"
	"github.com/blobkit/transfer/internal/pool"
	"github.com/blobkit/transfer/internal/slice"
	"github.com/blobkit/transfer/xfertypes"
)

const opUpload = "upload"

// Upload transfers src to the remote object. A negative size is measured
// from the source when it is seekable; otherwise the size must be supplied.
//
// Payloads at or below the single-shot threshold go up in one request.
// Larger payloads require a seekable source and are uploaded as uncommitted
// chunks in parallel, then committed in offset order. On failure the
// uncommitted chunks are discarded best-effort and the remote object is
// left unchanged.
func (c *Coordinator) Upload(ctx context.Context, src io.Reader, size int64) (*xfertypes.TransferResult, error) {
	start := time.Now()
	if src == nil {
		return nil, c.fail(opUpload, xferrors.StagePlanning, 0, fmt.Errorf("%w: nil source", xferrors.ErrInvalidInput))
	}
	if size < 0 {
		measured, ok := slice.SizeOf(src)
		if !ok {
			return nil, c.fail(opUpload, xferrors.StagePlanning, 0,
				fmt.Errorf("%w: source size unknown and source is not seekable", xferrors.ErrInvalidSize))
		}
		size = measured
	}

	plan, err := planner.Build(size, c.cfg.ChunkSize, c.cfg.SingleShotThreshold, c.cfg.MaxChunks)
	if err != nil {
		return nil, c.fail(opUpload, xferrors.StagePlanning, 0, err)
	}
	if plan.SingleShot {
		return c.uploadSingleShot(ctx, src, plan, start)
	}
	return c.uploadChunked(ctx, src, plan, start)
}

// uploadSingleShot sends the whole payload in one PutObject request. A
// seekable source can be replayed, so transient failures go through the
// normal retry policy; a non-seekable source gets exactly one attempt.
func (c *Coordinator) uploadSingleShot(ctx context.Context, src io.Reader, plan *planner.Plan, start time.Time) (*xfertypes.TransferResult, error) {
	size := plan.TotalSize
	m := newMeter(c.cfg.Progress, size)

	var h hash.Hash
	if c.cfg.ValidateContent {
		h = c.newHash()
	}

	attempts := 1
	if ra, ok := slice.ReaderAtFor(src); ok {
		r := slice.NewReader(ra, plan.Chunks[0].Range)
		put := func(ctx context.Context, _, attempt int) (int64, error) {
			attempts = attempt
			r.Reset()
			if h != nil {
				h.Reset()
			}
			body := io.Reader(r)
			if h != nil {
				body = io.TeeReader(r, h)
			}
			if err := c.transport.PutObject(ctx, body, size, c.cfg.Info); err != nil {
				return 0, err
			}
			return size, nil
		}
		if _, err := pool.New(1, c.cfg.Retry).Run(ctx, 1, put); err != nil {
			return nil, c.fail(opUpload, xferrors.StageInFlight, 0, err)
		}
	} else {
		body := io.Reader(io.LimitReader(src, size))
		if h != nil {
			body = io.TeeReader(body, h)
		}
		if err := c.transport.PutObject(ctx, body, size, c.cfg.Info); err != nil {
			return nil, c.fail(opUpload, xferrors.StageInFlight, 0, err)
		}
	}
	m.add(size)

	digest := ""
	if h != nil {
		digest = hex.EncodeToString(h.Sum(nil))
		if c.cfg.ExpectedDigest != "" && digest != c.cfg.ExpectedDigest {
			return nil, c.fail(opUpload, xferrors.StageValidating, 1,
				fmt.Errorf("%w: digest %s, expected %s", xferrors.ErrIntegrity, digest, c.cfg.ExpectedDigest))
		}
	}

	m.complete()
	return &xfertypes.TransferResult{
		Bytes:           size,
		Digest:          digest,
		Committed:       true,
		ChunksCompleted: 1,
		Chunks:          []xfertypes.ChunkOutcome{{Seq: 0, Bytes: size, Attempts: attempts}},
		Duration:        time.Since(start),
	}, nil
}

// uploadChunked uploads the payload as uncommitted pieces in parallel and
// commits them in offset order. With content validation enabled each chunk
// is staged through a pooled buffer so its bytes can be folded into the
// digest exactly once, in sequence order, after its upload succeeds.
func (c *Coordinator) uploadChunked(ctx context.Context, src io.Reader, plan *planner.Plan, start time.Time) (*xfertypes.TransferResult, error) {
	ra, ok := slice.ReaderAtFor(src)
	if !ok {
		return nil, c.fail(opUpload, xferrors.StagePlanning, 0,
			fmt.Errorf("%w: chunked upload needs a seekable source", xferrors.ErrNotSeekable))
	}

	chunks := plan.Chunks
	readers := make([]*slice.Reader, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		readers[i] = slice.NewReader(ra, ch.Range)
		ids[i] = chunkID(ch.Range.Offset)
	}

	var (
		acc  *integrity.Accumulator
		bufs *pool.BufferPool
	)
	if c.cfg.ValidateContent {
		acc = integrity.New(c.newHash(), len(chunks), nil)
		bufs = pool.NewBufferPool(plan.MaxChunkLength())
	}
	m := newMeter(c.cfg.Progress, plan.TotalSize)

	put := func(ctx context.Context, seq, _ int) (int64, error) {
		ch := chunks[seq]
		r := readers[seq]
		r.Reset()
		if acc == nil {
			if err := c.transport.PutChunk(ctx, ids[seq], ch.Range, r); err != nil {
				return 0, err
			}
		} else {
			buf := bufs.Get()[:ch.Range.Length]
			defer bufs.Put(buf)
			if _, err := io.ReadFull(r, buf); err != nil {
				return 0, fmt.Errorf("read chunk %d: %w", seq, err)
			}
			if err := c.transport.PutChunk(ctx, ids[seq], ch.Range, bytes.NewReader(buf)); err != nil {
				return 0, err
			}
			if err := acc.Ingest(seq, buf); err != nil {
				return 0, err
			}
		}
		m.add(ch.Range.Length)
		return ch.Range.Length, nil
	}

	outcomes, runErr := pool.New(c.cfg.MaxConnections, c.cfg.Retry).Run(ctx, len(chunks), put)
	public, completed := publicOutcomes(outcomes)
	if runErr != nil {
		c.abortChunks(ctx, ids)
		return nil, c.fail(opUpload, xferrors.StageInFlight, completed, runErr)
	}

	if err := c.transport.Commit(ctx, ids, c.cfg.Info); err != nil {
		c.abortChunks(ctx, ids)
		return nil, c.fail(opUpload, xferrors.StageInFlight, completed, fmt.Errorf("commit: %w", err))
	}

	digest := ""
	if acc != nil {
		sum, err := acc.Finalize()
		if err != nil {
			return nil, c.fail(opUpload, xferrors.StageValidating, completed, err)
		}
		digest = hex.EncodeToString(sum)
		if c.cfg.ExpectedDigest != "" && digest != c.cfg.ExpectedDigest {
			return nil, c.fail(opUpload, xferrors.StageValidating, completed,
				fmt.Errorf("%w: digest %s, expected %s", xferrors.ErrIntegrity, digest, c.cfg.ExpectedDigest))
		}
	}

	m.complete()
	return &xfertypes.TransferResult{
		Bytes:           plan.TotalSize,
		Digest:          digest,
		Committed:       true,
		ChunksCompleted: completed,
		Chunks:          public,
		Duration:        time.Since(start),
	}, nil
}
