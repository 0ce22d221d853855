package coordinator

import (
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
	"github.com/blobkit/transfer/xfertypes"
)

const opDownload = "download"

// Download transfers the remote object into dst. A negative size is
// resolved by statting the object, which also yields the reference digest
// used for content validation when the caller supplied none.
//
// Destinations implementing io.WriterAt receive chunk writes in parallel at
// their byte offsets. Plain writers receive the chunks strictly in order,
// fed by the same reorder buffer that drives digest computation.
func (c *Coordinator) Download(ctx context.Context, dst io.Writer, size int64) (*xfertypes.TransferResult, error) {
	start := time.Now()
	if dst == nil {
		return nil, c.fail(opDownload, xferrors.StagePlanning, 0, fmt.Errorf("%w: nil destination", xferrors.ErrInvalidInput))
	}

	refDigest := ""
	if size < 0 {
		stater, ok := c.transport.(xfertypes.Stater)
		if !ok {
			return nil, c.fail(opDownload, xferrors.StagePlanning, 0,
				fmt.Errorf("%w: object size unknown and transport cannot stat", xferrors.ErrInvalidSize))
		}
		stat, err := stater.Stat(ctx)
		if err != nil {
			return nil, c.fail(opDownload, xferrors.StagePlanning, 0, fmt.Errorf("stat: %w", err))
		}
		size = stat.Size
		refDigest = stat.Digest
	}

	plan, err := planner.Build(size, c.cfg.ChunkSize, c.cfg.SingleShotThreshold, c.cfg.MaxChunks)
	if err != nil {
		return nil, c.fail(opDownload, xferrors.StagePlanning, 0, err)
	}

	writerAt, randomAccess := dst.(io.WriterAt)

	// The accumulator serves two roles: digest computation for validation
	// and in-order delivery for destinations without random access.
	var acc *integrity.Accumulator
	if c.cfg.ValidateContent || !randomAccess {
		var h hash.Hash
		if c.cfg.ValidateContent {
			h = c.newHash()
		}
		var ordered io.Writer
		if !randomAccess {
			ordered = dst
		}
		acc = integrity.New(h, len(plan.Chunks), ordered)
	}

	bufs := pool.NewBufferPool(plan.MaxChunkLength())
	m := newMeter(c.cfg.Progress, plan.TotalSize)

	get := func(ctx context.Context, seq, _ int) (int64, error) {
		ch := plan.Chunks[seq]
		if ch.Range.Length == 0 {
			if acc != nil {
				return 0, acc.Ingest(seq, nil)
			}
			return 0, nil
		}

		body, err := c.transport.GetRange(ctx, ch.Range)
		if err != nil {
			return 0, err
		}
		defer body.Close()

		buf := bufs.Get()[:ch.Range.Length]
		defer bufs.Put(buf)
		if _, err := io.ReadFull(body, buf); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, fmt.Errorf("read range %d-%d: %w", ch.Range.Offset, ch.Range.End(), err)
		}

		if randomAccess {
			if _, err := writerAt.WriteAt(buf, ch.Range.Offset); err != nil {
				return 0, fmt.Errorf("write chunk %d: %w", seq, err)
			}
		}
		if acc != nil {
			if err := acc.Ingest(seq, buf); err != nil {
				return 0, err
			}
		}
		m.add(ch.Range.Length)
		return ch.Range.Length, nil
	}

	workers := c.cfg.MaxConnections
	if plan.SingleShot {
		workers = 1
	}
	outcomes, runErr := pool.New(workers, c.cfg.Retry).Run(ctx, len(plan.Chunks), get)
	public, completed := publicOutcomes(outcomes)
	if runErr != nil {
		return nil, c.fail(opDownload, xferrors.StageInFlight, completed, runErr)
	}

	digest := ""
	if acc != nil {
		sum, err := acc.Finalize()
		if err != nil {
			return nil, c.fail(opDownload, xferrors.StageValidating, completed, err)
		}
		if sum != nil {
			digest = hex.EncodeToString(sum)
		}
	}
	if c.cfg.ValidateContent {
		expected := c.cfg.ExpectedDigest
		if expected == "" {
			expected = refDigest
		}
		if expected == "" {
			if stater, ok := c.transport.(xfertypes.Stater); ok {
				if stat, statErr := stater.Stat(ctx); statErr == nil {
					expected = stat.Digest
				}
			}
		}
		if expected != "" && digest != expected {
			return nil, c.fail(opDownload, xferrors.StageValidating, completed,
				fmt.Errorf("%w: digest %s, expected %s", xferrors.ErrIntegrity, digest, expected))
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
