// Package planner builds chunk plans for transfer operations.
//
// A plan splits a payload into contiguous byte-range chunks that exactly
// cover it, or marks the transfer single-shot when the payload is small
// enough to skip chunking.
package planner

import (
	"fmt"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/xfertypes"
)

// Chunk is one unit of transfer work: a sequence index defining logical
// order and the byte range it covers.
type Chunk struct {
	Seq   int
	Range xfertypes.ByteRange
}

// Plan is the immutable outcome of chunk planning. Chunks are ordered by
// sequence index, contiguous, and cover [0, TotalSize) exactly.
type Plan struct {
	Chunks    []Chunk
	TotalSize int64
	ChunkSize int64

	// SingleShot is set when the payload fits under the single-shot
	// threshold and the transfer can skip chunking overhead entirely.
	SingleShot bool
}

// MaxChunkLength returns the length of the largest chunk in the plan.
func (p *Plan) MaxChunkLength() int64 {
	var max int64
	for _, c := range p.Chunks {
		if c.Range.Length > max {
			max = c.Range.Length
		}
	}
	return max
}

// Build produces a plan for a payload of totalSize bytes.
//
// Payloads at or below singleShotCutoff produce a single-shot plan with one
// chunk spanning the whole payload; a zero-size payload still produces one
// zero-length chunk so empty transfers commit a well-defined result. When
// maxChunks > 0 caps the chunk count, the chunk size grows to fit.
func Build(totalSize, chunkSize, singleShotCutoff int64, maxChunks int) (*Plan, error) {
	if totalSize < 0 {
		return nil, fmt.Errorf("%w: total size %d", xferrors.ErrInvalidSize, totalSize)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", xferrors.ErrInvalidInput, chunkSize)
	}
	if singleShotCutoff < 0 {
		return nil, fmt.Errorf("%w: single-shot threshold %d", xferrors.ErrInvalidInput, singleShotCutoff)
	}

	if totalSize <= singleShotCutoff {
		return &Plan{
			Chunks:     []Chunk{{Seq: 0, Range: xfertypes.ByteRange{Offset: 0, Length: totalSize}}},
			TotalSize:  totalSize,
			ChunkSize:  chunkSize,
			SingleShot: true,
		}, nil
	}

	count := ceilDiv(totalSize, chunkSize)
	if maxChunks > 0 && count > int64(maxChunks) {
		chunkSize = ceilDiv(totalSize, int64(maxChunks))
		count = ceilDiv(totalSize, chunkSize)
	}

	chunks := make([]Chunk, 0, count)
	for offset := int64(0); offset < totalSize; offset += chunkSize {
		length := chunkSize
		if remaining := totalSize - offset; remaining < length {
			length = remaining
		}
		chunks = append(chunks, Chunk{
			Seq:   len(chunks),
			Range: xfertypes.ByteRange{Offset: offset, Length: length},
		})
	}

	return &Plan{
		Chunks:    chunks,
		TotalSize: totalSize,
		ChunkSize: chunkSize,
	}, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
