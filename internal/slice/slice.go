// Package slice provides bounded, resettable views over seekable sources.
//
// A Reader exposes exactly one chunk's byte range of a larger payload
// without copying it, and can be repositioned to the start of its range
// before a retry attempt. Workers read through independent offsets
// (io.ReaderAt) so no cursor is shared under concurrency.
package slice

import (
	"fmt"
	"io"
	"sync"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/xfertypes"
)

// Reader reads from a single byte range of an underlying io.ReaderAt.
// It never exposes bytes outside the range, returning io.EOF once the range
// is exhausted even if the source has more data.
type Reader struct {
	src io.ReaderAt
	rng xfertypes.ByteRange
	pos int64
}

// NewReader creates a bounded reader over src restricted to rng.
func NewReader(src io.ReaderAt, rng xfertypes.ByteRange) *Reader {
	return &Reader{src: src, rng: rng}
}

// Read implements io.Reader within the bound range.
func (r *Reader) Read(p []byte) (int, error) {
	remaining := r.rng.Length - r.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.src.ReadAt(p, r.rng.Offset+r.pos)
	r.pos += int64(n)
	if err == io.EOF && r.pos < r.rng.Length {
		// The source ended before the planned range did.
		return n, fmt.Errorf("source ended at offset %d, range ends at %d: %w",
			r.rng.Offset+r.pos, r.rng.End(), io.ErrUnexpectedEOF)
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// Reset repositions the reader to the start of its range. It is called
// before every retry attempt of the owning chunk.
func (r *Reader) Reset() {
	r.pos = 0
}

// Size returns the length of the bound range.
func (r *Reader) Size() int64 {
	return r.rng.Length
}

// LockedReaderAt adapts an io.ReadSeeker into an io.ReaderAt by guarding the
// shared cursor with a mutex, the fallback for sources that are seekable but
// do not support independent offset reads.
type LockedReaderAt struct {
	mu   sync.Mutex
	src  io.ReadSeeker
	base int64
}

// NewLockedReaderAt wraps src, treating its current position as offset zero.
func NewLockedReaderAt(src io.ReadSeeker) (*LockedReaderAt, error) {
	base, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xferrors.ErrNotSeekable, err)
	}
	return &LockedReaderAt{src: src, base: base}, nil
}

// ReadAt implements io.ReaderAt over the shared cursor.
func (l *LockedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.src.Seek(l.base+off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek to %d: %w", l.base+off, err)
	}
	n, err := io.ReadFull(l.src, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// ReaderAtFor resolves the capability of an upload source: an io.ReaderAt is
// used directly, an io.ReadSeeker is adapted through a locked cursor, and
// anything else cannot support chunked transfer. The check happens once at
// plan time, never per retry.
func ReaderAtFor(r io.Reader) (io.ReaderAt, bool) {
	if ra, ok := r.(io.ReaderAt); ok {
		return ra, true
	}
	if rs, ok := r.(io.ReadSeeker); ok {
		if lra, err := NewLockedReaderAt(rs); err == nil {
			return lra, true
		}
	}
	return nil, false
}

// SizeOf measures the remaining size of a seekable source without consuming
// it. It returns false for non-seekable sources.
func SizeOf(r io.Reader) (int64, bool) {
	s, ok := r.(io.Seeker)
	if !ok {
		return 0, false
	}
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, false
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, false
	}
	return end - cur, true
}
