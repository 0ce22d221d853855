// Package xfertypes provides shared type definitions for the transfer module.
package xfertypes

import (
	"context"
	"hash"
	"io"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/prometheus/client_golang/prometheus"
)

// ByteRange identifies a contiguous byte range of an object.
type ByteRange struct {
	// Offset is the zero-based start of the range
	Offset int64

	// Length is the number of bytes in the range
	Length int64
}

// End returns the exclusive end offset of the range.
func (r ByteRange) End() int64 {
	return r.Offset + r.Length
}

// ObjectInfo carries the object metadata attached when an upload is
// committed or put in a single shot.
type ObjectInfo struct {
	// ContentType is the MIME type of the object
	ContentType string

	// Metadata contains user-defined metadata
	Metadata map[string]string
}

// ObjectStat describes a remote object as reported by the service.
type ObjectStat struct {
	// Size is the object size in bytes
	Size int64

	// ETag is the entity tag reported by the service
	ETag string

	// ContentType is the MIME type of the object
	ContentType string

	// Digest is the service-reported content digest, hex-encoded.
	// Empty when the service does not expose one.
	Digest string

	// LastModified is when the object was last modified
	LastModified time.Time
}

// Transport executes the storage requests the engine needs. Implementations
// own the wire protocol, connection pooling, and request signing; the engine
// only decides what to transfer and when to retry.
//
// All methods must be safe for concurrent use: the engine issues chunk
// requests from multiple workers at once.
type Transport interface {
	// PutObject uploads the whole object in a single request.
	// A negative size means the size is unknown.
	PutObject(ctx context.Context, body io.Reader, size int64, info ObjectInfo) error

	// PutChunk uploads one uncommitted piece of the object. The piece does
	// not become part of the object until Commit is called with its id.
	PutChunk(ctx context.Context, id string, rng ByteRange, body io.Reader) error

	// Commit makes previously uploaded pieces the object's content.
	// The ids are ordered by ascending byte offset.
	Commit(ctx context.Context, ids []string, info ObjectInfo) error

	// GetRange reads one byte range of the object. The returned body yields
	// exactly rng.Length bytes unless the object is shorter than expected.
	GetRange(ctx context.Context, rng ByteRange) (io.ReadCloser, error)
}

// Stater is implemented by transports that can describe the remote object
// without downloading it. The engine uses it to learn the object size and a
// reference digest when the caller did not supply them.
type Stater interface {
	Stat(ctx context.Context) (*ObjectStat, error)
}

// Aborter is implemented by transports that can discard uncommitted pieces.
// The engine calls Abort best-effort when a chunked upload fails, so the
// remote side is not left holding orphaned pieces. Abort errors are ignored.
type Aborter interface {
	Abort(ctx context.Context, ids []string) error
}

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads and downloads.
type ProgressTracker interface {
	// Update is called periodically with transfer progress
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// ChunkOutcome records how a single chunk fared, for diagnostics.
type ChunkOutcome struct {
	// Seq is the chunk's sequence index within the plan
	Seq int

	// Bytes is the number of payload bytes transferred
	Bytes int64

	// Attempts is how many attempts the chunk took, including the
	// successful one. Zero means the chunk was never started.
	Attempts int

	// Err is the chunk's terminal error, nil on success
	Err error
}

// TransferResult is returned by every transfer operation.
type TransferResult struct {
	// Bytes is the total number of payload bytes transferred
	Bytes int64

	// Digest is the hex-encoded content digest computed over the logical
	// byte stream, empty when content validation was not requested
	Digest string

	// Committed reports whether the destination holds the complete object:
	// for uploads, that the commit step succeeded; for downloads, that
	// every byte was written. Failed operations return a nil result rather
	// than a partial one, so a non-nil result always has Committed set.
	Committed bool

	// ChunksCompleted is how many chunks succeeded before the operation
	// finished or failed
	ChunksCompleted int

	// Chunks holds per-chunk outcomes ordered by sequence index
	Chunks []ChunkOutcome

	// Duration is how long the operation took
	Duration time.Duration
}

// ClientConfig holds client-level defaults applied to every transfer.
type ClientConfig struct {
	// ChunkSize is the target chunk size in bytes
	ChunkSize int64

	// MaxConnections bounds the number of concurrent chunk transfers
	MaxConnections int

	// SingleShotThreshold is the payload size at or below which transfers
	// skip chunking entirely
	SingleShotThreshold int64

	// MaxRetryAttempts is the per-chunk attempt limit
	MaxRetryAttempts int

	// RetryBaseWait is the backoff wait before the second attempt
	RetryBaseWait time.Duration

	// RetryMaxWait caps the backoff wait
	RetryMaxWait time.Duration

	// RetryJitterFraction scales the random jitter added to each wait,
	// in [0, 1]
	RetryJitterFraction float64

	// Filesystem is the abstraction used for file operations
	Filesystem fs.Filesystem

	// MetricsRegisterer enables Prometheus instrumentation when non-nil
	MetricsRegisterer prometheus.Registerer
}

// TransferConfig holds the resolved configuration for one transfer operation.
type TransferConfig struct {
	// ChunkSize is the target chunk size in bytes
	ChunkSize int64

	// MaxConnections bounds the number of concurrent chunk transfers
	MaxConnections int

	// SingleShotThreshold is the payload size at or below which the
	// transfer skips chunking
	SingleShotThreshold int64

	// MaxChunks optionally caps the chunk count; the planner grows the
	// chunk size to fit when the cap would be exceeded
	MaxChunks int

	// ValidateContent enables end-to-end digest computation and, when a
	// reference digest is available, verification
	ValidateContent bool

	// ExpectedDigest is the hex-encoded reference digest to verify
	// against; empty means use the service-reported digest if any
	ExpectedDigest string

	// MaxRetryAttempts is the per-chunk attempt limit
	MaxRetryAttempts int

	// RetryBaseWait is the backoff wait before the second attempt
	RetryBaseWait time.Duration

	// RetryMaxWait caps the backoff wait
	RetryMaxWait time.Duration

	// RetryJitterFraction scales the random jitter added to each wait
	RetryJitterFraction float64

	// ContentType is the MIME type attached to uploads
	ContentType string

	// Metadata contains user-defined metadata attached to uploads
	Metadata map[string]string

	// ProgressTracker receives progress updates, may be nil
	ProgressTracker ProgressTracker

	// NewHash constructs the digest state used for content validation.
	// Defaults to MD5 to match common object-store content digests.
	NewHash func() hash.Hash
}

// Option configures the client.
type Option func(*ClientConfig)

// TransferOption configures a single transfer operation.
type TransferOption func(*TransferConfig)
