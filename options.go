// Package transfer provides functional options for configuring transfer behavior.
// These options follow the functional options pattern for clean, composable configuration.
package transfer

import (
	"hash"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blobkit/transfer/xfertypes"
)

// Default retry pacing applied when no option overrides it.
const (
	defaultRetryBaseWait       = 1 * time.Second
	defaultRetryMaxWait        = 30 * time.Second
	defaultRetryJitterFraction = 0.25
)

// WithChunkSize sets the default chunk size for transfers.
// Default is 4MB.
func WithChunkSize(chunkSize int64) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		if chunkSize > 0 {
			c.ChunkSize = chunkSize
		}
	}
}

// WithMaxConnections sets the maximum number of concurrent chunk transfers.
// Default is 1 (sequential).
func WithMaxConnections(maxConnections int) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		if maxConnections > 0 {
			c.MaxConnections = maxConnections
		}
	}
}

// WithSingleShotThreshold sets the payload size at or below which transfers
// skip chunking and move the whole payload in one request. Default is 64MB.
func WithSingleShotThreshold(threshold int64) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		if threshold >= 0 {
			c.SingleShotThreshold = threshold
		}
	}
}

// WithMaxRetryAttempts sets the per-chunk attempt limit, including the first
// attempt. Default is 5. Set to 1 to disable retries.
func WithMaxRetryAttempts(attempts int) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		if attempts > 0 {
			c.MaxRetryAttempts = attempts
		}
	}
}

// WithRetryBaseWait sets the backoff wait before the second attempt.
// Subsequent waits double per attempt. Default is 1 second.
func WithRetryBaseWait(wait time.Duration) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		if wait >= 0 {
			c.RetryBaseWait = wait
		}
	}
}

// WithRetryMaxWait caps the exponentially growing backoff wait.
// Default is 30 seconds.
func WithRetryMaxWait(wait time.Duration) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		if wait >= 0 {
			c.RetryMaxWait = wait
		}
	}
}

// WithRetryJitterFraction sets the fraction of random jitter added to each
// backoff wait, in [0, 1]. Jitter desynchronizes retries across concurrent
// chunks. Default is 0.25.
func WithRetryJitterFraction(fraction float64) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		c.RetryJitterFraction = fraction
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithMetrics registers Prometheus instrumentation for the client's
// transfers on the given registerer.
func WithMetrics(registerer prometheus.Registerer) xfertypes.Option {
	return func(c *xfertypes.ClientConfig) {
		c.MetricsRegisterer = registerer
	}
}

// WithContentValidation enables end-to-end digest computation for a
// transfer. Uploads compute the digest over the bytes sent; downloads verify
// the digest against the expected or service-reported one when available.
func WithContentValidation() xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		c.ValidateContent = true
	}
}

// WithExpectedDigest sets the hex-encoded reference digest a validated
// transfer must match. Implies content validation.
func WithExpectedDigest(digest string) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		c.ValidateContent = true
		c.ExpectedDigest = digest
	}
}

// WithHasher sets the hash constructor used for content validation.
// Default is MD5.
func WithHasher(newHash func() hash.Hash) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		c.NewHash = newHash
	}
}

// WithProgress sets a progress tracker for a transfer operation.
func WithProgress(tracker xfertypes.ProgressTracker) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		c.ProgressTracker = tracker
	}
}

// WithContentType sets the content type for upload operations.
func WithContentType(contentType string) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets metadata for upload operations.
func WithMetadata(metadata map[string]string) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithMaxChunkCount caps the number of chunks in a transfer; the chunk size
// grows to fit when the cap would otherwise be exceeded.
func WithMaxChunkCount(maxChunks int) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		if maxChunks > 0 {
			c.MaxChunks = maxChunks
		}
	}
}

// WithTransferChunkSize overrides the client-level chunk size for this
// specific transfer.
func WithTransferChunkSize(chunkSize int64) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		if chunkSize > 0 {
			c.ChunkSize = chunkSize
		}
	}
}

// WithTransferConnections overrides the client-level concurrency for this
// specific transfer.
func WithTransferConnections(maxConnections int) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		if maxConnections > 0 {
			c.MaxConnections = maxConnections
		}
	}
}

// WithTransferRetryAttempts overrides the client-level attempt limit for
// this specific transfer.
func WithTransferRetryAttempts(attempts int) xfertypes.TransferOption {
	return func(c *xfertypes.TransferConfig) {
		if attempts > 0 {
			c.MaxRetryAttempts = attempts
		}
	}
}
