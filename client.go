// Package transfer provides client initialization and configuration.
//
// The Client provides a high-level interface for moving objects to and from
// HTTP object storage, splitting large payloads into chunks transferred in
// parallel with built-in retry logic, progress tracking, and optional
// end-to-end content validation.
package transfer

import (
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/internal/validation"
	"github.com/blobkit/transfer/xfertypes"
)

// Default transfer parameters, chosen to favor broad compatibility over
// aggressive parallelism. Callers tune them per client or per transfer.
const (
	// DefaultChunkSize is the chunk size used when none is configured.
	DefaultChunkSize = 4 * 1024 * 1024

	// DefaultSingleShotThreshold is the payload size at or below which
	// transfers skip chunking entirely.
	DefaultSingleShotThreshold = 64 * 1024 * 1024

	// DefaultMaxConnections is the number of concurrent chunk transfers
	// used when none is configured.
	DefaultMaxConnections = 1

	// DefaultMaxRetryAttempts is the per-chunk attempt limit, including
	// the first attempt.
	DefaultMaxRetryAttempts = 5
)

// Client represents a transfer client bound to one remote object endpoint.
// It provides thread-safe access to transfer operations with built-in
// retry logic, concurrency control, and progress tracking.
type Client struct {
	// transport executes the storage requests
	transport xfertypes.Transport

	// config holds client-level defaults applied to every transfer
	config xfertypes.ClientConfig

	// metrics is non-nil when Prometheus instrumentation is enabled
	metrics *clientMetrics

	// mu protects concurrent access to client configuration
	mu sync.RWMutex

	// fs is the filesystem abstraction for file operations
	fs fs.Filesystem
}

// New creates a new transfer client over the given transport with the
// provided options.
//
// Example:
//
//	client, err := transfer.New(transport,
//	    transfer.WithChunkSize(8*1024*1024),
//	    transfer.WithMaxConnections(4),
//	)
func New(transport xfertypes.Transport, opts ...xfertypes.Option) (*Client, error) {
	if transport == nil {
		return nil, errors.NewError("client initialization", errors.ErrInvalidInput).
			WithMessage("transport cannot be nil")
	}

	clientCfg := &xfertypes.ClientConfig{
		ChunkSize:           DefaultChunkSize,
		MaxConnections:      DefaultMaxConnections,
		SingleShotThreshold: DefaultSingleShotThreshold,
		MaxRetryAttempts:    DefaultMaxRetryAttempts,
		RetryBaseWait:       defaultRetryBaseWait,
		RetryMaxWait:        defaultRetryMaxWait,
		RetryJitterFraction: defaultRetryJitterFraction,
	}

	for _, opt := range opts {
		opt(clientCfg)
	}

	if err := validation.ValidateClientConfig(clientCfg); err != nil {
		return nil, errors.NewError("client initialization", err)
	}

	// Initialize filesystem - use provided one or default to OS filesystem
	var filesystem fs.Filesystem
	if clientCfg.Filesystem != nil {
		filesystem = clientCfg.Filesystem
	} else {
		// Default to OS filesystem rooted at /
		filesystem = billy.NewOSFS("/")
	}

	var metrics *clientMetrics
	if clientCfg.MetricsRegisterer != nil {
		metrics = newClientMetrics(clientCfg.MetricsRegisterer)
	}

	return &Client{
		transport: transport,
		config:    *clientCfg,
		metrics:   metrics,
		fs:        filesystem,
	}, nil
}

// SetFilesystem sets the filesystem implementation for the client.
// This is useful for testing or when the filesystem needs to be changed after creation.
func (c *Client) SetFilesystem(filesystem fs.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
}

// filesystem returns the current filesystem under the read lock.
func (c *Client) filesystem() fs.Filesystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs
}

// Close releases any resources held by the client.
// Currently a no-op but included for future extensibility.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return nil
}
