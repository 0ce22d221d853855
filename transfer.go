// Package transfer provides the main transfer client operations.
package transfer

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/internal/coordinator"
	"github.com/blobkit/transfer/internal/retry"
	"github.com/blobkit/transfer/internal/validation"
	"github.com/blobkit/transfer/xfertypes"
)

const (
	// DefaultContentType is the content type used when detection fails
	DefaultContentType = "application/octet-stream"
)

// Upload transfers data from an io.Reader to the remote object.
// Payloads above the single-shot threshold are split into chunks uploaded
// in parallel and committed in order; this requires a seekable source.
// A negative size is measured from the source when it is seekable.
//
// Returns:
//   - *TransferResult: Contains the bytes moved, per-chunk outcomes, the
//     content digest when validation was requested, and the duration
//   - error: Returns an error if the upload fails
//
// Errors:
//   - ErrInvalidInput: If the source is nil or the configuration is invalid
//   - ErrInvalidSize: If the size is unknown and the source is not seekable
//   - ErrNotSeekable: If a chunked upload is needed but the source cannot
//     be repositioned
//   - ErrIntegrity: If the computed digest does not match the expected one
//
// Example:
//
//	file, err := os.Open("data.bin")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	result, err := client.Upload(ctx, file, -1,
//	    transfer.WithContentValidation(),
//	    transfer.WithProgress(tracker),
//	)
func (c *Client) Upload(
	ctx context.Context,
	source io.Reader,
	size int64,
	opts ...xfertypes.TransferOption,
) (*xfertypes.TransferResult, error) {
	cfg, err := c.transferConfig("upload", opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := coordinator.New(c.transport, coordinatorConfig(cfg)).Upload(ctx, source, size)
	c.observe(directionUpload, result, err, time.Since(start))
	return result, err
}

// UploadFile uploads a file from the local filesystem to the remote object.
// The content type is sniffed from the file when not set explicitly.
//
// Files larger than the single-shot threshold are uploaded as parallel
// chunks; local files support independent offset reads, so chunk workers
// never contend on a shared cursor.
//
// Example:
//
//	result, err := client.UploadFile(ctx, "/path/to/report.pdf",
//	    transfer.WithMetadata(map[string]string{"version": "1.0"}),
//	)
func (c *Client) UploadFile(
	ctx context.Context,
	path string,
	opts ...xfertypes.TransferOption,
) (*xfertypes.TransferResult, error) {
	if path == "" {
		return nil, xferrors.NewError("uploadFile", xferrors.ErrInvalidInput).
			WithMessage("path cannot be empty")
	}

	filesystem := c.filesystem()
	info, err := filesystem.Stat(path)
	if err != nil {
		return nil, xferrors.NewError("uploadFile", err)
	}
	if info.IsDir() {
		return nil, xferrors.NewError("uploadFile", xferrors.ErrInvalidInput).
			WithMessage("path points to a directory, not a file")
	}

	cfg, err := c.transferConfig("uploadFile", opts)
	if err != nil {
		return nil, err
	}
	if cfg.ContentType == "" {
		cfg.ContentType = c.detectContentType(path)
	}

	file, err := filesystem.Open(path)
	if err != nil {
		return nil, xferrors.NewError("uploadFile", err)
	}
	defer file.Close()

	start := time.Now()
	result, err := coordinator.New(c.transport, coordinatorConfig(cfg)).Upload(ctx, file, info.Size())
	c.observe(directionUpload, result, err, time.Since(start))
	return result, err
}

// Put uploads an in-memory payload to the remote object.
// This is a convenience wrapper around Upload for byte slices.
func (c *Client) Put(
	ctx context.Context,
	data []byte,
	opts ...xfertypes.TransferOption,
) (*xfertypes.TransferResult, error) {
	return c.Upload(ctx, bytes.NewReader(data), int64(len(data)), opts...)
}

// Download transfers the remote object into dst. A negative size is
// resolved by statting the object.
//
// Destinations implementing io.WriterAt (such as *os.File) receive chunk
// writes in parallel at their byte offsets. Plain writers receive the
// chunks strictly in ascending order.
//
// Example:
//
//	file, err := os.Create("data.bin")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	result, err := client.Download(ctx, file, -1,
//	    transfer.WithContentValidation(),
//	)
func (c *Client) Download(
	ctx context.Context,
	dst io.Writer,
	size int64,
	opts ...xfertypes.TransferOption,
) (*xfertypes.TransferResult, error) {
	cfg, err := c.transferConfig("download", opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := coordinator.New(c.transport, coordinatorConfig(cfg)).Download(ctx, dst, size)
	c.observe(directionDownload, result, err, time.Since(start))
	return result, err
}

// DownloadFile downloads the remote object to a file on the local
// filesystem, creating or truncating it.
func (c *Client) DownloadFile(
	ctx context.Context,
	path string,
	opts ...xfertypes.TransferOption,
) (*xfertypes.TransferResult, error) {
	if path == "" {
		return nil, xferrors.NewError("downloadFile", xferrors.ErrInvalidInput).
			WithMessage("path cannot be empty")
	}

	file, err := c.filesystem().Create(path)
	if err != nil {
		return nil, xferrors.NewError("downloadFile", err)
	}
	defer file.Close()

	return c.Download(ctx, file, -1, opts...)
}

// Get downloads the remote object into memory and returns its bytes.
// Intended for small objects; large objects should stream through Download.
func (c *Client) Get(
	ctx context.Context,
	opts ...xfertypes.TransferOption,
) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.Download(ctx, &buf, -1, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stat describes the remote object without downloading it. It fails when
// the transport does not support stat requests.
func (c *Client) Stat(ctx context.Context) (*xfertypes.ObjectStat, error) {
	stater, ok := c.transport.(xfertypes.Stater)
	if !ok {
		return nil, xferrors.NewError("stat", xferrors.ErrInvalidInput).
			WithMessage("transport does not support stat")
	}
	stat, err := stater.Stat(ctx)
	if err != nil {
		return nil, xferrors.NewError("stat", err)
	}
	return stat, nil
}

// transferConfig resolves one transfer's configuration from client defaults
// and per-call options, then validates it.
func (c *Client) transferConfig(op string, opts []xfertypes.TransferOption) (*xfertypes.TransferConfig, error) {
	c.mu.RLock()
	clientCfg := c.config
	c.mu.RUnlock()

	cfg := &xfertypes.TransferConfig{
		ChunkSize:           clientCfg.ChunkSize,
		MaxConnections:      clientCfg.MaxConnections,
		SingleShotThreshold: clientCfg.SingleShotThreshold,
		MaxRetryAttempts:    clientCfg.MaxRetryAttempts,
		RetryBaseWait:       clientCfg.RetryBaseWait,
		RetryMaxWait:        clientCfg.RetryMaxWait,
		RetryJitterFraction: clientCfg.RetryJitterFraction,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := validation.ValidateTransferConfig(cfg); err != nil {
		return nil, xferrors.NewError(op, err).WithStage(xferrors.StagePlanning)
	}
	return cfg, nil
}

// coordinatorConfig translates a validated transfer configuration into the
// coordinator's form.
func coordinatorConfig(cfg *xfertypes.TransferConfig) coordinator.Config {
	return coordinator.Config{
		ChunkSize:           cfg.ChunkSize,
		MaxConnections:      cfg.MaxConnections,
		SingleShotThreshold: cfg.SingleShotThreshold,
		MaxChunks:           cfg.MaxChunks,
		ValidateContent:     cfg.ValidateContent,
		ExpectedDigest:      cfg.ExpectedDigest,
		Retry: retry.Policy{
			MaxAttempts:    cfg.MaxRetryAttempts,
			BaseWait:       cfg.RetryBaseWait,
			MaxWait:        cfg.RetryMaxWait,
			JitterFraction: cfg.RetryJitterFraction,
		},
		Progress: cfg.ProgressTracker,
		NewHash:  cfg.NewHash,
		Info: xfertypes.ObjectInfo{
			ContentType: cfg.ContentType,
			Metadata:    validation.SanitizeMetadata(cfg.Metadata),
		},
	}
}

// detectContentType determines the content type using mimetype where possible,
// falling back to extension-based lookup when the path is not a local file.
func (c *Client) detectContentType(path string) string {
	filesystem := c.filesystem()

	// If the path points to an existing local file, prefer sniffing its content.
	info, err := filesystem.Stat(path)
	if err != nil || info.IsDir() {
		return detectContentTypeFromExtension(path)
	}

	file, err := filesystem.Open(path)
	if err != nil {
		return detectContentTypeFromExtension(path)
	}
	defer file.Close()

	// Read first 512 bytes for content detection
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	return detectContentTypeFromExtension(path)
}

// detectContentTypeFromExtension maps a file extension to a MIME type.
func detectContentTypeFromExtension(path string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		return contentType
	}
	return DefaultContentType
}
