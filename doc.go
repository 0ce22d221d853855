// Package transfer provides a high-level Go module for moving objects to
// and from HTTP object storage. It splits large payloads into fixed-size
// chunks transferred in parallel, retries transient failures per chunk with
// exponential backoff, and can verify content integrity end to end with an
// ordered digest regardless of chunk completion order.
//
// The module emphasizes developer experience through simple APIs while
// maintaining performance through intelligent defaults for chunking,
// concurrency, and retries.
//
// Key features:
//   - Simple, zero-configuration usage over any Transport implementation
//   - Progressive enhancement through functional options
//   - Automatic single-shot uploads for small payloads
//   - Concurrent chunk transfers with configurable limits
//   - Per-chunk retry with exponential backoff and jitter
//   - End-to-end content validation with pluggable digests
//   - Comprehensive error handling with stage and chunk context
//
// Example usage:
//
//	client, err := transfer.New(transport,
//	    transfer.WithMaxConnections(4),
//	)
//	if err != nil {
//	    return err
//	}
//
//	// Upload a file
//	result, err := client.UploadFile(ctx, "/local/file.bin",
//	    transfer.WithContentValidation(),
//	)
//	if err != nil {
//	    return err
//	}
package transfer
