// Package pool provides the concurrency and memory primitives behind
// chunked transfers. The worker pool bounds in-flight chunk operations and
// owns the retry loop for each chunk; the buffer pool recycles chunk-sized
// byte slices to reduce allocations on high-throughput transfers.
package pool
