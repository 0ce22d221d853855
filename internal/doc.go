// Package internal contains private implementation details for the transfer module.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - coordinator: Transfer orchestration across planning, flight, and validation
//   - planner: Chunk layout computation
//   - slice: Range-bounded readers over seekable sources
//   - pool: Worker scheduling and buffer reuse
//   - retry: Backoff decisions for failed chunk attempts
//   - integrity: Streaming digest and chunk reordering
//   - validation: Input validation logic
package internal
