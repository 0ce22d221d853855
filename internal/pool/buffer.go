// Buffer pooling for chunk staging. Chunks within one transfer share a
// uniform size, so a single sized pool per operation is enough to keep
// allocations flat across retries and many chunks.

package pool

import (
	"sync"
)

// BufferPool hands out reusable chunk-sized buffers.
type BufferPool struct {
	size int64
	pool sync.Pool
}

// NewBufferPool creates a pool of buffers of the given size.
func NewBufferPool(size int64) *BufferPool {
	if size < 0 {
		size = 0
	}
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get returns a buffer of the pool's full size.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return (*bufPtr)[:bp.size]
}

// Put returns a buffer to the pool.
// The buffer should not be used after calling Put.
func (bp *BufferPool) Put(buf []byte) {
	if int64(cap(buf)) < bp.size {
		return
	}
	buf = buf[:cap(buf)]
	bp.pool.Put(&buf)
}
