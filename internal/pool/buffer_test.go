package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferPool(t *testing.T) {
	bp := NewBufferPool(4096)
	require.NotNil(t, bp)

	buf := bp.Get()
	require.NotNil(t, buf)
	assert.Equal(t, 4096, len(buf))

	bp.Put(buf)
}

func TestBufferPool_Reuse(t *testing.T) {
	bp := NewBufferPool(1024)

	// Get and return a buffer
	buf1 := bp.Get()
	copy(buf1, []byte("first use"))
	bp.Put(buf1)

	// Get another buffer - should come back at full size
	buf2 := bp.Get()
	assert.Equal(t, 1024, len(buf2))

	bp.Put(buf2)
}

func TestBufferPool_DiscardsUndersized(t *testing.T) {
	bp := NewBufferPool(1024)

	// A foreign, too-small buffer must not poison the pool
	bp.Put(make([]byte, 16))

	buf := bp.Get()
	assert.Equal(t, 1024, len(buf))
}

func TestBufferPool_ShortenedSliceKeepsCapacity(t *testing.T) {
	bp := NewBufferPool(1024)

	buf := bp.Get()
	// Callers reslice buffers to the final chunk's length
	bp.Put(buf[:100])

	got := bp.Get()
	assert.Equal(t, 1024, len(got))
}

func TestBufferPool_ZeroSize(t *testing.T) {
	bp := NewBufferPool(0)

	buf := bp.Get()
	assert.Equal(t, 0, len(buf))
	bp.Put(buf)
}

func BenchmarkBufferPool_GetPut(b *testing.B) {
	bp := NewBufferPool(4 * 1024 * 1024)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := bp.Get()
			bp.Put(buf)
		}
	})
}

func BenchmarkBufferAllocation_NewEachTime(b *testing.B) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := make([]byte, 4*1024*1024)
			_ = buf
		}
	})
}
