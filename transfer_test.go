package transfer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/xfertypes"
)

// memTransport is an in-memory object store for exercising the client end
// to end.
type memTransport struct {
	mu        sync.Mutex
	object    []byte
	chunks    map[string][]byte
	committed bool
	info      xfertypes.ObjectInfo
	aborts    int

	// remote is served to downloads and stat requests
	remote []byte

	putChunkErr func(id string, call int) error
	chunkCalls  map[string]int
}

func newMemTransport() *memTransport {
	return &memTransport{
		chunks:     make(map[string][]byte),
		chunkCalls: make(map[string]int),
	}
}

func (m *memTransport) PutObject(_ context.Context, body io.Reader, size int64, info xfertypes.ObjectInfo) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("body length %d does not match declared size %d", len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.object = data
	m.committed = true
	m.info = info
	return nil
}

func (m *memTransport) PutChunk(_ context.Context, id string, rng xfertypes.ByteRange, body io.Reader) error {
	m.mu.Lock()
	m.chunkCalls[id]++
	call := m.chunkCalls[id]
	m.mu.Unlock()

	if m.putChunkErr != nil {
		if err := m.putChunkErr(id, call); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != rng.Length {
		return fmt.Errorf("chunk %s: got %d bytes, range says %d", id, len(data), rng.Length)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[id] = data
	return nil
}

func (m *memTransport) Commit(_ context.Context, ids []string, info xfertypes.ObjectInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var object []byte
	for _, id := range ids {
		data, ok := m.chunks[id]
		if !ok {
			return fmt.Errorf("commit references unknown chunk %s", id)
		}
		object = append(object, data...)
	}
	m.object = object
	m.committed = true
	m.info = info
	return nil
}

func (m *memTransport) Abort(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborts++
	for _, id := range ids {
		delete(m.chunks, id)
	}
	return nil
}

func (m *memTransport) GetRange(_ context.Context, rng xfertypes.ByteRange) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rng.End() > int64(len(m.remote)) {
		return nil, xferrors.NewRequestError("getRange", 416)
	}
	return io.NopCloser(bytes.NewReader(m.remote[rng.Offset:rng.End()])), nil
}

func (m *memTransport) Stat(_ context.Context) (*xfertypes.ObjectStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := md5.Sum(m.remote)
	return &xfertypes.ObjectStat{
		Size:        int64(len(m.remote)),
		ETag:        "mem-etag",
		ContentType: "application/octet-stream",
		Digest:      hex.EncodeToString(sum[:]),
	}, nil
}

func testClient(t *testing.T, transport xfertypes.Transport, extra ...xfertypes.Option) *Client {
	t.Helper()
	opts := append([]xfertypes.Option{
		WithChunkSize(16),
		WithSingleShotThreshold(8),
		WithMaxConnections(4),
		WithRetryBaseWait(0),
		WithRetryMaxWait(0),
		WithRetryJitterFraction(0),
	}, extra...)
	client, err := New(transport, opts...)
	require.NoError(t, err)
	return client
}

func randomPayload(n int) []byte {
	data := make([]byte, n)
	r := rand.NewChaCha8([32]byte{7})
	r.Read(data)
	return data
}

func TestClient_UploadRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		connections int
	}{
		{"single shot", 8, 1},
		{"chunked sequential", 100, 1},
		{"chunked parallel", 100, 4},
		{"connections exceed chunk count", 40, 16},
		{"empty payload", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newMemTransport()
			client := testClient(t, transport, WithMaxConnections(tt.connections))

			data := randomPayload(tt.size)
			result, err := client.Upload(context.Background(), bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)

			assert.True(t, transport.committed)
			assert.Equal(t, data, transport.object)
			assert.True(t, result.Committed)
			assert.Equal(t, int64(tt.size), result.Bytes)
		})
	}
}

func TestClient_DownloadRoundTrip(t *testing.T) {
	data := randomPayload(100)
	transport := newMemTransport()
	transport.remote = data

	client := testClient(t, transport)
	var dst bytes.Buffer
	result, err := client.Download(context.Background(), &dst, -1)
	require.NoError(t, err)

	assert.Equal(t, data, dst.Bytes())
	assert.True(t, result.Committed)
	assert.Equal(t, int64(100), result.Bytes)
}

func TestClient_PutGet(t *testing.T) {
	transport := newMemTransport()
	client := testClient(t, transport)

	data := randomPayload(50)
	_, err := client.Put(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, data, transport.object)

	// Serve the committed object back
	transport.remote = transport.object
	got, err := client.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestClient_UploadWithValidation(t *testing.T) {
	data := randomPayload(64)
	transport := newMemTransport()
	client := testClient(t, transport)

	sum := md5.Sum(data)
	result, err := client.Upload(context.Background(), bytes.NewReader(data), int64(len(data)),
		WithExpectedDigest(hex.EncodeToString(sum[:])),
	)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), result.Digest)
}

func TestClient_DownloadValidatesAgainstStat(t *testing.T) {
	data := randomPayload(64)
	transport := newMemTransport()
	transport.remote = data
	client := testClient(t, transport)

	var dst bytes.Buffer
	result, err := client.Download(context.Background(), &dst, -1, WithContentValidation())
	require.NoError(t, err)

	sum := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), result.Digest)
}

func TestClient_UploadRetriesAbsorbed(t *testing.T) {
	data := randomPayload(48)
	transport := newMemTransport()
	transport.putChunkErr = func(_ string, call int) error {
		if call == 1 {
			return xferrors.NewRequestError("putChunk", 503)
		}
		return nil
	}

	client := testClient(t, transport)
	result, err := client.Upload(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, transport.object)
	for _, chunk := range result.Chunks {
		assert.Equal(t, 2, chunk.Attempts)
	}
}

func TestClient_UploadFatalFailureAborts(t *testing.T) {
	data := randomPayload(48)
	transport := newMemTransport()
	transport.putChunkErr = func(_ string, _ int) error {
		return xferrors.NewRequestError("putChunk", 403)
	}

	client := testClient(t, transport)
	result, err := client.Upload(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
	assert.ErrorIs(t, err, xferrors.ErrAuth)

	// Failure surfaces as a nil result, never as a partial one
	assert.Nil(t, result)
	assert.False(t, transport.committed)
	assert.Equal(t, 1, transport.aborts)
}

func TestClient_UploadMetadataAndContentType(t *testing.T) {
	transport := newMemTransport()
	client := testClient(t, transport)

	_, err := client.Put(context.Background(), []byte("hello"),
		WithContentType("text/plain"),
		WithMetadata(map[string]string{"owner": "tests"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", transport.info.ContentType)
	assert.Equal(t, "tests", transport.info.Metadata["owner"])
}

func TestClient_TransferOptionsOverrideClientDefaults(t *testing.T) {
	data := randomPayload(100)
	transport := newMemTransport()
	client := testClient(t, transport) // chunk size 16

	result, err := client.Upload(context.Background(), bytes.NewReader(data), int64(len(data)),
		WithTransferChunkSize(50),
		WithTransferConnections(1),
	)
	require.NoError(t, err)
	assert.Len(t, result.Chunks, 2)
	assert.Equal(t, data, transport.object)
}

func TestClient_MaxChunkCountGrowsChunkSize(t *testing.T) {
	data := randomPayload(100)
	transport := newMemTransport()
	client := testClient(t, transport) // chunk size 16 would give 7 chunks

	result, err := client.Upload(context.Background(), bytes.NewReader(data), int64(len(data)),
		WithMaxChunkCount(2),
	)
	require.NoError(t, err)
	assert.Len(t, result.Chunks, 2)
	assert.Equal(t, data, transport.object)
}

func TestClient_UploadInvalidConfig(t *testing.T) {
	client := testClient(t, newMemTransport())

	_, err := client.Upload(context.Background(), bytes.NewReader(nil), 0,
		WithExpectedDigest("not hex!"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, xferrors.ErrInvalidInput)
}

func TestClient_Stat(t *testing.T) {
	transport := newMemTransport()
	transport.remote = []byte("hello world")
	client := testClient(t, transport)

	stat, err := client.Stat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11), stat.Size)
	assert.Equal(t, "mem-etag", stat.ETag)
}

func TestClient_UploadFile(t *testing.T) {
	data := randomPayload(100)
	memfs := billy.NewInMemoryFS()
	require.NoError(t, memfs.MkdirAll("/data", 0o755))
	require.NoError(t, memfs.WriteFile("/data/payload.bin", data, 0o644))

	transport := newMemTransport()
	client := testClient(t, transport, WithFilesystem(memfs))

	result, err := client.UploadFile(context.Background(), "/data/payload.bin")
	require.NoError(t, err)
	assert.Equal(t, data, transport.object)
	assert.Equal(t, int64(100), result.Bytes)
	assert.NotEmpty(t, transport.info.ContentType)
}

func TestClient_UploadFileMissing(t *testing.T) {
	client := testClient(t, newMemTransport(), WithFilesystem(billy.NewInMemoryFS()))

	_, err := client.UploadFile(context.Background(), "/missing.bin")
	require.Error(t, err)
}

func TestClient_DownloadFile(t *testing.T) {
	data := randomPayload(100)
	transport := newMemTransport()
	transport.remote = data

	memfs := billy.NewInMemoryFS()
	require.NoError(t, memfs.MkdirAll("/out", 0o755))
	client := testClient(t, transport, WithFilesystem(memfs))

	result, err := client.DownloadFile(context.Background(), "/out/payload.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.Bytes)

	got, err := memfs.ReadFile("/out/payload.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDetectContentTypeFromExtension(t *testing.T) {
	assert.Contains(t, detectContentTypeFromExtension("report.json"), "application/json")
	assert.Equal(t, DefaultContentType, detectContentTypeFromExtension("mystery"))
}
