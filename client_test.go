package transfer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xferrors "github.com/blobkit/transfer/errors"
)

func TestNew(t *testing.T) {
	client, err := New(newMemTransport())
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, int64(DefaultChunkSize), client.config.ChunkSize)
	assert.Equal(t, DefaultMaxConnections, client.config.MaxConnections)
	assert.Equal(t, int64(DefaultSingleShotThreshold), client.config.SingleShotThreshold)
	assert.Equal(t, DefaultMaxRetryAttempts, client.config.MaxRetryAttempts)
	assert.NotNil(t, client.fs)
}

func TestNew_NilTransport(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, xferrors.ErrInvalidInput)
}

func TestNew_WithOptions(t *testing.T) {
	client, err := New(newMemTransport(),
		WithChunkSize(8*1024*1024),
		WithMaxConnections(8),
		WithSingleShotThreshold(1024),
		WithMaxRetryAttempts(2),
		WithRetryBaseWait(100*time.Millisecond),
		WithRetryMaxWait(time.Second),
		WithRetryJitterFraction(0.5),
	)
	require.NoError(t, err)

	assert.Equal(t, int64(8*1024*1024), client.config.ChunkSize)
	assert.Equal(t, 8, client.config.MaxConnections)
	assert.Equal(t, int64(1024), client.config.SingleShotThreshold)
	assert.Equal(t, 2, client.config.MaxRetryAttempts)
	assert.Equal(t, 100*time.Millisecond, client.config.RetryBaseWait)
	assert.Equal(t, time.Second, client.config.RetryMaxWait)
	assert.InEpsilon(t, 0.5, client.config.RetryJitterFraction, 1e-9)
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(newMemTransport(), WithRetryJitterFraction(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, xferrors.ErrInvalidInput)

	_, err = New(newMemTransport(), WithRetryBaseWait(time.Minute), WithRetryMaxWait(time.Second))
	require.Error(t, err)
	assert.ErrorIs(t, err, xferrors.ErrInvalidInput)
}

func TestClient_SetFilesystem(t *testing.T) {
	client, err := New(newMemTransport())
	require.NoError(t, err)

	memfs := billy.NewInMemoryFS()
	client.SetFilesystem(memfs)
	assert.Equal(t, memfs, client.filesystem())
}

func TestClient_Close(t *testing.T) {
	client, err := New(newMemTransport())
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	transport := newMemTransport()
	client := testClient(t, transport, WithMetrics(reg))

	data := randomPayload(48)
	_, err := client.Upload(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	transport.remote = transport.object
	var dst bytes.Buffer
	_, err = client.Download(context.Background(), &dst, -1)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["blobkit_transfer_operations_total"])
	assert.True(t, names["blobkit_transfer_bytes_total"])
	assert.True(t, names["blobkit_transfer_operation_duration_seconds"])
}

func TestClient_MetricsSurviveRecreation(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(newMemTransport(), WithMetrics(reg))
	require.NoError(t, err)

	// A second client on the same registry must reuse the collectors
	// instead of failing registration.
	_, err = New(newMemTransport(), WithMetrics(reg))
	require.NoError(t, err)
}
