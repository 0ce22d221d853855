package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/xfertypes"
)

func TestBuild_ChunkLayout(t *testing.T) {
	tests := []struct {
		name       string
		totalSize  int64
		chunkSize  int64
		cutoff     int64
		maxChunks  int
		wantRanges []xfertypes.ByteRange
		singleShot bool
	}{
		{
			name:      "exact multiple",
			totalSize: 8_000_000,
			chunkSize: 4_000_000,
			wantRanges: []xfertypes.ByteRange{
				{Offset: 0, Length: 4_000_000},
				{Offset: 4_000_000, Length: 4_000_000},
			},
		},
		{
			name:      "truncated final chunk",
			totalSize: 10_000_000,
			chunkSize: 4_000_000,
			wantRanges: []xfertypes.ByteRange{
				{Offset: 0, Length: 4_000_000},
				{Offset: 4_000_000, Length: 4_000_000},
				{Offset: 8_000_000, Length: 2_000_000},
			},
		},
		{
			name:      "payload smaller than chunk size",
			totalSize: 100,
			chunkSize: 4_000_000,
			wantRanges: []xfertypes.ByteRange{
				{Offset: 0, Length: 100},
			},
		},
		{
			name:       "payload under cutoff is single shot",
			totalSize:  1000,
			chunkSize:  100,
			cutoff:     2000,
			wantRanges: []xfertypes.ByteRange{{Offset: 0, Length: 1000}},
			singleShot: true,
		},
		{
			name:       "payload exactly at cutoff is single shot",
			totalSize:  2000,
			chunkSize:  100,
			cutoff:     2000,
			wantRanges: []xfertypes.ByteRange{{Offset: 0, Length: 2000}},
			singleShot: true,
		},
		{
			name:      "payload just over cutoff is chunked",
			totalSize: 2001,
			chunkSize: 1000,
			cutoff:    2000,
			wantRanges: []xfertypes.ByteRange{
				{Offset: 0, Length: 1000},
				{Offset: 1000, Length: 1000},
				{Offset: 2000, Length: 1},
			},
		},
		{
			name:       "zero size is a single zero-length chunk",
			totalSize:  0,
			chunkSize:  4_000_000,
			cutoff:     64_000_000,
			wantRanges: []xfertypes.ByteRange{{Offset: 0, Length: 0}},
			singleShot: true,
		},
		{
			name:      "max chunks cap grows chunk size",
			totalSize: 1000,
			chunkSize: 10,
			maxChunks: 4,
			wantRanges: []xfertypes.ByteRange{
				{Offset: 0, Length: 250},
				{Offset: 250, Length: 250},
				{Offset: 500, Length: 250},
				{Offset: 750, Length: 250},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Build(tt.totalSize, tt.chunkSize, tt.cutoff, tt.maxChunks)
			require.NoError(t, err)
			assert.Equal(t, tt.singleShot, plan.SingleShot)
			assert.Equal(t, tt.totalSize, plan.TotalSize)

			require.Len(t, plan.Chunks, len(tt.wantRanges))
			for i, want := range tt.wantRanges {
				assert.Equal(t, i, plan.Chunks[i].Seq)
				assert.Equal(t, want, plan.Chunks[i].Range)
			}
		})
	}
}

func TestBuild_ChunksCoverPayloadExactly(t *testing.T) {
	sizes := []int64{1, 4_000_001, 10_000_000, 999_999_937}

	for _, size := range sizes {
		plan, err := Build(size, 4_000_000, 0, 0)
		require.NoError(t, err)

		var next int64
		for _, chunk := range plan.Chunks {
			assert.Equal(t, next, chunk.Range.Offset)
			assert.Positive(t, chunk.Range.Length)
			next = chunk.Range.End()
		}
		assert.Equal(t, size, next)
	}
}

func TestBuild_InvalidInputs(t *testing.T) {
	tests := []struct {
		name      string
		totalSize int64
		chunkSize int64
		cutoff    int64
		wantErr   error
	}{
		{"negative size", -1, 4_000_000, 0, xferrors.ErrInvalidSize},
		{"zero chunk size", 100, 0, 0, xferrors.ErrInvalidInput},
		{"negative chunk size", 100, -5, 0, xferrors.ErrInvalidInput},
		{"negative cutoff", 100, 10, -1, xferrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.totalSize, tt.chunkSize, tt.cutoff, 0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlan_MaxChunkLength(t *testing.T) {
	plan, err := Build(10_000_000, 4_000_000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), plan.MaxChunkLength())

	small, err := Build(0, 4_000_000, 64_000_000, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), small.MaxChunkLength())
}
