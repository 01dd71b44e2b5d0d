package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetVoxelAbsentChunk(t *testing.T) {
	s := NewStore()
	assert.Equal(t, MaterialID(0), s.GetVoxel(0, 0, 0))
	assert.Equal(t, MaterialID(0), s.GetVoxel(-100, 50, 1000))
	assert.Empty(t, s.Coords(), "reads must not create chunks")
}

func TestStoreSetVoxelCreatesChunk(t *testing.T) {
	s := NewStore()
	s.SetVoxel(40, -5, 70, 3)
	require.True(t, s.HasChunk(ChunkCoord{X: 1, Y: -1, Z: 2}))
	assert.Equal(t, MaterialID(3), s.GetVoxel(40, -5, 70))
}

func TestStoreDirtyTracking(t *testing.T) {
	s := NewStore()

	s.SetVoxel(1, 2, 3, 5)
	require.Len(t, s.DirtyChunks(), 1)
	assert.Equal(t, ChunkCoord{}, s.DirtyChunks()[0])

	s.ClearDirtyFlags()
	require.Empty(t, s.DirtyChunks())

	// Writing the same value is a no-op for dirty-tracking.
	s.SetVoxel(1, 2, 3, 5)
	assert.Empty(t, s.DirtyChunks())

	// Writing a different value always marks dirty.
	s.SetVoxel(1, 2, 3, 6)
	assert.Len(t, s.DirtyChunks(), 1)
}

func TestStoreDirtyMarkedOncePerChunk(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		s.SetVoxel(i, 0, 0, 1)
	}
	assert.Len(t, s.DirtyChunks(), 1)
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.SetVoxel(0, 0, 0, 9)
	data, ok := s.Snapshot(ChunkCoord{})
	require.True(t, ok)
	require.Len(t, data, ChunkVolume)
	assert.Equal(t, uint8(9), data[0])

	// Mutating the store must not reach into an issued snapshot.
	s.SetVoxel(0, 0, 0, 4)
	assert.Equal(t, uint8(9), data[0])

	_, ok = s.Snapshot(ChunkCoord{X: 99})
	assert.False(t, ok)
}

func TestStoreNegativeWorldCoords(t *testing.T) {
	s := NewStore()
	s.SetVoxel(-1, -1, -1, 2)
	assert.Equal(t, MaterialID(2), s.GetVoxel(-1, -1, -1))
	require.True(t, s.HasChunk(ChunkCoord{X: -1, Y: -1, Z: -1}))

	data, ok := s.Snapshot(ChunkCoord{X: -1, Y: -1, Z: -1})
	require.True(t, ok)
	assert.Equal(t, uint8(2), data[Index(31, 31, 31)])
}
