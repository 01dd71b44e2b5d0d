package world

import "sync"

// Store manages the sparse map of chunks and their dirty state.
// A chunk is dirty when its array changed since the last time the
// dispatcher scheduled it for remeshing.
type Store struct {
	mu     sync.RWMutex
	chunks map[ChunkCoord]*Chunk
	dirty  map[ChunkCoord]struct{}
}

// NewStore creates an empty chunk store.
func NewStore() *Store {
	return &Store{
		chunks: make(map[ChunkCoord]*Chunk),
		dirty:  make(map[ChunkCoord]struct{}),
	}
}

// GetVoxel returns the material at the given world coordinates.
// Returns air if the owning chunk does not exist.
func (s *Store) GetVoxel(x, y, z int) MaterialID {
	coord := WorldToChunk(x, y, z)
	s.mu.RLock()
	chunk := s.chunks[coord]
	s.mu.RUnlock()
	if chunk == nil {
		return 0
	}
	lx, ly, lz := WorldToLocal(x, y, z)
	return chunk.Get(lx, ly, lz)
}

// SetVoxel writes the material at the given world coordinates, creating the
// chunk if absent. The chunk is marked dirty only if the value actually
// changed; writing an identical value is a no-op for dirty-tracking.
func (s *Store) SetVoxel(x, y, z int, id MaterialID) {
	coord := WorldToChunk(x, y, z)
	chunk := s.getOrCreate(coord)
	lx, ly, lz := WorldToLocal(x, y, z)

	s.mu.Lock()
	if chunk.Set(lx, ly, lz, id) {
		s.dirty[coord] = struct{}{}
	}
	s.mu.Unlock()
}

// getOrCreate returns the chunk at coord, creating a zero-filled one if absent.
func (s *Store) getOrCreate(coord ChunkCoord) *Chunk {
	s.mu.RLock()
	chunk, exists := s.chunks[coord]
	s.mu.RUnlock()
	if exists {
		return chunk
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check: another goroutine might have created it while we
	// were waiting for the write lock.
	if existing, ok := s.chunks[coord]; ok {
		return existing
	}
	chunk = NewChunk(coord)
	s.chunks[coord] = chunk
	return chunk
}

// HasChunk checks whether a chunk exists without creating it.
func (s *Store) HasChunk(coord ChunkCoord) bool {
	s.mu.RLock()
	_, exists := s.chunks[coord]
	s.mu.RUnlock()
	return exists
}

// Snapshot returns a copy of the chunk's material array, or false if the
// chunk does not exist. The copy is safe to submit to a mesh worker while
// the store keeps mutating.
func (s *Store) Snapshot(coord ChunkCoord) ([]uint8, bool) {
	s.mu.RLock()
	chunk := s.chunks[coord]
	if chunk == nil {
		s.mu.RUnlock()
		return nil, false
	}
	data := chunk.Snapshot()
	s.mu.RUnlock()
	return data, true
}

// DirtyChunks returns the coordinates of all chunks changed since the last
// ClearDirtyFlags call.
func (s *Store) DirtyChunks() []ChunkCoord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChunkCoord, 0, len(s.dirty))
	for coord := range s.dirty {
		out = append(out, coord)
	}
	return out
}

// ClearDirtyFlags clears the dirty set. The dispatcher calls this only
// after scheduling remesh work, not before.
func (s *Store) ClearDirtyFlags() {
	s.mu.Lock()
	clear(s.dirty)
	s.mu.Unlock()
}

// MarkDirty re-flags a chunk for remeshing, used when a scheduled mesh
// submission could not be queued.
func (s *Store) MarkDirty(coord ChunkCoord) {
	s.mu.Lock()
	s.dirty[coord] = struct{}{}
	s.mu.Unlock()
}

// Coords returns the coordinates of all chunks currently in the store.
func (s *Store) Coords() []ChunkCoord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChunkCoord, 0, len(s.chunks))
	for coord := range s.chunks {
		out = append(out, coord)
	}
	return out
}
