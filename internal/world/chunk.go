package world

const (
	// Chunk dimensions. 32 = 2^5, so local indexing is branchless shifts.
	ChunkSize   = 32
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize // 32768

	shiftY = 5
	shiftZ = 10
	mask5  = ChunkSize - 1
)

// MaterialID identifies a voxel's visual material. Zero is air.
type MaterialID uint8

// ChunkCoord identifies a chunk in the sparse grid.
type ChunkCoord struct {
	X, Y, Z int
}

// Chunk holds the dense material array for one 32^3 region.
type Chunk struct {
	Coord ChunkCoord
	data  []MaterialID
}

// NewChunk creates a zero-filled (all air) chunk at the given coordinate.
func NewChunk(coord ChunkCoord) *Chunk {
	return &Chunk{
		Coord: coord,
		data:  make([]MaterialID, ChunkVolume),
	}
}

// Index converts local coordinates (0..31 each) to a flat array index.
// Layout is x + y*32 + z*1024, matching the mesher's (w,h,d) row-major order.
func Index(x, y, z int) int {
	return x | y<<shiftY | z<<shiftZ
}

// Get returns the material at the given local coordinates.
// Reads outside the chunk are air.
func (c *Chunk) Get(x, y, z int) MaterialID {
	if x < 0 || x >= ChunkSize || y < 0 || y >= ChunkSize || z < 0 || z >= ChunkSize {
		return 0
	}
	return c.data[Index(x, y, z)]
}

// Set writes the material at the given local coordinates and reports
// whether the stored value actually changed.
func (c *Chunk) Set(x, y, z int, id MaterialID) bool {
	if x < 0 || x >= ChunkSize || y < 0 || y >= ChunkSize || z < 0 || z >= ChunkSize {
		return false
	}
	idx := Index(x, y, z)
	if c.data[idx] == id {
		return false
	}
	c.data[idx] = id
	return true
}

// Reset zero-fills the chunk array.
func (c *Chunk) Reset() {
	clear(c.data)
}

// Snapshot returns a copy of the material array, safe to hand to a worker.
func (c *Chunk) Snapshot() []uint8 {
	out := make([]uint8, ChunkVolume)
	for i, v := range c.data {
		out[i] = uint8(v)
	}
	return out
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, s int) int {
	q := a / s
	if a%s != 0 && (a < 0) != (s < 0) {
		q--
	}
	return q
}

// mod is the floored modulo: always in [0, s) for positive s.
// Go's native % returns negative remainders for negative operands,
// which would corrupt chunk-local indexing.
func mod(a, s int) int {
	return ((a % s) + s) % s
}

// WorldToChunk returns the chunk coordinate owning a world coordinate.
func WorldToChunk(x, y, z int) ChunkCoord {
	return ChunkCoord{
		X: floorDiv(x, ChunkSize),
		Y: floorDiv(y, ChunkSize),
		Z: floorDiv(z, ChunkSize),
	}
}

// WorldToLocal returns local coordinates inside the owning chunk.
func WorldToLocal(x, y, z int) (int, int, int) {
	return mod(x, ChunkSize), mod(y, ChunkSize), mod(z, ChunkSize)
}
