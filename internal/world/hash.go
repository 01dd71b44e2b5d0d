package world

// Deterministic hashing for texture-variant selection. Must stay stable
// across versions: reloading identical scene data has to pick identical
// variants, with no dependence on load order.

// mix32 avalanches a 32-bit input (murmur finalizer style).
func mix32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// variantHash returns a stable hash for an absolute voxel position,
// mixed with the owning chunk coordinate. Large odd constants
// decorrelate the axes.
func variantHash(wx, wy, wz int, coord ChunkCoord) uint32 {
	h := uint32(int32(wx)) * 0x9e3779b1
	h ^= uint32(int32(wy)) * 0x85ebca6b
	h ^= uint32(int32(wz)) * 0xc2b2ae35
	h ^= uint32(int32(coord.X)) * 0x27d4eb2f
	h ^= uint32(int32(coord.Y)) * 0x165667b1
	h ^= uint32(int32(coord.Z)) * 0x9e3779b9
	return mix32(h)
}

// pickVariant selects one id from a variant list for the voxel at the
// given absolute position. Single-variant materials skip the hash.
func pickVariant(ids []MaterialID, wx, wy, wz int, coord ChunkCoord) MaterialID {
	if len(ids) == 1 {
		return ids[0]
	}
	return ids[variantHash(wx, wy, wz, coord)%uint32(len(ids))]
}
