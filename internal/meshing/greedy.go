package meshing

import "github.com/go-gl/mathgl/mgl32"

// Result holds the geometry produced for one chunk: flat vertex positions
// in chunk-local coordinates, triangle indices, and one material id per
// vertex (all four corners of a quad share a value) for later UV lookup.
// A Result is purely a function of the mesher's input.
type Result struct {
	Positions   []float32
	Indices     []uint32
	MaterialIDs []uint8
}

// Empty reports whether the result holds no geometry.
func (r Result) Empty() bool {
	return len(r.Positions) == 0
}

// Mesh builds a greedy-merged face mesh for one chunk's flat material
// array. data is laid out x + dims[0]*(y + dims[1]*z). Reads outside the
// dimensions are treated as air, so a face is emitted at every chunk
// boundary regardless of neighbor chunks.
//
// Pure function: no shared state, safe to call concurrently across chunks,
// and bit-identical output for bit-identical input.
func Mesh(data []uint8, dims [3]int) Result {
	allAir := true
	for _, m := range data {
		if m != 0 {
			allAir = false
			break
		}
	}
	if allAir {
		return Result{}
	}

	at := func(x [3]int) uint8 {
		if x[0] < 0 || x[0] >= dims[0] || x[1] < 0 || x[1] >= dims[1] || x[2] < 0 || x[2] >= dims[2] {
			return 0
		}
		return data[x[0]+dims[0]*(x[1]+dims[1]*x[2])]
	}

	var res Result
	for d := 0; d < 3; d++ {
		u := (d + 1) % 3
		v := (d + 2) % 3
		du, dv := dims[u], dims[v]

		// Signed mask per slice: +id for a face on the behind side of
		// the plane, -id for the front side. The sign keeps oppositely
		// oriented faces of the same material from merging.
		mask := make([]int16, du*dv)

		var x, step [3]int
		step[d] = 1

		for x[d] = -1; x[d] < dims[d]; x[d]++ {
			n := 0
			for x[v] = 0; x[v] < dv; x[v]++ {
				for x[u] = 0; x[u] < du; x[u]++ {
					back := at(x)
					front := at([3]int{x[0] + step[0], x[1] + step[1], x[2] + step[2]})
					switch {
					case (back != 0) == (front != 0):
						// Both solid or both empty: no face. A face
						// between two different solid materials is
						// culled too; faces are opaque.
						mask[n] = 0
					case back != 0:
						mask[n] = int16(back)
					default:
						mask[n] = -int16(front)
					}
					n++
				}
			}

			// Greedy merge in scanline order: grow width along u, then
			// height along v while the whole row matches.
			plane := x[d] + 1
			n = 0
			for j := 0; j < dv; j++ {
				for i := 0; i < du; {
					mv := mask[n]
					if mv == 0 {
						i++
						n++
						continue
					}
					w := 1
					for i+w < du && mask[n+w] == mv {
						w++
					}
					h := 1
				grow:
					for j+h < dv {
						for k := 0; k < w; k++ {
							if mask[n+k+h*du] != mv {
								break grow
							}
						}
						h++
					}

					emitQuad(&res, d, u, v, plane, i, j, w, h, mv)

					for jj := 0; jj < h; jj++ {
						for ii := 0; ii < w; ii++ {
							mask[n+ii+jj*du] = 0
						}
					}
					i += w
					n += w
				}
			}
		}
	}
	return res
}

// emitQuad appends one merged rectangle as two triangles with the fixed
// fan (0,1,2),(0,2,3). All four corners carry the same material id.
func emitQuad(res *Result, d, u, v, plane, i, j, w, h int, mv int16) {
	var c0, eu, ev mgl32.Vec3
	c0[d] = float32(plane)
	c0[u] = float32(i)
	c0[v] = float32(j)
	eu[u] = float32(w)
	ev[v] = float32(h)

	c1 := c0.Add(eu)
	c2 := c0.Add(eu).Add(ev)
	c3 := c0.Add(ev)
	if mv < 0 {
		// Flip winding for faces pointing toward -d.
		c1, c3 = c3, c1
	}

	base := uint32(len(res.Positions) / 3)
	res.Positions = append(res.Positions,
		c0[0], c0[1], c0[2],
		c1[0], c1[1], c1[2],
		c2[0], c2[1], c2[2],
		c3[0], c3[1], c3[2],
	)
	res.Indices = append(res.Indices, base, base+1, base+2, base, base+2, base+3)

	id := uint8(mv)
	if mv < 0 {
		id = uint8(-mv)
	}
	res.MaterialIDs = append(res.MaterialIDs, id, id, id, id)
}
