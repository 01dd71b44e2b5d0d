package render

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/abuklea/voxelito/internal/dispatch"
	"github.com/abuklea/voxelito/internal/world"
)

// ObjRenderer is a renderer collaborator that keeps the latest mesh per
// chunk and can export the whole scene as a Wavefront OBJ with a
// companion MTL referencing the packed atlas image.
type ObjRenderer struct {
	mu     sync.Mutex
	meshes map[world.ChunkCoord]*dispatch.ChunkMesh
}

// NewObj creates an empty OBJ renderer.
func NewObj() *ObjRenderer {
	return &ObjRenderer{meshes: make(map[world.ChunkCoord]*dispatch.ChunkMesh)}
}

// AddChunkMesh stores (or replaces) the mesh for a chunk.
func (o *ObjRenderer) AddChunkMesh(coord world.ChunkCoord, mesh *dispatch.ChunkMesh) {
	o.mu.Lock()
	o.meshes[coord] = mesh
	o.mu.Unlock()
}

// RemoveChunkMesh disposes the mesh for a chunk.
func (o *ObjRenderer) RemoveChunkMesh(coord world.ChunkCoord) {
	o.mu.Lock()
	delete(o.meshes, coord)
	o.mu.Unlock()
}

// MeshCount returns the number of chunk meshes currently held.
func (o *ObjRenderer) MeshCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.meshes)
}

// Mesh returns the held mesh for a chunk, if any.
func (o *ObjRenderer) Mesh(coord world.ChunkCoord) (*dispatch.ChunkMesh, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.meshes[coord]
	return m, ok
}

// WriteFiles exports all held meshes to objPath plus a sibling MTL that
// maps the atlas image. Chunks are written in sorted coordinate order so
// identical scenes produce identical files.
func (o *ObjRenderer) WriteFiles(objPath, mtlPath, atlasImage string) error {
	o.mu.Lock()
	coords := make([]world.ChunkCoord, 0, len(o.meshes))
	for coord := range o.meshes {
		coords = append(coords, coord)
	}
	o.mu.Unlock()
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	if err := o.writeMtl(mtlPath, atlasImage); err != nil {
		return err
	}

	f, err := os.Create(objPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", objPath, err)
	}
	defer f.Close()
	out := bufio.NewWriter(f)

	fmt.Fprintf(out, "mtllib %s\n", mtlPath)
	fmt.Fprintln(out, "usemtl atlas")

	// OBJ indices are global and 1-based; track the running vertex base.
	vBase := 1
	for _, coord := range coords {
		o.mu.Lock()
		mesh := o.meshes[coord]
		o.mu.Unlock()
		if mesh == nil {
			continue
		}
		fmt.Fprintf(out, "g chunk_%d_%d_%d\n", coord.X, coord.Y, coord.Z)
		for i := 0; i+2 < len(mesh.Positions); i += 3 {
			fmt.Fprintf(out, "v %g %g %g\n", mesh.Positions[i], mesh.Positions[i+1], mesh.Positions[i+2])
		}
		for i := 0; i+1 < len(mesh.UVs); i += 2 {
			fmt.Fprintf(out, "vt %g %g\n", mesh.UVs[i], mesh.UVs[i+1])
		}
		for i := 0; i+2 < len(mesh.Indices); i += 3 {
			a := int(mesh.Indices[i]) + vBase
			b := int(mesh.Indices[i+1]) + vBase
			c := int(mesh.Indices[i+2]) + vBase
			fmt.Fprintf(out, "f %d/%d %d/%d %d/%d\n", a, a, b, b, c, c)
		}
		vBase += len(mesh.Positions) / 3
	}
	return out.Flush()
}

func (o *ObjRenderer) writeMtl(mtlPath, atlasImage string) error {
	f, err := os.Create(mtlPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", mtlPath, err)
	}
	defer f.Close()
	out := bufio.NewWriter(f)
	fmt.Fprintln(out, "newmtl atlas")
	fmt.Fprintln(out, "Ka 1.000 1.000 1.000")
	fmt.Fprintln(out, "Kd 1.000 1.000 1.000")
	fmt.Fprintf(out, "map_Kd %s\n", atlasImage)
	return out.Flush()
}
