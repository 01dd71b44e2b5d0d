package dispatch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abuklea/voxelito/internal/atlas"
	"github.com/abuklea/voxelito/internal/meshing"
	"github.com/abuklea/voxelito/internal/world"
)

// fakeRenderer records add/remove calls the way a scene graph would.
type fakeRenderer struct {
	mu     sync.Mutex
	meshes map[world.ChunkCoord]*ChunkMesh
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{meshes: make(map[world.ChunkCoord]*ChunkMesh)}
}

func (f *fakeRenderer) AddChunkMesh(coord world.ChunkCoord, mesh *ChunkMesh) {
	f.mu.Lock()
	f.meshes[coord] = mesh
	f.mu.Unlock()
}

func (f *fakeRenderer) RemoveChunkMesh(coord world.ChunkCoord) {
	f.mu.Lock()
	delete(f.meshes, coord)
	f.mu.Unlock()
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.meshes)
}

func (f *fakeRenderer) mesh(coord world.ChunkCoord) *ChunkMesh {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meshes[coord]
}

func writeTestPNG(t *testing.T, dir, name string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testRegistry(t *testing.T) *atlas.Registry {
	t.Helper()
	reg, err := atlas.NewRegistry([]atlas.MaterialDef{
		{Name: "stone", Variants: []string{"s.png"}},
	})
	require.NoError(t, err)
	return reg
}

func stoneScene(coords ...[3]int) *world.SceneDescriptor {
	desc := &world.SceneDescriptor{}
	for _, pos := range coords {
		desc.Chunks = append(desc.Chunks, world.SceneChunk{
			Position: pos,
			Palette:  []string{"stone"},
			Runs:     fmt.Sprintf("0:%d", world.ChunkVolume),
		})
	}
	return desc
}

func newPipeline(t *testing.T, buildAtlas bool) (*Dispatcher, *fakeRenderer, *atlas.Registry, *atlas.Atlas, string) {
	t.Helper()
	dir := t.TempDir()
	writeTestPNG(t, dir, "s.png")

	reg := testRegistry(t)
	a := atlas.New(reg, 16)
	if buildAtlas {
		require.NoError(t, a.Build(dir))
	}

	store := world.NewStore()
	pool := meshing.NewPool(2, 64)
	renderer := newFakeRenderer()
	d := New(store, pool, a, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Shutdown()
	})
	return d, renderer, reg, a, dir
}

func TestApplySceneProducesMeshes(t *testing.T) {
	d, renderer, reg, _, _ := newPipeline(t, true)

	d.ApplyScene(stoneScene([3]int{1, 0, 0}), reg.NameToIDs())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Drain(ctx))

	mesh := renderer.mesh(world.ChunkCoord{X: 1})
	require.NotNil(t, mesh)

	// A full single-material chunk merges to six boundary quads.
	assert.Len(t, mesh.Positions, 24*3)
	assert.Len(t, mesh.Indices, 36)
	assert.Len(t, mesh.UVs, 24*2)

	// World-space placement at chunkCoordinate x 32.
	for i := 0; i < len(mesh.Positions); i += 3 {
		assert.GreaterOrEqual(t, mesh.Positions[i], float32(32))
		assert.LessOrEqual(t, mesh.Positions[i], float32(64))
	}

	// UVs land inside the material's rect (single-tile atlas: the whole image).
	for i := 0; i < len(mesh.UVs); i++ {
		assert.GreaterOrEqual(t, mesh.UVs[i], float32(0))
		assert.LessOrEqual(t, mesh.UVs[i], float32(1))
	}
}

func TestSceneDiffRemovesStaleMeshes(t *testing.T) {
	d, renderer, reg, _, _ := newPipeline(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d.ApplyScene(stoneScene([3]int{0, 0, 0}, [3]int{1, 0, 0}), reg.NameToIDs())
	require.NoError(t, d.Drain(ctx))
	require.Equal(t, 2, renderer.count())

	d.ApplyScene(stoneScene([3]int{1, 0, 0}), reg.NameToIDs())
	require.NoError(t, d.Drain(ctx))

	assert.Nil(t, renderer.mesh(world.ChunkCoord{}))
	assert.NotNil(t, renderer.mesh(world.ChunkCoord{X: 1}))
	assert.Equal(t, 1, renderer.count())
}

func TestResultsDeferredUntilAtlasReady(t *testing.T) {
	d, renderer, reg, a, dir := newPipeline(t, false)

	d.ApplyScene(stoneScene([3]int{0, 0, 0}), reg.NameToIDs())

	// Meshing completes but finalization must wait for the atlas.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, renderer.count(), "geometry must not appear before the atlas is ready")

	require.NoError(t, a.Build(dir))

	assert.Eventually(t, func() bool { return renderer.count() == 1 },
		5*time.Second, 10*time.Millisecond, "deferred result must finalize once the atlas is ready")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Drain(ctx))
}

func TestVoxelEditTriggersRemesh(t *testing.T) {
	d, renderer, _, _, _ := newPipeline(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d.store.SetVoxel(0, 0, 0, 1)
	require.Equal(t, 1, d.ScheduleDirty())
	require.Empty(t, d.store.DirtyChunks(), "flags cleared after scheduling")
	require.NoError(t, d.Drain(ctx))

	mesh := renderer.mesh(world.ChunkCoord{})
	require.NotNil(t, mesh)
	assert.Len(t, mesh.Positions, 24*3)
}

func TestWorkerFailureKeepsPreviousMesh(t *testing.T) {
	d, renderer, _, _, _ := newPipeline(t, true)

	coord := world.ChunkCoord{X: 2}
	previous := &ChunkMesh{Positions: []float32{1, 2, 3}}
	renderer.AddChunkMesh(coord, previous)
	d.mu.Lock()
	d.active[coord] = struct{}{}
	d.applied[coord] = struct{}{}
	d.inFlight++
	d.mu.Unlock()

	d.handleResult(meshing.JobResult{Coord: coord, Err: errors.New("boom")})

	assert.Same(t, previous, renderer.mesh(coord), "previous mesh must stay in place")
	d.mu.Lock()
	assert.Equal(t, 0, d.inFlight)
	d.mu.Unlock()
}

func TestInactiveChunkResultDiscarded(t *testing.T) {
	d, renderer, _, _, _ := newPipeline(t, true)

	coord := world.ChunkCoord{X: 5}
	d.mu.Lock()
	d.inFlight++
	d.mu.Unlock()

	data := make([]uint8, world.ChunkVolume)
	data[0] = 1
	d.handleResult(meshing.JobResult{Coord: coord, Mesh: meshing.Mesh(data, [3]int{32, 32, 32})})

	assert.Nil(t, renderer.mesh(coord))
	d.mu.Lock()
	assert.Equal(t, 0, d.inFlight)
	d.mu.Unlock()
}

func TestAllAirResultRemovesGeometry(t *testing.T) {
	d, renderer, _, _, _ := newPipeline(t, true)

	coord := world.ChunkCoord{X: 3}
	renderer.AddChunkMesh(coord, &ChunkMesh{})
	d.mu.Lock()
	d.active[coord] = struct{}{}
	d.applied[coord] = struct{}{}
	d.inFlight++
	d.mu.Unlock()

	d.handleResult(meshing.JobResult{Coord: coord, Mesh: meshing.Result{}})

	assert.Nil(t, renderer.mesh(coord), "an all-air chunk should drop its stale geometry")
}
