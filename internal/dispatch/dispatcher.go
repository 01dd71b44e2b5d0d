package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/abuklea/voxelito/internal/atlas"
	"github.com/abuklea/voxelito/internal/meshing"
	"github.com/abuklea/voxelito/internal/profiling"
	"github.com/abuklea/voxelito/internal/world"
)

// Renderer is the collaborator that owns the actual scene graph and GPU
// resource lifetime. The dispatcher only hands it finished geometry.
type Renderer interface {
	AddChunkMesh(coord world.ChunkCoord, mesh *ChunkMesh)
	RemoveChunkMesh(coord world.ChunkCoord)
}

// ChunkMesh is finalized renderable geometry for one chunk, positioned in
// world space at chunkCoordinate x ChunkSize.
type ChunkMesh struct {
	Positions   []float32
	Indices     []uint32
	UVs         []float32
	MaterialIDs []uint8
}

// Dispatcher orchestrates the chunk store, the mesh worker pool and the
// texture atlas: it schedules dirty chunks for remeshing, maps mesher
// material ids to atlas UVs and hands finished geometry to the renderer.
type Dispatcher struct {
	store    *world.Store
	pool     *meshing.Pool
	atlas    *atlas.Atlas
	renderer Renderer

	mu       sync.Mutex
	active   map[world.ChunkCoord]struct{}
	applied  map[world.ChunkCoord]struct{}
	deferred []meshing.JobResult
	inFlight int
}

// New creates a dispatcher over the given collaborators.
func New(store *world.Store, pool *meshing.Pool, a *atlas.Atlas, renderer Renderer) *Dispatcher {
	return &Dispatcher{
		store:    store,
		pool:     pool,
		atlas:    a,
		renderer: renderer,
		active:   make(map[world.ChunkCoord]struct{}),
		applied:  make(map[world.ChunkCoord]struct{}),
	}
}

// ApplyScene loads a scene descriptor into the store, disposes meshes of
// chunks no longer present and schedules every dirty chunk for remeshing.
func (d *Dispatcher) ApplyScene(desc *world.SceneDescriptor, nameToIDs map[string][]world.MaterialID) {
	defer profiling.Track("dispatch.ApplyScene")()

	loaded := d.store.LoadScene(desc, nameToIDs)

	next := make(map[world.ChunkCoord]struct{}, len(loaded))
	for _, coord := range loaded {
		next[coord] = struct{}{}
	}

	d.mu.Lock()
	for coord := range d.active {
		if _, keep := next[coord]; !keep {
			if _, had := d.applied[coord]; had {
				d.renderer.RemoveChunkMesh(coord)
				delete(d.applied, coord)
			}
		}
	}
	d.active = next
	d.mu.Unlock()

	d.ScheduleDirty()
}

// ScheduleDirty submits every dirty chunk to the mesh pool and clears the
// dirty set afterwards. A chunk whose submission did not fit in the queue
// is re-marked dirty so the next round picks it up. Returns the number of
// jobs submitted.
func (d *Dispatcher) ScheduleDirty() int {
	dirty := d.store.DirtyChunks()
	if len(dirty) == 0 {
		return 0
	}

	var unsent []world.ChunkCoord
	scheduled := 0
	for _, coord := range dirty {
		data, ok := d.store.Snapshot(coord)
		if !ok {
			continue
		}
		job := meshing.Job{
			Coord: coord,
			Data:  data,
			Dims:  [3]int{world.ChunkSize, world.ChunkSize, world.ChunkSize},
		}
		if !d.pool.Submit(job) {
			unsent = append(unsent, coord)
			continue
		}
		scheduled++
		d.mu.Lock()
		d.active[coord] = struct{}{}
		d.inFlight++
		d.mu.Unlock()
	}

	d.store.ClearDirtyFlags()
	for _, coord := range unsent {
		d.store.MarkDirty(coord)
	}
	return scheduled
}

// Run consumes mesh results until the context is cancelled. A ticker
// periodically flushes results that were deferred while the atlas was
// still building.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-d.pool.Results():
			d.handleResult(res)
		case <-ticker.C:
			d.flushDeferred()
		}
	}
}

// Drain blocks until no mesh work is in flight or deferred.
func (d *Dispatcher) Drain(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		d.mu.Lock()
		idle := d.inFlight == 0 && len(d.deferred) == 0
		d.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) handleResult(res meshing.JobResult) {
	d.mu.Lock()
	if _, ok := d.active[res.Coord]; !ok {
		// Meshing a since-removed chunk ran to completion; the result
		// is wasted work, not a correctness hazard.
		d.inFlight--
		d.mu.Unlock()
		return
	}
	if res.Err != nil {
		// Leave the chunk's previous mesh in place; stale-but-visible
		// beats absent.
		d.inFlight--
		d.mu.Unlock()
		meshFailures.Inc()
		log.Printf("dispatch: mesh failed for chunk (%d,%d,%d): %v",
			res.Coord.X, res.Coord.Y, res.Coord.Z, res.Err)
		return
	}
	if !d.atlas.Ready() {
		// UV assignment needs the atlas; park the result, never drop it.
		d.deferred = append(d.deferred, res)
		d.mu.Unlock()
		deferredResults.Set(float64(len(d.deferred)))
		return
	}
	d.mu.Unlock()
	d.apply(res)
}

// flushDeferred finalizes parked results in arrival order once the atlas
// is ready, keeping last-applied-wins intact across the deferral boundary.
func (d *Dispatcher) flushDeferred() {
	if !d.atlas.Ready() {
		return
	}
	d.mu.Lock()
	pending := d.deferred
	d.deferred = nil
	d.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	deferredResults.Set(0)
	for _, res := range pending {
		d.apply(res)
	}
}

// apply finalizes one mesh result and hands it to the renderer.
// Whatever result arrives is applied, last-applied-wins.
func (d *Dispatcher) apply(res meshing.JobResult) {
	defer profiling.Track("dispatch.apply")()

	mesh := d.finalize(res)

	d.mu.Lock()
	_, stillActive := d.active[res.Coord]
	if stillActive {
		if mesh == nil {
			if _, had := d.applied[res.Coord]; had {
				d.renderer.RemoveChunkMesh(res.Coord)
				delete(d.applied, res.Coord)
			}
		} else {
			d.renderer.AddChunkMesh(res.Coord, mesh)
			d.applied[res.Coord] = struct{}{}
		}
	}
	d.inFlight--
	d.mu.Unlock()

	if stillActive && mesh != nil {
		chunksMeshed.Inc()
		quadsEmitted.Add(float64(len(mesh.Indices) / 6))
		meshDuration.Observe(res.Duration.Seconds())
	}
}

// finalize turns a mesher result into renderable geometry: world-space
// positions and per-vertex UVs looked up through the atlas. Returns nil
// for an all-air chunk.
func (d *Dispatcher) finalize(res meshing.JobResult) *ChunkMesh {
	if res.Mesh.Empty() {
		return nil
	}

	offset := mgl32.Vec3{
		float32(res.Coord.X * world.ChunkSize),
		float32(res.Coord.Y * world.ChunkSize),
		float32(res.Coord.Z * world.ChunkSize),
	}

	positions := make([]float32, len(res.Mesh.Positions))
	for i := 0; i < len(positions); i += 3 {
		positions[i] = res.Mesh.Positions[i] + offset.X()
		positions[i+1] = res.Mesh.Positions[i+1] + offset.Y()
		positions[i+2] = res.Mesh.Positions[i+2] + offset.Z()
	}

	// Vertices arrive four per quad in canonical corner order; map each
	// corner to the matching corner of the material's UV rect.
	uvs := make([]float32, 0, len(res.Mesh.MaterialIDs)*2)
	for i, id := range res.Mesh.MaterialIDs {
		rect, ok := d.atlas.Lookup(world.MaterialID(id))
		if !ok {
			uvs = append(uvs, 0, 0)
			continue
		}
		u, v := rect.Origin.X(), rect.Origin.Y()
		switch i % 4 {
		case 1:
			u += rect.Span.X()
		case 2:
			u += rect.Span.X()
			v += rect.Span.Y()
		case 3:
			v += rect.Span.Y()
		}
		uvs = append(uvs, u, v)
	}

	return &ChunkMesh{
		Positions:   positions,
		Indices:     res.Mesh.Indices,
		UVs:         uvs,
		MaterialIDs: res.Mesh.MaterialIDs,
	}
}
