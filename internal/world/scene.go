package world

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/abuklea/voxelito/internal/profiling"
)

// SceneDescriptor is the wire format produced by the scene backend.
// Each chunk entry carries a palette of material names and a run-length
// encoded stream of palette indices covering the full chunk volume.
type SceneDescriptor struct {
	Chunks []SceneChunk `json:"chunks"`
}

// SceneChunk is one chunk entry in a scene descriptor.
type SceneChunk struct {
	Position [3]int   `json:"position"`
	Palette  []string `json:"palette"`
	Runs     string   `json:"runs"`
}

// DecodeScene parses a scene descriptor from JSON, transparently
// unwrapping gzip-compressed payloads.
func DecodeScene(r io.Reader) (*SceneDescriptor, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip scene: %w", err)
		}
		defer zr.Close()
		return decodeSceneJSON(zr)
	}
	return decodeSceneJSON(br)
}

func decodeSceneJSON(r io.Reader) (*SceneDescriptor, error) {
	var desc SceneDescriptor
	if err := json.NewDecoder(r).Decode(&desc); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &desc, nil
}

// ReadSceneFile loads a scene descriptor from a plain or gzipped JSON file.
func ReadSceneFile(path string) (*SceneDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene %s: %w", path, err)
	}
	defer f.Close()
	return DecodeScene(f)
}

type run struct {
	palette int
	count   int
}

// parseRuns decodes a "paletteIndex:count,..." stream and validates that
// the counts sum to exactly the chunk volume before any voxel is written.
func parseRuns(runs string, paletteLen int) ([]run, error) {
	parts := strings.Split(runs, ",")
	out := make([]run, 0, len(parts))
	total := 0
	for _, part := range parts {
		idxStr, countStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("malformed run %q", part)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return nil, fmt.Errorf("malformed run index %q: %w", idxStr, err)
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, fmt.Errorf("malformed run count %q: %w", countStr, err)
		}
		if idx < 0 || idx >= paletteLen {
			return nil, fmt.Errorf("run index %d outside palette of %d", idx, paletteLen)
		}
		if count <= 0 {
			return nil, fmt.Errorf("run count %d must be positive", count)
		}
		total += count
		if total > ChunkVolume {
			return nil, fmt.Errorf("run counts exceed chunk volume %d", ChunkVolume)
		}
		out = append(out, run{palette: idx, count: count})
	}
	if total != ChunkVolume {
		return nil, fmt.Errorf("run counts sum to %d, want %d", total, ChunkVolume)
	}
	return out, nil
}

// LoadScene replaces chunk contents from a scene descriptor. Each loaded
// chunk is zero-filled first (full replace, not a merge) and marked dirty.
// A chunk with a bad run stream or an unknown palette name is skipped with
// a logged error; one bad chunk never aborts the rest of the load.
// Returns the coordinates of the chunks that loaded successfully.
func (s *Store) LoadScene(desc *SceneDescriptor, nameToIDs map[string][]MaterialID) []ChunkCoord {
	defer profiling.Track("world.LoadScene")()
	loaded := make([]ChunkCoord, 0, len(desc.Chunks))
	for _, sc := range desc.Chunks {
		if err := s.loadSceneChunk(sc, nameToIDs); err != nil {
			log.Printf("world: skipping chunk (%d,%d,%d): %v",
				sc.Position[0], sc.Position[1], sc.Position[2], err)
			continue
		}
		loaded = append(loaded, ChunkCoord{X: sc.Position[0], Y: sc.Position[1], Z: sc.Position[2]})
	}
	return loaded
}

func (s *Store) loadSceneChunk(sc SceneChunk, nameToIDs map[string][]MaterialID) error {
	// Resolve the palette up front so a bad name rejects the chunk
	// before any write happens.
	palette := make([][]MaterialID, len(sc.Palette))
	for i, name := range sc.Palette {
		ids, ok := nameToIDs[name]
		if !ok || len(ids) == 0 {
			return fmt.Errorf("unknown material %q", name)
		}
		palette[i] = ids
	}

	runs, err := parseRuns(sc.Runs, len(palette))
	if err != nil {
		return err
	}

	coord := ChunkCoord{X: sc.Position[0], Y: sc.Position[1], Z: sc.Position[2]}
	chunk := s.getOrCreate(coord)

	s.mu.Lock()
	chunk.Reset()
	baseX := coord.X * ChunkSize
	baseY := coord.Y * ChunkSize
	baseZ := coord.Z * ChunkSize
	n := 0
	for _, r := range runs {
		ids := palette[r.palette]
		for end := n + r.count; n < end; n++ {
			lx := n & mask5
			ly := (n >> shiftY) & mask5
			lz := n >> shiftZ
			id := pickVariant(ids, baseX+lx, baseY+ly, baseZ+lz, coord)
			chunk.data[n] = id
		}
	}
	s.dirty[coord] = struct{}{}
	s.mu.Unlock()
	return nil
}
