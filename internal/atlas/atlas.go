package atlas

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"

	"github.com/abuklea/voxelito/internal/world"
)

// Rect is a material variant's UV rectangle inside the packed atlas image.
// Origin is the bottom-left corner in texture-sampling space.
type Rect struct {
	Origin mgl32.Vec2
	Span   mgl32.Vec2
}

// Atlas packs every registered texture variant into one shared grid image
// and exposes per-id UV rectangles. Build runs once at startup; geometry
// finalization that needs UVs waits on Ready.
type Atlas struct {
	reg  *Registry
	tile int

	mu    sync.RWMutex
	ready bool
	rects map[world.MaterialID]Rect
	img   *image.RGBA
}

// New creates an atlas for the given registry. tileSize is the square
// pixel size every variant is normalized to.
func New(reg *Registry, tileSize int) *Atlas {
	if tileSize < 1 {
		tileSize = 16
	}
	return &Atlas{
		reg:   reg,
		tile:  tileSize,
		rects: make(map[world.MaterialID]Rect),
	}
}

// Build loads every declared variant image from dir and packs them into a
// single grid image. A missing or unreadable image is logged and its
// variant dropped from the registry, never fatal. Build fails only when no
// variant at all could be loaded.
func (a *Atlas) Build(dir string) error {
	variants := a.reg.Variants()
	type loaded struct {
		v   Variant
		img *image.RGBA
	}
	imgs := make([]loaded, 0, len(variants))
	for _, v := range variants {
		img, err := loadTile(filepath.Join(dir, v.File), a.tile)
		if err != nil {
			log.Printf("atlas: dropping variant %s of %q: %v", v.File, v.Name, err)
			a.reg.removeVariant(v.ID)
			continue
		}
		imgs = append(imgs, loaded{v: v, img: img})
	}
	if len(imgs) == 0 {
		return fmt.Errorf("atlas: no texture variants could be loaded from %s", dir)
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(imgs)))))
	rows := (len(imgs) + cols - 1) / cols

	out := image.NewRGBA(image.Rect(0, 0, cols*a.tile, rows*a.tile))
	rects := make(map[world.MaterialID]Rect, len(imgs))
	for i, l := range imgs {
		col := i % cols
		row := i / cols
		dst := image.Rect(col*a.tile, row*a.tile, (col+1)*a.tile, (row+1)*a.tile)
		xdraw.Draw(out, dst, l.img, image.Point{}, xdraw.Src)

		// Image rows run top-down but texture sampling runs bottom-up,
		// so the vertical origin is 1-(row+1)/rows, not row/rows.
		rects[l.v.ID] = Rect{
			Origin: mgl32.Vec2{float32(col) / float32(cols), 1 - float32(row+1)/float32(rows)},
			Span:   mgl32.Vec2{1 / float32(cols), 1 / float32(rows)},
		}
	}

	a.mu.Lock()
	a.rects = rects
	a.img = out
	a.ready = true
	a.mu.Unlock()

	log.Printf("atlas: packed %d variants into %dx%d grid (%dpx tiles)", len(imgs), cols, rows, a.tile)
	return nil
}

// loadTile decodes an image file, normalizes it to RGBA and rescales it to
// a square tile of the requested size.
func loadTile(path string, tile int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, tile, tile))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

// Ready reports whether Build has completed.
func (a *Atlas) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Lookup returns the UV rectangle for a material id.
func (a *Atlas) Lookup(id world.MaterialID) (Rect, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.rects[id]
	return r, ok
}

// EncodePNG writes the packed atlas image.
func (a *Atlas) EncodePNG(w io.Writer) error {
	a.mu.RLock()
	img := a.img
	a.mu.RUnlock()
	if img == nil {
		return fmt.Errorf("atlas: not built")
	}
	return png.Encode(w, img)
}
