package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abuklea/voxelito/internal/atlas"
	"github.com/abuklea/voxelito/internal/config"
	"github.com/abuklea/voxelito/internal/dispatch"
	"github.com/abuklea/voxelito/internal/meshing"
	"github.com/abuklea/voxelito/internal/profiling"
	"github.com/abuklea/voxelito/internal/render"
	"github.com/abuklea/voxelito/internal/world"
)

func main() {
	configPath := flag.String("config", "voxmesh.yaml", "path to YAML config")
	scenePath := flag.String("scene", "", "scene descriptor JSON (plain or .gz)")
	outPath := flag.String("out", "scene.obj", "output OBJ file")
	metricsAddr := flag.String("metrics", "", "metrics listen address (overrides config)")
	timeout := flag.Duration("timeout", 2*time.Minute, "pipeline drain timeout")
	flag.Parse()

	if *scenePath == "" {
		log.Fatalf("missing -scene")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}

	reg, err := atlas.NewRegistry(cfg.MaterialDefs())
	if err != nil {
		log.Fatalf("build material registry: %v", err)
	}

	// Build the atlas in the background; the pipeline starts meshing
	// immediately and defers UV finalization until the atlas is ready.
	atl := atlas.New(reg, cfg.Atlas.TileSize)
	atlasErr := make(chan error, 1)
	go func() {
		atlasErr <- atl.Build(cfg.Atlas.AssetsDir)
	}()

	store := world.NewStore()
	pool := meshing.NewPool(cfg.Meshing.Workers, cfg.Meshing.QueueSize)
	defer pool.Shutdown()
	renderer := render.NewObj()
	disp := dispatch.New(store, pool, atl, renderer)

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				log.Printf("metrics listener: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	go disp.Run(ctx)

	profiling.ResetBatch()

	desc, err := world.ReadSceneFile(*scenePath)
	if err != nil {
		log.Fatalf("read scene: %v", err)
	}
	disp.ApplyScene(desc, reg.NameToIDs())

	if err := <-atlasErr; err != nil {
		log.Fatalf("build atlas: %v", err)
	}
	if err := disp.Drain(ctx); err != nil {
		log.Fatalf("drain pipeline: %v", err)
	}

	base := strings.TrimSuffix(*outPath, ".obj")
	mtlPath := base + ".mtl"
	pngPath := base + ".png"
	if err := renderer.WriteFiles(*outPath, mtlPath, pngPath); err != nil {
		log.Fatalf("write obj: %v", err)
	}
	pngFile, err := os.Create(pngPath)
	if err != nil {
		log.Fatalf("create atlas image: %v", err)
	}
	if err := atl.EncodePNG(pngFile); err != nil {
		pngFile.Close()
		log.Fatalf("encode atlas image: %v", err)
	}
	pngFile.Close()

	log.Printf("exported %d chunk meshes to %s (stages: %s)",
		renderer.MeshCount(), *outPath, profiling.TopN(5))
}
