package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/abuklea/voxelito/internal/atlas"
)

// Config is the root application configuration.
type Config struct {
	Meshing   MeshingConfig    `yaml:"meshing"`
	Atlas     AtlasConfig      `yaml:"atlas"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Materials []MaterialConfig `yaml:"materials"`
}

type MeshingConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type AtlasConfig struct {
	AssetsDir string `yaml:"assets_dir"`
	TileSize  int    `yaml:"tile_size"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type MaterialConfig struct {
	Name     string   `yaml:"name"`
	Variants []string `yaml:"variants"`
}

// Default returns a config with sane defaults and no materials.
func Default() *Config {
	return &Config{
		Meshing: MeshingConfig{
			Workers:   runtime.NumCPU(),
			QueueSize: 256,
		},
		Atlas: AtlasConfig{
			AssetsDir: "assets/textures",
			TileSize:  16,
		},
	}
}

// Load reads a YAML config file and applies defaults, env fallbacks and
// clamping.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyFallbacks()
	return cfg, nil
}

// applyFallbacks fills unset fields from the environment and clamps
// values to usable ranges.
func (c *Config) applyFallbacks() {
	if v := os.Getenv("VOXMESH_ASSETS_DIR"); v != "" {
		c.Atlas.AssetsDir = v
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = os.Getenv("VOXMESH_METRICS_ADDR")
	}
	if c.Meshing.Workers < 1 {
		c.Meshing.Workers = runtime.NumCPU()
	}
	if c.Meshing.QueueSize < 16 {
		c.Meshing.QueueSize = 16
	}
	if c.Atlas.TileSize < 1 {
		c.Atlas.TileSize = 16
	}
}

// MaterialDefs converts configured materials into registry declarations,
// preserving declaration order.
func (c *Config) MaterialDefs() []atlas.MaterialDef {
	defs := make([]atlas.MaterialDef, 0, len(c.Materials))
	for _, m := range c.Materials {
		defs = append(defs, atlas.MaterialDef{Name: m.Name, Variants: m.Variants})
	}
	return defs
}
