// Package config handles configuration loading for the SpotVox server.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Voxel  VoxelConfig  `yaml:"voxel"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatasetConfig locates one dataset's Arrow shard directories.
type DatasetConfig struct {
	SpotsDir      string `yaml:"spots_dir"`
	CellsDir      string `yaml:"cells_dir"`
	BoundariesDir string `yaml:"boundaries_dir"`
}

// DataConfig contains data source settings.
type DataConfig struct {
	DefaultDataset string                   `yaml:"default_dataset"`
	Datasets       map[string]DatasetConfig `yaml:"datasets"`
}

// DatasetIDs returns the configured dataset names, default first and the
// rest sorted, for stable registry and API ordering.
func (d DataConfig) DatasetIDs() []string {
	ids := make([]string, 0, len(d.Datasets))
	for name := range d.Datasets {
		if name != d.DefaultDataset {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	if _, ok := d.Datasets[d.DefaultDataset]; ok {
		ids = append([]string{d.DefaultDataset}, ids...)
	}
	return ids
}

// VoxelConfig contains imaging-stack metadata for the pipeline. All
// fields are optional: a missing voxel size degrades plane scaling to
// identity and a missing plane count is estimated from the data.
type VoxelConfig struct {
	// VoxelSize is the source voxel pitch in x, y, z order.
	VoxelSize []float64 `yaml:"voxel_size"`
	// TotalPlanes is the number of imaging planes in the stack.
	TotalPlanes int `yaml:"total_planes"`
	// MaxRegionPixels caps the in-plane area of one region build; the
	// triple loop is for user-bounded selections, not whole images.
	MaxRegionPixels int `yaml:"max_region_pixels"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ResponseSizeMB     int `yaml:"response_size_mb"`
	ResponseTTLMinutes int `yaml:"response_ttl_minutes"`
	BuildCacheSize     int `yaml:"build_cache_size"`
}

// RenderConfig contains preview rendering settings.
type RenderConfig struct {
	// PixelsPerVoxel scales the preview image: each grid cell renders as
	// a square of this many pixels.
	PixelsPerVoxel int `yaml:"pixels_per_voxel"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			DefaultDataset: "default",
			Datasets: map[string]DatasetConfig{
				"default": {
					SpotsDir:      "./data/arrow_spots",
					CellsDir:      "./data/arrow_cells",
					BoundariesDir: "./data/arrow_boundaries",
				},
			},
		},
		Voxel: VoxelConfig{
			MaxRegionPixels: 512 * 512,
		},
		Cache: CacheConfig{
			ResponseSizeMB:     256,
			ResponseTTLMinutes: 10,
			BuildCacheSize:     64,
		},
		Render: RenderConfig{
			PixelsPerVoxel: 4,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if len(cfg.Data.Datasets) == 0 {
		cfg.Data.Datasets = defaults.Data.Datasets
	}
	if cfg.Data.DefaultDataset == "" {
		if _, ok := cfg.Data.Datasets["default"]; ok {
			cfg.Data.DefaultDataset = "default"
		} else {
			for name := range cfg.Data.Datasets {
				if cfg.Data.DefaultDataset == "" || name < cfg.Data.DefaultDataset {
					cfg.Data.DefaultDataset = name
				}
			}
		}
	}
	if cfg.Voxel.MaxRegionPixels == 0 {
		cfg.Voxel.MaxRegionPixels = defaults.Voxel.MaxRegionPixels
	}
	if cfg.Cache.ResponseSizeMB == 0 {
		cfg.Cache.ResponseSizeMB = defaults.Cache.ResponseSizeMB
	}
	if cfg.Cache.ResponseTTLMinutes == 0 {
		cfg.Cache.ResponseTTLMinutes = defaults.Cache.ResponseTTLMinutes
	}
	if cfg.Cache.BuildCacheSize == 0 {
		cfg.Cache.BuildCacheSize = defaults.Cache.BuildCacheSize
	}
	if cfg.Render.PixelsPerVoxel == 0 {
		cfg.Render.PixelsPerVoxel = defaults.Render.PixelsPerVoxel
	}
}

func validate(cfg *Config) error {
	if _, ok := cfg.Data.Datasets[cfg.Data.DefaultDataset]; !ok {
		return fmt.Errorf("default_dataset %q is not a configured dataset", cfg.Data.DefaultDataset)
	}
	if n := len(cfg.Voxel.VoxelSize); n != 0 && n != 3 {
		return fmt.Errorf("voxel_size needs 3 values (x, y, z), got %d", n)
	}
	return nil
}
