// Package cache provides caching for encoded region responses and
// completed voxel builds.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spotvox/server/internal/voxel"
	"github.com/spotvox/server/pkg/geom"
)

// Config contains cache configuration.
type Config struct {
	ResponseCacheSizeMB int
	ResponseTTL         time.Duration
	BuildCacheSize      int
}

// Manager owns the two caches the service layer uses: a byte cache for
// encoded responses (partition JSON, preview PNGs) and an LRU of
// completed builds so slice scrubbing re-partitions without re-running
// the pipeline. Both are explicit objects handed to their users; nothing
// here is package-global state.
type Manager struct {
	responses *bigcache.BigCache
	builds    *lru.Cache[string, *voxel.BuildResult]
}

// NewManager creates a cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = 10 * time.Minute
	}
	if cfg.BuildCacheSize <= 0 {
		cfg.BuildCacheSize = 64
	}
	responseConfig := bigcache.Config{
		Shards:             1024,
		LifeWindow:         cfg.ResponseTTL,
		CleanWindow:        cfg.ResponseTTL / 2,
		MaxEntriesInWindow: 100000,
		MaxEntrySize:       512 * 1024,
		HardMaxCacheSize:   cfg.ResponseCacheSizeMB,
		Verbose:            false,
	}

	responses, err := bigcache.New(context.Background(), responseConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	builds, err := lru.New[string, *voxel.BuildResult](cfg.BuildCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create build cache: %w", err)
	}

	return &Manager{responses: responses, builds: builds}, nil
}

// GetResponse retrieves an encoded response from cache.
func (m *Manager) GetResponse(key string) ([]byte, bool) {
	data, err := m.responses.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetResponse stores an encoded response in cache.
func (m *Manager) SetResponse(key string, data []byte) error {
	return m.responses.Set(key, data)
}

// GetBuild retrieves a completed build by region key.
func (m *Manager) GetBuild(key string) (*voxel.BuildResult, bool) {
	return m.builds.Get(key)
}

// SetBuild stores a completed build. Only fully built results belong
// here; the build supervisor never publishes cancelled builds.
func (m *Manager) SetBuild(key string, res *voxel.BuildResult) {
	m.builds.Add(key, res)
}

// RegionKey derives the cache key for a region build. The key is a hash
// of everything that changes the build's output, so it doubles as the
// region handle handed back to the viewer.
func RegionKey(dataset string, sel geom.SelectionBounds, minScore float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%g|%g|%g|%g|%g|%g",
		dataset, sel.Left, sel.Right, sel.Top, sel.Bottom, sel.Depth, minScore)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// SliceKey keys an encoded partition response for one displayed plane.
func SliceKey(regionKey string, planeID int) string {
	return fmt.Sprintf("slice:%s:%d", regionKey, planeID)
}

// PreviewKey keys an encoded preview PNG for one displayed plane.
func PreviewKey(regionKey string, planeID int) string {
	return fmt.Sprintf("preview:%s:%d", regionKey, planeID)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"response_cache_len": m.responses.Len(),
		"response_cache_cap": m.responses.Capacity(),
		"build_cache_len":    m.builds.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.responses.Close()
}
