// Package service provides business logic for the SpotVox server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spotvox/server/internal/cache"
	"github.com/spotvox/server/internal/data/arrowds"
	"github.com/spotvox/server/internal/render"
	"github.com/spotvox/server/internal/voxel"
	"github.com/spotvox/server/pkg/colormap"
	"github.com/spotvox/server/pkg/geom"
)

var (
	// ErrUnknownRegion is returned when a region key is not in the build cache.
	ErrUnknownRegion = errors.New("unknown region key")
	// ErrBuildSuperseded is returned when a newer region request cancelled
	// this build before it finished.
	ErrBuildSuperseded = errors.New("build superseded by newer request")
	// ErrRegionTooLarge is returned when a selection exceeds the configured
	// in-plane area limit.
	ErrRegionTooLarge = errors.New("selection exceeds region size limit")
)

// RegionServiceConfig contains region service configuration.
type RegionServiceConfig struct {
	Dataset         *arrowds.Dataset
	VoxelSize       [3]float64
	TotalPlanes     int
	MaxRegionPixels int
	Cache           *cache.Manager
	Renderer        *render.PreviewRenderer
}

// RegionService builds voxelized regions for one dataset and serves
// slices and previews of cached builds.
type RegionService struct {
	dataset         *arrowds.Dataset
	voxelCfg        voxel.Config
	maxRegionPixels int
	cache           *cache.Manager
	palette         *colormap.GenePalette
	renderer        *render.PreviewRenderer
	super           buildSupervisor
}

// NewRegionService creates a new region service.
func NewRegionService(cfg RegionServiceConfig) *RegionService {
	totalPlanes := cfg.TotalPlanes
	if totalPlanes == 0 {
		totalPlanes = cfg.Dataset.TotalPlanes()
	}
	return &RegionService{
		dataset: cfg.Dataset,
		voxelCfg: voxel.Config{
			VoxelSize:   cfg.VoxelSize,
			TotalPlanes: totalPlanes,
		},
		maxRegionPixels: cfg.MaxRegionPixels,
		cache:           cfg.Cache,
		palette:         colormap.NewGenePalette(cfg.Dataset.GeneDict()),
		renderer:        cfg.Renderer,
	}
}

// RegionResponse is the result of a region build.
type RegionResponse struct {
	Key       string           `json:"key"`
	MaxX      int              `json:"max_x"`
	MaxY      int              `json:"max_y"`
	MaxZ      int              `json:"max_z"`
	Cached    bool             `json:"cached"`
	Partition *voxel.Partition `json:"partition"`
}

// BuildRegion voxelizes the selection and returns the partition at the
// requested plane. Results are cached under a deterministic key so
// repeated selections and later slice requests skip the rebuild. A new
// call cancels any build still running for this dataset.
func (s *RegionService) BuildRegion(ctx context.Context, sel geom.SelectionBounds, planeID int, minScore float64) (*RegionResponse, error) {
	key := cache.RegionKey(s.dataset.Name(), sel, minScore)

	if res, ok := s.cache.GetBuild(key); ok {
		return s.respond(key, res, planeID, true), nil
	}

	nb, err := geom.Normalize(sel)
	if err != nil {
		return nil, err
	}
	if s.maxRegionPixels > 0 && nb.MaxX*nb.MaxZ > s.maxRegionPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrRegionTooLarge, nb.MaxX, nb.MaxZ)
	}

	buildCtx, done := s.super.begin(ctx)
	defer done()

	snap := s.dataset.Snapshot(sel, minScore)
	res, err := voxel.Build(buildCtx, snap, s.voxelCfg, s.palette)
	if err != nil {
		if buildCtx.Err() != nil && ctx.Err() == nil {
			return nil, ErrBuildSuperseded
		}
		return nil, fmt.Errorf("build region: %w", err)
	}

	// A superseded build publishes nothing.
	if buildCtx.Err() == nil {
		s.cache.SetBuild(key, res)
	}

	maxX, maxY, maxZ := res.Extents()
	log.Printf("[region] dataset=%s key=%s grid=%dx%dx%d interior=%d markers=%d",
		s.dataset.Name(), key, maxX, maxY, maxZ, len(res.Interior), len(res.Markers))

	return s.respond(key, res, planeID, false), nil
}

func (s *RegionService) respond(key string, res *voxel.BuildResult, planeID int, cached bool) *RegionResponse {
	maxX, maxY, maxZ := res.Extents()
	return &RegionResponse{
		Key:       key,
		MaxX:      maxX,
		MaxY:      maxY,
		MaxZ:      maxZ,
		Cached:    cached,
		Partition: res.PartitionAtPlane(planeID),
	}
}

// Slice re-partitions a cached build at a new plane.
func (s *RegionService) Slice(key string, planeID int) (*voxel.Partition, error) {
	res, ok := s.cache.GetBuild(key)
	if !ok {
		return nil, ErrUnknownRegion
	}
	return res.PartitionAtPlane(planeID), nil
}

// Preview renders a PNG preview of one plane of a cached build. Encoded
// images go through the response cache.
func (s *RegionService) Preview(key string, planeID int) ([]byte, error) {
	pkey := cache.PreviewKey(key, planeID)
	if data, ok := s.cache.GetResponse(pkey); ok {
		return data, nil
	}

	res, ok := s.cache.GetBuild(key)
	if !ok {
		return nil, ErrUnknownRegion
	}

	data, err := s.renderer.RenderPlane(res, planeID)
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	if err := s.cache.SetResponse(pkey, data); err != nil {
		log.Printf("[region] preview cache write failed: %v", err)
	}
	return data, nil
}

// Metadata returns dataset extents, plane count and class names.
func (s *RegionService) Metadata() arrowds.Metadata {
	md := s.dataset.Metadata()
	if s.voxelCfg.TotalPlanes > md.TotalPlanes {
		md.TotalPlanes = s.voxelCfg.TotalPlanes
	}
	return md
}

// GeneInfo pairs a gene name with its assigned marker color.
type GeneInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Genes lists the dataset's genes with their stable palette colors.
func (s *RegionService) Genes() []GeneInfo {
	names := s.palette.Genes()
	infos := make([]GeneInfo, 0, len(names))
	for _, name := range names {
		c := s.palette.ColorFor(name)
		infos = append(infos, GeneInfo{
			Name:  name,
			Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B),
		})
	}
	return infos
}
