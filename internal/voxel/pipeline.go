package voxel

import (
	"context"

	"github.com/spotvox/server/pkg/geom"
)

// BuildResult is the complete voxelization of one snapshot: every
// category's voxels plus parent link lines, with the plane index kept so
// the result can be re-partitioned for any displayed plane without
// rebuilding. Results are immutable once returned.
type BuildResult struct {
	Bounds geom.NormalizedBounds
	Planes *PlaneIndex

	Background []Voxel
	Interior   []Voxel
	Markers    []Voxel
	Outlines   []Voxel
	Lines      []LinkLine
}

// Extents returns the grid dimensions. MaxY is the plane count; the
// in-plane extents come from bounds normalization.
func (r *BuildResult) Extents() (maxX, maxY, maxZ int) {
	return r.Bounds.MaxX, r.Planes.TotalPlanes(), r.Bounds.MaxZ
}

// Build runs the full pipeline over one snapshot: normalize the selection,
// index boundaries by plane, classify the grid, trace outlines, and map
// spots. The build is pure; running it twice over the same snapshot
// yields identical results.
//
// geom.ErrEmptyRegion is returned for degenerate selections and is the
// only data-shaped failure that propagates: downstream stages cannot run
// without grid extents. Everything else degrades (missing voxel config
// falls back to identity plane scaling, untraceable boundaries and
// incomplete parent links are skipped).
//
// Cancelling ctx abandons the build with the context's error and
// publishes nothing, so a superseded build can never leak a partial
// result to the partitioner.
func Build(ctx context.Context, snap Snapshot, cfg Config, colors ColorLookup) (*BuildResult, error) {
	nb, err := geom.Normalize(snap.Bounds)
	if err != nil {
		return nil, err
	}

	planes := NewPlaneIndex(snap.Boundaries, snap.Spots, cfg)

	interior, background, outlines, err := buildGrid(ctx, nb, planes)
	if err != nil {
		return nil, err
	}

	markers, lines := mapSpots(nb, planes, snap.Spots, colors)

	return &BuildResult{
		Bounds:     nb,
		Planes:     planes,
		Background: background,
		Interior:   interior,
		Markers:    markers,
		Outlines:   outlines,
		Lines:      lines,
	}, nil
}
