package voxel

// PlaneIndex groups cell boundaries by the imaging plane they belong to
// and maps plane indices to the grid's vertical axis. The grouping is
// built once per pipeline run and reused for every grid-cell query on a
// plane; re-filtering the full boundary list per voxel would dominate the
// whole build.
type PlaneIndex struct {
	byPlane     map[int][]CellBoundary
	totalPlanes int
	yScale      float64
}

// NewPlaneIndex builds the per-plane partition of boundaries.
//
// The vertical scale is VoxelSize z/x, compensating for plane spacing
// being coarser than the in-plane pixel pitch; without it a cube of
// voxels renders visually squashed in Z. When voxel-size metadata is
// absent the mapping degrades to identity. When TotalPlanes is absent the
// plane count is estimated from the highest plane id seen across
// boundaries and spots.
func NewPlaneIndex(boundaries []CellBoundary, spots []GeneSpot, cfg Config) *PlaneIndex {
	idx := &PlaneIndex{
		byPlane:     make(map[int][]CellBoundary),
		totalPlanes: cfg.TotalPlanes,
		yScale:      1,
	}
	if cfg.VoxelSize[0] > 0 && cfg.VoxelSize[2] > 0 {
		idx.yScale = cfg.VoxelSize[2] / cfg.VoxelSize[0]
	}

	maxPlane := -1
	for _, b := range boundaries {
		idx.byPlane[b.PlaneID] = append(idx.byPlane[b.PlaneID], b)
		if b.PlaneID > maxPlane {
			maxPlane = b.PlaneID
		}
	}
	if idx.totalPlanes <= 0 {
		for _, s := range spots {
			if s.PlaneID > maxPlane {
				maxPlane = s.PlaneID
			}
		}
		idx.totalPlanes = maxPlane + 1
	}

	return idx
}

// BoundariesOn returns the cell boundaries on one plane, in input order.
// Input order matters: when overlapping polygons both contain a voxel
// center, the first match wins.
func (idx *PlaneIndex) BoundariesOn(planeID int) []CellBoundary {
	return idx.byPlane[planeID]
}

// TotalPlanes returns the plane count used for the grid's vertical extent.
func (idx *PlaneIndex) TotalPlanes() int {
	return idx.totalPlanes
}

// PlaneToY maps a plane index to its grid height. This is the only place
// vertical placement is computed; every stage derives grid Y from a plane
// id through here.
func (idx *PlaneIndex) PlaneToY(planeID int) float64 {
	return float64(planeID) * idx.yScale
}
