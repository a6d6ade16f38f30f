package voxel

// CategorySplit is one category's voxels split by slice visibility.
type CategorySplit struct {
	Solid []Voxel `json:"solid"`
	Ghost []Voxel `json:"ghost"`
}

// LineSplit is the link lines split by slice visibility.
type LineSplit struct {
	Solid []LinkLine `json:"solid"`
	Ghost []LinkLine `json:"ghost"`
}

// Partition is the slice-visibility view of a build at one displayed
// plane: voxels at or before the plane render solid, voxels beyond it
// render as translucent ghosts, which fakes a depth-peel as the user
// scrubs the stack.
type Partition struct {
	SliceY     float64       `json:"slice_y"`
	Background CategorySplit `json:"background"`
	Interior   CategorySplit `json:"cell_interior"`
	Markers    CategorySplit `json:"gene_markers"`
	Outlines   CategorySplit `json:"boundary_outlines"`
	Lines      LineSplit     `json:"link_lines"`
}

// PartitionAtPlane partitions the build for a displayed plane index. This
// is the only per-interaction cost of the pipeline: a linear filter pass
// per category, safe to re-run on every slider move.
func (r *BuildResult) PartitionAtPlane(planeID int) *Partition {
	return r.PartitionAt(r.Planes.PlaneToY(planeID))
}

// PartitionAt partitions the build at a grid height. Pure: the input
// result is never modified, and the union of solid and ghost is exactly
// the unpartitioned set for every category.
func (r *BuildResult) PartitionAt(sliceY float64) *Partition {
	p := &Partition{SliceY: sliceY}
	p.Background.Solid, p.Background.Ghost = splitVoxels(r.Background, sliceY)
	p.Interior.Solid, p.Interior.Ghost = splitVoxels(r.Interior, sliceY)
	p.Markers.Solid, p.Markers.Ghost = splitVoxels(r.Markers, sliceY)
	p.Outlines.Solid, p.Outlines.Ghost = splitVoxels(r.Outlines, sliceY)
	p.Lines.Solid, p.Lines.Ghost = splitLines(r.Lines, sliceY)
	return p
}

func splitVoxels(voxels []Voxel, sliceY float64) (solid, ghost []Voxel) {
	solid = make([]Voxel, 0, len(voxels))
	ghost = make([]Voxel, 0)
	for _, v := range voxels {
		if v.GridY <= sliceY {
			solid = append(solid, v)
		} else {
			ghost = append(ghost, v)
		}
	}
	return solid, ghost
}

// splitLines partitions by the source (spot) end: a link follows its
// spot's visibility even when the parent cell sits on the other side of
// the slice.
func splitLines(lines []LinkLine, sliceY float64) (solid, ghost []LinkLine) {
	solid = make([]LinkLine, 0, len(lines))
	ghost = make([]LinkLine, 0)
	for _, l := range lines {
		if l.Source[1] <= sliceY {
			solid = append(solid, l)
		} else {
			ghost = append(ghost, l)
		}
	}
	return solid, ghost
}
