// Package voxel implements the spatial voxelization pipeline: it turns a
// selected region of gene-expression spots and segmented cell-boundary
// polygons, spread across a stack of imaging planes, into renderable voxel
// and link-line sets plus the slice-visibility partition the viewer uses
// to scrub through planes.
package voxel

import (
	"image/color"

	"github.com/spotvox/server/pkg/geom"
)

// Category classifies a voxel for rendering.
type Category int

const (
	// Background fills grid cells covered by no cell polygon.
	Background Category = iota
	// CellInterior marks grid cells whose center lies inside a cell
	// polygon on that plane.
	CellInterior
	// GeneMarker marks one detected transcript.
	GeneMarker
	// BoundaryOutline marks pixels traced along a cell polygon's edges.
	BoundaryOutline
)

func (c Category) String() string {
	switch c {
	case Background:
		return "background"
	case CellInterior:
		return "cell_interior"
	case GeneMarker:
		return "gene_marker"
	case BoundaryOutline:
		return "boundary_outline"
	default:
		return "unknown"
	}
}

// backgroundCellID is the segmentation's sentinel for "not assigned to any
// cell". Spots with this parent get a marker voxel but no link line.
const backgroundCellID = 0

// GeneSpot is one detected transcript in source pixel coordinates.
// Optional parent fields are nil when the segmentation did not assign the
// spot to a cell.
type GeneSpot struct {
	Gene    string  `json:"gene"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	PlaneID int     `json:"plane_id"`
	SpotID  string  `json:"spot_id"`

	ParentCellID *int     `json:"parent_cell_id,omitempty"`
	ParentX      *float64 `json:"parent_x,omitempty"`
	ParentY      *float64 `json:"parent_y,omitempty"`
	ParentZ      *float64 `json:"parent_z,omitempty"`

	// Score is the segmentation's confidence for this spot (omp_score in
	// the source data); zero when absent.
	Score float64 `json:"score,omitempty"`
}

// CellBoundary is one cell's polygon footprint on one plane, already
// clipped to the selection region. A biological cell appearing on several
// planes contributes one CellBoundary per plane, tied together only by
// CellID.
type CellBoundary struct {
	CellID   int
	PlaneID  int
	Vertices []geom.Point

	// FillColor colors interior voxels of this cell; nil falls back to a
	// neutral gray.
	FillColor *color.RGBA
}

// Voxel is one discrete cell of the output grid. GridX and GridZ index the
// in-plane axes; GridY is the slicing axis, a plane-indexed height already
// scaled for anisotropic plane spacing (see PlaneIndex.PlaneToY), which is
// why it is a float where the in-plane coordinates are ints.
type Voxel struct {
	GridX    int        `json:"x"`
	GridY    float64    `json:"y"`
	GridZ    int        `json:"z"`
	Category Category   `json:"-"`
	Color    color.RGBA `json:"color"`
	// SourceID identifies the origin: spot index for markers, cell id for
	// interiors and outlines, backgroundCellID for background.
	SourceID int `json:"source_id"`
	PlaneID  int `json:"plane_id"`
}

// Position is a point in grid space.
type Position [3]float64

// LinkLine connects a gene-marker voxel to its parent cell's grid
// position. Solid/ghost visibility follows the source (spot) end.
type LinkLine struct {
	Source Position   `json:"source"`
	Target Position   `json:"target"`
	Color  color.RGBA `json:"color"`
}

// Snapshot is one immutable input to a pipeline run. The pipeline never
// mutates it, so a snapshot can be rebuilt or re-partitioned any number of
// times.
type Snapshot struct {
	Bounds     geom.SelectionBounds
	Spots      []GeneSpot
	Boundaries []CellBoundary
}

// Config carries the imaging metadata the pipeline needs. The zero value
// is valid: a missing voxel size degrades plane scaling to identity and a
// missing plane count is estimated from the snapshot.
type Config struct {
	// VoxelSize is the source voxel pitch in x, y, z order. Imaging
	// planes are usually spaced further apart than the in-plane pixel
	// pitch; the z/x ratio stretches the grid's vertical axis to
	// compensate.
	VoxelSize [3]float64
	// TotalPlanes is the number of imaging planes in the stack.
	TotalPlanes int
}

// ColorLookup resolves a display color for a gene. Implementations must
// return a usable fallback color for unknown genes.
type ColorLookup interface {
	ColorFor(gene string) color.RGBA
}

// interiorFallback colors cell interiors whose boundary carries no fill
// color.
var interiorFallback = color.RGBA{R: 128, G: 128, B: 128, A: 255}
