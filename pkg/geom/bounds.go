// Package geom provides the 2D geometry primitives used by the voxel
// pipeline: selection-bounds normalization, point-in-polygon testing, and
// polygon boundary rasterization.
package geom

import (
	"errors"
	"math"
)

// ErrEmptyRegion is returned when a selection normalizes to an empty or
// inverted pixel range. Callers should treat it as "nothing to voxelize".
var ErrEmptyRegion = errors.New("geom: selection region is empty")

// SelectionBounds is a rectangular selection in source pixel coordinates,
// as chosen by the user or the viewer. Right and Bottom name the last
// pixel of the selection, so a 0..9 selection spans ten pixels.
// Coordinates are floats because selections come from screen-space drags,
// not pixel grids.
type SelectionBounds struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Depth  float64 `json:"depth"`
}

// NormalizedBounds is the integer-aligned form of a SelectionBounds. The
// normalization guarantees that the center of every grid cell in
// [Left,Right] x [Top,Bottom] lies inside the selection rectangle, so
// center-point sampling is never ambiguous at the edges.
type NormalizedBounds struct {
	Left   int
	Right  int
	Top    int
	Bottom int
	Depth  int

	// Grid extents derived from the integer range, boundary pixel
	// included. MaxY is not set here: the vertical extent comes from the
	// plane count, not from Depth.
	MaxX int
	MaxZ int
}

// Normalize converts float selection bounds into integer grid bounds.
//
// Later stages test a voxel by its center point i+0.5, not its corner: a
// corner at an integer coordinate sits exactly on pixel boundaries and is
// classified inconsistently against polygon edges, a center never is. For
// an axis with edges [lo, hi] (hi naming the last pixel, so the covered
// interval is [lo, hi+1]), the smallest index whose center satisfies
// i+0.5 >= lo is ceil(lo-0.5) and the largest whose center satisfies
// i+0.5 <= hi+1 is floor(hi+0.5). Extents count every index in the range,
// boundary pixel included.
func Normalize(b SelectionBounds) (NormalizedBounds, error) {
	left := int(math.Ceil(b.Left - 0.5))
	right := int(math.Floor(b.Right + 0.5))
	top := int(math.Ceil(b.Top - 0.5))
	bottom := int(math.Floor(b.Bottom + 0.5))

	if right < left || bottom < top {
		return NormalizedBounds{}, ErrEmptyRegion
	}

	return NormalizedBounds{
		Left:   left,
		Right:  right,
		Top:    top,
		Bottom: bottom,
		Depth:  int(b.Depth),
		MaxX:   right - left + 1,
		MaxZ:   bottom - top + 1,
	}, nil
}
