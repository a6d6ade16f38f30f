package voxel

import (
	"math"

	"github.com/spotvox/server/pkg/geom"
)

// The grid uses render-space axes: X stays X, source Y becomes grid Z,
// and the slicing axis Y carries the anisotropically scaled plane height.
// The relabeling is easy to get backwards, so both directions live here
// and nowhere else.

// toGrid maps a source-space pixel position and a plane height into grid
// coordinates.
func toGrid(nb geom.NormalizedBounds, srcX, srcY, planeY float64) (gx int, gy float64, gz int) {
	gx = int(math.Floor(srcX)) - nb.Left
	gz = int(math.Floor(srcY)) - nb.Top
	return gx, planeY, gz
}

// cellCenter is the inverse for grid sampling: the source-space center of
// grid cell (gx, gz). Sampling at centers keeps containment tests
// unambiguous for geometry on pixel boundaries.
func cellCenter(nb geom.NormalizedBounds, gx, gz int) geom.Point {
	return geom.Point{
		X: float64(gx+nb.Left) + 0.5,
		Y: float64(gz+nb.Top) + 0.5,
	}
}
