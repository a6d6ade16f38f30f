package voxel

import (
	"context"
	"image/color"

	"github.com/spotvox/server/pkg/geom"
)

// outlineFallback colors boundary-outline voxels whose cell carries no
// fill color.
var outlineFallback = color.RGBA{R: 64, G: 64, B: 64, A: 255}

// backgroundColor fills grid cells covered by no cell polygon. The viewer
// renders these translucent; the pipeline just tags them.
var backgroundColor = color.RGBA{R: 230, G: 230, B: 230, A: 255}

// buildGrid classifies every grid cell on every plane as cell interior or
// background, and separately traces boundary-outline voxels.
//
// For each (x, plane, z) the cell's source-space center is tested against
// the plane's polygons; the first polygon in input order containing the
// center claims the cell. The triple loop is
// O(maxX * planes * maxZ * polygons * vertices) in the worst case, which
// is fine for user-bounded selections and deliberately not offered for
// whole-image processing. The context is checked once per plane so a
// superseded build can stop early.
func buildGrid(ctx context.Context, nb geom.NormalizedBounds, planes *PlaneIndex) (interior, background, outlines []Voxel, err error) {
	totalPlanes := planes.TotalPlanes()

	for x := 0; x < nb.MaxX; x++ {
		for planeID := 0; planeID < totalPlanes; planeID++ {
			if err := ctx.Err(); err != nil {
				return nil, nil, nil, err
			}
			gy := planes.PlaneToY(planeID)
			polys := planes.BoundariesOn(planeID)

			for z := 0; z < nb.MaxZ; z++ {
				center := cellCenter(nb, x, z)

				claimed := false
				for _, cell := range polys {
					if !geom.PointInPolygon(center, cell.Vertices) {
						continue
					}
					interior = append(interior, Voxel{
						GridX:    x,
						GridY:    gy,
						GridZ:    z,
						Category: CellInterior,
						Color:    fillColor(cell),
						SourceID: cell.CellID,
						PlaneID:  planeID,
					})
					claimed = true
					break
				}
				if claimed {
					continue
				}

				background = append(background, Voxel{
					GridX:    x,
					GridY:    gy,
					GridZ:    z,
					Category: Background,
					Color:    backgroundColor,
					SourceID: backgroundCellID,
					PlaneID:  planeID,
				})
			}
		}
	}

	outlines, err = traceOutlines(ctx, nb, planes)
	if err != nil {
		return nil, nil, nil, err
	}
	return interior, background, outlines, nil
}

// traceOutlines rasterizes every boundary polygon and emits one outline
// voxel per traced pixel that falls inside the grid. Boundaries with
// fewer than 2 vertices cannot be traced and are skipped, not an error.
func traceOutlines(ctx context.Context, nb geom.NormalizedBounds, planes *PlaneIndex) ([]Voxel, error) {
	var outlines []Voxel
	for planeID := 0; planeID < planes.TotalPlanes(); planeID++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gy := planes.PlaneToY(planeID)

		for _, cell := range planes.BoundariesOn(planeID) {
			if len(cell.Vertices) < 2 {
				continue
			}
			c := outlineColor(cell)
			for _, px := range geom.TraceBoundary(cell.Vertices) {
				gx := px.X - nb.Left
				gz := px.Y - nb.Top
				if gx < 0 || gx >= nb.MaxX || gz < 0 || gz >= nb.MaxZ {
					continue
				}
				outlines = append(outlines, Voxel{
					GridX:    gx,
					GridY:    gy,
					GridZ:    gz,
					Category: BoundaryOutline,
					Color:    c,
					SourceID: cell.CellID,
					PlaneID:  planeID,
				})
			}
		}
	}
	return outlines, nil
}

func fillColor(cell CellBoundary) color.RGBA {
	if cell.FillColor != nil {
		return *cell.FillColor
	}
	return interiorFallback
}

func outlineColor(cell CellBoundary) color.RGBA {
	if cell.FillColor != nil {
		return *cell.FillColor
	}
	return outlineFallback
}
