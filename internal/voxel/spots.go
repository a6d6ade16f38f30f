package voxel

import (
	"math"

	"github.com/spotvox/server/pkg/geom"
)

// linkAlpha is the reduced alpha for parent link lines so they read as
// annotation, not geometry.
const linkAlpha = 96

// mapSpots places every gene spot into the grid and emits a parent link
// line for each spot whose cell assignment is complete.
//
// A spot always yields exactly one marker voxel. The link line is
// suppressed when the parent cell id is missing or the background
// sentinel, or when any parent coordinate is unknown; that spot's voxel
// is unaffected.
func mapSpots(nb geom.NormalizedBounds, planes *PlaneIndex, spots []GeneSpot, colors ColorLookup) ([]Voxel, []LinkLine) {
	markers := make([]Voxel, 0, len(spots))
	var lines []LinkLine

	for i, s := range spots {
		gx, gy, gz := toGrid(nb, s.X, s.Y, planes.PlaneToY(s.PlaneID))
		c := colors.ColorFor(s.Gene)

		markers = append(markers, Voxel{
			GridX:    gx,
			GridY:    gy,
			GridZ:    gz,
			Category: GeneMarker,
			Color:    c,
			SourceID: i,
			PlaneID:  s.PlaneID,
		})

		if s.ParentCellID == nil || *s.ParentCellID == backgroundCellID {
			continue
		}
		if s.ParentX == nil || s.ParentY == nil || s.ParentZ == nil {
			continue
		}

		// The parent position relabels axes exactly like the spot: its
		// source z becomes the grid's slicing axis, scaled per plane.
		parentPlane := int(math.Floor(*s.ParentZ))
		tx, ty, tz := toGrid(nb, *s.ParentX, *s.ParentY, planes.PlaneToY(parentPlane))

		lc := c
		lc.A = linkAlpha
		lines = append(lines, LinkLine{
			Source: Position{float64(gx), gy, float64(gz)},
			Target: Position{float64(tx), ty, float64(tz)},
			Color:  lc,
		})
	}

	return markers, lines
}
