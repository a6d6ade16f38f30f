package geom

// Point is a 2D point in source pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// PointInPolygon reports whether p lies inside the polygon using the
// even-odd rule: a ray cast in +X from p crosses the polygon edges an odd
// number of times iff p is inside.
//
// The crossing test uses the half-open comparison (yi > y) != (yj > y),
// which excludes edges exactly horizontal at p.Y and counts each vertex on
// exactly one of its two edges, so shared vertices are never double
// counted. Points exactly on an edge classify by that tie-break; callers
// that need stable classification should sample at pixel centers (see
// Normalize). Self-intersecting polygons get whatever even-odd naturally
// gives.
func PointInPolygon(p Point, polygon []Point) bool {
	inside := false
	n := len(polygon)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := polygon[i], polygon[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}
