package geom

import "math"

// Pixel is an integer pixel coordinate produced by boundary tracing.
type Pixel struct {
	X int
	Y int
}

// TraceBoundary rasterizes a polygon outline into a deduplicated list of
// pixels. Vertices are truncated (floored) to integers, each consecutive
// pair is drawn with Bresenham's line algorithm, and the closing edge back
// to the first vertex is included when the polygon is not already closed.
//
// Fewer than 2 vertices yields an empty result. A degenerate 2-vertex
// polygon still traces its single segment. Pixels shared by adjacent
// segments (at vertices) appear once.
func TraceBoundary(vertices []Point) []Pixel {
	if len(vertices) < 2 {
		return nil
	}

	seen := make(map[Pixel]struct{})
	out := make([]Pixel, 0, len(vertices)*4)

	appendPixel := func(px Pixel) {
		if _, ok := seen[px]; ok {
			return
		}
		seen[px] = struct{}{}
		out = append(out, px)
	}

	first := floorPixel(vertices[0])
	prev := first
	for _, v := range vertices[1:] {
		cur := floorPixel(v)
		bresenham(prev, cur, appendPixel)
		prev = cur
	}
	// Close the outline unless the input already ends on its start pixel.
	if prev != first {
		bresenham(prev, first, appendPixel)
	}

	return out
}

// floorPixel truncates a vertex to its containing pixel. Floor rather
// than round, so a vertex at 0.9 lands in pixel 0.
func floorPixel(p Point) Pixel {
	return Pixel{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))}
}

// bresenham walks the integer line from a to b inclusive, calling emit for
// every pixel touched. Standard error-accumulator form, symmetric in both
// axes, no floating point.
func bresenham(a, b Pixel, emit func(Pixel)) {
	dx := absInt(b.X - a.X)
	dy := -absInt(b.Y - a.Y)
	sx := 1
	if a.X > b.X {
		sx = -1
	}
	sy := 1
	if a.Y > b.Y {
		sy = -1
	}

	x, y := a.X, a.Y
	err := dx + dy
	for {
		emit(Pixel{X: x, Y: y})
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
