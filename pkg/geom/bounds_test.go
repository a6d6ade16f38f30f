package geom

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     SelectionBounds
		left   int
		right  int
		top    int
		bottom int
		maxX   int
		maxZ   int
	}{
		{
			name: "integerAligned",
			in:   SelectionBounds{Left: 0, Right: 9, Top: 0, Bottom: 9, Depth: 4},
			left: 0, right: 9, top: 0, bottom: 9, maxX: 10, maxZ: 10,
		},
		{
			name: "fractional",
			in:   SelectionBounds{Left: 10.2, Right: 20.9, Top: 3.7, Bottom: 8.1},
			left: 10, right: 21, top: 4, bottom: 8, maxX: 12, maxZ: 5,
		},
		{
			name: "negativeOrigin",
			in:   SelectionBounds{Left: -5.5, Right: 5.5, Top: -2.5, Bottom: 2.5},
			left: -6, right: 6, top: -3, bottom: 3, maxX: 13, maxZ: 7,
		},
		{
			name: "singlePixel",
			in:   SelectionBounds{Left: 5, Right: 5, Top: 7, Bottom: 7},
			left: 5, right: 5, top: 7, bottom: 7, maxX: 1, maxZ: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nb, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if nb.Left != tt.left || nb.Right != tt.right {
				t.Errorf("X range [%d,%d], want [%d,%d]", nb.Left, nb.Right, tt.left, tt.right)
			}
			if nb.Top != tt.top || nb.Bottom != tt.bottom {
				t.Errorf("Z range [%d,%d], want [%d,%d]", nb.Top, nb.Bottom, tt.top, tt.bottom)
			}
			if nb.MaxX != tt.maxX || nb.MaxZ != tt.maxZ {
				t.Errorf("extents (%d,%d), want (%d,%d)", nb.MaxX, nb.MaxZ, tt.maxX, tt.maxZ)
			}
		})
	}
}

// Every sampled voxel center must lie inside the selection rectangle
// [Left, Right+1] x [Top, Bottom+1]. This is the whole point of
// normalizing to centers.
func TestNormalize_CentersInsideSelection(t *testing.T) {
	cases := []SelectionBounds{
		{Left: 0, Right: 9, Top: 0, Bottom: 9},
		{Left: 0.49, Right: 10.51, Top: 2.99, Bottom: 7.01},
		{Left: -3.3, Right: 3.3, Top: -1.1, Bottom: 1.1},
		{Left: 100.999, Right: 105.001, Top: 50.5, Bottom: 54.5},
	}

	for _, sb := range cases {
		nb, err := Normalize(sb)
		if err != nil {
			t.Fatalf("Normalize(%+v) returned error: %v", sb, err)
		}
		for x := nb.Left; x <= nb.Right; x++ {
			cx := float64(x) + 0.5
			if cx < sb.Left || cx > sb.Right+1 {
				t.Errorf("center %v outside [%v,%v] for %+v", cx, sb.Left, sb.Right+1, sb)
			}
		}
		for z := nb.Top; z <= nb.Bottom; z++ {
			cz := float64(z) + 0.5
			if cz < sb.Top || cz > sb.Bottom+1 {
				t.Errorf("center %v outside [%v,%v] for %+v", cz, sb.Top, sb.Bottom+1, sb)
			}
		}
	}
}

func TestNormalize_EmptyRegion(t *testing.T) {
	cases := []SelectionBounds{
		{Left: 5.6, Right: 5.4, Top: 0, Bottom: 9},  // no center fits in X
		{Left: 0, Right: 9, Top: 8.8, Bottom: 8.2},  // no center fits in Z
		{Left: 9, Right: 0, Top: 0, Bottom: 9},      // inverted
		{Left: 0, Right: -2, Top: 0, Bottom: 9},     // inverted, negative
	}
	for _, sb := range cases {
		if _, err := Normalize(sb); !errors.Is(err, ErrEmptyRegion) {
			t.Errorf("Normalize(%+v) = %v, want ErrEmptyRegion", sb, err)
		}
	}
}
