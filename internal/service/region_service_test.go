package service

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/spotvox/server/internal/cache"
	"github.com/spotvox/server/internal/data/arrowds"
	"github.com/spotvox/server/internal/render"
	"github.com/spotvox/server/pkg/geom"
)

func writeShard(t *testing.T, path string, schema *arrow.Schema, rec arrow.Record) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(rec); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

// fixtureDataset writes a one-cell dataset: a square boundary for cell 1
// on plane 0 and two Sst spots, one assigned to the cell.
func fixtureDataset(t *testing.T) *arrowds.Dataset {
	t.Helper()
	pool := memory.NewGoAllocator()
	root := t.TempDir()

	spotsDir := filepath.Join(root, "spots")
	cellsDir := filepath.Join(root, "cells")
	boundsDir := filepath.Join(root, "boundaries")
	for _, d := range []string{spotsDir, cellsDir, boundsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	{
		schema := arrow.NewSchema([]arrow.Field{
			{Name: "x", Type: arrow.PrimitiveTypes.Float32},
			{Name: "y", Type: arrow.PrimitiveTypes.Float32},
			{Name: "z", Type: arrow.PrimitiveTypes.Float32},
			{Name: "plane_id", Type: arrow.PrimitiveTypes.Uint16},
			{Name: "spot_id", Type: arrow.BinaryTypes.String},
			{Name: "parent_cell_id", Type: arrow.PrimitiveTypes.Int32},
			{Name: "gene_name", Type: arrow.BinaryTypes.String},
			{Name: "omp_score", Type: arrow.PrimitiveTypes.Float32},
		}, nil)

		xs := array.NewFloat32Builder(pool)
		ys := array.NewFloat32Builder(pool)
		zs := array.NewFloat32Builder(pool)
		planes := array.NewUint16Builder(pool)
		ids := array.NewStringBuilder(pool)
		parents := array.NewInt32Builder(pool)
		genes := array.NewStringBuilder(pool)
		scores := array.NewFloat32Builder(pool)

		xs.AppendValues([]float32{3.5, 6.5}, nil)
		ys.AppendValues([]float32{3.5, 6.5}, nil)
		zs.AppendValues([]float32{0.1, 0.2}, nil)
		planes.AppendValues([]uint16{0, 0}, nil)
		ids.AppendValues([]string{"s0", "s1"}, nil)
		parents.AppendValues([]int32{1, -1}, nil)
		genes.AppendValues([]string{"Sst", "Sst"}, nil)
		scores.AppendValues([]float32{0.9, 0.3}, nil)

		cols := []arrow.Array{
			xs.NewArray(), ys.NewArray(), zs.NewArray(), planes.NewArray(),
			ids.NewArray(), parents.NewArray(), genes.NewArray(), scores.NewArray(),
		}
		writeShard(t, filepath.Join(spotsDir, "spots_000.feather"), schema, array.NewRecord(schema, cols, 2))
	}

	{
		schema := arrow.NewSchema([]arrow.Field{
			{Name: "cell_num", Type: arrow.PrimitiveTypes.Int32},
			{Name: "x", Type: arrow.PrimitiveTypes.Float32},
			{Name: "y", Type: arrow.PrimitiveTypes.Float32},
			{Name: "z", Type: arrow.PrimitiveTypes.Float32},
			{Name: "class_name", Type: arrow.BinaryTypes.String},
		}, nil)

		ids := array.NewInt32Builder(pool)
		xs := array.NewFloat32Builder(pool)
		ys := array.NewFloat32Builder(pool)
		zs := array.NewFloat32Builder(pool)
		classes := array.NewStringBuilder(pool)
		ids.Append(1)
		xs.Append(4.0)
		ys.Append(4.0)
		zs.Append(0.0)
		classes.Append("Pyramidal")

		cols := []arrow.Array{ids.NewArray(), xs.NewArray(), ys.NewArray(), zs.NewArray(), classes.NewArray()}
		writeShard(t, filepath.Join(cellsDir, "cells_000.feather"), schema, array.NewRecord(schema, cols, 1))
	}

	{
		schema := arrow.NewSchema([]arrow.Field{
			{Name: "x_list", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
			{Name: "y_list", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
			{Name: "plane_id", Type: arrow.PrimitiveTypes.Uint16},
			{Name: "label", Type: arrow.PrimitiveTypes.Int32},
		}, nil)

		xl := array.NewListBuilder(pool, arrow.PrimitiveTypes.Float32)
		yl := array.NewListBuilder(pool, arrow.PrimitiveTypes.Float32)
		planes := array.NewUint16Builder(pool)
		labels := array.NewInt32Builder(pool)

		xv := xl.ValueBuilder().(*array.Float32Builder)
		yv := yl.ValueBuilder().(*array.Float32Builder)
		xl.Append(true)
		yl.Append(true)
		for _, p := range [][2]float32{{2, 2}, {7, 2}, {7, 7}, {2, 7}} {
			xv.Append(p[0])
			yv.Append(p[1])
		}
		planes.Append(0)
		labels.Append(1)

		cols := []arrow.Array{xl.NewArray(), yl.NewArray(), planes.NewArray(), labels.NewArray()}
		writeShard(t, filepath.Join(boundsDir, "bounds_000.feather"), schema, array.NewRecord(schema, cols, 1))
	}

	ds, err := arrowds.Open("fixture", arrowds.Config{
		SpotsDir:      spotsDir,
		CellsDir:      cellsDir,
		BoundariesDir: boundsDir,
	})
	if err != nil {
		t.Fatalf("open fixture dataset: %v", err)
	}
	return ds
}

func newTestService(t *testing.T) *RegionService {
	t.Helper()
	mgr, err := cache.NewManager(cache.Config{ResponseCacheSizeMB: 8, BuildCacheSize: 8})
	if err != nil {
		t.Fatalf("cache manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	return NewRegionService(RegionServiceConfig{
		Dataset:  fixtureDataset(t),
		Cache:    mgr,
		Renderer: render.NewPreviewRenderer(render.Config{PixelsPerVoxel: 2}),
	})
}

func TestBuildRegion(t *testing.T) {
	svc := newTestService(t)
	sel := geom.SelectionBounds{Left: 0, Right: 9, Top: 0, Bottom: 9, Depth: 2}

	resp, err := svc.BuildRegion(context.Background(), sel, 0, 0)
	if err != nil {
		t.Fatalf("BuildRegion: %v", err)
	}
	if resp.Key == "" {
		t.Error("expected a region key")
	}
	if resp.Cached {
		t.Error("first build should not be served from cache")
	}
	if resp.MaxX != 10 || resp.MaxZ != 10 {
		t.Errorf("extents = %dx%d, want 10x10", resp.MaxX, resp.MaxZ)
	}
	if resp.Partition == nil {
		t.Fatal("expected a partition in the response")
	}
	if len(resp.Partition.Interior.Solid)+len(resp.Partition.Interior.Ghost) == 0 {
		t.Error("expected interior voxels from the square boundary")
	}

	again, err := svc.BuildRegion(context.Background(), sel, 0, 0)
	if err != nil {
		t.Fatalf("BuildRegion (repeat): %v", err)
	}
	if !again.Cached {
		t.Error("repeat build should come from cache")
	}
	if again.Key != resp.Key {
		t.Errorf("repeat key = %s, want %s", again.Key, resp.Key)
	}
}

func TestBuildRegion_MinScoreChangesKey(t *testing.T) {
	svc := newTestService(t)
	sel := geom.SelectionBounds{Left: 0, Right: 9, Top: 0, Bottom: 9, Depth: 2}

	all, err := svc.BuildRegion(context.Background(), sel, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	strict, err := svc.BuildRegion(context.Background(), sel, 0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if all.Key == strict.Key {
		t.Error("min_score must be part of the region key")
	}

	nAll := len(all.Partition.Markers.Solid) + len(all.Partition.Markers.Ghost)
	nStrict := len(strict.Partition.Markers.Solid) + len(strict.Partition.Markers.Ghost)
	if nAll != 2 || nStrict != 1 {
		t.Errorf("markers = %d/%d, want 2 unfiltered and 1 above 0.5", nAll, nStrict)
	}
}

func TestBuildRegion_EmptySelection(t *testing.T) {
	svc := newTestService(t)
	sel := geom.SelectionBounds{Left: 5, Right: 3, Top: 0, Bottom: 9}

	if _, err := svc.BuildRegion(context.Background(), sel, 0, 0); !errors.Is(err, geom.ErrEmptyRegion) {
		t.Errorf("err = %v, want ErrEmptyRegion", err)
	}
}

func TestBuildRegion_TooLarge(t *testing.T) {
	svc := newTestService(t)
	svc.maxRegionPixels = 16

	sel := geom.SelectionBounds{Left: 0, Right: 9, Top: 0, Bottom: 9}
	if _, err := svc.BuildRegion(context.Background(), sel, 0, 0); !errors.Is(err, ErrRegionTooLarge) {
		t.Errorf("err = %v, want ErrRegionTooLarge", err)
	}
}

func TestSlice(t *testing.T) {
	svc := newTestService(t)
	sel := geom.SelectionBounds{Left: 0, Right: 9, Top: 0, Bottom: 9, Depth: 2}

	resp, err := svc.BuildRegion(context.Background(), sel, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	part, err := svc.Slice(resp.Key, 1)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	// At plane 1 the plane-0 geometry sits below the slice: all solid.
	if len(part.Interior.Ghost) != 0 {
		t.Errorf("ghost interior at plane 1 = %d, want 0", len(part.Interior.Ghost))
	}

	if _, err := svc.Slice("nope", 0); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("unknown key err = %v, want ErrUnknownRegion", err)
	}
}

func TestPreview(t *testing.T) {
	svc := newTestService(t)
	sel := geom.SelectionBounds{Left: 0, Right: 9, Top: 0, Bottom: 9, Depth: 2}

	resp, err := svc.BuildRegion(context.Background(), sel, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	data, err := svc.Preview(resp.Key, 0)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("preview is not a valid PNG: %v", err)
	}

	cached, err := svc.Preview(resp.Key, 0)
	if err != nil {
		t.Fatalf("Preview (cached): %v", err)
	}
	if !bytes.Equal(data, cached) {
		t.Error("cached preview differs from first render")
	}

	if _, err := svc.Preview("nope", 0); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("unknown key err = %v, want ErrUnknownRegion", err)
	}
}

func TestGenes(t *testing.T) {
	svc := newTestService(t)

	genes := svc.Genes()
	if len(genes) != 1 || genes[0].Name != "Sst" {
		t.Fatalf("genes = %v, want [Sst]", genes)
	}
	if genes[0].Color == "" || genes[0].Color[0] != '#' {
		t.Errorf("gene color = %q, want #rrggbb", genes[0].Color)
	}
}
