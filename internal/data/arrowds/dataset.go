// Package arrowds reads the Arrow (Feather v2) shard directories written
// by the preprocessing converters: gene-expression spots, cell records,
// and per-plane cell-boundary polygons. All data is loaded into memory at
// open; region snapshots are then cut from the resident set.
package arrowds

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"

	"github.com/spotvox/server/internal/voxel"
	"github.com/spotvox/server/pkg/colormap"
	"github.com/spotvox/server/pkg/geom"
)

// Config locates one dataset's shard directories. CellsDir is optional;
// without it spots keep their parent ids but have no parent coordinates,
// so no link lines are emitted.
type Config struct {
	SpotsDir      string `yaml:"spots_dir"`
	CellsDir      string `yaml:"cells_dir"`
	BoundariesDir string `yaml:"boundaries_dir"`
}

// CellRecord is one segmented cell's centroid and class.
type CellRecord struct {
	CellID    int     `json:"cell_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	ClassName string  `json:"class_name"`
}

// Bounds is the coordinate envelope of the loaded spots and boundaries.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Metadata summarizes a loaded dataset for the viewer.
type Metadata struct {
	Name        string   `json:"name"`
	NSpots      int      `json:"n_spots"`
	NCells      int      `json:"n_cells"`
	NBoundaries int      `json:"n_boundaries"`
	TotalPlanes int      `json:"total_planes"`
	Genes       []string `json:"genes"`
	Classes     []string `json:"classes"`
	Bounds      Bounds   `json:"bounds"`
}

// manifest is the shard listing the converters write next to their data.
type manifest struct {
	Shards []shardEntry `json:"shards"`
}

type shardEntry struct {
	File    string `json:"file"`
	Rows    int    `json:"rows,omitempty"`
	PlaneID *int   `json:"plane_id,omitempty"`
	Polys   int    `json:"polys,omitempty"`
}

type bbox struct {
	minX, maxX, minY, maxY float64
}

// Dataset is one loaded annotation set.
type Dataset struct {
	name string

	spots         []voxel.GeneSpot
	boundaries    []voxel.CellBoundary
	boundaryBoxes []bbox
	cells         map[int]CellRecord
	geneDict      map[int]string
	classes       []string

	totalPlanes int
	bounds      Bounds
}

// Open loads a dataset's spot, cell, and boundary shards.
func Open(name string, cfg Config) (*Dataset, error) {
	ds := &Dataset{
		name:     name,
		cells:    make(map[int]CellRecord),
		geneDict: make(map[int]string),
	}

	if cfg.CellsDir != "" {
		if err := ds.loadCells(cfg.CellsDir); err != nil {
			return nil, fmt.Errorf("load cells: %w", err)
		}
	}
	if err := ds.loadGeneDict(cfg.SpotsDir); err != nil {
		return nil, fmt.Errorf("load gene dictionary: %w", err)
	}
	if err := ds.loadSpots(cfg.SpotsDir); err != nil {
		return nil, fmt.Errorf("load spots: %w", err)
	}
	if err := ds.loadBoundaries(cfg.BoundariesDir); err != nil {
		return nil, fmt.Errorf("load boundaries: %w", err)
	}

	ds.joinParents()
	ds.colorBoundaries()
	ds.summarize()

	return ds, nil
}

// Name returns the dataset's registry name.
func (ds *Dataset) Name() string { return ds.name }

// Metadata returns the dataset summary.
func (ds *Dataset) Metadata() Metadata {
	genes := make([]string, 0, len(ds.geneDict))
	for _, g := range ds.geneDict {
		genes = append(genes, g)
	}
	sort.Strings(genes)

	return Metadata{
		Name:        ds.name,
		NSpots:      len(ds.spots),
		NCells:      len(ds.cells),
		NBoundaries: len(ds.boundaries),
		TotalPlanes: ds.totalPlanes,
		Genes:       genes,
		Classes:     ds.classes,
		Bounds:      ds.bounds,
	}
}

// GeneDict returns the gene id to name mapping loaded with the spots.
func (ds *Dataset) GeneDict() map[int]string { return ds.geneDict }

// TotalPlanes returns the number of imaging planes observed in the data.
func (ds *Dataset) TotalPlanes() int { return ds.totalPlanes }

// Cell looks up a cell record by id.
func (ds *Dataset) Cell(id int) (CellRecord, bool) {
	c, ok := ds.cells[id]
	return c, ok
}

// Snapshot cuts an immutable pipeline input for one selection region:
// spots inside the region (optionally score-filtered) and boundaries
// whose bounding box touches it. The snapshot shares no mutable state
// with the dataset, so builds over it are idempotent.
func (ds *Dataset) Snapshot(sel geom.SelectionBounds, minScore float64) voxel.Snapshot {
	// Right/Bottom name the last pixel, so the covered interval extends
	// one past them.
	x0, x1 := sel.Left, sel.Right+1
	y0, y1 := sel.Top, sel.Bottom+1

	snap := voxel.Snapshot{Bounds: sel}

	for _, s := range ds.spots {
		if s.X < x0 || s.X >= x1 || s.Y < y0 || s.Y >= y1 {
			continue
		}
		if minScore > 0 && s.Score < minScore {
			continue
		}
		snap.Spots = append(snap.Spots, s)
	}

	for i, b := range ds.boundaries {
		box := ds.boundaryBoxes[i]
		if box.maxX < x0 || box.minX >= x1 || box.maxY < y0 || box.minY >= y1 {
			continue
		}
		snap.Boundaries = append(snap.Boundaries, b)
	}

	return snap
}

func (ds *Dataset) loadGeneDict(dir string) error {
	raw, err := os.ReadFile(filepath.Join(dir, "gene_dict.json"))
	if err != nil {
		// Older exports ship no dictionary; gene names still arrive on
		// the spot rows themselves.
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var byID map[string]string
	if err := json.Unmarshal(raw, &byID); err != nil {
		return err
	}
	for k, name := range byID {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		ds.geneDict[id] = name
	}
	return nil
}

func (ds *Dataset) loadSpots(dir string) error {
	files, err := shardFiles(dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		err := readShard(path, func(rec arrow.Record) error {
			xCol := column(rec, "x", "X")
			yCol := column(rec, "y", "Y")
			zCol := column(rec, "z", "Z")
			planeCol := column(rec, "plane_id")
			spotCol := column(rec, "spot_id")
			parentCol := column(rec, "parent_cell_id")
			geneCol := column(rec, "gene_name")
			geneIDCol := column(rec, "gene_id")
			scoreCol := column(rec, "omp_score")

			n := int(rec.NumRows())
			for i := 0; i < n; i++ {
				x, okX := floatAt(xCol, i)
				y, okY := floatAt(yCol, i)
				if !okX || !okY {
					continue
				}

				s := voxel.GeneSpot{X: x, Y: y}
				if z, ok := floatAt(zCol, i); ok {
					s.Z = z
				}
				if p, ok := intAt(planeCol, i); ok {
					s.PlaneID = p
				}
				if id, ok := stringAt(spotCol, i); ok {
					s.SpotID = id
				}
				if g, ok := stringAt(geneCol, i); ok {
					s.Gene = g
				} else if gid, ok := intAt(geneIDCol, i); ok {
					s.Gene = ds.geneDict[gid]
				}
				if sc, ok := floatAt(scoreCol, i); ok {
					s.Score = sc
				}
				// The converters write -1 for spots the segmentation
				// never assigned; 0 is a real assignment to background.
				if pid, ok := intAt(parentCol, i); ok && pid >= 0 {
					s.ParentCellID = &pid
				}

				ds.spots = append(ds.spots, s)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) loadCells(dir string) error {
	files, err := shardFiles(dir)
	if err != nil {
		return err
	}

	classSeen := make(map[string]bool)
	for _, path := range files {
		err := readShard(path, func(rec arrow.Record) error {
			idCol := column(rec, "cell_num", "Cell_Num", "cell_id")
			xCol := column(rec, "x", "X")
			yCol := column(rec, "y", "Y")
			zCol := column(rec, "z", "Z")
			classCol := column(rec, "class_name", "ClassName")

			n := int(rec.NumRows())
			for i := 0; i < n; i++ {
				id, ok := intAt(idCol, i)
				if !ok {
					continue
				}
				c := CellRecord{CellID: id}
				c.X, _ = floatAt(xCol, i)
				c.Y, _ = floatAt(yCol, i)
				c.Z, _ = floatAt(zCol, i)
				c.ClassName, _ = stringAt(classCol, i)

				ds.cells[id] = c
				if c.ClassName != "" && !classSeen[c.ClassName] {
					classSeen[c.ClassName] = true
					ds.classes = append(ds.classes, c.ClassName)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	sort.Strings(ds.classes)
	return nil
}

func (ds *Dataset) loadBoundaries(dir string) error {
	files, err := shardFiles(dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		err := readShard(path, func(rec arrow.Record) error {
			xsCol := column(rec, "x_list")
			ysCol := column(rec, "y_list")
			planeCol := column(rec, "plane_id")
			labelCol := column(rec, "label")

			n := int(rec.NumRows())
			for i := 0; i < n; i++ {
				xs := floatListAt(xsCol, i)
				ys := floatListAt(ysCol, i)
				if len(xs) == 0 || len(xs) != len(ys) {
					continue
				}

				b := voxel.CellBoundary{Vertices: make([]geom.Point, len(xs))}
				for j := range xs {
					b.Vertices[j] = geom.Point{X: xs[j], Y: ys[j]}
				}
				if p, ok := intAt(planeCol, i); ok {
					b.PlaneID = p
				}
				if id, ok := intAt(labelCol, i); ok {
					b.CellID = id
				}

				ds.boundaries = append(ds.boundaries, b)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// joinParents fills each spot's parent coordinates from its parent cell's
// centroid record. Spots whose parent cell has no record keep a nil
// position, which suppresses their link line but not their marker.
func (ds *Dataset) joinParents() {
	if len(ds.cells) == 0 {
		return
	}
	for i := range ds.spots {
		s := &ds.spots[i]
		if s.ParentCellID == nil || s.ParentX != nil {
			continue
		}
		c, ok := ds.cells[*s.ParentCellID]
		if !ok {
			continue
		}
		x, y, z := c.X, c.Y, c.Z
		s.ParentX, s.ParentY, s.ParentZ = &x, &y, &z
	}
}

// colorBoundaries assigns each boundary a fill color from its cell's
// class, so interiors render by cell type the way the viewer's legend
// groups them. Boundaries without a classed cell keep nil and fall back
// to the pipeline's neutral gray.
func (ds *Dataset) colorBoundaries() {
	classIndex := make(map[string]int, len(ds.classes))
	for i, name := range ds.classes {
		classIndex[name] = i
	}

	for i := range ds.boundaries {
		b := &ds.boundaries[i]
		c, ok := ds.cells[b.CellID]
		if !ok || c.ClassName == "" {
			continue
		}
		if rgba, ok := colormap.Categorical.AtIndex(classIndex[c.ClassName]).(color.RGBA); ok {
			b.FillColor = &rgba
		}
	}
}

// summarize computes boundary boxes, the coordinate envelope, and the
// observed plane count.
func (ds *Dataset) summarize() {
	ds.bounds = Bounds{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
	}
	maxPlane := -1

	grow := func(x, y float64) {
		ds.bounds.MinX = math.Min(ds.bounds.MinX, x)
		ds.bounds.MaxX = math.Max(ds.bounds.MaxX, x)
		ds.bounds.MinY = math.Min(ds.bounds.MinY, y)
		ds.bounds.MaxY = math.Max(ds.bounds.MaxY, y)
	}

	for _, s := range ds.spots {
		grow(s.X, s.Y)
		if s.PlaneID > maxPlane {
			maxPlane = s.PlaneID
		}
	}

	// Exports without a gene_dict.json still carry gene names on the spot
	// rows; rebuild the dictionary from those so palette assignment and
	// the metadata gene list stay populated.
	if len(ds.geneDict) == 0 && len(ds.spots) > 0 {
		seen := make(map[string]struct{})
		var names []string
		for _, s := range ds.spots {
			if s.Gene == "" {
				continue
			}
			if _, ok := seen[s.Gene]; ok {
				continue
			}
			seen[s.Gene] = struct{}{}
			names = append(names, s.Gene)
		}
		sort.Strings(names)
		for i, name := range names {
			ds.geneDict[i] = name
		}
	}

	ds.boundaryBoxes = make([]bbox, len(ds.boundaries))
	for i, b := range ds.boundaries {
		box := bbox{minX: math.Inf(1), maxX: math.Inf(-1), minY: math.Inf(1), maxY: math.Inf(-1)}
		for _, v := range b.Vertices {
			box.minX = math.Min(box.minX, v.X)
			box.maxX = math.Max(box.maxX, v.X)
			box.minY = math.Min(box.minY, v.Y)
			box.maxY = math.Max(box.maxY, v.Y)
			grow(v.X, v.Y)
		}
		ds.boundaryBoxes[i] = box
		if b.PlaneID > maxPlane {
			maxPlane = b.PlaneID
		}
	}

	ds.totalPlanes = maxPlane + 1
	if len(ds.spots) == 0 && len(ds.boundaries) == 0 {
		ds.bounds = Bounds{}
	}
}

// column returns the named column of a record, or nil when absent.
func column(rec arrow.Record, names ...string) arrow.Array {
	i := colIndex(rec, names...)
	if i < 0 {
		return nil
	}
	return rec.Column(i)
}

// shardFiles resolves a shard directory to its data files, preferring the
// manifest's listing and falling back to a directory scan for exports
// written before manifests existed.
func shardFiles(dir string) ([]string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err == nil {
		var m manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse manifest in %s: %w", dir, err)
		}
		files := make([]string, 0, len(m.Shards))
		for _, s := range m.Shards {
			files = append(files, filepath.Join(dir, s.File))
		}
		return files, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	var files []string
	for _, pattern := range []string{"*.feather", "*.feather.zst", "*.arrow"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no shards found in %s", dir)
	}
	return files, nil
}
