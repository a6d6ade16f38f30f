// Package render provides plane preview rendering using fogleman/gg.
package render

import (
	"bytes"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/spotvox/server/internal/voxel"
)

// Config contains renderer configuration.
type Config struct {
	// PixelsPerVoxel is the edge length, in output pixels, of one grid cell.
	PixelsPerVoxel int
}

var canvasBackground = color.RGBA{R: 245, G: 245, B: 245, A: 255}

// PreviewRenderer rasterizes single imaging planes of a build result
// into PNG images for quick inspection without the 3D client.
type PreviewRenderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewPreviewRenderer creates a new preview renderer.
func NewPreviewRenderer(cfg Config) *PreviewRenderer {
	if cfg.PixelsPerVoxel <= 0 {
		cfg.PixelsPerVoxel = 4
	}
	return &PreviewRenderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// RenderPlane renders every voxel of one imaging plane as a top-down
// raster: grid x maps to image x, grid z to image y. Interior fills are
// drawn first, outlines over them, gene markers on top as dots.
func (r *PreviewRenderer) RenderPlane(result *voxel.BuildResult, planeID int) ([]byte, error) {
	cell := float64(r.config.PixelsPerVoxel)
	width := result.Bounds.MaxX * r.config.PixelsPerVoxel
	height := result.Bounds.MaxZ * r.config.PixelsPerVoxel
	if width <= 0 {
		width = r.config.PixelsPerVoxel
	}
	if height <= 0 {
		height = r.config.PixelsPerVoxel
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(canvasBackground)
	dc.Clear()

	for _, layer := range [][]voxel.Voxel{result.Background, result.Interior, result.Outlines} {
		for _, v := range layer {
			if v.PlaneID != planeID {
				continue
			}
			dc.SetColor(v.Color)
			dc.DrawRectangle(float64(v.GridX)*cell, float64(v.GridZ)*cell, cell, cell)
			dc.Fill()
		}
	}

	for _, v := range result.Markers {
		if v.PlaneID != planeID {
			continue
		}
		dc.SetColor(v.Color)
		cx := (float64(v.GridX) + 0.5) * cell
		cy := (float64(v.GridZ) + 0.5) * cell
		dc.DrawCircle(cx, cy, cell*0.4)
		dc.Fill()
	}

	return r.encodeContext(dc)
}

func (r *PreviewRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
