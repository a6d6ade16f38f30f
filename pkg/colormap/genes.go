package colormap

import (
	"image/color"
	"sort"
)

// GeneFallback colors markers for genes absent from the palette.
var GeneFallback = color.RGBA{R: 200, G: 200, B: 200, A: 255}

// GenePalette assigns each gene a stable categorical color. Colors follow
// the gene's position in the dictionary the dataset was preprocessed
// with, so a gene keeps its color across reloads and across datasets
// sharing a dictionary.
type GenePalette struct {
	index    map[string]int
	fallback color.RGBA
}

// NewGenePalette builds a palette from a gene dictionary mapping gene id
// to gene name. Ids order the colors.
func NewGenePalette(genesByID map[int]string) *GenePalette {
	ids := make([]int, 0, len(genesByID))
	for id := range genesByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[genesByID[id]] = i
	}
	return &GenePalette{index: index, fallback: GeneFallback}
}

// NewGenePaletteFromList builds a palette from an ordered gene list.
func NewGenePaletteFromList(genes []string) *GenePalette {
	index := make(map[string]int, len(genes))
	for i, g := range genes {
		index[g] = i
	}
	return &GenePalette{index: index, fallback: GeneFallback}
}

// ColorFor resolves the display color for a gene, falling back to
// GeneFallback for genes the palette has never seen.
func (p *GenePalette) ColorFor(gene string) color.RGBA {
	i, ok := p.index[gene]
	if !ok {
		return p.fallback
	}
	c, _ := Categorical.AtIndex(i).(color.RGBA)
	return c
}

// Genes returns the palette's gene names in color order.
func (p *GenePalette) Genes() []string {
	out := make([]string, len(p.index))
	for g, i := range p.index {
		out[i] = g
	}
	return out
}
