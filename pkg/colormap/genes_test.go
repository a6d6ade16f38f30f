package colormap

import (
	"testing"
)

func TestGenePalette_StableColors(t *testing.T) {
	dict := map[int]string{0: "Sst", 1: "Vip", 2: "Pvalb"}

	a := NewGenePalette(dict)
	b := NewGenePalette(dict)

	for _, gene := range []string{"Sst", "Vip", "Pvalb"} {
		if a.ColorFor(gene) != b.ColorFor(gene) {
			t.Errorf("%s colored differently across palettes", gene)
		}
	}

	if a.ColorFor("Sst") == a.ColorFor("Vip") {
		t.Error("adjacent genes should get distinct colors")
	}
}

func TestGenePalette_Fallback(t *testing.T) {
	p := NewGenePaletteFromList([]string{"Sst"})

	if got := p.ColorFor("NotAGene"); got != GeneFallback {
		t.Errorf("unknown gene colored %v, want fallback %v", got, GeneFallback)
	}
	if got := p.ColorFor("Sst"); got == GeneFallback {
		t.Error("known gene should not use the fallback color")
	}
}

func TestGenePalette_Genes(t *testing.T) {
	p := NewGenePaletteFromList([]string{"Sst", "Vip"})
	genes := p.Genes()
	if len(genes) != 2 || genes[0] != "Sst" || genes[1] != "Vip" {
		t.Errorf("Genes() = %v, want [Sst Vip]", genes)
	}
}
