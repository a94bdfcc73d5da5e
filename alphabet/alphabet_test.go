package alphabet

import (
	"testing"

	"github.com/phylogo/phyfit/bio"
)

func TestDNA(tst *testing.T) {
	dna := DNA()
	if dna.Len() != 4 {
		tst.Fatalf("DNA has %d motifs", dna.Len())
	}
	if got := dna.Motifs(); got[0] != "t" || got[1] != "c" || got[2] != "a" || got[3] != "g" {
		tst.Errorf("DNA order is %v, want t c a g", got)
	}
	if dna.GapIncluded() {
		tst.Error("gap must not be a DNA state by default")
	}
	if !dna.SymbolMatches('r', 'a') || dna.SymbolMatches('r', 'c') {
		tst.Error("purine class is wrong")
	}
	if !dna.SymbolMatches('?', '-') {
		tst.Error("? must match the gap symbol")
	}
}

func TestProtein(tst *testing.T) {
	if p := Protein(false); p.Len() != 20 {
		tst.Errorf("protein alphabet has %d motifs, want 20", p.Len())
	}
	if p := Protein(true); p.Len() != 21 {
		tst.Errorf("protein alphabet with selenocysteine has %d motifs, want 21", p.Len())
	}
}

func TestCodons(tst *testing.T) {
	gc := bio.GeneticCodes[1]
	c := Codons(gc)
	if c.Len() != 61 {
		tst.Errorf("standard code has %d sense codons, want 61", c.Len())
	}
	if c.MotifLen() != 3 {
		tst.Errorf("codon motif length is %d", c.MotifLen())
	}
	if _, ok := c.Index("taa"); ok {
		tst.Error("stop codon taa must not be a state")
	}
	if c.Gap() != "---" {
		tst.Errorf("codon gap is %q", c.Gap())
	}
	// vertebrate mitochondrial code has different stops
	mit := Codons(bio.GeneticCodes[2])
	if mit.Len() != 60 {
		tst.Errorf("vertebrate mitochondrial code has %d sense codons, want 60", mit.Len())
	}
}

func TestWithGap(tst *testing.T) {
	dna := DNA().WithGap()
	if !dna.GapIncluded() {
		tst.Fatal("gap state missing")
	}
	if dna.Len() != 5 {
		tst.Errorf("gapped DNA has %d motifs", dna.Len())
	}
	if dna.WithGap() != dna {
		tst.Error("WithGap must be idempotent")
	}
}

func TestWords(tst *testing.T) {
	di, err := DNA().Words(2)
	if err != nil {
		tst.Fatal(err)
	}
	if di.Len() != 16 {
		tst.Errorf("dinucleotide alphabet has %d motifs", di.Len())
	}
	if di.Gap() != "--" {
		tst.Errorf("dinucleotide gap is %q", di.Gap())
	}
	if i, ok := di.Index("tt"); !ok || i != 0 {
		tst.Error("word order must follow the base order")
	}
}

func TestSubset(tst *testing.T) {
	noT, err := DNA().Subset([]string{"t"}, true)
	if err != nil {
		tst.Fatal(err)
	}
	if noT.Len() != 3 {
		tst.Errorf("subset has %d motifs", noT.Len())
	}
	if _, ok := noT.Index("t"); ok {
		tst.Error("excluded motif still present")
	}
	if _, err := DNA().Subset([]string{"x"}, false); err == nil {
		tst.Error("expected an error for an unknown motif")
	}
}
