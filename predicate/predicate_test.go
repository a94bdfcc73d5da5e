package predicate

import (
	"testing"

	"github.com/phylogo/phyfit/alphabet"
	"github.com/phylogo/phyfit/bio"
)

func compile(tst *testing.T, expr string, a *alphabet.Alphabet) PairTest {
	tst.Helper()
	p, err := Parse(expr)
	if err != nil {
		tst.Fatalf("parsing %q: %v", expr, err)
	}
	f, err := Compile(p, a, nil)
	if err != nil {
		tst.Fatalf("compiling %q: %v", expr, err)
	}
	return f
}

func TestParseErrors(tst *testing.T) {
	for _, expr := range []string{
		"",
		"a/c |",
		"(a/c",
		"a/c )",
		"| a/c",
		"!",
	} {
		if _, err := Parse(expr); err == nil {
			tst.Errorf("expected a parse error for %q", expr)
		} else if _, ok := err.(*ParseError); !ok {
			tst.Errorf("expected *ParseError for %q, got %T", expr, err)
		}
	}
}

func TestPairUndirected(tst *testing.T) {
	dna := alphabet.DNA()
	f := compile(tst, "a/g", dna)
	if !f("a", "g") || !f("g", "a") {
		tst.Error("a/g must match both directions")
	}
	if f("a", "c") || f("t", "g") {
		tst.Error("a/g matched an unrelated pair")
	}
}

func TestDegenerateSymbols(tst *testing.T) {
	dna := alphabet.DNA()
	transition := compile(tst, "R/R | Y/Y", dna)
	transversion := compile(tst, "R/Y", dna)
	pairs := map[[2]string]bool{
		{"a", "g"}: true,
		{"c", "t"}: true,
		{"a", "c"}: false,
		{"a", "t"}: false,
		{"c", "g"}: false,
		{"g", "t"}: false,
	}
	for pair, isTransition := range pairs {
		if transition(pair[0], pair[1]) != isTransition {
			tst.Errorf("transition(%s, %s) != %v", pair[0], pair[1], isTransition)
		}
		if transversion(pair[0], pair[1]) == isTransition {
			tst.Errorf("transversion(%s, %s) == transition", pair[0], pair[1])
		}
	}
}

func TestOperators(tst *testing.T) {
	dna := alphabet.DNA()
	f := compile(tst, "!(a/g | c/t)", dna)
	if f("a", "g") || f("c", "t") {
		tst.Error("negation kept the excluded pairs")
	}
	if !f("a", "c") {
		tst.Error("negation lost an unrelated pair")
	}
	and := compile(tst, "R/R & a/g", dna)
	if !and("a", "g") || and("c", "t") {
		tst.Error("conjunction is wrong")
	}
}

func TestSingleSymbolOnWords(tst *testing.T) {
	gc := bio.GeneticCodes[1]
	codons := alphabet.Codons(gc)
	transition := compile(tst, "R/R | Y/Y", codons)
	if !transition("ttt", "ttc") {
		tst.Error("ttt/ttc is a transition at the third position")
	}
	if transition("tta", "ttt") {
		tst.Error("tta/ttt is a transversion")
	}
	indel := compile(tst, "-/?", codons)
	if !indel("---", "atg") {
		tst.Error("whole-codon gap is an indel")
	}
	if indel("atg", "ata") {
		tst.Error("substitution flagged as indel")
	}
}

func TestFullLengthPatternOnWords(tst *testing.T) {
	gc := bio.GeneticCodes[1]
	codons := alphabet.Codons(gc)
	indel := compile(tst, "???/---", codons)
	if !indel("atg", "---") || !indel("---", "atg") {
		tst.Error("???/--- must match whole-codon gaps in both directions")
	}
	if indel("atg", "ata") {
		tst.Error("???/--- matched a substitution")
	}
}

func TestNameResolution(tst *testing.T) {
	dna := alphabet.DNA()
	lookup := func(name string) (Predicate, error) {
		if name == "transition" {
			return Parse("R/R | Y/Y")
		}
		return nil, &ParseError{Expr: name, Token: name}
	}
	p, err := Parse("transition")
	if err != nil {
		tst.Fatal(err)
	}
	f, err := Compile(p, dna, lookup)
	if err != nil {
		tst.Fatal(err)
	}
	if !f("a", "g") || f("a", "c") {
		tst.Error("named predicate resolved incorrectly")
	}
	if _, err := Compile(&namePred{name: "nosuch"}, dna, lookup); err == nil {
		tst.Error("expected an error for an unknown name")
	}
}

func TestMask(tst *testing.T) {
	dna := alphabet.DNA()
	restrict := NewMask(dna.Len())
	for i := 0; i < dna.Len(); i++ {
		for j := 0; j < dna.Len(); j++ {
			restrict.Set(i, j, i != j)
		}
	}
	f := compile(tst, "R/R | Y/Y", dna)
	mask := ToMatrix(f, dna, restrict)
	if mask.Count() != 4 {
		tst.Errorf("transition mask has %d cells, want 4", mask.Count())
	}
	if !mask.Symmetric() {
		tst.Error("transition mask must be symmetric")
	}
	if mask.AllFalse() {
		tst.Error("transition mask is empty")
	}
	if mask.Equal(restrict) {
		tst.Error("transition mask equals the full mask")
	}
	if len(mask.Indices()) != 4 {
		tst.Error("flat indices do not match the mask")
	}
}
