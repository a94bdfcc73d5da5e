package bio

import (
	"strings"
	"testing"
)

func TestGeneticCodes(tst *testing.T) {
	std, ok := GeneticCodes[1]
	if !ok {
		tst.Fatal("standard code missing")
	}
	if std.NSense != 61 {
		tst.Errorf("standard code has %d sense codons, want 61", std.NSense)
	}
	for _, stop := range []string{"taa", "tag", "tga"} {
		if !std.IsStopCodon(stop) {
			tst.Errorf("%s must be a stop codon", stop)
		}
	}
	if std.IsStopCodon("atg") {
		tst.Error("atg is not a stop codon")
	}
	mit := GeneticCodes[2]
	if mit.IsStopCodon("tga") {
		tst.Error("tga codes tryptophan in the vertebrate mitochondrial code")
	}
	if !mit.IsStopCodon("aga") {
		tst.Error("aga is a stop in the vertebrate mitochondrial code")
	}
}

func TestTranslate(tst *testing.T) {
	std := GeneticCodes[1]
	aa, err := std.Translate("atg")
	if err != nil {
		tst.Fatal(err)
	}
	if aa != 'M' {
		tst.Errorf("atg translates to %c, want M", aa)
	}
	if _, err := std.Translate("ta"); err == nil {
		tst.Error("expected an error for a short codon")
	}
	s, err := std.TranslateSequence("atgaaatag")
	if err != nil {
		tst.Fatal(err)
	}
	if s != "MK*" {
		tst.Errorf("translated to %q, want MK*", s)
	}
}

func TestCodonsOrder(tst *testing.T) {
	codons := Codons()
	if len(codons) != 64 {
		tst.Fatalf("got %d codons", len(codons))
	}
	if codons[0] != "ttt" || codons[63] != "ggg" {
		tst.Errorf("codon order is wrong: first %q, last %q", codons[0], codons[63])
	}
}

func TestParseFasta(tst *testing.T) {
	in := ">one\nACGT\nacgt\n>two\nAC-T\n"
	seqs, err := ParseFasta(strings.NewReader(in))
	if err != nil {
		tst.Fatal(err)
	}
	if len(seqs) != 2 {
		tst.Fatalf("got %d sequences", len(seqs))
	}
	if seqs[0].Name != "one" {
		tst.Errorf("first name is %q", seqs[0].Name)
	}
	if seqs[0].Sequence != "acgtacgt" {
		tst.Errorf("first sequence is %q, want lowercased concatenation", seqs[0].Sequence)
	}
	if seqs[1].Sequence != "ac-t" {
		tst.Errorf("second sequence is %q", seqs[1].Sequence)
	}
}
