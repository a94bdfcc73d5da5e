package smodel

import (
	"github.com/gonum/matrix/mat64"

	"github.com/phylogo/phyfit/alphabet"
	"github.com/phylogo/phyfit/bio"
	"github.com/phylogo/phyfit/predicate"
)

// defaultIsInstantaneous allows a single changed position, or a
// contiguous run of gap characters on one strand of any length when
// long indels count as single events.
func (m *Model) defaultIsInstantaneous(x, y string) bool {
	diffs := 0
	for i := 0; i < len(x) && i < len(y); i++ {
		if x[i] != y[i] {
			diffs++
		}
	}
	if diffs == 1 {
		return true
	}
	return diffs > 1 && m.longIndelsInstantaneous && m.isAnyIndel(x, y)
}

// isAnyIndel reports whether x and y differ by exactly one gap of any
// length: every differing position has the gap character on the same
// strand, and the gap positions are contiguous.
func (m *Model) isAnyIndel(x, y string) bool {
	if x == y {
		return false
	}
	gap := m.alph.GapChar()
	gapStart := -1
	gapEnd := -1
	gapStrand := 0
	for i := 0; i < len(x); i++ {
		if x[i] == y[i] {
			if gapStart >= 0 && gapEnd < 0 {
				gapEnd = i
			}
			continue
		}
		if x[i] != gap && y[i] != gap {
			return false
		}
		if gapStart < 0 {
			gapStart = i
			if x[i] == gap {
				gapStrand = 0
			} else {
				gapStrand = 1
			}
			continue
		}
		if gapEnd >= 0 {
			// a second gap opened after the first closed
			return false
		}
		strand := 1
		if x[i] == gap {
			strand = 0
		}
		if strand != gapStrand {
			return false
		}
	}
	return true
}

// basePredefined names the predicates every model understands.
func basePredefined() map[string]predicate.Predicate {
	indel, err := predicate.Parse("-/?")
	if err != nil {
		panic(err)
	}
	return map[string]predicate.Predicate{"indel": indel}
}

func nucleotidePredefined(m *Model) map[string]predicate.Predicate {
	preds := basePredefined()
	for name, expr := range map[string]string{
		"transition":   "R/R | Y/Y",
		"transversion": "R/Y",
		"kappa":        "R/R | Y/Y",
	} {
		p, err := predicate.Parse(expr)
		if err != nil {
			panic(err)
		}
		preds[name] = p
	}
	return preds
}

func codonPredefined(m *Model) map[string]predicate.Predicate {
	preds := nucleotidePredefined(m)
	gc := m.alph.GeneticCode()
	gap := m.alph.Gap()
	translate := func(c string) byte {
		aa, err := gc.Translate(c)
		if err != nil {
			return 0
		}
		return aa
	}
	preds["silent"] = predicate.User("silent", func(x, y string) bool {
		return x != gap && y != gap && translate(x) == translate(y)
	})
	preds["replacement"] = predicate.User("replacement", func(x, y string) bool {
		return x != gap && y != gap && translate(x) != translate(y)
	})
	preds["omega"] = preds["replacement"]
	return preds
}

// codonIsInstantaneous allows a single nucleotide change or a
// whole-codon indel; partly gapped codons are not states.
func codonIsInstantaneous(m *Model) predicate.PairTest {
	gap := m.alph.Gap()
	return func(x, y string) bool {
		if x == gap || y == gap {
			return x != y
		}
		diffs := 0
		for i := 0; i < len(x); i++ {
			if x[i] != y[i] {
				diffs++
			}
		}
		return diffs == 1
	}
}

var nucleotideFamily = &family{predefined: nucleotidePredefined}

// NewNucleotide creates a model over the four DNA bases.
func NewNucleotide(spec Spec) (*Model, error) {
	return newModel(alphabet.DNA(), spec, nucleotideFamily)
}

// NewDinucleotide creates a model over base pairs.
func NewDinucleotide(spec Spec) (*Model, error) {
	spec.MotifLength = 2
	return newModel(alphabet.DNA(), spec, nucleotideFamily)
}

// NewProtein creates a model over the amino acids, optionally
// including selenocysteine.
func NewProtein(spec Spec) (*Model, error) {
	return newModel(alphabet.Protein(spec.Selenocysteine), spec, nil)
}

// NewEmpiricalProtein creates a protein model from a fixed exchange
// matrix, e.g. WAG or LG. The matrix dimension must match the
// alphabet, 21 with selenocysteine.
func NewEmpiricalProtein(rates *mat64.Dense, spec Spec) (*Model, error) {
	spec.RateMatrix = rates
	return newModel(alphabet.Protein(spec.Selenocysteine), spec, nil)
}

// NewCodon creates a model over the sense codons of a genetic code.
// The code supplies the silent and replacement predicates.
func NewCodon(gc *bio.GeneticCode, spec Spec) (*Model, error) {
	fam := &family{
		predefined: codonPredefined,
		isInst:     codonIsInstantaneous,
	}
	return newModel(alphabet.Codons(gc), spec, fam)
}

// GeneticCode returns the genetic code of a codon model, nil for
// other families.
func (m *Model) GeneticCode() *bio.GeneticCode { return m.alph.GeneticCode() }
