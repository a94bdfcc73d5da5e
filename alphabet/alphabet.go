// Package alphabet implements ordered motif sets used as the state
// space of the substitution Markov chains. A motif is a single symbol
// (nucleotide, amino acid) or a fixed-length word (codon).
package alphabet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phylogo/phyfit/bio"
)

// Alphabet is an immutable ordered set of motifs. The gap motif may
// or may not be part of the motif list; WithGap returns an alphabet
// that includes it.
type Alphabet struct {
	motifs   []string
	index    map[string]int
	gap      string
	motifLen int
	// degen maps a degenerate symbol to the set of symbols it
	// stands for (IUPAC classes for nucleotides).
	degen map[byte]string
	gc    *bio.GeneticCode
}

// iupac lists the nucleotide degenerate symbol classes.
var iupac = map[byte]string{
	'r': "ag", 'y': "ct", 'w': "at", 's': "cg", 'k': "gt", 'm': "ac",
	'b': "cgt", 'd': "agt", 'h': "act", 'v': "acg", 'n': "acgt",
}

// New creates an alphabet from a list of motifs and a gap motif. All
// motifs must have the same length and be unique.
func New(motifs []string, gap string) (*Alphabet, error) {
	if len(motifs) == 0 {
		return nil, errors.New("alphabet without motifs")
	}
	a := &Alphabet{
		motifs:   append([]string(nil), motifs...),
		index:    make(map[string]int, len(motifs)),
		gap:      gap,
		motifLen: len(motifs[0]),
	}
	for i, m := range a.motifs {
		if len(m) != a.motifLen {
			return nil, fmt.Errorf("motif %q has wrong length (want %d)", m, a.motifLen)
		}
		if _, ok := a.index[m]; ok {
			return nil, fmt.Errorf("duplicate motif %q", m)
		}
		a.index[m] = i
	}
	if len(gap) != a.motifLen {
		return nil, fmt.Errorf("gap motif %q has wrong length (want %d)", gap, a.motifLen)
	}
	return a, nil
}

// DNA returns the nucleotide alphabet (t, c, a, g) with IUPAC
// degenerate symbol classes and gap "-".
func DNA() *Alphabet {
	a, err := New([]string{"t", "c", "a", "g"}, "-")
	if err != nil {
		panic(err)
	}
	a.degen = iupac
	return a
}

// proteinLetters is the ordered set of amino-acid one letter codes;
// selenocysteine (u) is optional.
const proteinLetters = "acdefghiklmnpqrstvwy"

// Protein returns the amino-acid alphabet with gap "-".
func Protein(withSelenocysteine bool) *Alphabet {
	letters := proteinLetters
	if withSelenocysteine {
		letters += "u"
	}
	motifs := make([]string, len(letters))
	for i := range letters {
		motifs[i] = string(letters[i])
	}
	a, err := New(motifs, "-")
	if err != nil {
		panic(err)
	}
	a.degen = map[byte]string{'x': letters}
	return a
}

// Codons returns the alphabet of sense codons under the genetic code,
// with gap "---". Stop codons are excluded from the state space.
func Codons(gc *bio.GeneticCode) *Alphabet {
	motifs := make([]string, 0, gc.NSense)
	for _, codon := range bio.Codons() {
		if gc.IsStopCodon(codon) {
			continue
		}
		motifs = append(motifs, codon)
	}
	a, err := New(motifs, "---")
	if err != nil {
		panic(err)
	}
	a.degen = iupac
	a.gc = gc
	return a
}

// Len returns the number of motifs.
func (a *Alphabet) Len() int { return len(a.motifs) }

// MotifLen returns the length of a single motif.
func (a *Alphabet) MotifLen() int { return a.motifLen }

// Motif returns the i-th motif.
func (a *Alphabet) Motif(i int) string { return a.motifs[i] }

// Motifs returns a copy of the ordered motif list.
func (a *Alphabet) Motifs() []string {
	return append([]string(nil), a.motifs...)
}

// Index returns the position of a motif in the alphabet.
func (a *Alphabet) Index(motif string) (int, bool) {
	i, ok := a.index[motif]
	return i, ok
}

// Gap returns the gap motif.
func (a *Alphabet) Gap() string { return a.gap }

// GapIncluded tests if the gap motif is part of the state space.
func (a *Alphabet) GapIncluded() bool {
	_, ok := a.index[a.gap]
	return ok
}

// GeneticCode returns the genetic code for codon alphabets, nil
// otherwise.
func (a *Alphabet) GeneticCode() *bio.GeneticCode { return a.gc }

// GapChar returns the single gap symbol.
func (a *Alphabet) GapChar() byte { return a.gap[0] }

// SymbolMatches tests whether the concrete symbol c matches pattern
// symbol p. '?' matches anything including the gap symbol, degenerate
// symbols match their class members.
func (a *Alphabet) SymbolMatches(p, c byte) bool {
	if p == '?' || p == c {
		return true
	}
	if a.degen != nil {
		if set, ok := a.degen[p]; ok {
			return strings.IndexByte(set, c) >= 0
		}
	}
	return false
}

// derive creates a new alphabet keeping the degenerate classes and
// genetic code of the receiver.
func (a *Alphabet) derive(motifs []string, gap string) (*Alphabet, error) {
	n, err := New(motifs, gap)
	if err != nil {
		return nil, err
	}
	n.degen = a.degen
	n.gc = a.gc
	return n, nil
}

// WithGap returns an alphabet that includes the gap motif as a state.
func (a *Alphabet) WithGap() *Alphabet {
	if a.GapIncluded() {
		return a
	}
	n, err := a.derive(append(a.Motifs(), a.gap), a.gap)
	if err != nil {
		panic(err)
	}
	return n
}

// Words returns the word expansion of the alphabet: all length-n
// sequences of motifs, with the gap word being n gap motifs.
func (a *Alphabet) Words(n int) (*Alphabet, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid word length %d", n)
	}
	if n == 1 {
		return a, nil
	}
	words := []string{""}
	for i := 0; i < n; i++ {
		next := make([]string, 0, len(words)*len(a.motifs))
		for _, w := range words {
			for _, m := range a.motifs {
				next = append(next, w+m)
			}
		}
		words = next
	}
	return a.derive(words, strings.Repeat(a.gap, n))
}

// Subset returns the alphabet restricted to the given motifs, or with
// the given motifs excluded. Order of the receiver is preserved.
func (a *Alphabet) Subset(motifs []string, excluded bool) (*Alphabet, error) {
	pick := make(map[string]bool, len(motifs))
	for _, m := range motifs {
		if _, ok := a.index[m]; !ok {
			return nil, fmt.Errorf("motif %q not in alphabet", m)
		}
		pick[m] = true
	}
	kept := make([]string, 0, len(a.motifs))
	for _, m := range a.motifs {
		if pick[m] != excluded {
			kept = append(kept, m)
		}
	}
	return a.derive(kept, a.gap)
}
