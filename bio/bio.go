// Package bio provides genetic codes and sequence input for the
// substitution models.
package bio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// nucleotides in the order used for codon enumeration (PAML order).
const nucleotides = "tcag"

// GeneticCode is a translation table between codons and amino acids.
// Codons are lowercase three-letter strings, amino acids are single
// uppercase letters, '*' marks a stop codon.
type GeneticCode struct {
	// ID is the NCBI transl_table number.
	ID int
	// Name is the NCBI name of the code.
	Name string
	// Map translates a codon into an amino-acid letter.
	Map map[string]byte
	// NSense is the number of non-stop codons.
	NSense int
}

// newGeneticCode creates a genetic code from the NCBI ncbieaa string
// (64 amino-acid letters in ttt, ttc, tta, ttg, tct, ... order).
func newGeneticCode(id int, name, ncbieaa string) *GeneticCode {
	if len(ncbieaa) != 64 {
		panic("genetic code table must have 64 entries")
	}
	gc := &GeneticCode{
		ID:   id,
		Name: name,
		Map:  make(map[string]byte, 64),
	}
	for i, codon := range Codons() {
		aa := ncbieaa[i]
		gc.Map[codon] = aa
		if aa != '*' {
			gc.NSense++
		}
	}
	return gc
}

// GeneticCodes maps NCBI transl_table numbers to genetic codes.
var GeneticCodes = map[int]*GeneticCode{
	1: newGeneticCode(1, "Standard",
		"FFLLSSSSYY**CC*WLLLLPPPPHHQQRRRRIIIMTTTTNNKKSSRRVVVVAAAADDEEGGGG"),
	2: newGeneticCode(2, "Vertebrate Mitochondrial",
		"FFLLSSSSYY**CCWWLLLLPPPPHHQQRRRRIIMMTTTTNNKKSS**VVVVAAAADDEEGGGG"),
	5: newGeneticCode(5, "Invertebrate Mitochondrial",
		"FFLLSSSSYY**CCWWLLLLPPPPHHQQRRRRIIMMTTTTNNKKSSSSVVVVAAAADDEEGGGG"),
	11: newGeneticCode(11, "Bacterial, Archaeal and Plant Plastid",
		"FFLLSSSSYY**CC*WLLLLPPPPHHQQRRRRIIIMTTTTNNKKSSRRVVVVAAAADDEEGGGG"),
}

// Codons returns all 64 codons in enumeration order (first position
// slowest, t before c before a before g).
func Codons() []string {
	codons := make([]string, 0, 64)
	for _, n1 := range nucleotides {
		for _, n2 := range nucleotides {
			for _, n3 := range nucleotides {
				codons = append(codons, string([]rune{n1, n2, n3}))
			}
		}
	}
	return codons
}

// IsStopCodon tests if the codon is a stop codon under the code.
func (gc *GeneticCode) IsStopCodon(codon string) bool {
	return gc.Map[codon] == '*'
}

// Translate translates a codon, returning an error for an unknown
// triplet.
func (gc *GeneticCode) Translate(codon string) (byte, error) {
	aa, ok := gc.Map[strings.ToLower(codon)]
	if !ok {
		return 0, fmt.Errorf("unknown codon %q", codon)
	}
	return aa, nil
}

// TranslateSequence translates a nucleotide sequence into a protein
// string. An error is returned if the length is not divisible by
// three, an unknown codon is found, or a stop codon occurs before the
// end of the sequence.
func (gc *GeneticCode) TranslateSequence(nseq string) (string, error) {
	nseq = strings.Replace(strings.ToLower(nseq), "u", "t", -1)
	if len(nseq)%3 != 0 {
		return "", errors.New("sequence length doesn't divide by 3")
	}
	var b strings.Builder
	for i := 0; i < len(nseq); i += 3 {
		aa, err := gc.Translate(nseq[i : i+3])
		if err != nil {
			return b.String(), err
		}
		if aa == '*' {
			if i+3 >= len(nseq) {
				// trailing stop codon is fine
				break
			}
			return b.String(), errors.New("premature stop codon")
		}
		b.WriteByte(aa)
	}
	return b.String(), nil
}

// Sequence stores a single named sequence.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences, e.g. an alignment.
type Sequences []Sequence

// ParseFasta reads FASTA sequences from a reader. Sequences are
// lowercased and spaces are removed.
func ParseFasta(rd io.Reader) (seqs Sequences, err error) {
	seqs = make(Sequences, 0, 10)
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			seqs = append(seqs, Sequence{Name: strings.TrimSpace(line[1:])})
			continue
		}
		if len(seqs) == 0 {
			return nil, errors.New("sequence without a name line")
		}
		line = strings.ToLower(strings.Replace(line, " ", "", -1))
		seqs[len(seqs)-1].Sequence += line
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return seqs, nil
}

// Wrap splits a string into lines of n characters or less.
func Wrap(seq string, n int) (s string) {
	for i := 0; i < len(seq); i += n {
		end := i + n
		if end > len(seq) {
			end = len(seq)
		}
		s += seq[i:end] + "\n"
	}
	return
}

// String returns the sequence in FASTA format.
func (seq Sequence) String() string {
	return ">" + seq.Name + "\n" + Wrap(seq.Sequence, 80)
}

// String returns the sequences in FASTA format.
func (seqs Sequences) String() (s string) {
	for _, seq := range seqs {
		s += seq.String()
	}
	return strings.TrimSuffix(s, "\n")
}
