// Package smodel implements parametric Markov substitution models:
// instantaneous rate matrices built from predicates over motif pairs,
// validation of the predicate set (redundancy detection), and the
// model facade consumed by likelihood functions.
package smodel

import (
	"errors"
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"github.com/phylogo/phyfit/alphabet"
	"github.com/phylogo/phyfit/bio"
	"github.com/phylogo/phyfit/predicate"
)

// log is the package logging variable.
var log = logging.MustGetLogger("smodel")

// Distribution selects the ordering imposed on the ordered parameter
// across rate bins.
type Distribution int

const (
	// Free orders the bin values monotonically without a
	// parametric shape.
	Free Distribution = iota
	// Gamma forces the bin values into a discretized gamma
	// distribution.
	Gamma
)

// Rule declares one named predicate. Exactly one of Expr, Pred and
// Func must be set; the three forms are normalized into a single
// predicate representation at model construction.
type Rule struct {
	// Name is the rate-parameter name assigned to the predicate.
	Name string
	// Expr is a predicate grammar expression, e.g. "R/R | Y/Y".
	Expr string
	// Pred is an explicit predicate value.
	Pred predicate.Predicate
	// Func is an arbitrary user-supplied motif-pair test.
	Func predicate.PairTest
}

// Spec collects the model constructor options. The zero value gives a
// predicate-free model with branch-length scaling enabled and motif
// probabilities estimated from the data.
type Spec struct {
	// Name is an optional model name used in reporting.
	Name string
	// Predicates assign rate parameters to motif pairs; their
	// order defines the positional parameter vector.
	Predicates []Rule
	// Scales declares named scale rules used for rescaled branch
	// lengths.
	Scales []Rule
	// MotifProbs supplies fixed motif probabilities.
	MotifProbs map[string]float64
	// EqualMotifProbs assigns every motif the probability 1/M.
	EqualMotifProbs bool
	// MotifProbsAlignment estimates motif probabilities by
	// counting an alignment.
	MotifProbsAlignment bio.Sequences
	// OptimizeMotifProbs treats motif probabilities as free
	// parameters; any other motif-probability source only
	// provides initial values.
	OptimizeMotifProbs bool
	// RateMatrix supplies an empirical rate matrix instead of
	// predicates. The diagonal must be zero.
	RateMatrix *mat64.Dense
	// ModelGaps includes the gap motif as a Markov-chain state.
	ModelGaps bool
	// RecodeGaps treats alignment gaps as ambiguous states.
	RecodeGaps bool
	// MotifLength expands the alphabet to words of this length.
	MotifLength int
	// Motifs restricts the alphabet to a subset of motifs.
	Motifs []string
	// Selenocysteine adds the 21st amino acid to protein alphabets.
	Selenocysteine bool
	// NoScaling disables interpreting branch lengths as expected
	// substitutions per site.
	NoScaling bool
	// WithRate adds a per-bin rate multiplier to branch lengths.
	WithRate bool
	// OrderedParam designates the bin-partitioned parameter whose
	// per-bin values follow the Distribution ordering.
	OrderedParam string
	// PartitionedParams lists parameters free to vary across rate
	// bins.
	PartitionedParams []string
	// Distribution is the ordering of the ordered parameter.
	Distribution Distribution
}

// Model is an immutable substitution model: alphabet, instantaneous
// mask, validated predicate masks and the parameter ordering. It is
// created once from a Spec and shared read-only afterwards.
type Model struct {
	name  string
	alph  *alphabet.Alphabet
	spec  Spec
	diags []Warning

	inst      *predicate.Mask
	instF     []float64
	symmetric bool
	empirical bool

	predicateMasks   map[string]*predicate.Mask
	parameterOrder   []string
	predicateIndices [][]int
	scaleMasks       map[string]*predicate.Mask
	scaleOrder       []string

	orderedParam      []string
	partitionedParams []string
	withRate          bool
	doScaling         bool
	recodeGaps        bool
	distribution      Distribution

	motifProbs          []float64
	motifProbsFromAlign bool
	optimizeMotifProbs  bool

	isInst     predicate.PairTest
	predefined map[string]predicate.Predicate
	// longIndelsInstantaneous permits a contiguous gap of any
	// length on one strand as a single event.
	longIndelsInstantaneous bool
}

// family customizes the instantaneous-transition rule and the
// predefined predicate set of a model class. Hooks run after the
// alphabet is finalized.
type family struct {
	predefined func(m *Model) map[string]predicate.Predicate
	isInst     func(m *Model) predicate.PairTest
}

// New creates a substitution model over the alphabet. All predicate
// and partitioning validation happens here; no partially-usable model
// escapes on error.
func New(alph *alphabet.Alphabet, spec Spec) (*Model, error) {
	return newModel(alph, spec, nil)
}

func newModel(alph *alphabet.Alphabet, spec Spec, fam *family) (*Model, error) {
	m := &Model{
		name:                    spec.Name,
		spec:                    spec,
		doScaling:               !spec.NoScaling,
		recodeGaps:              spec.RecodeGaps,
		withRate:                spec.WithRate,
		distribution:            spec.Distribution,
		optimizeMotifProbs:      spec.OptimizeMotifProbs,
		longIndelsInstantaneous: true,
	}
	if err := m.setupAlphabet(alph, spec); err != nil {
		return nil, err
	}
	m.isInst = m.defaultIsInstantaneous
	m.predefined = basePredefined()
	if fam != nil {
		if fam.predefined != nil {
			m.predefined = fam.predefined(m)
		}
		if fam.isInst != nil {
			m.isInst = fam.isInst(m)
		}
	}
	if err := m.setupMotifProbs(spec); err != nil {
		return nil, err
	}
	if err := m.setupMatrix(spec); err != nil {
		return nil, err
	}
	if err := m.setupBins(spec); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) setupAlphabet(alph *alphabet.Alphabet, spec Spec) error {
	if spec.RecodeGaps && spec.ModelGaps {
		m.warn("recode-gaps", "recoding gaps as ambiguous while also modeling gaps as a state")
	}
	if spec.ModelGaps {
		alph = alph.WithGap()
	}
	if spec.MotifLength > 1 {
		var err error
		alph, err = alph.Words(spec.MotifLength)
		if err != nil {
			return err
		}
	}
	if spec.Motifs != nil {
		var err error
		alph, err = alph.Subset(spec.Motifs, false)
		if err != nil {
			return err
		}
	}
	m.alph = alph
	return nil
}

func (m *Model) setupMotifProbs(spec Spec) error {
	sources := 0
	for _, set := range []bool{spec.EqualMotifProbs, spec.MotifProbs != nil, spec.MotifProbsAlignment != nil} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return errors.New("more than one motif-probability source supplied")
	}
	switch {
	case spec.EqualMotifProbs:
		n := m.alph.Len()
		m.motifProbs = make([]float64, n)
		for i := range m.motifProbs {
			m.motifProbs[i] = 1.0 / float64(n)
		}
	case spec.MotifProbs != nil:
		if len(spec.MotifProbs) != m.alph.Len() {
			return fmt.Errorf("got %d motif probabilities, want %d", len(spec.MotifProbs), m.alph.Len())
		}
		m.motifProbs = make([]float64, m.alph.Len())
		for motif, p := range spec.MotifProbs {
			i, ok := m.alph.Index(motif)
			if !ok {
				return fmt.Errorf("motif probability for unknown motif %q", motif)
			}
			m.motifProbs[i] = p
		}
	case spec.MotifProbsAlignment != nil:
		counts, err := m.CountMotifs(spec.MotifProbsAlignment, false)
		if err != nil {
			return err
		}
		total := 0.0
		for _, c := range counts {
			total += c
		}
		if total == 0 {
			return errors.New("no motifs counted in the alignment")
		}
		m.motifProbs = make([]float64, len(counts))
		for i, c := range counts {
			m.motifProbs[i] = c / total
		}
	default:
		m.motifProbsFromAlign = true
	}
	return nil
}

func (m *Model) setupMatrix(spec Spec) error {
	n := m.alph.Len()
	if spec.RateMatrix != nil {
		rows, cols := spec.RateMatrix.Dims()
		if rows != n || cols != n {
			return fmt.Errorf("empirical rate matrix is %dx%d, want %dx%d", rows, cols, n, n)
		}
		m.inst = predicate.NewMask(n)
		m.instF = make([]float64, n*n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := spec.RateMatrix.At(i, j)
				if i == j {
					if v != 0 {
						return errors.New("empirical rate matrix has a non-zero diagonal")
					}
					continue
				}
				m.instF[i*n+j] = v
				m.inst.Set(i, j, v != 0)
			}
		}
		if len(spec.Predicates) > 0 {
			m.warn("empirical-with-predicates", "empirical rate matrix combined with rate predicates")
		}
		m.empirical = true
	} else {
		m.inst = predicate.NewMask(n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i != j && m.isInst(m.alph.Motif(i), m.alph.Motif(j)) {
					m.inst.Set(i, j, true)
				}
			}
		}
		m.instF = m.inst.Floats()
	}
	m.symmetric = symmetricFloats(m.instF, n)

	masks, order, err := m.adaptPredicates(spec.Predicates)
	if err != nil {
		return err
	}
	if err := m.checkPredicateMasks(masks, order); err != nil {
		return err
	}
	m.predicateMasks = masks
	m.parameterOrder = order
	m.predicateIndices = make([][]int, len(order))
	for i, name := range order {
		mask := masks[name]
		if !mask.Symmetric() {
			m.symmetric = false
		}
		m.predicateIndices[i] = mask.Indices()
	}
	if !m.symmetric {
		m.warn("not-reversible", "model is not time-reversible; using the general eigendecomposition")
	}

	m.scaleMasks, m.scaleOrder, err = m.adaptPredicates(spec.Scales)
	return err
}

func (m *Model) setupBins(spec Spec) error {
	if spec.OrderedParam != "" {
		m.orderedParam = []string{spec.OrderedParam}
	}
	m.partitionedParams = append([]string(nil), spec.PartitionedParams...)
	for _, name := range m.orderedParam {
		if !containsString(m.partitionedParams, name) {
			m.partitionedParams = append(m.partitionedParams, name)
		}
	}
	if len(m.orderedParam) == 0 && len(m.partitionedParams) > 0 {
		return errors.New("an ordered parameter must be specified for a binned model")
	}
	if containsString(m.orderedParam, "rate") || containsString(m.partitionedParams, "rate") {
		m.withRate = true
	}
	for _, name := range m.partitionedParams {
		if name != "rate" && !containsString(m.parameterOrder, name) {
			return fmt.Errorf("partitioned parameter %q is not a rate parameter of the model", name)
		}
	}
	return nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Alphabet returns the model state space.
func (m *Model) Alphabet() *alphabet.Alphabet { return m.alph }

// Motifs returns the ordered motif list.
func (m *Model) Motifs() []string { return m.alph.Motifs() }

// Symmetric reports whether the model is time-reversible.
func (m *Model) Symmetric() bool { return m.symmetric }

// Scaled reports whether branch lengths are interpreted as expected
// substitutions per site.
func (m *Model) Scaled() bool { return m.doScaling }

// WithRate reports whether branch lengths carry a per-bin rate
// multiplier.
func (m *Model) WithRate() bool { return m.withRate }

// RecodeGaps reports whether alignment gaps are treated as ambiguous
// states.
func (m *Model) RecodeGaps() bool { return m.recodeGaps }

// OrderedParam returns the designated ordered parameter names.
func (m *Model) OrderedParam() []string {
	return append([]string(nil), m.orderedParam...)
}

// PartitionedParams returns the parameters partitioned across bins.
func (m *Model) PartitionedParams() []string {
	return append([]string(nil), m.partitionedParams...)
}

// Distribution returns the bin ordering of the ordered parameter.
func (m *Model) Distribution() Distribution { return m.distribution }

// OptimizeMotifProbs reports whether motif probabilities are free
// parameters.
func (m *Model) OptimizeMotifProbs() bool { return m.optimizeMotifProbs }

// MotifProbsFromAlign reports whether motif probabilities should be
// estimated from the alignment.
func (m *Model) MotifProbsFromAlign() bool { return m.motifProbsFromAlign }

// MotifProbs returns the motif probability for every motif, nil if
// they are to be estimated from the data.
func (m *Model) MotifProbs() map[string]float64 {
	if m.motifProbs == nil {
		return nil
	}
	probs := make(map[string]float64, len(m.motifProbs))
	for i, p := range m.motifProbs {
		probs[m.alph.Motif(i)] = p
	}
	return probs
}

// MotifProbVector returns motif probabilities in alphabet order, nil
// if they are to be estimated from the data.
func (m *Model) MotifProbVector() []float64 {
	return append([]float64(nil), m.motifProbs...)
}

// ParamList returns the rate parameter names in declaration order.
func (m *Model) ParamList() []string {
	return append([]string(nil), m.parameterOrder...)
}

// IsInstantaneous tests the model's instantaneous-transition rule for
// a motif pair.
func (m *Model) IsInstantaneous(x, y string) bool {
	return x != y && m.isInst(x, y)
}

// InstantaneousMask returns the mask of structurally allowed
// transitions.
func (m *Model) InstantaneousMask() *predicate.Mask { return m.inst }

// CountMotifs counts motif occurrences over all sequences of the
// alignment, in alphabet order. Ambiguous motifs are skipped unless
// includeAmbiguity is set, in which case the count is spread over all
// matching motifs.
func (m *Model) CountMotifs(aln bio.Sequences, includeAmbiguity bool) ([]float64, error) {
	counts := make([]float64, m.alph.Len())
	mlen := m.alph.MotifLen()
	for _, seq := range aln {
		if len(seq.Sequence)%mlen != 0 {
			return nil, fmt.Errorf("sequence %q length is not a multiple of %d", seq.Name, mlen)
		}
		for i := 0; i+mlen <= len(seq.Sequence); i += mlen {
			motif := seq.Sequence[i : i+mlen]
			if idx, ok := m.alph.Index(motif); ok {
				counts[idx]++
				continue
			}
			if !includeAmbiguity {
				continue
			}
			matches := m.ambiguityMatches(motif)
			for _, idx := range matches {
				counts[idx] += 1 / float64(len(matches))
			}
		}
	}
	return counts, nil
}

// ambiguityMatches returns indices of all motifs compatible with an
// ambiguous motif.
func (m *Model) ambiguityMatches(motif string) (idx []int) {
	for i := 0; i < m.alph.Len(); i++ {
		candidate := m.alph.Motif(i)
		ok := true
		for p := 0; p < len(motif) && ok; p++ {
			ok = m.alph.SymbolMatches(motif[p], candidate[p])
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func symmetricFloats(f []float64, n int) bool {
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if f[i*n+j] != f[j*n+i] {
				return false
			}
		}
	}
	return true
}
