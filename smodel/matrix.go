package smodel

import (
	"fmt"
	"sort"

	"github.com/gonum/matrix/mat64"

	"github.com/phylogo/phyfit/predicate"
)

// smallScale is the expected-rate threshold below which a matrix is
// treated as a zero generator.
const smallScale = 1e-30

// CalcRateMatrix builds the unscaled rate matrix for one positional
// parameter vector. Entry (i, j) is the product of the i->j entries
// of every predicate whose mask covers the pair, over the
// instantaneous mask; the diagonal makes every row sum to zero.
// The number of parameters must match ParamList.
func (m *Model) CalcRateMatrix(params ...float64) *mat64.Dense {
	if len(params) != len(m.predicateIndices) {
		panic(fmt.Sprintf("smodel: got %d rate parameters, want %d", len(params), len(m.predicateIndices)))
	}
	n := m.alph.Len()
	work := make([]float64, len(m.instF))
	copy(work, m.instF)
	for k, indices := range m.predicateIndices {
		for _, idx := range indices {
			work[idx] *= params[k]
		}
	}
	r := mat64.NewDense(n, n, work)
	zeroRowSums(r, n)
	return r
}

// CalcQ builds the instantaneous generator for stationary motif
// probabilities and a positional parameter vector. Entry (i, j) of
// the rate matrix is additionally weighted by the probability of the
// target motif. The returned scale is the expected substitution rate
// at stationarity; when the model is scaled the generator is divided
// by it, so that branch lengths measure expected substitutions per
// site.
func (m *Model) CalcQ(motifProbs []float64, params ...float64) (*mat64.Dense, float64) {
	n := m.alph.Len()
	if len(motifProbs) != n {
		panic(fmt.Sprintf("smodel: got %d motif probabilities, want %d", len(motifProbs), n))
	}
	q := m.CalcRateMatrix(params...)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				q.Set(i, j, q.At(i, j)*motifProbs[j])
			} else {
				q.Set(i, j, 0)
			}
		}
	}
	zeroRowSums(q, n)
	scale := 0.0
	for i := 0; i < n; i++ {
		scale -= motifProbs[i] * q.At(i, i)
	}
	if m.doScaling && scale > smallScale {
		q.Scale(1/scale, q)
	}
	return q, scale
}

func zeroRowSums(q *mat64.Dense, n int) {
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if j != i {
				sum += q.At(i, j)
			}
		}
		q.Set(i, i, -sum)
	}
}

// MatrixParams returns, for every motif pair, the sorted names of the
// rate parameters applying to it. Cells outside the instantaneous
// mask are nil.
func (m *Model) MatrixParams() [][][]string {
	n := m.alph.Len()
	cells := make([][][]string, n)
	for i := range cells {
		cells[i] = make([][]string, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || !m.inst.At(i, j) {
				continue
			}
			var names []string
			for _, name := range m.parameterOrder {
				if m.predicateMasks[name].At(i, j) {
					names = append(names, name)
				}
			}
			sort.Strings(names)
			if names == nil {
				names = []string{}
			}
			cells[i][j] = names
		}
	}
	return cells
}

// maskedRate sums pi_i * q_ij over the entries of a mask.
func maskedRate(q *mat64.Dense, motifProbs []float64, mask *predicate.Mask) float64 {
	n := mask.Size()
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if mask.At(i, j) {
				total += motifProbs[i] * q.At(i, j)
			}
		}
	}
	return total
}

// SubstitutionRateValueFromQ measures the average rate of the
// transitions selected by a rule, relative to the average rate over
// all allowed transitions.
func (m *Model) SubstitutionRateValueFromQ(q *mat64.Dense, motifProbs []float64, rule Rule) (float64, error) {
	mask, err := m.AdaptPredicate(rule)
	if err != nil {
		return 0, err
	}
	predRate := maskedRate(q, motifProbs, mask)
	instRate := maskedRate(q, motifProbs, m.inst)
	predSize := float64(mask.Count())
	instSize := float64(m.inst.Count())
	if predSize == 0 || instRate == 0 {
		return 0, fmt.Errorf("rule %q selects no rate", rule.Name)
	}
	return (predRate / predSize) / (instRate / instSize), nil
}

// ScaleFromQs averages the rate selected by a named scale rule over
// bins, weighting each bin's generator by its probability.
func (m *Model) ScaleFromQs(qs []*mat64.Dense, binProbs []float64, motifProbss [][]float64, name string) (float64, error) {
	mask, ok := m.scaleMasks[name]
	if !ok {
		return 0, fmt.Errorf("unknown scale rule %q", name)
	}
	if len(qs) != len(binProbs) || len(qs) != len(motifProbss) {
		return 0, fmt.Errorf("got %d generators, %d bin probabilities and %d motif-probability vectors", len(qs), len(binProbs), len(motifProbss))
	}
	weighted := 0.0
	for b, q := range qs {
		weighted += binProbs[b] * maskedRate(q, motifProbss[b], mask)
	}
	return weighted, nil
}

// ScaledLengthsFromQ rescales a branch length by every scale rule of
// the model, e.g. splitting a length into its synonymous and
// non-synonymous components.
func (m *Model) ScaledLengthsFromQ(q *mat64.Dense, motifProbs []float64, length float64) map[string]float64 {
	lengths := make(map[string]float64, len(m.scaleOrder))
	for _, name := range m.scaleOrder {
		lengths[name] = length * maskedRate(q, motifProbs, m.scaleMasks[name])
	}
	return lengths
}

// ScaleRules returns the scale rule names in declaration order.
func (m *Model) ScaleRules() []string {
	return append([]string(nil), m.scaleOrder...)
}
