package smodel

import (
	"errors"
	"math"

	"github.com/gonum/matrix/mat64"
)

// imagTol bounds the imaginary part tolerated in the eigenvalues of a
// non-reversible generator before falling back to Pade scaling and
// squaring.
const imagTol = 1e-9

// EMatrix pairs a generator with its cached eigendecomposition so a
// single factorization serves every branch length.
type EMatrix struct {
	// Q is the generator, already divided by Scale when the model
	// is scaled.
	Q *mat64.Dense
	// Scale is the expected substitution rate at stationarity.
	Scale float64

	motifProbs []float64
	symmetric  bool

	v, iv *mat64.Dense
	d     []float64
	pade  bool
}

// NewEMatrix wraps a generator. Reversible models pass their motif
// probabilities so the decomposition can run on the symmetrized
// matrix, which has guaranteed real eigenvalues.
func NewEMatrix(q *mat64.Dense, scale float64, motifProbs []float64, symmetric bool) *EMatrix {
	return &EMatrix{Q: q, Scale: scale, motifProbs: motifProbs, symmetric: symmetric}
}

// Set replaces the generator, invalidating the cached factorization.
func (e *EMatrix) Set(q *mat64.Dense, scale float64) {
	e.Q = q
	e.Scale = scale
	e.v = nil
	e.iv = nil
	e.d = nil
	e.pade = false
}

// Eigen factorizes the generator. Reversible generators are
// symmetrized as B = diag(sqrt(pi)) Q diag(1/sqrt(pi)) first; for the
// general case eigenvalues with a significant imaginary part switch
// the matrix to the Pade exponentiator instead of failing.
func (e *EMatrix) Eigen() error {
	if e.v != nil || e.pade {
		return nil
	}
	if e.Q == nil {
		return errors.New("no generator set")
	}
	n, _ := e.Q.Dims()

	target := e.Q
	var sqp []float64
	if e.symmetric && e.motifProbs != nil {
		sqp = make([]float64, n)
		ok := true
		for i, p := range e.motifProbs {
			if p <= 0 {
				ok = false
				break
			}
			sqp[i] = math.Sqrt(p)
		}
		if ok {
			b := mat64.NewDense(n, n, nil)
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					b.Set(i, j, sqp[i]/sqp[j]*e.Q.At(i, j))
				}
			}
			target = b
		} else {
			sqp = nil
		}
	}

	var eig mat64.Eigen
	if ok := eig.Factorize(target, false, true); !ok {
		e.pade = true
		return nil
	}
	values := eig.Values(nil)
	d := make([]float64, n)
	for i, ev := range values {
		if math.Abs(imag(ev)) > imagTol {
			if sqp != nil {
				return errors.New("complex eigenvalues from a symmetrized generator")
			}
			e.pade = true
			return nil
		}
		d[i] = real(ev)
	}

	v := eig.Vectors()
	if sqp != nil {
		// undo the similarity transform
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v.Set(i, j, v.At(i, j)/sqp[i])
			}
		}
	}
	iv := mat64.NewDense(n, n, nil)
	if err := iv.Inverse(v); err != nil {
		e.pade = true
		return nil
	}
	e.v = v
	e.iv = iv
	e.d = d
	return nil
}

// Exp computes the transition probability matrix for branch length t.
// cD is an n x n workspace reused between calls. An infinite t yields
// the stationary limit through a very large finite length.
func (e *EMatrix) Exp(cD *mat64.Dense, t float64) (*mat64.Dense, error) {
	if e.v == nil && !e.pade {
		return nil, errors.New("matrix is not factorized")
	}
	n, _ := e.Q.Dims()
	if math.IsInf(t, 1) {
		t = math.MaxFloat64
	}

	if e.pade {
		var scaled mat64.Dense
		scaled.Scale(t, e.Q)
		res := mat64.NewDense(n, n, nil)
		res.Exp(&scaled)
		clampProbs(res, n)
		return res, nil
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				cD.Set(i, j, math.Exp(e.d[i]*t))
			} else {
				cD.Set(i, j, 0)
			}
		}
	}
	res := mat64.NewDense(n, n, nil)
	res.Mul(e.v, cD)
	res.Mul(res, e.iv)
	clampProbs(res, n)
	return res, nil
}

// clampProbs removes the tiny negative entries produced by round-off.
func clampProbs(p *mat64.Dense, n int) {
	p.Apply(func(r, c int, v float64) float64 {
		return math.Max(0, v)
	}, p)
}

// NewQ builds a factorization-ready generator from the model for the
// given motif probabilities and rate parameters.
func (m *Model) NewQ(motifProbs []float64, params ...float64) *EMatrix {
	q, scale := m.CalcQ(motifProbs, params...)
	return NewEMatrix(q, scale, motifProbs, m.symmetric)
}
