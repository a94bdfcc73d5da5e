package smodel

import (
	"math"
	"testing"

	"github.com/gonum/matrix/mat64"
)

// jc builds the scaled Jukes-Cantor generator.
func jc(tst *testing.T) (*Model, *EMatrix) {
	tst.Helper()
	m := mustNucleotide(tst, Spec{EqualMotifProbs: true})
	em := m.NewQ(m.MotifProbVector())
	if err := em.Eigen(); err != nil {
		tst.Fatal(err)
	}
	return m, em
}

func TestExpZero(tst *testing.T) {
	_, em := jc(tst)
	cD := mat64.NewDense(4, 4, nil)
	p, err := em.Exp(cD, 0)
	if err != nil {
		tst.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(p.At(i, j)-want) > smallDiff {
				tst.Errorf("P(0)[%d,%d] = %g, want %g", i, j, p.At(i, j), want)
			}
		}
	}
}

func TestExpAnalytic(tst *testing.T) {
	// Jukes-Cantor has the closed form
	// p_ii(t) = 1/4 + 3/4 exp(-4t/3)
	_, em := jc(tst)
	cD := mat64.NewDense(4, 4, nil)
	for _, t := range []float64{0.01, 0.1, 0.5, 1, 5} {
		p, err := em.Exp(cD, t)
		if err != nil {
			tst.Fatal(err)
		}
		same := 0.25 + 0.75*math.Exp(-4*t/3)
		diff := 0.25 - 0.25*math.Exp(-4*t/3)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				want := diff
				if i == j {
					want = same
				}
				if math.Abs(p.At(i, j)-want) > 1e-8 {
					tst.Errorf("P(%g)[%d,%d] = %g, want %g", t, i, j, p.At(i, j), want)
				}
			}
		}
	}
}

func TestExpRowsSumToOne(tst *testing.T) {
	m := mustNucleotide(tst, Spec{
		MotifProbs: map[string]float64{"t": 0.1, "c": 0.2, "a": 0.3, "g": 0.4},
		Predicates: []Rule{{Name: "kappa", Expr: "transition"}},
	})
	em := m.NewQ(m.MotifProbVector(), 2)
	if err := em.Eigen(); err != nil {
		tst.Fatal(err)
	}
	cD := mat64.NewDense(4, 4, nil)
	for _, t := range []float64{0.1, 1, 10} {
		p, err := em.Exp(cD, t)
		if err != nil {
			tst.Fatal(err)
		}
		for i := 0; i < 4; i++ {
			sum := 0.0
			for j := 0; j < 4; j++ {
				sum += p.At(i, j)
			}
			if math.Abs(sum-1) > 1e-8 {
				tst.Errorf("row %d of P(%g) sums to %g", i, t, sum)
			}
		}
	}
}

func TestExpStationaryLimit(tst *testing.T) {
	m := mustNucleotide(tst, Spec{
		MotifProbs: map[string]float64{"t": 0.1, "c": 0.2, "a": 0.3, "g": 0.4},
	})
	probs := m.MotifProbVector()
	em := m.NewQ(probs)
	if err := em.Eigen(); err != nil {
		tst.Fatal(err)
	}
	cD := mat64.NewDense(4, 4, nil)
	p, err := em.Exp(cD, 1000)
	if err != nil {
		tst.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(p.At(i, j)-probs[j]) > 1e-6 {
				tst.Errorf("P(inf)[%d,%d] = %g, want %g", i, j, p.At(i, j), probs[j])
			}
		}
	}
}
