package defn

import (
	"math"
	"testing"

	"github.com/phylogo/phyfit/optimize"
)

const eps = 1e-9

func TestConstAndProduct(tst *testing.T) {
	g := NewGraph()
	a := NewConst("a", 3.0)
	b := NewConst("b", 4.0)
	g.mustAdd(a)
	g.mustAdd(b)
	p := NewProduct("p", a, b)
	g.mustAdd(p)
	v, err := g.EvalFloat(p, Whole)
	if err != nil {
		tst.Fatal(err)
	}
	if v != 12 {
		tst.Errorf("product is %g, want 12", v)
	}
}

func TestUnregisteredInput(tst *testing.T) {
	g := NewGraph()
	a := NewConst("a", 1.0)
	p := NewProduct("p", a)
	if err := g.Add(p); err == nil {
		tst.Error("expected an error for an unregistered input")
	}
	g.mustAdd(a)
	if err := g.Add(a); err == nil {
		tst.Error("expected an error for a duplicate name")
	}
}

func TestCacheInvalidation(tst *testing.T) {
	g := NewGraph()
	x := NewParam(g, "x", 2, 0, 10, optimize.BasicFloatParameterGenerator)
	g.mustAdd(x)
	evals := 0
	c := NewCall("c", 0, func(s Scope, in []Value) (Value, error) {
		evals++
		return in[0].(float64) * 10, nil
	}, x)
	g.mustAdd(c)

	if v, _ := g.EvalFloat(c, Whole); v != 20 {
		tst.Errorf("got %g, want 20", v)
	}
	if _, err := g.EvalFloat(c, Whole); err != nil {
		tst.Fatal(err)
	}
	if evals != 1 {
		tst.Errorf("call evaluated %d times for an unchanged input", evals)
	}
	x.Parameter().Set(3)
	if v, _ := g.EvalFloat(c, Whole); v != 30 {
		tst.Errorf("got %g, want 30 after the change", v)
	}
	if evals != 2 {
		tst.Errorf("call evaluated %d times, want 2", evals)
	}
}

func TestScopeProjection(tst *testing.T) {
	g := NewGraph()
	evals := 0
	c := NewCall("c", dimBin, func(s Scope, in []Value) (Value, error) {
		evals++
		return float64(s.Bin), nil
	})
	g.mustAdd(c)
	// the edge coordinate must not split the cache
	for edge := 0; edge < 3; edge++ {
		v, err := g.EvalFloat(c, Scope{Edge: edge, Locus: 0, Bin: 1})
		if err != nil {
			tst.Fatal(err)
		}
		if v != 1 {
			tst.Errorf("got %g, want 1", v)
		}
	}
	if evals != 1 {
		tst.Errorf("bin-scoped node evaluated %d times across edges, want 1", evals)
	}
}

func TestPartition(tst *testing.T) {
	g := NewGraph()
	p, err := NewPartition(g, "probs", []float64{0.1, 0.2, 0.3, 0.4}, nil, 0, optimize.BasicFloatParameterGenerator)
	if err != nil {
		tst.Fatal(err)
	}
	g.mustAdd(p)
	v, err := g.EvalVector(p, Whole)
	if err != nil {
		tst.Fatal(err)
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if math.Abs(sum-1) > eps {
		tst.Errorf("partition sums to %g", sum)
	}
	if math.Abs(v[3]/v[0]-4) > eps {
		tst.Errorf("partition lost the initial proportions: %v", v)
	}
	if len(g.FloatParameters()) != 3 {
		tst.Errorf("partition of 4 has %d free parameters, want 3", len(g.FloatParameters()))
	}
}

func TestMonotonic(tst *testing.T) {
	g := NewGraph()
	probs := NewConst("bprobs", []float64{0.5, 0.3, 0.2})
	g.mustAdd(probs)
	m, err := NewMonotonic(g, "rate_bins", 3, probs, optimize.BasicFloatParameterGenerator)
	if err != nil {
		tst.Fatal(err)
	}
	g.mustAdd(m)
	v, err := g.EvalVector(m, Whole)
	if err != nil {
		tst.Fatal(err)
	}
	for i := 1; i < len(v); i++ {
		if v[i] < v[i-1] {
			tst.Errorf("values are not ordered: %v", v)
		}
	}
	mean := 0.5*v[0] + 0.3*v[1] + 0.2*v[2]
	if math.Abs(mean-1) > eps {
		tst.Errorf("weighted mean is %g, want 1", mean)
	}
}

func TestGammaRates(tst *testing.T) {
	g := NewGraph()
	n := NewGammaRates(g, "rate_bins", 4, false, optimize.BasicFloatParameterGenerator)
	g.mustAdd(n)
	v, err := g.EvalVector(n, Whole)
	if err != nil {
		tst.Fatal(err)
	}
	if len(v) != 4 {
		tst.Fatalf("got %d bins, want 4", len(v))
	}
	mean := 0.0
	for _, x := range v {
		mean += x / 4
	}
	if math.Abs(mean-1) > 1e-6 {
		tst.Errorf("gamma rates mean is %g, want 1", mean)
	}
	// the shape parameter must drive the values
	g.FloatParameters().ByName("rate_bins_alpha").Set(10)
	v2, err := g.EvalVector(n, Whole)
	if err != nil {
		tst.Fatal(err)
	}
	if v2[0] == v[0] {
		tst.Error("changing alpha did not change the rates")
	}
}

func TestSelect(tst *testing.T) {
	g := NewGraph()
	vec := NewConst("vec", []float64{10, 20, 30})
	g.mustAdd(vec)
	sel := NewSelect("v", vec)
	g.mustAdd(sel)
	for bin := 0; bin < 3; bin++ {
		v, err := g.EvalFloat(sel, Scope{Edge: -1, Locus: -1, Bin: bin})
		if err != nil {
			tst.Fatal(err)
		}
		if v != float64(10*(bin+1)) {
			tst.Errorf("bin %d selected %g", bin, v)
		}
	}
}
