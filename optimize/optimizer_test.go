package optimize

import (
	"math"
	"testing"
)

// quadratic is a concave test function with a known maximum.
type quadratic struct {
	x, y       float64
	parameters FloatParameters
}

func newQuadratic() *quadratic {
	q := &quadratic{x: 5, y: -3}
	for _, p := range []struct {
		addr *float64
		name string
	}{{&q.x, "x"}, {&q.y, "y"}} {
		par := NewBasicFloatParameter(p.addr, p.name)
		par.SetMin(-10)
		par.SetMax(10)
		q.parameters.Append(par)
	}
	return q
}

func (q *quadratic) GetFloatParameters() FloatParameters { return q.parameters }

func (q *quadratic) Likelihood() float64 {
	return -(q.x-1)*(q.x-1) - 2*(q.y-2)*(q.y-2)
}

func (q *quadratic) Copy() Optimizable {
	c := newQuadratic()
	c.x = q.x
	c.y = q.y
	return c
}

func TestDSQuadratic(tst *testing.T) {
	ds := NewDS()
	ds.Quiet(true)
	q := newQuadratic()
	ds.SetOptimizable(q)
	ds.Run(10000)
	if math.Abs(ds.GetMaxL()) > 1e-6 {
		tst.Errorf("maximum is %g, want 0", ds.GetMaxL())
	}
	par := ds.GetMaxLParameters()
	if math.Abs(par[0]-1) > 1e-3 || math.Abs(par[1]-2) > 1e-3 {
		tst.Errorf("argmax is %v, want [1 2]", par)
	}
}

func TestNewOptimizer(tst *testing.T) {
	for _, method := range []string{"simplex", "lbfgsb"} {
		if _, err := NewOptimizer(method); err != nil {
			tst.Errorf("method %q: %v", method, err)
		}
	}
	if _, err := NewOptimizer("nosuch"); err == nil {
		tst.Error("expected an error for an unknown method")
	}
}
