package defn

import (
	"errors"
	"fmt"

	"github.com/phylogo/phyfit/dist"
	"github.com/phylogo/phyfit/optimize"
)

// ConstNode holds a fixed value.
type ConstNode struct {
	base
	val Value
}

// NewConst creates a constant node.
func NewConst(name string, v Value) *ConstNode {
	return &ConstNode{base: base{name: name}, val: v}
}

func (n *ConstNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	return n.val, nil
}

// ParamNode exposes one free scalar.
type ParamNode struct {
	base
	val float64
	par optimize.FloatParameter
}

// NewParam creates a free scalar with bounds, registered with the
// graph's parameter list.
func NewParam(g *Graph, name string, val, min, max float64, gen optimize.NewFloatParameter) *ParamNode {
	n := &ParamNode{base: base{name: name}, val: val}
	n.par = g.addParameter(&n.base, &n.val, name, gen)
	n.par.SetMin(min)
	n.par.SetMax(max)
	return n
}

// Parameter returns the underlying free parameter.
func (n *ParamNode) Parameter() optimize.FloatParameter { return n.par }

func (n *ParamNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	return n.val, nil
}

// PartitionNode is a probability vector summing to one. The first
// weight is pinned to 1 and the remaining weights are free, which
// keeps the normalized vector identifiable.
type PartitionNode struct {
	base
	weights []float64
	labels  []string
}

// NewPartition creates a probability vector of the given initial
// values with one free weight per entry past the first. Labels name
// the free parameters.
func NewPartition(g *Graph, name string, init []float64, labels []string, d dims, gen optimize.NewFloatParameter) (*PartitionNode, error) {
	if len(init) < 2 {
		return nil, errors.New("a partition needs at least two entries")
	}
	if init[0] <= 0 {
		return nil, errors.New("partition entries must be positive")
	}
	n := &PartitionNode{
		base:    base{name: name, d: d},
		weights: make([]float64, len(init)),
		labels:  labels,
	}
	n.weights[0] = 1
	for i := 1; i < len(init); i++ {
		if init[i] <= 0 {
			return nil, errors.New("partition entries must be positive")
		}
		n.weights[i] = init[i] / init[0]
		label := fmt.Sprintf("%s%02d", name, i)
		if labels != nil {
			label = labels[i]
		}
		p := g.addParameter(&n.base, &n.weights[i], label, gen)
		p.SetMin(1e-6)
		p.SetMax(1e6)
	}
	return n, nil
}

func (n *PartitionNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	total := 0.0
	for _, w := range n.weights {
		total += w
	}
	probs := make([]float64, len(n.weights))
	for i, w := range n.weights {
		probs[i] = w / total
	}
	return probs, nil
}

// MonotonicNode produces an increasing vector of bin values with a
// probability-weighted mean of one. The free parameters are
// non-negative increments; the first bin starts from the first
// increment.
type MonotonicNode struct {
	base
	incr []float64
}

// NewMonotonic creates an ordered bin-value vector. probs supplies
// the bin probabilities used for normalization.
func NewMonotonic(g *Graph, name string, k int, probs Node, gen optimize.NewFloatParameter) (*MonotonicNode, error) {
	if k < 2 {
		return nil, errors.New("an ordered parameter needs at least two bins")
	}
	n := &MonotonicNode{
		base: base{name: name, inputs: []Node{probs}},
		incr: make([]float64, k),
	}
	for i := range n.incr {
		n.incr[i] = 1
		p := g.addParameter(&n.base, &n.incr[i], fmt.Sprintf("%s%02d", name, i), gen)
		p.SetMin(0)
		p.SetMax(100)
	}
	return n, nil
}

func (n *MonotonicNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	probs, ok := in[0].([]float64)
	if !ok || len(probs) != len(n.incr) {
		return nil, errors.New("bin probabilities do not match the bin count")
	}
	vals := make([]float64, len(n.incr))
	sum := 0.0
	for i, d := range n.incr {
		sum += d
		vals[i] = sum
	}
	mean := 0.0
	for i, v := range vals {
		mean += probs[i] * v
	}
	if mean <= 0 {
		return nil, errors.New("ordered values sum to zero")
	}
	for i := range vals {
		vals[i] /= mean
	}
	return vals, nil
}

// GammaRatesNode produces bin values from a discretized gamma
// distribution with a single free shape parameter. The mean is one by
// construction.
type GammaRatesNode struct {
	base
	alpha     float64
	k         int
	useMedian bool
	tmp, res  []float64
}

// NewGammaRates creates a gamma-distributed bin-value vector.
func NewGammaRates(g *Graph, name string, k int, useMedian bool, gen optimize.NewFloatParameter) *GammaRatesNode {
	n := &GammaRatesNode{
		base:      base{name: name},
		alpha:     1,
		k:         k,
		useMedian: useMedian,
		tmp:       make([]float64, k),
		res:       make([]float64, k),
	}
	p := g.addParameter(&n.base, &n.alpha, name+"_alpha", gen)
	p.SetMin(1e-2)
	p.SetMax(100)
	return n
}

func (n *GammaRatesNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	rates := dist.DiscreteGamma(n.alpha, n.alpha, n.k, n.useMedian, n.tmp, n.res)
	return append([]float64(nil), rates...), nil
}

// SelectNode picks the bin's entry out of a vector node.
type SelectNode struct {
	base
}

// NewSelect creates a bin-scoped scalar view of a vector node.
func NewSelect(name string, vec Node) *SelectNode {
	return &SelectNode{base: base{name: name, inputs: []Node{vec}, d: vec.dims() | dimBin}}
}

func (n *SelectNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	vec, ok := in[0].([]float64)
	if !ok {
		return nil, fmt.Errorf("input produced %T, want []float64", in[0])
	}
	if s.Bin < 0 || s.Bin >= len(vec) {
		return nil, fmt.Errorf("bin %d out of range for %d values", s.Bin, len(vec))
	}
	return vec[s.Bin], nil
}

// ProductNode multiplies scalar inputs.
type ProductNode struct {
	base
}

// NewProduct creates a node multiplying its scalar inputs. Its scope
// dimensions are the union of the inputs'.
func NewProduct(name string, inputs ...Node) *ProductNode {
	var d dims
	for _, in := range inputs {
		d |= in.dims()
	}
	return &ProductNode{base: base{name: name, inputs: inputs, d: d}}
}

func (n *ProductNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	prod := 1.0
	for i, v := range in {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("input %q produced %T, want float64", n.inputs[i].Name(), v)
		}
		prod *= f
	}
	return prod, nil
}

// CallNode computes an arbitrary function of its inputs.
type CallNode struct {
	base
	f func(s Scope, in []Value) (Value, error)
}

// NewCall creates a node evaluating f over the input values.
func NewCall(name string, d dims, f func(s Scope, in []Value) (Value, error), inputs ...Node) *CallNode {
	for _, in := range inputs {
		d |= in.dims()
	}
	return &CallNode{base: base{name: name, inputs: inputs, d: d}, f: f}
}

func (n *CallNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	return n.f(s, in)
}
