// Package defn implements the parameter binding graph: named
// computation nodes scoped over tree edges and rate bins, with a
// versioned cache so that changing one free parameter only recomputes
// the cells depending on it.
package defn

import (
	"fmt"

	"github.com/op/go-logging"

	"github.com/phylogo/phyfit/optimize"
)

var log = logging.MustGetLogger("defn")

// Scope addresses one cell of a node: a tree edge, an alignment locus
// and a rate bin. A value of -1 marks a dimension the node does not
// vary over.
type Scope struct {
	Edge  int
	Locus int
	Bin   int
}

// Whole is the scope of a node constant over all dimensions.
var Whole = Scope{Edge: -1, Locus: -1, Bin: -1}

// dims is the set of dimensions a node varies over.
type dims uint8

const (
	dimEdge dims = 1 << iota
	dimLocus
	dimBin
)

// project zeroes out the dimensions a node does not depend on, so
// cache cells are shared across irrelevant scope coordinates.
func (d dims) project(s Scope) Scope {
	p := Whole
	if d&dimEdge != 0 {
		p.Edge = s.Edge
	}
	if d&dimLocus != 0 {
		p.Locus = s.Locus
	}
	if d&dimBin != 0 {
		p.Bin = s.Bin
	}
	return p
}

// Value is a computed node value: a float64, a []float64 or a
// model-level object such as a factorized generator.
type Value interface{}

// Node is one named computation in the graph.
type Node interface {
	Name() string
	Inputs() []Node
	// dims reports the scope dimensions the node varies over.
	dims() dims
	// version is bumped when the node's own state changes.
	version() uint64
	// eval computes the cell value. Input values arrive in
	// declaration order, already evaluated for the same scope.
	eval(g *Graph, s Scope, in []Value) (Value, error)
}

// base carries the bookkeeping shared by all node kinds.
type base struct {
	name   string
	inputs []Node
	d      dims
	ver    uint64
}

func (b *base) Name() string    { return b.name }
func (b *base) Inputs() []Node  { return b.inputs }
func (b *base) dims() dims      { return b.d }
func (b *base) version() uint64 { return b.ver }

type cacheKey struct {
	node  Node
	scope Scope
}

type cacheEntry struct {
	val Value
	ver uint64
}

// Graph owns the nodes and the versioned cache.
type Graph struct {
	version uint64
	nodes   map[string]Node
	order   []Node
	cache   map[cacheKey]cacheEntry
	params  optimize.FloatParameters
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		version: 1,
		nodes:   make(map[string]Node),
		cache:   make(map[cacheKey]cacheEntry),
	}
}

// Add registers a node under its name. Node names are unique and all
// inputs must be registered first, which makes cycles impossible by
// construction.
func (g *Graph) Add(n Node) error {
	if _, dup := g.nodes[n.Name()]; dup {
		return fmt.Errorf("duplicate node %q", n.Name())
	}
	for _, in := range n.Inputs() {
		if registered, ok := g.nodes[in.Name()]; !ok || registered != in {
			return fmt.Errorf("node %q depends on unregistered node %q", n.Name(), in.Name())
		}
	}
	g.nodes[n.Name()] = n
	g.order = append(g.order, n)
	return nil
}

// mustAdd is Add for assembly code with statically correct wiring.
func (g *Graph) mustAdd(n Node) {
	if err := g.Add(n); err != nil {
		panic(err)
	}
}

// Node looks a node up by name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// tick advances the graph version; called whenever a free parameter
// changes.
func (g *Graph) tick() uint64 {
	g.version++
	return g.version
}

// stamp is the newest version among a node and its transitive inputs.
// Acyclicity is guaranteed by Add.
func (g *Graph) stamp(n Node) uint64 {
	st := n.version()
	for _, in := range n.Inputs() {
		if s := g.stamp(in); s > st {
			st = s
		}
	}
	return st
}

// Eval returns the node's value for a scope cell, recomputing only
// when some transitive input changed since the cached computation.
func (g *Graph) Eval(n Node, s Scope) (Value, error) {
	s = n.dims().project(s)
	st := g.stamp(n)
	key := cacheKey{n, s}
	if e, ok := g.cache[key]; ok && e.ver >= st {
		return e.val, nil
	}
	in := make([]Value, len(n.Inputs()))
	for i, input := range n.Inputs() {
		v, err := g.Eval(input, s)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	v, err := n.eval(g, s, in)
	if err != nil {
		return nil, fmt.Errorf("node %q: %v", n.Name(), err)
	}
	g.cache[key] = cacheEntry{v, st}
	return v, nil
}

// EvalFloat evaluates a node expected to produce a scalar.
func (g *Graph) EvalFloat(n Node, s Scope) (float64, error) {
	v, err := g.Eval(n, s)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("node %q produced %T, want float64", n.Name(), v)
	}
	return f, nil
}

// EvalVector evaluates a node expected to produce a float vector.
func (g *Graph) EvalVector(n Node, s Scope) ([]float64, error) {
	v, err := g.Eval(n, s)
	if err != nil {
		return nil, err
	}
	f, ok := v.([]float64)
	if !ok {
		return nil, fmt.Errorf("node %q produced %T, want []float64", n.Name(), v)
	}
	return f, nil
}

// FloatParameters returns the free parameters of every registered
// node, in registration order.
func (g *Graph) FloatParameters() optimize.FloatParameters {
	return g.params
}

// addParameter exposes one free scalar. onChange invalidates the
// owning node by bumping its version.
func (g *Graph) addParameter(b *base, addr *float64, name string, gen optimize.NewFloatParameter) optimize.FloatParameter {
	p := gen(addr, name)
	p.SetOnChange(func() {
		b.ver = g.tick()
	})
	g.params.Append(p)
	return p
}
