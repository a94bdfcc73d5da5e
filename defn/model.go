package defn

import (
	"errors"
	"fmt"

	"github.com/gonum/matrix/mat64"

	"github.com/phylogo/phyfit/optimize"
	"github.com/phylogo/phyfit/smodel"
	"github.com/phylogo/phyfit/tree"
)

// Config adjusts graph assembly.
type Config struct {
	// NBins is the number of rate bins; zero or one means no
	// binning.
	NBins int
	// UseMedianGamma selects median instead of mean bin rates for
	// the gamma distribution.
	UseMedianGamma bool
	// Generator creates the free parameters; nil uses
	// BasicFloatParameterGenerator.
	Generator optimize.NewFloatParameter
}

// lengthsNode exposes one free branch length per tree edge.
type lengthsNode struct {
	base
	vals []float64
}

func (n *lengthsNode) eval(g *Graph, s Scope, in []Value) (Value, error) {
	if s.Edge < 0 || s.Edge >= len(n.vals) {
		return nil, fmt.Errorf("edge %d out of range", s.Edge)
	}
	return n.vals[s.Edge], nil
}

// ModelGraph wires a substitution model and a tree into the standard
// named nodes: motif_probs, length, distance, Qd, bprobs and psubs.
type ModelGraph struct {
	*Graph
	model *smodel.Model
	tree  *tree.Tree
	nbins int

	MotifProbs Node
	Length     Node
	Distance   Node
	Qd         Node
	BProbs     Node
	PSubs      Node

	expWork *mat64.Dense
}

// NBins returns the number of rate bins.
func (mg *ModelGraph) NBins() int { return mg.nbins }

// Model returns the substitution model.
func (mg *ModelGraph) Model() *smodel.Model { return mg.model }

// Tree returns the tree.
func (mg *ModelGraph) Tree() *tree.Tree { return mg.tree }

// ForModel assembles the binding graph. motifProbs supplies
// probabilities estimated from the data and may be nil when the model
// carries its own; with OptimizeMotifProbs they only seed the free
// parameters.
func ForModel(m *smodel.Model, t *tree.Tree, motifProbs []float64, cfg Config) (*ModelGraph, error) {
	gen := cfg.Generator
	if gen == nil {
		gen = optimize.BasicFloatParameterGenerator
	}
	nbins := cfg.NBins
	if nbins < 1 {
		nbins = 1
	}
	if nbins > 1 && len(m.PartitionedParams()) == 0 {
		return nil, errors.New("multiple bins but no partitioned parameters")
	}
	if nbins == 1 && len(m.PartitionedParams()) > 0 {
		return nil, errors.New("partitioned parameters but a single bin")
	}

	mg := &ModelGraph{
		Graph: NewGraph(),
		model: m,
		tree:  t,
		nbins: nbins,
	}
	mg.mustAdd(NewConst("model", m))

	if err := mg.buildMotifProbs(motifProbs, gen); err != nil {
		return nil, err
	}
	if err := mg.buildBProbs(gen); err != nil {
		return nil, err
	}
	rates, err := mg.buildRateParams(cfg.UseMedianGamma, gen)
	if err != nil {
		return nil, err
	}
	mg.buildLengths(gen)
	if err := mg.buildQ(rates); err != nil {
		return nil, err
	}
	mg.buildPSubs()
	return mg, nil
}

func (mg *ModelGraph) buildMotifProbs(observed []float64, gen optimize.NewFloatParameter) error {
	m := mg.model
	init := m.MotifProbVector()
	if init == nil {
		if observed == nil {
			return errors.New("the model estimates motif probabilities from data but none were supplied")
		}
		init = observed
	}
	if len(init) != m.Alphabet().Len() {
		return fmt.Errorf("got %d motif probabilities, want %d", len(init), m.Alphabet().Len())
	}
	if m.OptimizeMotifProbs() {
		labels := make([]string, len(init))
		for i := range labels {
			labels[i] = "mprob_" + m.Alphabet().Motif(i)
		}
		// zero observed counts are nudged so the weights stay
		// positive
		seed := make([]float64, len(init))
		for i, p := range init {
			seed[i] = p
			if seed[i] <= 0 {
				seed[i] = 1e-6
			}
		}
		node, err := NewPartition(mg.Graph, "motif_probs", seed, labels, 0, gen)
		if err != nil {
			return err
		}
		mg.mustAdd(node)
		mg.MotifProbs = node
		return nil
	}
	mg.MotifProbs = NewConst("motif_probs", append([]float64(nil), init...))
	mg.mustAdd(mg.MotifProbs)
	return nil
}

func (mg *ModelGraph) buildBProbs(gen optimize.NewFloatParameter) error {
	if mg.nbins == 1 {
		mg.BProbs = NewConst("bprobs", []float64{1})
		mg.mustAdd(mg.BProbs)
		return nil
	}
	init := make([]float64, mg.nbins)
	for i := range init {
		init[i] = 1 / float64(mg.nbins)
	}
	if mg.model.Distribution() == smodel.Gamma {
		// gamma bins have fixed equal probabilities
		mg.BProbs = NewConst("bprobs", init)
		mg.mustAdd(mg.BProbs)
		return nil
	}
	node, err := NewPartition(mg.Graph, "bprobs", init, nil, 0, gen)
	if err != nil {
		return err
	}
	mg.mustAdd(node)
	mg.BProbs = node
	return nil
}

// buildRateParams creates one scalar node per model rate parameter,
// bin-scoped for partitioned parameters, plus the branch rate
// multiplier when the model carries one.
func (mg *ModelGraph) buildRateParams(useMedian bool, gen optimize.NewFloatParameter) (map[string]Node, error) {
	m := mg.model
	nodes := make(map[string]Node)
	ordered := m.OrderedParam()
	partitioned := m.PartitionedParams()

	binned := func(name string) (Node, error) {
		if containsName(ordered, name) {
			var vec Node
			switch m.Distribution() {
			case smodel.Gamma:
				vec = NewGammaRates(mg.Graph, name+"_bins", mg.nbins, useMedian, gen)
			default:
				mono, err := NewMonotonic(mg.Graph, name+"_bins", mg.nbins, mg.BProbs, gen)
				if err != nil {
					return nil, err
				}
				vec = mono
			}
			mg.mustAdd(vec)
			sel := NewSelect(name, vec)
			mg.mustAdd(sel)
			return sel, nil
		}
		// free per-bin values
		vals := make([]*ParamNode, mg.nbins)
		inputs := make([]Node, mg.nbins)
		for b := range vals {
			vals[b] = NewParam(mg.Graph, fmt.Sprintf("%s%02d", name, b), 1, 1e-9, 100, gen)
			mg.mustAdd(vals[b])
			inputs[b] = vals[b]
		}
		sel := NewCall(name, dimBin, func(s Scope, in []Value) (Value, error) {
			return in[s.Bin], nil
		}, inputs...)
		mg.mustAdd(sel)
		return sel, nil
	}

	for _, name := range m.ParamList() {
		if containsName(partitioned, name) {
			n, err := binned(name)
			if err != nil {
				return nil, err
			}
			nodes[name] = n
			continue
		}
		p := NewParam(mg.Graph, name, 1, 1e-9, 100, gen)
		mg.mustAdd(p)
		nodes[name] = p
	}
	if m.WithRate() {
		n, err := binned("rate")
		if err != nil {
			return nil, err
		}
		nodes["rate"] = n
	}
	return nodes, nil
}

func (mg *ModelGraph) buildLengths(gen optimize.NewFloatParameter) {
	t := mg.tree
	ln := &lengthsNode{
		base: base{name: "length", d: dimEdge},
		vals: make([]float64, t.MaxNodeID()+1),
	}
	for _, node := range t.Nodes() {
		if node.IsRoot() {
			continue
		}
		ln.vals[node.ID] = node.BranchLength
		p := mg.addParameter(&ln.base, &ln.vals[node.ID], fmt.Sprintf("br%d", node.ID), gen)
		p.SetMin(0)
		p.SetMax(100)
	}
	mg.mustAdd(ln)
	mg.Length = ln

	if rate, ok := mg.Node("rate"); ok {
		mg.Distance = NewProduct("distance", ln, rate)
	} else {
		mg.Distance = NewProduct("distance", ln)
	}
	mg.mustAdd(mg.Distance)
}

func (mg *ModelGraph) buildQ(rates map[string]Node) error {
	m := mg.model
	order := m.ParamList()
	inputs := make([]Node, 0, len(order)+1)
	inputs = append(inputs, mg.MotifProbs)
	for _, name := range order {
		inputs = append(inputs, rates[name])
	}
	qd := NewCall("Qd", dimBin, func(s Scope, in []Value) (Value, error) {
		probs, ok := in[0].([]float64)
		if !ok {
			return nil, fmt.Errorf("motif probabilities are %T", in[0])
		}
		params := make([]float64, len(in)-1)
		for i, v := range in[1:] {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("rate parameter %q is %T", order[i], v)
			}
			params[i] = f
		}
		em := m.NewQ(probs, params...)
		if err := em.Eigen(); err != nil {
			return nil, err
		}
		return em, nil
	}, inputs...)
	mg.mustAdd(qd)
	mg.Qd = qd
	return nil
}

func (mg *ModelGraph) buildPSubs() {
	n := mg.model.Alphabet().Len()
	mg.expWork = mat64.NewDense(n, n, nil)
	ps := NewCall("psubs", dimEdge|dimBin, func(s Scope, in []Value) (Value, error) {
		em, ok := in[0].(*smodel.EMatrix)
		if !ok {
			return nil, fmt.Errorf("generator is %T", in[0])
		}
		t, ok := in[1].(float64)
		if !ok {
			return nil, fmt.Errorf("distance is %T", in[1])
		}
		return em.Exp(mg.expWork, t)
	}, mg.Qd, mg.Distance)
	mg.mustAdd(ps)
	mg.PSubs = ps
}

func containsName(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
