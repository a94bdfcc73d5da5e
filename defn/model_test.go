package defn

import (
	"math"
	"strings"
	"testing"

	"github.com/gonum/matrix/mat64"

	"github.com/phylogo/phyfit/smodel"
	"github.com/phylogo/phyfit/tree"
)

func testModelGraph(tst *testing.T, spec smodel.Spec, cfg Config) *ModelGraph {
	tst.Helper()
	m, err := smodel.NewNucleotide(spec)
	if err != nil {
		tst.Fatal(err)
	}
	t, err := tree.ParseNewick(strings.NewReader("((A:0.1,B:0.2):0.05,C:0.3);"))
	if err != nil {
		tst.Fatal(err)
	}
	mg, err := ForModel(m, t, nil, cfg)
	if err != nil {
		tst.Fatal(err)
	}
	return mg
}

func TestForModelNodes(tst *testing.T) {
	mg := testModelGraph(tst, smodel.Spec{
		EqualMotifProbs: true,
		Predicates:      []smodel.Rule{{Name: "kappa", Expr: "transition"}},
	}, Config{})
	for _, name := range []string{"model", "motif_probs", "length", "distance", "Qd", "bprobs", "psubs"} {
		if _, ok := mg.Node(name); !ok {
			tst.Errorf("missing standard node %q", name)
		}
	}
	// kappa plus four branch lengths
	if n := len(mg.FloatParameters()); n != 5 {
		tst.Errorf("graph has %d free parameters, want 5: %v", n, mg.FloatParameters().Names(nil))
	}
	if mg.FloatParameters().ByName("kappa") == nil {
		tst.Error("missing the kappa parameter")
	}
}

func TestForModelPSubs(tst *testing.T) {
	mg := testModelGraph(tst, smodel.Spec{
		EqualMotifProbs: true,
		Predicates:      []smodel.Rule{{Name: "kappa", Expr: "transition"}},
	}, Config{})
	for _, node := range mg.Tree().Nodes() {
		if node.IsRoot() {
			continue
		}
		v, err := mg.Eval(mg.PSubs, Scope{Edge: node.ID, Locus: 0, Bin: 0})
		if err != nil {
			tst.Fatal(err)
		}
		p, ok := v.(*mat64.Dense)
		if !ok {
			tst.Fatalf("psubs produced %T", v)
		}
		for i := 0; i < 4; i++ {
			sum := 0.0
			for j := 0; j < 4; j++ {
				sum += p.At(i, j)
			}
			if math.Abs(sum-1) > 1e-8 {
				tst.Errorf("edge %d: row %d sums to %g", node.ID, i, sum)
			}
		}
	}
}

func TestForModelBins(tst *testing.T) {
	mg := testModelGraph(tst, smodel.Spec{
		EqualMotifProbs: true,
		OrderedParam:    "rate",
		Distribution:    smodel.Gamma,
	}, Config{NBins: 4})
	if mg.NBins() != 4 {
		tst.Fatalf("got %d bins", mg.NBins())
	}
	bprobs, err := mg.EvalVector(mg.BProbs, Whole)
	if err != nil {
		tst.Fatal(err)
	}
	if len(bprobs) != 4 {
		tst.Fatalf("got %d bin probabilities", len(bprobs))
	}
	for _, p := range bprobs {
		if math.Abs(p-0.25) > eps {
			tst.Errorf("gamma bins must have equal probabilities, got %v", bprobs)
		}
	}
	// distances must differ between bins
	var edge int
	for _, node := range mg.Tree().Nodes() {
		if !node.IsRoot() {
			edge = node.ID
			break
		}
	}
	d0, err := mg.EvalFloat(mg.Distance, Scope{Edge: edge, Locus: 0, Bin: 0})
	if err != nil {
		tst.Fatal(err)
	}
	d3, err := mg.EvalFloat(mg.Distance, Scope{Edge: edge, Locus: 0, Bin: 3})
	if err != nil {
		tst.Fatal(err)
	}
	if d0 >= d3 {
		tst.Errorf("bin distances are not ordered: %g >= %g", d0, d3)
	}
}

func TestForModelPartitionedRate(tst *testing.T) {
	// rate partitioned across bins while kappa carries the ordering
	mg := testModelGraph(tst, smodel.Spec{
		EqualMotifProbs:   true,
		Predicates:        []smodel.Rule{{Name: "kappa", Expr: "transition"}},
		OrderedParam:      "kappa",
		PartitionedParams: []string{"rate"},
	}, Config{NBins: 2})
	if !mg.Model().WithRate() {
		tst.Fatal("a partitioned rate must enable the branch rate multiplier")
	}
	if _, ok := mg.Node("rate"); !ok {
		tst.Fatal("missing the rate node")
	}
	par := mg.FloatParameters()
	if par.ByName("rate00") == nil || par.ByName("rate01") == nil {
		tst.Fatalf("missing per-bin rate parameters: %v", par.Names(nil))
	}
	var edge int
	for _, node := range mg.Tree().Nodes() {
		if !node.IsRoot() {
			edge = node.ID
			break
		}
	}
	par.ByName("rate01").Set(2)
	d0, err := mg.EvalFloat(mg.Distance, Scope{Edge: edge, Locus: 0, Bin: 0})
	if err != nil {
		tst.Fatal(err)
	}
	d1, err := mg.EvalFloat(mg.Distance, Scope{Edge: edge, Locus: 0, Bin: 1})
	if err != nil {
		tst.Fatal(err)
	}
	if math.Abs(d1-2*d0) > eps {
		tst.Errorf("bin 1 distance is %g, want twice %g", d1, d0)
	}
}

func TestForModelBinMismatch(tst *testing.T) {
	m, err := smodel.NewNucleotide(smodel.Spec{EqualMotifProbs: true})
	if err != nil {
		tst.Fatal(err)
	}
	t, err := tree.ParseNewick(strings.NewReader("(A:0.1,B:0.2);"))
	if err != nil {
		tst.Fatal(err)
	}
	if _, err := ForModel(m, t, nil, Config{NBins: 4}); err == nil {
		tst.Error("expected an error for bins without partitioned parameters")
	}
}

func TestForModelMissingProbs(tst *testing.T) {
	m, err := smodel.NewNucleotide(smodel.Spec{})
	if err != nil {
		tst.Fatal(err)
	}
	t, err := tree.ParseNewick(strings.NewReader("(A:0.1,B:0.2);"))
	if err != nil {
		tst.Fatal(err)
	}
	if _, err := ForModel(m, t, nil, Config{}); err == nil {
		tst.Error("expected an error when data-estimated probabilities are missing")
	}
}
