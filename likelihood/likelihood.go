// Package likelihood computes phylogenetic log-likelihoods by
// Felsenstein pruning over a substitution model, a tree and an
// alignment, mixing over rate bins where the model has them.
package likelihood

import (
	"fmt"
	"math"
	"runtime"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"github.com/phylogo/phyfit/bio"
	"github.com/phylogo/phyfit/defn"
	"github.com/phylogo/phyfit/optimize"
	"github.com/phylogo/phyfit/smodel"
	"github.com/phylogo/phyfit/tree"
)

var log = logging.MustGetLogger("likelihood")

// smallProp is the bin probability below which a bin is skipped.
const smallProp = 1e-20

// noMotif marks an ambiguous alignment cell matching every state.
const noMotif = -1

// Function evaluates the log-likelihood of an alignment on a tree
// under a substitution model. It implements optimize.Optimizable.
type Function struct {
	graph *defn.ModelGraph
	model *smodel.Model
	t     *tree.Tree
	aln   bio.Sequences
	cfg   defn.Config

	// codes[leafID][site] is the motif index, noMotif when any
	// state matches.
	codes  [][]int
	nsites int

	// eQts[bin][nodeID] aliases the transition matrix data for
	// the branch above the node.
	eQts [][][]float64
	l    []float64
}

// New builds a likelihood function. Sequence names must match the
// tree's terminal names exactly.
func New(m *smodel.Model, t *tree.Tree, aln bio.Sequences, cfg defn.Config) (*Function, error) {
	var observed []float64
	if m.MotifProbsFromAlign() || m.OptimizeMotifProbs() {
		counts, err := m.CountMotifs(aln, true)
		if err != nil {
			return nil, err
		}
		total := 0.0
		for _, c := range counts {
			total += c
		}
		if total == 0 {
			return nil, fmt.Errorf("no motifs counted in the alignment")
		}
		observed = make([]float64, len(counts))
		for i, c := range counts {
			observed[i] = c / total
		}
	}
	graph, err := defn.ForModel(m, t, observed, cfg)
	if err != nil {
		return nil, err
	}
	f := &Function{
		graph: graph,
		model: m,
		t:     t,
		aln:   aln,
		cfg:   cfg,
		l:     nil,
	}
	if err := f.encodeLeaves(); err != nil {
		return nil, err
	}
	if err := graph.Add(defn.NewConst("align", f.codes)); err != nil {
		return nil, err
	}
	f.l = make([]float64, f.nsites)
	f.eQts = make([][][]float64, graph.NBins())
	for b := range f.eQts {
		f.eQts[b] = make([][]float64, t.MaxNodeID()+1)
	}
	return f, nil
}

// encodeLeaves translates sequences into motif indices in leaf order.
func (f *Function) encodeLeaves() error {
	byName := make(map[string]string, len(f.aln))
	for _, seq := range f.aln {
		byName[seq.Name] = seq.Sequence
	}
	alph := f.model.Alphabet()
	mlen := alph.MotifLen()
	f.codes = make([][]int, f.t.NLeaves())
	for _, node := range f.t.Terminals() {
		seq, ok := byName[node.Name]
		if !ok {
			return fmt.Errorf("no sequence for tree terminal %q", node.Name)
		}
		if len(seq)%mlen != 0 {
			return fmt.Errorf("sequence %q length %d is not a multiple of %d", node.Name, len(seq), mlen)
		}
		nsites := len(seq) / mlen
		if f.nsites == 0 {
			f.nsites = nsites
		} else if nsites != f.nsites {
			return fmt.Errorf("sequence %q has %d sites, want %d", node.Name, nsites, f.nsites)
		}
		codes := make([]int, nsites)
		for s := 0; s < nsites; s++ {
			motif := seq[s*mlen : (s+1)*mlen]
			switch {
			case motif == alph.Gap() && f.model.RecodeGaps():
				codes[s] = noMotif
			default:
				if idx, ok := alph.Index(motif); ok {
					codes[s] = idx
				} else {
					codes[s] = noMotif
				}
			}
		}
		f.codes[node.LeafID] = codes
	}
	return nil
}

// Graph exposes the underlying binding graph.
func (f *Function) Graph() *defn.ModelGraph { return f.graph }

// NSites returns the number of alignment sites.
func (f *Function) NSites() int { return f.nsites }

// GetFloatParameters returns the free parameters of the model graph.
func (f *Function) GetFloatParameters() optimize.FloatParameters {
	return f.graph.FloatParameters()
}

// Copy clones the function with the current parameter values.
func (f *Function) Copy() optimize.Optimizable {
	nf, err := New(f.model, f.t.Copy(), f.aln, f.cfg)
	if err != nil {
		// New succeeded for the same inputs before
		panic(err)
	}
	par := nf.GetFloatParameters()
	if err := par.SetValues(f.GetFloatParameters().Values(nil)); err != nil {
		panic(err)
	}
	return nf
}

// update refreshes the cached transition matrices from the graph.
func (f *Function) update() error {
	for b := 0; b < f.graph.NBins(); b++ {
		for _, node := range f.t.Nodes() {
			if node.IsRoot() {
				continue
			}
			v, err := f.graph.Eval(f.graph.PSubs, defn.Scope{Edge: node.ID, Locus: 0, Bin: b})
			if err != nil {
				return err
			}
			p, ok := v.(*mat64.Dense)
			if !ok {
				return fmt.Errorf("psubs produced %T", v)
			}
			f.eQts[b][node.ID] = p.RawMatrix().Data
		}
	}
	return nil
}

// Likelihood returns the log-likelihood for the current parameter
// values, negative infinity when the model is degenerate.
func (f *Function) Likelihood() (lnL float64) {
	if err := f.update(); err != nil {
		log.Errorf("likelihood: %v", err)
		return math.Inf(-1)
	}
	bprobs, err := f.graph.EvalVector(f.graph.BProbs, defn.Whole)
	if err != nil {
		log.Errorf("likelihood: %v", err)
		return math.Inf(-1)
	}
	rootProbs, err := f.graph.EvalVector(f.graph.MotifProbs, defn.Whole)
	if err != nil {
		log.Errorf("likelihood: %v", err)
		return math.Inf(-1)
	}

	ncodes := f.model.Alphabet().Len()
	nWorkers := runtime.GOMAXPROCS(0)
	done := make(chan struct{}, nWorkers)
	tasks := make(chan int, f.nsites)

	for i := 0; i < nWorkers; i++ {
		go func() {
			nni := f.t.MaxNodeID() + 1
			plh := make([][]float64, nni)
			for i := 0; i < nni; i++ {
				plh[i] = make([]float64, ncodes)
			}
			for pos := range tasks {
				res := 0.0
				for bin, p := range bprobs {
					if p <= smallProp {
						continue
					}
					res += f.subL(bin, pos, rootProbs, plh) * p
				}
				f.l[pos] = math.Log(res)
			}
			done <- struct{}{}
		}()
	}
	for pos := 0; pos < f.nsites; pos++ {
		tasks <- pos
	}
	close(tasks)
	for i := 0; i < nWorkers; i++ {
		<-done
	}

	for _, l := range f.l {
		lnL += l
	}
	if math.IsNaN(lnL) {
		lnL = math.Inf(-1)
	}
	log.Debugf("L=%v", lnL)
	return
}

// subL prunes one site for one bin.
func (f *Function) subL(bin, pos int, rootProbs []float64, plh [][]float64) (res float64) {
	ncodes := f.model.Alphabet().Len()

	for _, node := range f.t.Terminals() {
		code := f.codes[node.LeafID][pos]
		for l := 0; l < ncodes; l++ {
			if code == noMotif || l == code {
				plh[node.ID][l] = 1
			} else {
				plh[node.ID][l] = 0
			}
		}
	}

	for _, node := range f.t.NodeOrder() {
		for l1 := 0; l1 < ncodes; l1++ {
			l := 1.0
			for _, child := range node.Children() {
				q := f.eQts[bin][child.ID][l1*ncodes:]
				cplh := plh[child.ID]
				s := 0.0
				for l2 := 0; l2 < ncodes; l2++ {
					s += q[l2] * cplh[l2]
				}
				l *= s
			}
			plh[node.ID][l1] = l
		}

		if node.IsRoot() {
			for l := 0; l < ncodes; l++ {
				res += rootProbs[l] * plh[node.ID][l]
			}
			break
		}
	}
	return
}
