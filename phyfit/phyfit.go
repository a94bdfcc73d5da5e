/*

Phyfit estimates parameters of Markov substitution models on a
phylogenetic tree by maximum likelihood. Models are assembled from
named predicates over motif pairs; nucleotide, dinucleotide, codon and
protein alphabets are supported, with optional rate variation across
sites.

The basic usage looks like this:

	phyfit alignment.fst tree.nwk

, this will fit the HKY85 model with the default optimizer (LBFGS-B).

You can change the model and the optimizer:

	phyfit -model GTR -method simplex alignment.fst tree.nwk

To see all the options run:

	phyfit -h

*/
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/phylogo/phyfit/bio"
	"github.com/phylogo/phyfit/checkpoint"
	"github.com/phylogo/phyfit/defn"
	"github.com/phylogo/phyfit/likelihood"
	"github.com/phylogo/phyfit/optimize"
	"github.com/phylogo/phyfit/smodel"
	"github.com/phylogo/phyfit/tree"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("phyfit")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	app = kingpin.New("phyfit", "substitution model parameter estimation").Version(version)

	alignmentFileName = app.Arg("alignment", "sequence alignment").Required().ExistingFile()
	treeFileName      = app.Arg("tree", "starting phylogenetic tree").Required().ExistingFile()

	// model parameters
	model = app.Flag("model", "model type (JC, F81, HKY, GTR, DINUC, CODON, PROTEIN)").
		Default("HKY").Enum("JC", "F81", "HKY", "GTR", "DINUC", "CODON", "PROTEIN")
	gcodeID       = app.Flag("gcode", "NCBI genetic code id, standard by default").Default("1").Int()
	equalFreqs    = app.Flag("equalfreqs", "use equal motif frequencies").Bool()
	optimizeFreqs = app.Flag("optfreqs", "optimize motif frequencies").Bool()
	recodeGaps    = app.Flag("recodegaps", "treat gaps as unknown states").Bool()
	modelGaps     = app.Flag("modelgaps", "model gaps as a Markov state").Bool()
	noScaling     = app.Flag("noscaling", "do not scale branch lengths to expected substitutions").Bool()
	nbins         = app.Flag("ncat", "number of rate categories").Default("1").Int()
	distribution  = app.Flag("ratedist", "rate distribution across categories (free or gamma)").
			Default("gamma").Enum("free", "gamma")

	// optimizer parameters
	iterations = app.Flag("iter", "number of iterations").Default("10000").Int()
	report     = app.Flag("report", "report every N iterations").Default("10").Int()
	method     = app.Flag("method", "optimization method to use "+
		"(lbfgsb: limited-memory Broyden-Fletcher-Goldfarb-Shanno with bounding constraints, "+
		"simplex: downhill simplex, "+
		"none: just compute likelihood, no optimization"+
		")").Default("lbfgsb").Enum("lbfgsb", "simplex", "none")

	// technical
	nThreads = app.Flag("nt", "number of threads to use").Int()

	// checkpoints
	checkpointFileName = app.Flag("checkpoint", "checkpoint database file").String()
	checkpointEvery    = app.Flag("checkpointevery", "checkpoint interval").Default("30s").Duration()

	// input/output
	outLogF  = app.Flag("log", "write log to a file").String()
	jsonF    = app.Flag("json", "write json output to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

// getModelFromString assembles a model by name.
func getModelFromString(name string, gcode *bio.GeneticCode) (*smodel.Model, error) {
	spec := smodel.Spec{
		Name:            name,
		EqualMotifProbs: *equalFreqs,
		RecodeGaps:      *recodeGaps,
		ModelGaps:       *modelGaps,
		NoScaling:       *noScaling,
	}
	spec.OptimizeMotifProbs = *optimizeFreqs
	if *nbins > 1 {
		spec.OrderedParam = "rate"
		if *distribution == "gamma" {
			spec.Distribution = smodel.Gamma
		}
	}
	switch name {
	case "JC":
		log.Info("Using Jukes-Cantor model")
		spec.EqualMotifProbs = true
		return smodel.NewNucleotide(spec)
	case "F81":
		log.Info("Using F81 model")
		return smodel.NewNucleotide(spec)
	case "HKY":
		log.Info("Using HKY85 model")
		spec.Predicates = []smodel.Rule{
			{Name: "kappa", Expr: "transition"},
		}
		return smodel.NewNucleotide(spec)
	case "GTR":
		log.Info("Using GTR model")
		spec.Predicates = []smodel.Rule{
			{Name: "ac", Expr: "a/c"},
			{Name: "ag", Expr: "a/g"},
			{Name: "at", Expr: "a/t"},
			{Name: "cg", Expr: "c/g"},
			{Name: "ct", Expr: "c/t"},
		}
		return smodel.NewNucleotide(spec)
	case "DINUC":
		log.Info("Using dinucleotide model")
		spec.Predicates = []smodel.Rule{
			{Name: "kappa", Expr: "transition"},
		}
		return smodel.NewDinucleotide(spec)
	case "CODON":
		log.Info("Using codon model")
		log.Infof("Genetic code: %d, \"%s\"", gcode.ID, gcode.Name)
		spec.Predicates = []smodel.Rule{
			{Name: "kappa", Expr: "transition"},
			{Name: "omega", Expr: "replacement"},
		}
		spec.Scales = []smodel.Rule{
			{Name: "dS", Expr: "silent"},
			{Name: "dN", Expr: "replacement"},
		}
		return smodel.NewCodon(gcode, spec)
	case "PROTEIN":
		log.Info("Using protein model")
		return smodel.NewProtein(spec)
	}
	return nil, errors.New("unknown model specification")
}

// checkpointKey derives a stable database key from the run inputs.
func checkpointKey() []byte {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n%d\n%d\n", *alignmentFileName, *treeFileName, *model, *nbins, *gcodeID)
	return []byte(hex.EncodeToString(h.Sum(nil)))
}

// Summary is the JSON output of a run.
type Summary struct {
	Model          string             `json:"model"`
	MaxLnL         float64            `json:"maxLnL"`
	Parameters     map[string]float64 `json:"parameters"`
	FinalTree      string             `json:"finalTree"`
	Time           float64            `json:"time"`
	Version        string             `json:"version"`
	CommandLine    []string           `json:"commandLine"`
	LikelihoodOnly bool               `json:"likelihoodOnly,omitempty"`
}

func run() *Summary {
	startTime := time.Now()

	gcode, ok := bio.GeneticCodes[*gcodeID]
	if !ok {
		log.Fatalf("couldn't load genetic code with id=%d", *gcodeID)
	}

	fastaFile, err := os.Open(*alignmentFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer fastaFile.Close()

	aln, err := bio.ParseFasta(fastaFile)
	if err != nil {
		log.Fatal(err)
	}
	if len(aln) == 0 || len(aln[0].Sequence) == 0 {
		log.Fatal("Zero length alignment")
	}
	log.Infof("Read alignment of %d sequences, %d characters", len(aln), len(aln[0].Sequence))

	treeFile, err := os.Open(*treeFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer treeFile.Close()

	t, err := tree.ParseNewick(treeFile)
	if err != nil {
		log.Fatal(err)
	}
	log.Debugf("intree=%s", t)

	m, err := getModelFromString(*model, gcode)
	if err != nil {
		log.Fatal(err)
	}
	for _, w := range m.Warnings() {
		log.Warning(w.String())
	}

	cfg := defn.Config{NBins: *nbins}
	lf, err := likelihood.New(m, t, aln, cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Model has %d parameters.", len(lf.GetFloatParameters()))

	summary := &Summary{
		Model:       *model,
		Version:     version,
		CommandLine: os.Args,
	}

	if *method == "none" {
		summary.MaxLnL = lf.Likelihood()
		summary.LikelihoodOnly = true
		log.Noticef("lnL=%f", summary.MaxLnL)
		return summary
	}

	var chk *checkpoint.Saver
	if *checkpointFileName != "" {
		db, err := bolt.Open(*checkpointFileName, 0644, nil)
		if err != nil {
			log.Fatal("Error opening checkpoint database:", err)
		}
		defer db.Close()
		chk = checkpoint.NewSaver(db, checkpointKey(), *checkpointEvery)
	}

	opt, err := optimize.NewOptimizer(*method)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Using %s optimization.", *method)

	opt.SetOptimizable(lf)
	opt.SetReportPeriod(*report)
	opt.SetCheckpoint(chk)
	opt.WatchSignals(os.Interrupt)

	final, err := opt.RestoreCheckpoint()
	if err != nil {
		log.Warning("Error restoring checkpoint:", err)
	} else if final {
		log.Notice("Loaded a finished run from the checkpoint")
	}
	if final {
		summary.MaxLnL = lf.Likelihood()
	} else {
		opt.Run(*iterations)
		summary.MaxLnL = opt.GetMaxL()
	}
	par := lf.GetFloatParameters()
	summary.Parameters = make(map[string]float64, len(par))
	for _, name := range par.Names(nil) {
		summary.Parameters[name] = par.ByName(name).Get()
	}

	// write fitted branch lengths back into the tree
	for _, node := range t.Nodes() {
		if node.IsRoot() {
			continue
		}
		if p := par.ByName(fmt.Sprintf("br%d", node.ID)); p != nil {
			node.BranchLength = p.Get()
		}
	}
	summary.FinalTree = t.String()
	log.Noticef("outtree=%s", t)

	deltaT := time.Now().Sub(startTime)
	log.Noticef("Running time: %v", deltaT)
	summary.Time = deltaT.Seconds()
	return summary
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, pkg := range []string{"phyfit", "optimize", "smodel", "defn", "likelihood"} {
		logging.SetLevel(level, pkg)
	}

	log.Info(version)
	log.Info("Command line:", os.Args)

	if *nThreads > 0 {
		runtime.GOMAXPROCS(*nThreads)
	}
	log.Infof("Using maximum %d threads", runtime.GOMAXPROCS(0))

	summary := run()

	if *jsonF != "" {
		j, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			log.Error("Error marshaling summary:", err)
		} else if err := os.WriteFile(*jsonF, j, 0644); err != nil {
			log.Error("Error writing json output:", err)
		}
	}
}
