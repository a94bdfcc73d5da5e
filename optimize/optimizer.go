// Package optimize provides the optimizer surface of the likelihood
// machinery: named float parameters, the Optimizable contract, and
// maximization backends (downhill simplex and L-BFGS-B).
package optimize

import (
	"fmt"
	"math"
	"os"
	"os/signal"

	"github.com/op/go-logging"

	"github.com/phylogo/phyfit/checkpoint"
)

// log is the package logging variable.
var log = logging.MustGetLogger("optimize")

// Optimizable is anything with named float parameters and a
// likelihood. An optimizer only reads and writes parameter values and
// queries the likelihood.
type Optimizable interface {
	GetFloatParameters() FloatParameters
	Likelihood() float64
	Copy() Optimizable
}

// Optimizer maximizes the likelihood of an Optimizable.
type Optimizer interface {
	SetOptimizable(Optimizable)
	SetReportPeriod(period int)
	SetCheckpoint(*checkpoint.Saver)
	RestoreCheckpoint() (bool, error)
	WatchSignals(...os.Signal)
	Quiet(bool)
	Run(iterations int)
	GetMaxL() float64
	GetMaxLParameters() []float64
}

// BaseOptimizer implements the bookkeeping shared by all optimizers.
type BaseOptimizer struct {
	Optimizable
	parameters FloatParameters
	i          int
	l          float64
	maxL       float64
	maxLPar    []float64
	repPeriod  int
	quiet      bool
	sig        chan os.Signal
	chk        *checkpoint.Saver
}

// SetOptimizable sets the object to optimize.
func (o *BaseOptimizer) SetOptimizable(opt Optimizable) {
	o.Optimizable = opt
	o.parameters = opt.GetFloatParameters()
}

// SetReportPeriod sets the number of iterations between progress
// lines.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// SetCheckpoint enables periodic checkpointing of the parameter
// vector and likelihood.
func (o *BaseOptimizer) SetCheckpoint(chk *checkpoint.Saver) {
	o.chk = chk
}

// WatchSignals makes the optimizer abort on the given signals.
func (o *BaseOptimizer) WatchSignals(sigs ...os.Signal) {
	o.sig = make(chan os.Signal, 1)
	signal.Notify(o.sig, sigs...)
}

// Quiet disables progress output.
func (o *BaseOptimizer) Quiet(quiet bool) { o.quiet = quiet }

// checkSignals aborts the process if a watched signal arrived.
func (o *BaseOptimizer) checkSignals() {
	if o.sig == nil {
		return
	}
	select {
	case s := <-o.sig:
		o.saveCheckpoint(false)
		log.Fatalf("received signal %v, exiting", s)
	default:
	}
}

// record updates the best seen likelihood and parameter vector.
func (o *BaseOptimizer) record(l float64) {
	o.l = l
	if l > o.maxL {
		o.maxL = l
		o.maxLPar = o.parameters.Values(o.maxLPar)
	}
}

func (o *BaseOptimizer) saveCheckpoint(final bool) {
	if o.chk == nil {
		return
	}
	if !final && !o.chk.Due() {
		return
	}
	rec := &checkpoint.Record{
		Parameters: make(map[string]float64, len(o.parameters)),
		Likelihood: o.maxL,
		Iter:       o.i,
		Final:      final,
	}
	for _, par := range o.parameters {
		rec.Parameters[par.Name()] = par.Get()
	}
	if err := o.chk.Save(rec); err != nil {
		log.Warningf("checkpoint save failed: %v", err)
	}
}

// RestoreCheckpoint loads parameter values from a saved checkpoint if
// one is present; it returns true if the stored state was final.
func (o *BaseOptimizer) RestoreCheckpoint() (bool, error) {
	if o.chk == nil {
		return false, nil
	}
	rec, err := o.chk.Load()
	if err != nil || rec == nil {
		return false, err
	}
	for name, v := range rec.Parameters {
		if par := o.parameters.ByName(name); par != nil {
			par.Set(v)
		}
	}
	o.i = rec.Iter
	return rec.Final, nil
}

// PrintHeader prints the progress table header.
func (o *BaseOptimizer) PrintHeader() {
	if !o.quiet {
		fmt.Printf("iteration\tlikelihood\t%s\n", o.parameters.NamesString())
	}
}

// PrintLine prints a progress line.
func (o *BaseOptimizer) PrintLine() {
	if !o.quiet && o.repPeriod > 0 && o.i%o.repPeriod == 0 {
		fmt.Printf("%d\t%f\t%s\n", o.i, o.l, o.parameters.ValuesString())
	}
}

// PrintFinal logs the final parameter values.
func (o *BaseOptimizer) PrintFinal() {
	if o.quiet {
		return
	}
	log.Noticef("maximum likelihood: %v", o.maxL)
	for _, par := range o.parameters {
		log.Noticef("%s=%v", par.Name(), par.Get())
	}
}

// GetMaxL returns the maximum likelihood found.
func (o *BaseOptimizer) GetMaxL() float64 {
	if o.maxLPar == nil {
		return math.Inf(-1)
	}
	return o.maxL
}

// GetMaxLParameters returns the parameter vector of the maximum.
func (o *BaseOptimizer) GetMaxLParameters() []float64 { return o.maxLPar }

// NewOptimizer creates an optimizer backend by method name
// ("simplex" or "lbfgsb").
func NewOptimizer(method string) (Optimizer, error) {
	switch method {
	case "simplex":
		return NewDS(), nil
	case "lbfgsb":
		return NewLBFGSB(), nil
	}
	return nil, fmt.Errorf("unknown optimization method %q", method)
}
