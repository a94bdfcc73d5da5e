package optimize

import (
	"math"

	lbfgsb "github.com/idavydov/go-lbfgsb"
)

// LBFGSB optimizes the likelihood with the bounded quasi-Newton
// L-BFGS-B method. Gradients are estimated numerically on model
// copies, so the likelihood caches of the main model stay intact.
type LBFGSB struct {
	BaseOptimizer
	dH    float64
	grad  []float64
	calls int
}

// NewLBFGSB creates a new L-BFGS-B optimizer.
func NewLBFGSB() *LBFGSB {
	l := &LBFGSB{dH: 1e-6}
	l.repPeriod = 10
	return l
}

// Logger is called by the lbfgsb library on every iteration.
func (l *LBFGSB) Logger(info *lbfgsb.OptimizationIterationInformation) {
	l.i = info.Iteration
	l.parameters.SetValues(info.X)
	l.l = -info.F
	l.PrintLine()
	l.saveCheckpoint(false)
	l.checkSignals()
}

// EvaluateFunction returns the negative log-likelihood at x.
func (l *LBFGSB) EvaluateFunction(x []float64) float64 {
	if !l.parameters.ValuesInRange(x) {
		return math.Inf(+1)
	}
	l.parameters.SetValues(x)
	lnL := l.Likelihood()
	l.calls++
	l.record(lnL)
	return -lnL
}

// EvaluateGradient estimates the gradient by central differences.
func (l *LBFGSB) EvaluateGradient(x []float64) []float64 {
	if l.grad == nil {
		l.grad = make([]float64, len(x))
	}
	for i := range x {
		no1 := l.Optimizable.Copy()
		par1 := no1.GetFloatParameters()
		par1.SetValues(x)
		par1[i].Set(x[i] - l.dH)
		l1 := -no1.Likelihood()

		no2 := no1.Copy()
		par2 := no2.GetFloatParameters()
		par2[i].Set(x[i] + l.dH)
		l2 := -no2.Likelihood()

		l.calls += 2
		l.grad[i] = (l2 - l1) / 2 / l.dH
	}
	l.checkSignals()
	return l.grad
}

// Run starts the minimization of the negative log-likelihood.
func (l *LBFGSB) Run(iterations int) {
	l.maxL = math.Inf(-1)
	l.PrintHeader()

	bounds := make([][2]float64, len(l.parameters))
	for i, par := range l.parameters {
		bounds[i][0] = par.GetMin() + 1e-5
		bounds[i][1] = par.GetMax() - 1e-5
	}

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(1e-9)
	opt.SetGTolerance(1e-9)
	opt.SetBounds(bounds)
	opt.SetLogger(l.Logger)

	_, exitStatus := opt.Minimize(l, l.parameters.Values(nil))
	log.Infof("L-BFGS-B exit status: %v", exitStatus)
	log.Infof("likelihood function calls: %v", l.calls)

	if l.maxLPar != nil {
		l.parameters.SetValues(l.maxLPar)
	}
	l.saveCheckpoint(true)
	l.PrintFinal()
}
