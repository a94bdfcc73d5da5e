package optimize

import (
	"math"
)

const (
	// convergence tolerance on the simplex likelihood spread
	dsFTol = 1e-10
	// restart threshold; a restarted simplex uses a smaller step
	dsRestartDelta = 1.1
)

// DS is a downhill simplex (Nelder-Mead) optimizer. It only uses
// likelihood values, no gradients, so it works with any Optimizable.
type DS struct {
	BaseOptimizer
	delta      float64
	points     []Optimizable
	parameters []FloatParameters
	l          []float64
	psum       []float64
	newOpt     Optimizable
	newPar     FloatParameters
}

// NewDS creates a downhill simplex optimizer.
func NewDS() *DS {
	ds := &DS{delta: 1}
	ds.repPeriod = 10
	return ds
}

// SetOptimizable sets the optimization subject and builds the initial
// simplex around its current parameter values.
func (ds *DS) SetOptimizable(opt Optimizable) {
	ds.BaseOptimizer.SetOptimizable(opt)
	ds.createSimplex(opt, ds.delta)
}

func (ds *DS) createSimplex(opt Optimizable, delta float64) {
	parameters := opt.GetFloatParameters()
	ds.points = make([]Optimizable, len(parameters)+1)
	ds.parameters = make([]FloatParameters, len(ds.points))
	ds.l = make([]float64, len(ds.points))
	ds.points[0] = opt
	ds.parameters[0] = parameters
	for i := 1; i < len(ds.points); i++ {
		point := opt.Copy()
		ds.points[i] = point
		ds.parameters[i] = point.GetFloatParameters()
	}
	// point i+1 offsets parameter i
	for i := 0; i < len(parameters); i++ {
		par := ds.parameters[i+1][i]
		v := par.Get() + delta
		if !par.ValueInRange(v) {
			v = par.Get() - delta
		}
		par.Set(v)
	}
	for i := range ds.points {
		if ds.parameters[i].InRange() {
			ds.l[i] = ds.points[i].Likelihood()
		} else {
			ds.l[i] = math.Inf(-1)
		}
	}
}

func (ds *DS) calcPsum() {
	ds.psum = make([]float64, len(ds.parameters[0]))
	for i := range ds.psum {
		for _, parameters := range ds.parameters {
			ds.psum[i] += parameters[i].Get()
		}
	}
}

// amotry extrapolates by factor fac through the face of the simplex
// across from the low point and replaces the low point if the new
// point is better.
func (ds *DS) amotry(ilo int, fac float64) float64 {
	if ds.newOpt == nil {
		ds.newOpt = ds.points[0].Copy()
		ds.newPar = ds.newOpt.GetFloatParameters()
	}
	ds.calcPsum()
	ndim := len(ds.newPar)
	fac1 := (1 - fac) / float64(ndim)
	fac2 := fac1 - fac
	for j := 0; j < ndim; j++ {
		ds.newPar[j].Set(ds.psum[j]*fac1 - ds.parameters[ilo][j].Get()*fac2)
	}
	l := math.Inf(-1)
	if ds.newPar.InRange() {
		l = ds.newOpt.Likelihood()
	}
	if l > ds.l[ilo] {
		ds.points[ilo], ds.newOpt = ds.newOpt, ds.points[ilo]
		ds.parameters[ilo], ds.newPar = ds.newPar, ds.parameters[ilo]
		ds.l[ilo] = l
	}
	return l
}

// Run performs at most iterations simplex steps.
func (ds *DS) Run(iterations int) {
	ds.maxL = math.Inf(-1)
	ds.PrintHeader()
	for ds.i = 0; ds.i < iterations; ds.i++ {
		// ihi is the best point, ilo the worst, inlo second worst
		ihi, ilo, inlo := 0, 0, 0
		for i, l := range ds.l {
			switch {
			case l > ds.l[ihi]:
				ihi = i
			case l < ds.l[ilo]:
				inlo = ilo
				ilo = i
			case l < ds.l[inlo] && i != ilo:
				inlo = i
			}
		}

		rtol := 2 * math.Abs(ds.l[ihi]-ds.l[ilo]) /
			(math.Abs(ds.l[ihi]) + math.Abs(ds.l[ilo]) + dsFTol)
		if rtol < dsFTol {
			break
		}

		l := ds.amotry(ilo, -1)
		switch {
		case l >= ds.l[ihi]:
			// new best, extend further
			ds.amotry(ilo, 2)
		case l <= ds.l[inlo]:
			// still worst, contract
			lsave := ds.l[ilo]
			l = ds.amotry(ilo, 0.5)
			if l <= lsave {
				ds.shrink(ihi)
			}
		}

		// the best point drives reporting
		ds.BaseOptimizer.parameters.SetValues(ds.parameters[ihi].Values(nil))
		ds.record(ds.l[ihi])
		ds.PrintLine()
		ds.saveCheckpoint(false)
		ds.checkSignals()
	}
	if ds.maxLPar != nil {
		ds.BaseOptimizer.parameters.SetValues(ds.maxLPar)
	}
	ds.saveCheckpoint(true)
	ds.PrintFinal()
}

// shrink contracts every point towards the best one.
func (ds *DS) shrink(ihi int) {
	for i := range ds.points {
		if i == ihi {
			continue
		}
		for j, par := range ds.parameters[i] {
			par.Set(0.5 * (par.Get() + ds.parameters[ihi][j].Get()))
		}
		if ds.parameters[i].InRange() {
			ds.l[i] = ds.points[i].Likelihood()
		} else {
			ds.l[i] = math.Inf(-1)
		}
	}
}
