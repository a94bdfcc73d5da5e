// Command plotbins plots the discretized gamma rates used for
// among-site rate variation.
package main

import (
	"flag"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/phylogo/phyfit/dist"
)

func main() {
	alpha := flag.Float64("alpha", 1, "alpha")
	beta := flag.Float64("beta", 1, "beta")
	k := flag.Int("k", 4, "k")
	useMedian := flag.Bool("median", false, "Use median instead of mean")
	out := flag.String("out", "bins.png", "output file")
	flag.Parse()

	r := dist.DiscreteGamma(*alpha, *beta, *k, *useMedian, nil, nil)
	fmt.Println(r)
	p, err := plot.New()
	if err != nil {
		panic(err)
	}
	p.X.Label.Text = "rate"
	p.Y.Label.Text = "cumulative probability"

	pts := make(plotter.XYs, *k)
	x := 0.0
	for i, v := range r {
		pts[i].X = v
		pts[i].Y = x
		x += 1. / float64(*k)
	}

	err = plotutil.AddLinePoints(p, "bins", pts)
	if err != nil {
		panic(err)
	}

	if err := p.Save(4*vg.Inch, 4*vg.Inch, *out); err != nil {
		panic(err)
	}
}
