//go:build ignore
// +build ignore

/*
This simulation generates data from a Gamma GLM with the log link, and
compares the estimated coefficients and dispersion to their population
values over a number of replications.  The dispersion is estimated both
by the Pearson statistic and by maximizing the profile likelihood.
*/

package main

import (
	"fmt"
	"log"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kshedden/glmfamily/glm"
)

var beta = []float64{0, 0.5, -0.5}

func simulate(n int, scale float64, rng rand.Source) (*mat.Dense, []float64) {

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, norm.Rand())
		x.Set(i, 2, norm.Rand())
		mn := math.Exp(beta[0] + beta[1]*x.At(i, 1) + beta[2]*x.At(i, 2))

		// Shape 1/scale and mean mn
		g := distuv.Gamma{Alpha: 1 / scale, Beta: 1 / (scale * mn), Src: rng}
		y[i] = g.Rand()
	}

	return x, y
}

func main() {

	scale := 3.0
	nrep := 100
	rng := rand.NewSource(4523745)

	for _, n := range []int{500, 2000} {

		est := make([][]float64, len(beta)+2)
		var nconv int
		for r := 0; r < nrep; r++ {
			x, y := simulate(n, scale, rng)
			model, err := glm.NewGLM(x, y).Family(glm.NewGammaFamily()).Link(glm.NewLink(glm.LogLink)).Done()
			if err != nil {
				log.Fatal(err)
			}
			result, err := model.Fit()
			if err != nil {
				log.Fatal(err)
			}
			if !result.Converged() {
				continue
			}
			nconv++
			for j, p := range result.Params() {
				est[j] = append(est[j], p)
			}
			est[len(beta)] = append(est[len(beta)], result.Dispersion())

			ps, err := glm.NewScaleProfiler(result)
			if err != nil {
				log.Fatal(err)
			}
			est[len(beta)+1] = append(est[len(beta)+1], ps.ScaleMLE())
		}

		fmt.Printf("n=%d, %d of %d fits converged\n", n, nconv, nrep)
		fmt.Printf("%-10s %10s %10s %10s\n", "", "Truth", "Mean", "SD")
		for j := range est {
			name, truth := fmt.Sprintf("beta%d", j), 0.0
			switch {
			case j < len(beta):
				truth = beta[j]
			case j == len(beta):
				name, truth = "scale", scale
			default:
				name, truth = "scale MLE", scale
			}
			m, sd := stat.MeanStdDev(est[j], nil)
			fmt.Printf("%-10s %10.4f %10.4f %10.4f\n", name, truth, m, sd)
		}
		fmt.Println()
	}
}
