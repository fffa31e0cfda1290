//go:build ignore
// +build ignore

/*
This simulation generates grouped binomial data with varying numbers of
trials, and checks the coverage of Wald confidence intervals for the
coefficients.  The IRLS fit is run with both least squares solvers.
*/

package main

import (
	"fmt"
	"log"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kshedden/glmfamily/glm"
)

var beta = []float64{-1, 0.5, 0.25}

func simulate(n int, rng rand.Source) (*mat.Dense, []float64, []int) {

	unif := distuv.Uniform{Min: -2, Max: 2, Src: rng}
	ntrial := distuv.Poisson{Lambda: 8, Src: rng}

	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	trials := make([]int, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, unif.Rand())
		x.Set(i, 2, unif.Rand())
		eta := beta[0] + beta[1]*x.At(i, 1) + beta[2]*x.At(i, 2)

		trials[i] = 1 + int(ntrial.Rand())
		b := distuv.Binomial{N: float64(trials[i]), P: 1 / (1 + math.Exp(-eta)), Src: rng}
		y[i] = b.Rand() / float64(trials[i])
	}

	return x, y, trials
}

func main() {

	nrep := 200
	rng := rand.NewSource(2323)

	for _, solver := range []glm.SolverType{glm.QRSolver, glm.CholeskySolver} {
		for _, n := range []int{100, 1000} {

			cover := make([]int, len(beta))
			var iter int
			for r := 0; r < nrep; r++ {
				x, y, trials := simulate(n, rng)
				fam, err := glm.NewBinomialFamily(trials)
				if err != nil {
					log.Fatal(err)
				}
				model, err := glm.NewGLM(x, y).Family(fam).Solver(solver).Done()
				if err != nil {
					log.Fatal(err)
				}
				result, err := model.Fit()
				if err != nil {
					log.Fatal(err)
				}
				iter += result.Iterations()

				se := result.StdErr()
				for j, p := range result.Params() {
					if math.Abs(p-beta[j]) < 1.96*se[j] {
						cover[j]++
					}
				}
			}

			fmt.Printf("solver=%s n=%d mean iterations=%.1f\n", solver, n, float64(iter)/float64(nrep))
			for j := range beta {
				fmt.Printf("  beta%d coverage: %.3f\n", j, float64(cover[j])/float64(nrep))
			}
		}
	}
}
