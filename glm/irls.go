package glm

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// FitStatus describes how a fit terminated.
type FitStatus uint8

// Converged means that the relative change in deviance fell below the
// tolerance.  Diverged means that the deviance became non-finite or
// increased sharply, or that a fitted mean reached the boundary of the
// mean space (as with separated binomial data); the coefficients from
// the last good iteration are reported.  MaxIterExceeded means that the iteration limit was reached
// before convergence.
const (
	Converged FitStatus = iota
	Diverged
	MaxIterExceeded
)

func (s FitStatus) String() string {
	switch s {
	case Converged:
		return "converged"
	case Diverged:
		return "diverged"
	case MaxIterExceeded:
		return "max iterations exceeded"
	default:
		return fmt.Sprintf("FitStatus(%d)", uint8(s))
	}
}

// An iteration whose deviance exceeds the previous deviance (or 1, if
// larger) by this factor is treated as divergent.
const divergenceRatio = 1e3

// Per-observation calculations are done on blocks of this many
// observations.  Block sums are reduced in block order, so the
// results do not depend on whether the blocks are processed
// concurrently.
const chunkLen = 512

// chunkSum calls fn on consecutive blocks of the observations and
// returns the sum of the block values.  If several blocks fail, the
// error from the first failing block is returned.
func (glm *GLM) chunkSum(fn func(lo, hi int) (float64, error)) (float64, error) {

	n := glm.nobs
	nchunk := (n + chunkLen - 1) / chunkLen
	part := make([]float64, nchunk)
	errs := make([]error, nchunk)

	run := func(k int) {
		lo := k * chunkLen
		hi := min(lo+chunkLen, n)
		part[k], errs[k] = fn(lo, hi)
	}

	if glm.concurrentIRLS > 0 && n >= glm.concurrentIRLS && nchunk > 1 {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for k := 0; k < nchunk; k++ {
			k := k
			g.Go(func() error {
				run(k)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for k := 0; k < nchunk; k++ {
			run(k)
		}
	}

	var tot float64
	for k, v := range part {
		if errs[k] != nil {
			return 0, errs[k]
		}
		tot += v
	}

	return tot, nil
}

func (glm *GLM) off(i int) float64 {
	if glm.offset == nil {
		return 0
	}
	return glm.offset[i]
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// initMean checks the response against the support of the family,
// and sets the starting mean and linear predictor.  If start is nil,
// the family's starting means are used, otherwise the mean at the
// coefficients in start.
func (glm *GLM) initMean(start, eta, mu []float64) error {

	fam := glm.fam
	y := glm.y

	if start != nil {
		glm.linPred(start, eta)
	}

	_, err := glm.chunkSum(func(lo, hi int) (float64, error) {
		for i := lo; i < hi; i++ {
			m, err := fam.MuStart(y[i])
			if err != nil {
				return 0, &ObsError{Obs: i, Value: y[i], err: err}
			}
			if start != nil {
				mu[i] = fam.InvLink(eta[i])
			} else {
				mu[i] = m
				eta[i] = fam.Link(m)
			}
		}
		return 0, nil
	})

	return err
}

// workingResponse calculates the IRLS weights and the working
// response (with the offset removed) at the current mean.
func (glm *GLM) workingResponse(eta, mu, w, z []float64) error {

	fam := glm.fam
	y := glm.y

	_, err := glm.chunkSum(func(lo, hi int) (float64, error) {
		for i := lo; i < hi; i++ {
			pw := fam.PriorWeight(i)
			if !(pw > 0) {
				return 0, obsError(ErrNumericalFault, i, pw, "prior weight is not positive")
			}
			m := mu[i]
			if err := checkMean(fam, i, m); err != nil {
				return 0, err
			}
			d := fam.DLink(m)
			w[i] = pw / (d * d * fam.Variance(m))
			if !(w[i] > 0) || math.IsInf(w[i], 1) {
				return 0, obsError(ErrNumericalFault, i, w[i], "working weight is not positive and finite")
			}
			z[i] = eta[i] - glm.off(i) + (y[i]-m)*d
		}
		return 0, nil
	})

	return err
}

// checkMean fails if the link derivative or the variance is zero or
// not finite at mu, which happens when mu is on the boundary of the
// family's mean space.
func checkMean(fam *Family, i int, mu float64) error {
	if d := fam.DLink(mu); d == 0 || !finite(d) {
		return obsError(ErrNumericalFault, i, mu, "link derivative is zero or not finite")
	}
	if v := fam.Variance(mu); v == 0 || !finite(v) {
		return obsError(ErrNumericalFault, i, mu, "variance is zero or not finite")
	}
	return nil
}

// updateMean sets the linear predictor and mean at the given
// coefficients, and returns the deviance.  An error is returned if
// some mean is on the boundary of the mean space.
func (glm *GLM) updateMean(params, eta, mu []float64) (float64, error) {

	fam := glm.fam
	y := glm.y
	glm.linPred(params, eta)

	return glm.chunkSum(func(lo, hi int) (float64, error) {
		var d float64
		for i := lo; i < hi; i++ {
			mu[i] = fam.InvLink(eta[i])
			if err := checkMean(fam, i, mu[i]); err != nil {
				return 0, err
			}
			d += fam.UnitDeviance(i, y[i], mu[i])
		}
		return d, nil
	})
}

func (glm *GLM) solve(z, w []float64) (*mat.VecDense, error) {
	if glm.solver == CholeskySolver {
		return wlsCholesky(glm.xcols, z, w, glm.concurrentIRLS)
	}
	return wlsQR(glm.x, z, w)
}

// fitIRLS fits the model using iteratively reweighted least squares.
// Only failures to initialize or to solve a least squares problem are
// errors; divergence and non-convergence are reported by the status.
// The starting means must be inside the mean space of the family.
func (glm *GLM) fitIRLS() ([]float64, FitStatus, int, error) {

	n := glm.nobs

	eta := make([]float64, n)
	mu := make([]float64, n)
	neta := make([]float64, n)
	nmu := make([]float64, n)
	irlsw := make([]float64, n)
	adjy := make([]float64, n)

	params := make([]float64, glm.nvar)
	if glm.start != nil {
		copy(params, glm.start)
	}

	if err := glm.initMean(glm.start, eta, mu); err != nil {
		return nil, 0, 0, err
	}

	var dev float64

	// IRLS iterations
	for iter := 1; iter <= glm.maxiter; iter++ {

		if err := glm.workingResponse(eta, mu, irlsw, adjy); err != nil {
			return nil, 0, iter - 1, fmt.Errorf("IRLS iteration %d: %w", iter, err)
		}

		nparam, err := glm.solve(adjy, irlsw)
		if err != nil {
			return nil, 0, iter - 1, fmt.Errorf("IRLS iteration %d: %w", iter, err)
		}
		np := nparam.RawVector().Data

		// A mean on the boundary, as with separated binomial data,
		// ends the fit at the last coefficients with interior means.
		ndev, err := glm.updateMean(np, neta, nmu)
		if err != nil {
			glm.warn("IRLS diverged", "iteration", iter, "error", err)
			return params, Diverged, iter, nil
		}

		if !finite(ndev) || (iter > 1 && ndev > divergenceRatio*math.Max(dev, 1)) {
			glm.warn("IRLS diverged", "iteration", iter, "deviance", ndev, "previous", dev)
			return params, Diverged, iter, nil
		}

		params = np
		eta, neta = neta, eta
		mu, nmu = nmu, mu

		glm.debug("IRLS iteration", "iteration", iter, "deviance", ndev)

		// Check convergence
		if iter > 1 && math.Abs(ndev-dev)/(math.Abs(ndev)+0.1) < glm.tol {
			return params, Converged, iter, nil
		}
		dev = ndev
	}

	return params, MaxIterExceeded, glm.maxiter, nil
}
