package glm

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// BFGS takes many more, cheaper, steps than IRLS.
const gradientIterFactor = 40

// initialCoeff returns starting coefficients obtained by regressing
// the linked starting means on the covariates.
func (glm *GLM) initialCoeff() ([]float64, error) {

	eta := make([]float64, glm.nobs)
	mu := make([]float64, glm.nobs)
	if err := glm.initMean(nil, eta, mu); err != nil {
		return nil, err
	}

	w := make([]float64, glm.nobs)
	for i := range eta {
		eta[i] -= glm.off(i)
		w[i] = 1
	}

	b, err := wlsQR(glm.x, eta, w)
	if err != nil {
		return nil, err
	}

	return b.RawVector().Data, nil
}

// fitGradient minimizes half of the deviance using gradient-based
// optimization.
func (glm *GLM) fitGradient() ([]float64, FitStatus, int, error) {

	// The optimizer does not see a flat direction of the deviance.
	if err := fullRank(glm.x); err != nil {
		return nil, 0, 0, err
	}

	start := glm.start
	if start == nil {
		var err error
		start, err = glm.initialCoeff()
		if err != nil {
			return nil, 0, 0, err
		}
	} else if err := glm.initMean(nil, make([]float64, glm.nobs), make([]float64, glm.nobs)); err != nil {
		return nil, 0, 0, err
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return glm.Deviance(x) / 2
		},
		Grad: func(grad, x []float64) {
			glm.Score(x, grad)
			floats.Scale(-1, grad)
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: 1e-6,
		MajorIterations:   gradientIterFactor * glm.maxiter,
	}

	optrslt, err := optimize.Minimize(p, start, settings, &optimize.BFGS{})
	if optrslt == nil {
		glm.warn("gradient optimization failed", "error", err)
		return start, Diverged, 0, nil
	}

	iter := optrslt.Stats.MajorIterations
	params := make([]float64, len(optrslt.X))
	copy(params, optrslt.X)

	switch {
	case optrslt.Status == optimize.IterationLimit:
		return params, MaxIterExceeded, iter, nil
	case err != nil || !finite(optrslt.F):
		glm.warn("gradient optimization failed", "status", optrslt.Status.String(), "error", err)
		if !finite(optrslt.F) {
			params = start
		}
		return params, Diverged, iter, nil
	}

	return params, Converged, iter, nil
}
