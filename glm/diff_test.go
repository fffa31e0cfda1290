package glm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/glmfamily/statmodel"
)

type derivCase struct {
	title   string
	model   *GLM
	params  []float64
	loglike float64
	score   []float64
	exphess []float64
}

func derivCases(t *testing.T) []derivCase {

	done := func(m *GLM) *GLM {
		m, err := m.Done()
		require.NoError(t, err)
		return m
	}

	trials, err := NewBinomialFamily([]int{2, 1, 3, 3, 4, 2, 3})
	require.NoError(t, err)

	return []derivCase{
		{
			title:   "Poisson",
			model:   done(NewGLM(design(xd1), yCount).Family(NewPoissonFamily())),
			params:  []float64{0, 0},
			loglike: -9.484906649788,
			score:   []float64{1, -6},
			exphess: []float64{-7, -10, -10, -86},
		},
		{
			title:   "Binomial",
			model:   done(NewGLM(design(xd1, xd2), yBinary).Family(NewFamily(BinomialFamily))),
			params:  []float64{0, 0, 0},
			loglike: -4.852030263919617,
			score:   []float64{-1.5, -1, -1},
			exphess: []float64{-1.75, -2.5, -2, -2.5, -21.5, 3.25, -2, 3.25, -8.5},
		},
		{
			title:   "Binomial log link with trials",
			model:   done(NewGLM(design(xd1, xd2), yBinary).Family(trials).Link(NewLink(LogLink))),
			params:  []float64{-0.7, 0.1, 0},
			loglike: -14.07088401923045,
			score:   []float64{-12.99445525388612, -39.37101498726345, 2.1896497812073745},
			exphess: []float64{
				-40.50897618114239, -144.25622764705508, -47.39149341055689,
				-144.25622764705508, -678.141149970464, -178.3176840405847,
				-47.39149341055689, -178.3176840405847, -115.39745548794635,
			},
		},
	}
}

func TestLogLikeScoreHess(t *testing.T) {

	for _, c := range derivCases(t) {
		p := len(c.params)

		assert.InDelta(t, c.loglike, c.model.LogLike(c.params), 1e-8, c.title)

		score := make([]float64, p)
		c.model.Score(c.params, score)
		assert.True(t, floats.EqualApprox(score, c.score, 1e-8), "%s: %v", c.title, score)

		hess := make([]float64, p*p)
		c.model.Hessian(c.params, statmodel.ExpHess, hess)
		assert.True(t, floats.EqualApprox(hess, c.exphess, 1e-8), "%s: %v", c.title, hess)
	}
}

// The score and the observed Hessian agree with numerical derivatives
// of the log-likelihood.
func TestNumericDerivatives(t *testing.T) {

	for _, c := range derivCases(t) {
		p := len(c.params)
		ll := c.model.LogLike

		ngrad := fd.Gradient(nil, ll, c.params, nil)
		score := make([]float64, p)
		c.model.Score(c.params, score)
		assert.True(t, floats.EqualApprox(score, ngrad, 1e-5), "%s: %v %v", c.title, score, ngrad)

		nhess := mat.NewSymDense(p, nil)
		fd.Hessian(nhess, ll, c.params, nil)
		hess := make([]float64, p*p)
		c.model.Hessian(c.params, statmodel.ObsHess, hess)
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				h := nhess.At(i, j)
				assert.InDelta(t, h, hess[i*p+j], 1e-4*(1+math.Abs(h)), "%s (%d, %d)", c.title, i, j)
			}
		}
	}
}

// For canonical links the observed and expected Hessians coincide.
func TestCanonicalHessians(t *testing.T) {

	for _, c := range derivCases(t)[:2] {
		p := len(c.params)
		obs := make([]float64, p*p)
		ehess := make([]float64, p*p)
		par := make([]float64, p)
		for j := range par {
			par[j] = 0.1 * float64(j+1)
		}
		c.model.Hessian(par, statmodel.ObsHess, obs)
		c.model.Hessian(par, statmodel.ExpHess, ehess)
		assert.True(t, floats.EqualApprox(obs, ehess, 1e-12), c.title)
	}
}
