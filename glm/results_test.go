package glm

import (
	"math"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/glmfamily/statmodel"
)

func fitIndex(t *testing.T, k int) *GLMResults {
	c := fitCases()[k]
	rslt, err := Fit(c.x, c.y, c.fam, 0, 0)
	require.NoError(t, err)
	return rslt
}

func TestInformationCriteria(t *testing.T) {

	// Binomial: three coefficients, no dispersion
	rslt := fitIndex(t, 0)
	ll := rslt.LogLike()
	assert.InDelta(t, -2*ll+6, rslt.AIC(), 1e-12)
	assert.InDelta(t, -2*ll+3*math.Log(7), rslt.BIC(), 1e-12)

	// Gaussian: the dispersion counts as a parameter
	rslt = fitIndex(t, 3)
	ll = rslt.LogLike()
	assert.InDelta(t, -2*ll+6, rslt.AIC(), 1e-12)
	assert.InDelta(t, -2*ll+3*math.Log(7), rslt.BIC(), 1e-12)
}

func TestDevianceTest(t *testing.T) {

	rslt := fitIndex(t, 2)
	stat, df, pv := rslt.DevianceTest()
	assert.InDelta(t, 7.227760172256075-6.602720127557717, stat, 1e-8)
	assert.Equal(t, 1.0, df)

	// Chi-square survival function with one degree of freedom
	assert.InDelta(t, math.Erfc(math.Sqrt(stat/2)), pv, 1e-10)

	// No test without covariates
	x := design(xd1).Slice(0, 7, 0, 1)
	r0, err := Fit(x, yCount, NewPoissonFamily(), 0, 0)
	require.NoError(t, err)
	_, df, pv = r0.DevianceTest()
	assert.Equal(t, 0.0, df)
	assert.True(t, math.IsNaN(pv))
}

func TestResiduals(t *testing.T) {

	for k, c := range fitCases() {
		rslt := fitIndex(t, k)
		mu := rslt.FittedValues()

		dr := rslt.DevianceResiduals()
		assert.InDelta(t, rslt.Deviance(), floats.Dot(dr, dr), 1e-10, c.title)

		pr := rslt.PearsonResiduals()
		fam := rslt.Family()
		for i := range pr {
			want := (c.y[i] - mu[i]) / math.Sqrt(fam.Variance(mu[i]))
			assert.InDelta(t, want, pr[i], 1e-10, c.title)
		}

		// Estimated dispersion is the Pearson statistic over the
		// residual degrees of freedom.
		if fam.EstimatesDispersion() {
			assert.InDelta(t, floats.Dot(pr, pr)/float64(7-rslt.NumParams()), rslt.Dispersion(), 1e-10)
		}
	}
}

func TestResultsCopies(t *testing.T) {

	rslt := fitIndex(t, 2)
	p := rslt.Params()
	p[0] = 99
	mu := rslt.FittedValues()
	mu[0] = 99
	names := rslt.Names()
	names[0] = "changed"

	assert.NotEqual(t, 99.0, rslt.Params()[0])
	assert.NotEqual(t, 99.0, rslt.FittedValues()[0])
	assert.Equal(t, "x1", rslt.Names()[0])
}

func TestPredict(t *testing.T) {

	rslt := fitIndex(t, 0)
	c := fitCases()[0]

	pred, err := rslt.Predict(c.x, nil)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox(pred, rslt.FittedValues(), 1e-12))

	xnew := mat.NewDense(2, 3, []float64{1, 0, 0, 1, 2, -1})
	pred, err = rslt.Predict(xnew, nil)
	require.NoError(t, err)
	par := rslt.Params()
	assert.InDelta(t, expit(par[0]), pred[0], 1e-12)
	assert.InDelta(t, expit(par[0]+2*par[1]-par[2]), pred[1], 1e-12)

	_, err = rslt.Predict(mat.NewDense(2, 2, nil), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = rslt.Predict(xnew, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSummary(t *testing.T) {

	c := fitCases()[0]
	model, err := NewGLM(c.x, c.y).Family(c.fam).Names([]string{"icept", "age", "dose"}).Done()
	require.NoError(t, err)
	rslt, err := model.Fit()
	require.NoError(t, err)

	s := rslt.Summary().String()
	for _, w := range []string{"Generalized linear model analysis", "Family:   Binomial",
		"Link:     Logit", "icept", "age", "dose", "SE", "P-value", "-1.6501"} {
		assert.Contains(t, s, w)
	}
	assert.NotContains(t, s, "did not converge")

	s = rslt.Summary().SetScale(math.Exp, "Parameters are shown as odds ratios").String()
	assert.Contains(t, s, "Parameters are shown as odds ratios")
	assert.NotContains(t, s, "Z-score")
	assert.Contains(t, s, "0.1920")

	// Without a covariance matrix only the coefficients are shown.
	bare := &GLMResults{
		BaseResults: statmodel.NewBaseResults(-1, []float64{0.5, 0.25}, []string{"a", "b"}, nil),
		fam:         NewPoissonFamily(),
		nobs:        10,
		status:      Converged,
	}
	s = bare.Summary().String()
	assert.Contains(t, s, "Parameter")
	assert.NotContains(t, s, "SE")
	assert.Contains(t, s, "    0.2500")
	assert.Equal(t, 1, strings.Count(s, "Parameter"))
}

func TestMarshalJSON(t *testing.T) {

	rslt := fitIndex(t, 2)
	b, err := json.Marshal(rslt)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "Poisson", m["family"])
	assert.Equal(t, "Log", m["link"])
	assert.Equal(t, true, m["converged"])
	assert.Equal(t, "converged", m["status"])
	assert.Equal(t, 7.0, m["num_obs"])
	assert.Equal(t, []interface{}{"x1", "x2"}, m["names"])

	par := m["params"].([]interface{})
	require.Len(t, par, 2)
	assert.InDelta(t, 0.2133612949573632, par[0].(float64), 1e-6)
	assert.InDelta(t, 6.602720127557717, m["deviance"].(float64), 1e-8)

	// Non-finite values are written as null.
	bad := &GLMResults{
		BaseResults: statmodel.NewBaseResults(math.Inf(1), []float64{1, math.NaN()}, []string{"a", "b"}, nil),
		fam:         NewGaussianFamily(),
		nobs:        7,
		status:      Diverged,
	}
	b, err = json.Marshal(bad)
	require.NoError(t, err)
	m = nil
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Nil(t, m["loglike"])
	assert.Nil(t, m["aic"])
	assert.Equal(t, []interface{}{1.0, nil}, m["params"])
	assert.NotContains(t, m, "stderr")
	assert.Equal(t, false, m["converged"])
	assert.Equal(t, "diverged", m["status"])
}

func TestDispersionNoDF(t *testing.T) {

	// As many coefficients as observations
	rslt, err := Fit(design([]float64{0, 1}), []float64{1, 3}, NewGaussianFamily(), 0, 0)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox([]float64{1, 2}, rslt.Params(), 1e-10))
	assert.True(t, math.IsNaN(rslt.Dispersion()))
	assert.Nil(t, rslt.VCov())
	assert.Nil(t, rslt.StdErr())
	assert.Contains(t, rslt.Summary().String(), "Parameter")

	b, err := json.Marshal(rslt)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Nil(t, m["dispersion"])

	// A fixed dispersion does not need residual degrees of freedom.
	model, err := NewGLM(design([]float64{0, 1}), []float64{1, 3}).Family(NewGaussianFamily()).
		Dispersion(DispersionFixed, 0.5).Done()
	require.NoError(t, err)
	rslt, err = model.Fit()
	require.NoError(t, err)
	assert.Equal(t, 0.5, rslt.Dispersion())
	assert.Len(t, rslt.StdErr(), 2)
}
