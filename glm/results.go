package glm

import (
	"fmt"
	"math"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kshedden/glmfamily/statmodel"
)

// GLMResults describes the results of a fitted generalized linear
// model.  It is not modified after Fit returns it; slices returned by
// its methods are copies.
type GLMResults struct {
	statmodel.BaseResults

	fam *Family

	nobs int

	// The response
	y []float64

	// True if the dispersion was estimated
	freeScale bool

	deviance     float64
	nullDeviance float64
	dispersion   float64

	iterations int
	status     FitStatus

	// Fitted means and linear predictor
	mu  []float64
	eta []float64

	devResid     []float64
	pearsonResid []float64
}

// results computes the summary statistics of a fit at the given
// coefficients.
func (glm *GLM) results(params []float64, status FitStatus, iter int) *GLMResults {

	fam := glm.fam
	y := glm.y
	eta, mu := glm.meanAt(params)

	dev, resid := fam.Deviance(y, mu)

	// The intercept-only fit is the weighted mean of the response.
	var ws, wy float64
	for i := range y {
		w := fam.PriorWeight(i)
		ws += w
		wy += w * y[i]
	}
	nulldev := fam.NullDeviance(y, wy/ws)

	pearson := make([]float64, len(y))
	var chi2 float64
	for i := range y {
		w := fam.PriorWeight(i)
		pearson[i] = math.Sqrt(w) * (y[i] - mu[i]) / math.Sqrt(fam.Variance(mu[i]))
		chi2 += pearson[i] * pearson[i]
	}

	// The Pearson estimate needs positive residual degrees of
	// freedom, otherwise the dispersion is NaN and there is no
	// covariance matrix.
	var free bool
	scale := 1.0
	ll := fam.LogLike(y, mu)
	switch glm.dispForm {
	case DispersionFixed:
		scale = glm.dispValue
		ll = fam.LogLikeScale(y, mu, scale)
	case DispersionFree:
		free = true
	default:
		free = fam.EstimatesDispersion()
	}
	if free {
		scale = math.NaN()
		if df := fam.totalFreq(glm.nobs) - float64(glm.nvar); df > 0 {
			scale = chi2 / df
		}
	}

	var vcov []float64
	if !math.IsNaN(scale) {
		var err error
		vcov, err = statmodel.GetVcov(glm, params)
		if err != nil {
			glm.warn("no covariance matrix for the coefficients", "error", err)
			vcov = nil
		} else {
			floats.Scale(scale, vcov)
		}
	}

	return &GLMResults{
		BaseResults:  statmodel.NewBaseResults(ll, params, glm.xnames, vcov),
		fam:          fam,
		nobs:         glm.nobs,
		y:            y,
		freeScale:    free && fam.EstimatesDispersion(),
		deviance:     dev,
		nullDeviance: nulldev,
		dispersion:   scale,
		iterations:   iter,
		status:       status,
		mu:           mu,
		eta:          eta,
		devResid:     resid,
		pearsonResid: pearson,
	}
}

func clone(x []float64) []float64 {
	return append([]float64(nil), x...)
}

// Family returns the family of the fitted model.
func (rslt *GLMResults) Family() *Family {
	return rslt.fam
}

// NumObs returns the number of observations used in the fit.
func (rslt *GLMResults) NumObs() int {
	return rslt.nobs
}

// Deviance returns the deviance of the fitted model.
func (rslt *GLMResults) Deviance() float64 {
	return rslt.deviance
}

// NullDeviance returns the deviance of the model in which all
// observations share one mean.
func (rslt *GLMResults) NullDeviance() float64 {
	return rslt.nullDeviance
}

// Dispersion returns the dispersion (scale) parameter.  By default
// this is 1 for the binomial and Poisson families and the Pearson
// statistic divided by the residual degrees of freedom otherwise.  The
// residual degrees of freedom are the total frequency weight minus the
// number of coefficients; if this is not positive the estimated
// dispersion is NaN.
func (rslt *GLMResults) Dispersion() float64 {
	return rslt.dispersion
}

// Iterations returns the number of iterations used in the fit.
func (rslt *GLMResults) Iterations() int {
	return rslt.iterations
}

// Status returns the termination status of the fit.
func (rslt *GLMResults) Status() FitStatus {
	return rslt.status
}

// Converged reports whether the fit converged.
func (rslt *GLMResults) Converged() bool {
	return rslt.status == Converged
}

// numEstimated is the number of estimated parameters, including the
// dispersion if it is estimated and enters the likelihood.
func (rslt *GLMResults) numEstimated() float64 {
	k := float64(rslt.NumParams())
	if rslt.freeScale {
		k++
	}
	return k
}

// AIC returns the Akaike information criterion.
func (rslt *GLMResults) AIC() float64 {
	return -2*rslt.LogLike() + 2*rslt.numEstimated()
}

// BIC returns the Bayesian information criterion.
func (rslt *GLMResults) BIC() float64 {
	return -2*rslt.LogLike() + math.Log(float64(rslt.nobs))*rslt.numEstimated()
}

// FittedValues returns the fitted means.
func (rslt *GLMResults) FittedValues() []float64 {
	return clone(rslt.mu)
}

// LinearPredictor returns the fitted linear predictor.
func (rslt *GLMResults) LinearPredictor() []float64 {
	return clone(rslt.eta)
}

// DevianceResiduals returns the signed square roots of the deviance
// contributions.
func (rslt *GLMResults) DevianceResiduals() []float64 {
	return clone(rslt.devResid)
}

// PearsonResiduals returns the residuals standardized by the variance
// function.
func (rslt *GLMResults) PearsonResiduals() []float64 {
	return clone(rslt.pearsonResid)
}

// DevianceTest returns the likelihood ratio statistic comparing the
// fitted model to the intercept-only model, its degrees of freedom,
// and the chi-square p-value.  The model is assumed to contain an
// intercept.
func (rslt *GLMResults) DevianceTest() (stat, df, pvalue float64) {

	stat = (rslt.nullDeviance - rslt.deviance) / rslt.dispersion
	df = float64(rslt.NumParams() - 1)
	if df < 1 {
		return stat, df, math.NaN()
	}

	chi2 := distuv.ChiSquared{K: df}
	return stat, df, chi2.Survival(stat)
}

// Predict returns the predicted means for the covariates in x, which
// must have the same columns as the design matrix used in the fit.
// The offset may be nil.
func (rslt *GLMResults) Predict(x mat.Matrix, offset []float64) ([]float64, error) {

	n, p := x.Dims()
	if p != rslt.NumParams() {
		return nil, fmt.Errorf("%w: data have %d columns, model has %d coefficients",
			ErrInvalidArgument, p, rslt.NumParams())
	}
	if offset != nil && len(offset) != n {
		return nil, fmt.Errorf("%w: offset has length %d, expected %d", ErrInvalidArgument, len(offset), n)
	}

	var lp mat.VecDense
	lp.MulVec(x, mat.NewVecDense(p, rslt.Params()))

	pred := make([]float64, n)
	for i := range pred {
		eta := lp.AtVec(i)
		if offset != nil {
			eta += offset[i]
		}
		pred[i] = rslt.fam.InvLink(eta)
	}

	return pred, nil
}

// GLMSummary summarizes a fitted generalized linear model.
type GLMSummary struct {

	// The results structure
	results *GLMResults

	// Transform the parameters with this function.  If nil,
	// no transformation is applied.  If paramXform is provided,
	// the standard error and Z-score are not shown.
	paramXform func(float64) float64

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *GLMResults) Summary() *GLMSummary {
	return &GLMSummary{
		results: rslt,
	}
}

// SetScale sets the scale on which the parameter results are
// displayed in the summary.  'xf' is a function that maps
// parameters and confidence limits from the linear scale to
// the desired scale.  'msg' is a message that is appended
// to the summary table.
func (gs *GLMSummary) SetScale(xf func(float64) float64, msg string) *GLMSummary {
	gs.paramXform = xf
	gs.messages = append(gs.messages, msg)
	return gs
}

// String returns a string representation of a summary table for the model.
func (gs *GLMSummary) String() string {

	rslt := gs.results

	xf := func(x float64) float64 {
		return x
	}
	if gs.paramXform != nil {
		xf = gs.paramXform
	}

	sum := &statmodel.SummaryTable{
		Title: "Generalized linear model analysis",
		Msg:   gs.messages,
		Top: []string{
			fmt.Sprintf("Family:   %s", rslt.fam.Name),
			fmt.Sprintf("Link:     %s", rslt.fam.LinkFunc().Name),
			fmt.Sprintf("Variance: %s", rslt.fam.VarFunc().Name),
			fmt.Sprintf("Num obs:  %d", rslt.nobs),
			fmt.Sprintf("Scale:    %f", rslt.dispersion),
			fmt.Sprintf("Status:   %s", rslt.status),
			fmt.Sprintf("Deviance: %.4f", rslt.deviance),
			fmt.Sprintf("Null dev: %.4f", rslt.nullDeviance),
			fmt.Sprintf("LogLike:  %.4f", rslt.LogLike()),
			fmt.Sprintf("AIC:      %.4f", rslt.AIC()),
		},
	}

	if !rslt.Converged() {
		sum.Msg = append(sum.Msg, fmt.Sprintf("Warning: the fit did not converge (%s after %d iterations)",
			rslt.status, rslt.iterations))
	}

	se := rslt.StdErr()
	if se == nil {
		sum.ColNames = []string{"Variable   ", "Parameter"}
		sum.ColFmt = []statmodel.Fmter{statmodel.StringFmt, statmodel.FloatFmt}
		par := rslt.Params()
		for j := range par {
			par[j] = xf(par[j])
		}
		sum.Cols = []interface{}{rslt.Names(), par}
		return sum.String()
	}

	// Create estimate and CI for the parameters
	var par, lcb, ucb []float64
	for j, p := range rslt.Params() {
		par = append(par, xf(p))
		lcb = append(lcb, xf(p-2*se[j]))
		ucb = append(ucb, xf(p+2*se[j]))
	}

	fs, fn := statmodel.StringFmt, statmodel.FloatFmt
	if gs.paramXform == nil {
		sum.ColNames = []string{"Variable   ", "Parameter", "SE", "LCB", "UCB", "Z-score", "P-value"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn, fn, fn}
		sum.Cols = []interface{}{rslt.Names(), par, se, lcb, ucb, rslt.ZScores(), rslt.PValues()}
	} else {
		sum.ColNames = []string{"Variable   ", "Parameter", "LCB", "UCB", "P-value"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn}
		sum.Cols = []interface{}{rslt.Names(), par, lcb, ucb, rslt.PValues()}
	}

	return sum.String()
}

type resultsJSON struct {
	Family       string     `json:"family"`
	Link         string     `json:"link"`
	NumObs       int        `json:"num_obs"`
	Names        []string   `json:"names"`
	Params       []*float64 `json:"params"`
	StdErr       []*float64 `json:"stderr,omitempty"`
	PValues      []*float64 `json:"pvalues,omitempty"`
	Deviance     *float64   `json:"deviance"`
	NullDeviance *float64   `json:"null_deviance"`
	LogLike      *float64   `json:"loglike"`
	AIC          *float64   `json:"aic"`
	Dispersion   *float64   `json:"dispersion"`
	Iterations   int        `json:"iterations"`
	Converged    bool       `json:"converged"`
	Status       string     `json:"status"`
}

// Non-finite values are written as null.
func jsonFloat(x float64) *float64 {
	if !finite(x) {
		return nil
	}
	return &x
}

func jsonFloats(x []float64) []*float64 {
	if x == nil {
		return nil
	}
	y := make([]*float64, len(x))
	for i, v := range x {
		y[i] = jsonFloat(v)
	}
	return y
}

// MarshalJSON encodes the coefficients and fit statistics.
func (rslt *GLMResults) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultsJSON{
		Family:       rslt.fam.Name,
		Link:         rslt.fam.LinkFunc().Name,
		NumObs:       rslt.nobs,
		Names:        rslt.Names(),
		Params:       jsonFloats(rslt.Params()),
		StdErr:       jsonFloats(rslt.StdErr()),
		PValues:      jsonFloats(rslt.PValues()),
		Deviance:     jsonFloat(rslt.deviance),
		NullDeviance: jsonFloat(rslt.nullDeviance),
		LogLike:      jsonFloat(rslt.LogLike()),
		AIC:          jsonFloat(rslt.AIC()),
		Dispersion:   jsonFloat(rslt.dispersion),
		Iterations:   rslt.iterations,
		Converged:    rslt.Converged(),
		Status:       rslt.status.String(),
	})
}
