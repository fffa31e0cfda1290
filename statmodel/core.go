package statmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// HessType indicates the type of a Hessian matrix for a log-likelihood.
type HessType int

// ObsHess (observed Hessian) and ExpHess (expected Hessian) are the two type of log-likelihood
// Hessian matrices
const (
	ObsHess HessType = iota
	ExpHess
)

// RegFitter is a regression model whose coefficients can be assessed
// through the curvature of its objective function.
type RegFitter interface {

	// Number of parameters in the model.
	NumParams() int

	// Number of observations in the data set
	NumObs() int

	// Score vector of the objective at the given coefficients.
	Score(coeff []float64, score []float64)

	// Hessian of the objective at the given coefficients,
	// vectorized in row-major order.
	Hessian(coeff []float64, ht HessType, hess []float64)
}

// BaseResultser is a fitted model that can produce results (parameter estimates, etc.).
type BaseResultser interface {
	Names() []string
	LogLike() float64
	Params() []float64
	VCov() []float64
	StdErr() []float64
	ZScores() []float64
	PValues() []float64
}

// BaseResults contains the results after fitting a model to data.
// All derived quantities are computed once, when the value is
// constructed.
type BaseResults struct {
	nparam  int
	loglike float64
	params  []float64
	xnames  []string
	vcov    []float64
	stderr  []float64
	zscores []float64
	pvalues []float64
}

// NewBaseResults returns a BaseResults for the given point estimates and
// sampling covariance matrix.  The covariance matrix may be nil, in which
// case no standard errors or test statistics are available.  The slices
// are copied.
func NewBaseResults(loglike float64, params []float64, xnames []string, vcov []float64) BaseResults {

	p := len(params)
	if vcov != nil && len(vcov) != p*p {
		msg := fmt.Sprintf("statmodel: vcov has length %d, expected %d\n", len(vcov), p*p)
		panic(msg)
	}

	rslt := BaseResults{
		nparam:  p,
		loglike: loglike,
		params:  clone(params),
		xnames:  append([]string(nil), xnames...),
		vcov:    clone(vcov),
	}

	if vcov == nil {
		return rslt
	}

	rslt.stderr = make([]float64, p)
	rslt.zscores = make([]float64, p)
	rslt.pvalues = make([]float64, p)
	for i := range rslt.stderr {
		rslt.stderr[i] = math.Sqrt(rslt.vcov[i*p+i])
		rslt.zscores[i] = rslt.params[i] / rslt.stderr[i]
		rslt.pvalues[i] = 2 * distuv.UnitNormal.CDF(-math.Abs(rslt.zscores[i]))
	}

	return rslt
}

func clone(x []float64) []float64 {
	if x == nil {
		return nil
	}
	y := make([]float64, len(x))
	copy(y, x)
	return y
}

// NumParams returns the number of coefficients.
func (rslt *BaseResults) NumParams() int {
	return rslt.nparam
}

// Names returns the covariate names for the variables in the model.
func (rslt *BaseResults) Names() []string {
	return append([]string(nil), rslt.xnames...)
}

// Params returns the point estimates for the parameters in the model.
func (rslt *BaseResults) Params() []float64 {
	return clone(rslt.params)
}

// VCov returns the sampling variance/covariance model for the parameters in the model.
// The matrix is vetorized to one dimension.
func (rslt *BaseResults) VCov() []float64 {
	return clone(rslt.vcov)
}

// LogLike returns the log-likelihood or objective function value for the fitted model.
func (rslt *BaseResults) LogLike() float64 {
	return rslt.loglike
}

// StdErr returns the standard errors for the parameters in the model.
func (rslt *BaseResults) StdErr() []float64 {
	return clone(rslt.stderr)
}

// ZScores returns the Z-scores (the parameter estimates divided by the standard errors).
func (rslt *BaseResults) ZScores() []float64 {
	return clone(rslt.zscores)
}

// PValues returns the p-values for the null hypothesis that each parameter's population
// value is equal to zero.
func (rslt *BaseResults) PValues() []float64 {
	return clone(rslt.pvalues)
}

// GetVcov returns the sampling variance/covariance matrix for the
// parameter estimates, the negative inverse of the expected Hessian.
func GetVcov(model RegFitter, coeff []float64) ([]float64, error) {
	nvar := model.NumParams()
	hess := make([]float64, nvar*nvar)
	model.Hessian(coeff, ExpHess, hess)
	hmat := mat.NewDense(nvar, nvar, hess)

	var himat mat.Dense
	if err := himat.Inverse(hmat); err != nil {
		return nil, fmt.Errorf("statmodel: can't invert Hessian: %w", err)
	}
	himat.Scale(-1, &himat)

	return himat.RawMatrix().Data, nil
}
