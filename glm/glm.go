package glm

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/glmfamily/statmodel"
)

// Default settings for fitting.
const (
	DefaultMaxIter        = 25
	DefaultTol            = 1e-8
	DefaultConcurrentIRLS = 1000
)

// DispersionForm determines how the dispersion parameter of a fit is
// obtained.
type DispersionForm uint8

// DispersionDefault estimates the dispersion for the Gaussian, Gamma
// and inverse Gaussian families and fixes it at 1 for the binomial and
// Poisson families.  DispersionFree always uses the Pearson estimate,
// which gives quasi-likelihood standard errors for the binomial and
// Poisson families.  DispersionFixed uses a given value.
const (
	DispersionDefault DispersionForm = iota
	DispersionFree
	DispersionFixed
)

func (df DispersionForm) String() string {
	switch df {
	case DispersionDefault:
		return "default"
	case DispersionFree:
		return "free"
	case DispersionFixed:
		return "fixed"
	default:
		return fmt.Sprintf("DispersionForm(%d)", uint8(df))
	}
}

// GLM represents a generalized linear model.
type GLM struct {

	// The design matrix, and its columns
	x     *mat.Dense
	xcols [][]float64

	// The response
	y []float64

	// Optional offset, added to the linear predictor
	offset []float64

	// Optional frequency weights
	weight []float64

	// How the dispersion is obtained, and its value if fixed
	dispForm  DispersionForm
	dispValue float64

	// Names of the covariates
	xnames []string

	// The GLM family
	fam *Family

	// The link function, if different from the family's link
	link *Link

	// Either IRLS (default) or gradient.
	fitMethod string

	// Starting values, optional
	start []float64

	// Maximum number of iterations and relative tolerance of the
	// deviance used to assess convergence.
	maxiter int
	tol     float64

	// Method for solving the least squares problems
	solver SolverType

	// If not nil, write log messages here
	log *slog.Logger

	// Use concurrent calculations in IRLS if there are at least
	// this many observations.
	concurrentIRLS int

	nobs int
	nvar int

	// The first configuration error, reported by Done.
	err error

	done bool
}

// NewGLM creates a new GLM for the given design matrix and response.
// The data are copied.  Call Family and any other configuration
// methods, then Done, before calling Fit.
func NewGLM(x mat.Matrix, y []float64) *GLM {

	glm := &GLM{
		y:              append([]float64(nil), y...),
		fitMethod:      "irls",
		maxiter:        DefaultMaxIter,
		tol:            DefaultTol,
		concurrentIRLS: DefaultConcurrentIRLS,
	}

	if x == nil {
		glm.err = fmt.Errorf("%w: design matrix is nil", ErrInvalidArgument)
		return glm
	}

	glm.x = mat.DenseCopyOf(x)
	glm.nobs, glm.nvar = glm.x.Dims()

	return glm
}

// Family sets the GLM family.
func (glm *GLM) Family(fam *Family) *GLM {
	glm.fam = fam
	return glm
}

// Link sets the link function.  It must be one of the valid links
// for the family.
func (glm *GLM) Link(link *Link) *GLM {
	glm.link = link
	return glm
}

// Offset sets an offset, a fixed term added to the linear predictor.
func (glm *GLM) Offset(off []float64) *GLM {
	glm.offset = append([]float64(nil), off...)
	return glm
}

// Weight sets frequency weights: observation i counts as w[i]
// replicates.  The weights must be positive.
func (glm *GLM) Weight(w []float64) *GLM {
	glm.weight = append([]float64(nil), w...)
	return glm
}

// Dispersion sets how the dispersion parameter is obtained.  The value
// is only used with DispersionFixed.
func (glm *GLM) Dispersion(form DispersionForm, value float64) *GLM {
	glm.dispForm = form
	glm.dispValue = value
	return glm
}

// Names sets the names of the covariates, used in summaries.
func (glm *GLM) Names(names []string) *GLM {
	glm.xnames = append([]string(nil), names...)
	return glm
}

// Start sets starting values for the fitting algorithm.
func (glm *GLM) Start(start []float64) *GLM {
	glm.start = append([]float64(nil), start...)
	return glm
}

// MaxIter sets the maximum number of iterations.
func (glm *GLM) MaxIter(n int) *GLM {
	glm.maxiter = n
	return glm
}

// Tol sets the convergence tolerance for the relative change in the
// deviance.
func (glm *GLM) Tol(tol float64) *GLM {
	glm.tol = tol
	return glm
}

// Solver sets the method used to solve the weighted least squares
// problems.
func (glm *GLM) Solver(s SolverType) *GLM {
	glm.solver = s
	return glm
}

// FitMethod sets the fitting method, either IRLS or gradient.
func (glm *GLM) FitMethod(method string) *GLM {
	lmethod := strings.ToLower(method)
	if lmethod != "irls" && lmethod != "gradient" {
		glm.setErr(fmt.Errorf("%w: GLM fitting method %s not allowed", ErrInvalidArgument, method))
		return glm
	}
	glm.fitMethod = lmethod
	return glm
}

// ConcurrentIRLS sets the minimum number of observations for which
// concurrent calculations are used.  Zero or a negative value
// disables concurrency.
func (glm *GLM) ConcurrentIRLS(n int) *GLM {
	glm.concurrentIRLS = n
	return glm
}

// Log takes a Logger value that will be used to log the progress of
// the fit.
func (glm *GLM) Log(log *slog.Logger) *GLM {
	glm.log = log
	return glm
}

// Settings applies the fitting settings in s.  Zero-valued fields
// leave the current setting unchanged.
func (glm *GLM) Settings(s *Settings) *GLM {
	if s.Solver != "" {
		solver, err := ParseSolver(s.Solver)
		if err != nil {
			glm.setErr(err)
			return glm
		}
		glm.Solver(solver)
	}
	if s.MaxIter != 0 {
		glm.MaxIter(s.MaxIter)
	}
	if s.Tol != 0 {
		glm.Tol(s.Tol)
	}
	if s.ConcurrentIRLS != 0 {
		glm.ConcurrentIRLS(s.ConcurrentIRLS)
	}
	if s.FitMethod != "" {
		glm.FitMethod(s.FitMethod)
	}
	return glm
}

func (glm *GLM) setErr(err error) {
	if glm.err == nil {
		glm.err = err
	}
}

// Done completes definition of a GLM.  After calling Done the GLM can
// be fit by calling the Fit method.
func (glm *GLM) Done() (*GLM, error) {

	if glm.err != nil {
		return nil, glm.err
	}

	if glm.fam == nil {
		return nil, fmt.Errorf("%w: the family must be defined before calling Done", ErrInvalidArgument)
	}

	if glm.link != nil {
		fam, err := glm.fam.WithLink(glm.link)
		if err != nil {
			return nil, err
		}
		glm.fam = fam
	}

	switch {
	case len(glm.y) != glm.nobs:
		return nil, fmt.Errorf("%w: response has length %d, design matrix has %d rows",
			ErrInvalidArgument, len(glm.y), glm.nobs)
	case glm.offset != nil && len(glm.offset) != glm.nobs:
		return nil, fmt.Errorf("%w: offset has length %d, expected %d",
			ErrInvalidArgument, len(glm.offset), glm.nobs)
	case glm.weight != nil && len(glm.weight) != glm.nobs:
		return nil, fmt.Errorf("%w: %d weights, expected %d",
			ErrInvalidArgument, len(glm.weight), glm.nobs)
	case glm.start != nil && len(glm.start) != glm.nvar:
		return nil, fmt.Errorf("%w: %d starting values for %d coefficients",
			ErrInvalidArgument, len(glm.start), glm.nvar)
	case glm.xnames != nil && len(glm.xnames) != glm.nvar:
		return nil, fmt.Errorf("%w: %d names for %d coefficients",
			ErrInvalidArgument, len(glm.xnames), glm.nvar)
	case glm.maxiter < 1:
		return nil, fmt.Errorf("%w: maximum iterations %d must be positive", ErrInvalidArgument, glm.maxiter)
	case !(glm.tol > 0):
		return nil, fmt.Errorf("%w: tolerance %g must be positive", ErrInvalidArgument, glm.tol)
	case glm.dispForm > DispersionFixed:
		return nil, fmt.Errorf("%w: unknown dispersion form %v", ErrInvalidArgument, glm.dispForm)
	case glm.dispForm == DispersionFixed && (!(glm.dispValue > 0) || math.IsInf(glm.dispValue, 1)):
		return nil, fmt.Errorf("%w: fixed dispersion %g must be positive and finite",
			ErrInvalidArgument, glm.dispValue)
	}

	if glm.weight != nil {
		for i, w := range glm.weight {
			if !(w > 0) || math.IsInf(w, 1) {
				return nil, obsError(ErrInvalidArgument, i, w, "weight must be positive and finite")
			}
		}
		glm.fam = glm.fam.withFreqWeights(glm.weight)
	}

	if err := glm.fam.Validate(glm.nobs); err != nil {
		return nil, err
	}

	if glm.xnames == nil {
		glm.xnames = make([]string, glm.nvar)
		for j := range glm.xnames {
			glm.xnames[j] = fmt.Sprintf("x%d", j+1)
		}
	}

	glm.xcols = make([][]float64, glm.nvar)
	for j := range glm.xcols {
		glm.xcols[j] = mat.Col(nil, j, glm.x)
	}

	glm.done = true

	return glm, nil
}

// NumParams returns the number of covariates in the model.
func (glm *GLM) NumParams() int {
	return glm.nvar
}

// NumObs returns the number of observations in the model.
func (glm *GLM) NumObs() int {
	return glm.nobs
}

// Fit estimates the parameters of the GLM and returns a results
// object.  A fit that does not converge is not an error; check
// Converged or Status on the results.
func (glm *GLM) Fit() (*GLMResults, error) {

	if !glm.done {
		return nil, fmt.Errorf("%w: Done must be called before Fit", ErrInvalidArgument)
	}

	var params []float64
	var status FitStatus
	var iter int
	var err error

	if glm.fitMethod == "gradient" {
		glm.info("unregularized fitting using gradient optimization")
		params, status, iter, err = glm.fitGradient()
	} else {
		glm.info("unregularized fitting using IRLS", "solver", glm.solver.String())
		params, status, iter, err = glm.fitIRLS()
	}
	if err != nil {
		return nil, err
	}

	glm.info("fit complete", "status", status.String(), "iterations", iter)

	return glm.results(params, status, iter), nil
}

// Fit fits a GLM with the given design matrix, response and family
// using IRLS.  A non-positive maxIter or tol selects the default.
func Fit(x mat.Matrix, y []float64, fam *Family, maxIter int, tol float64) (*GLMResults, error) {

	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	if tol <= 0 {
		tol = DefaultTol
	}

	model, err := NewGLM(x, y).Family(fam).MaxIter(maxIter).Tol(tol).Done()
	if err != nil {
		return nil, err
	}

	return model.Fit()
}

// linPred sets eta to the linear predictor at the given coefficients.
func (glm *GLM) linPred(coeff, eta []float64) {
	zero(eta)
	for j, x := range glm.xcols {
		floats.AddScaled(eta, coeff[j], x)
	}
	if glm.offset != nil {
		floats.Add(eta, glm.offset)
	}
}

// meanAt returns the linear predictor and the mean at the given
// coefficients.
func (glm *GLM) meanAt(coeff []float64) ([]float64, []float64) {
	eta := make([]float64, glm.nobs)
	mu := make([]float64, glm.nobs)
	glm.linPred(coeff, eta)
	for i, e := range eta {
		mu[i] = glm.fam.InvLink(e)
	}
	return eta, mu
}

// LogLike returns the log-likelihood value for the generalized linear
// model at the given coefficients.
func (glm *GLM) LogLike(coeff []float64) float64 {
	_, mu := glm.meanAt(coeff)
	return glm.fam.LogLike(glm.y, mu)
}

// Deviance returns the deviance at the given coefficients.
func (glm *GLM) Deviance(coeff []float64) float64 {
	_, mu := glm.meanAt(coeff)
	return glm.fam.DevianceTo(nil, glm.y, mu)
}

// Score returns the score vector of the log-likelihood (with the
// dispersion fixed at 1) at the given coefficients.
func (glm *GLM) Score(coeff []float64, score []float64) {

	_, mu := glm.meanAt(coeff)

	fac := make([]float64, glm.nobs)
	for i, y := range glm.y {
		m := mu[i]
		fac[i] = glm.fam.PriorWeight(i) * (y - m) / (glm.fam.DLink(m) * glm.fam.Variance(m))
	}

	for j, x := range glm.xcols {
		score[j] = floats.Dot(fac, x)
	}
}

// Hessian returns the Hessian matrix of the log-likelihood (with the
// dispersion fixed at 1) at the given coefficients.  The Hessian is
// returned as a one-dimensional array, which is the vectorized form
// of the Hessian matrix.  Either the observed or expected Hessian can
// be calculated.
func (glm *GLM) Hessian(coeff []float64, ht statmodel.HessType, hess []float64) {

	_, mu := glm.meanAt(coeff)
	link := glm.fam.LinkFunc()
	vari := glm.fam.VarFunc()

	fac := make([]float64, glm.nobs)
	for i, y := range glm.y {
		m := mu[i]
		d := link.Deriv(m)
		v := vari.Var(m)
		fac[i] = glm.fam.PriorWeight(i) / (d * d * v)

		// The observed Hessian has an extra term that vanishes
		// for canonical links.
		if ht == statmodel.ObsHess {
			h := v*link.Deriv2(m) + d*vari.Deriv(m)
			fac[i] *= 1 + h*(y-m)/(d*v)
		}
	}

	crossProd(glm.xcols, nil, fac, nil, hess, glm.concurrentIRLS)
	floats.Scale(-1, hess)
}

func (glm *GLM) debug(msg string, args ...any) {
	if glm.log != nil {
		glm.log.Debug("glm: "+msg, args...)
	}
}

func (glm *GLM) info(msg string, args ...any) {
	if glm.log != nil {
		glm.log.Info("glm: "+msg, args...)
	}
}

func (glm *GLM) warn(msg string, args ...any) {
	if glm.log != nil {
		glm.log.Warn("glm: "+msg, args...)
	}
}

// zero sets all elements of the slice to 0
func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
