package glm

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// SolverType selects the method used to solve the weighted least
// squares problem in each IRLS iteration.
type SolverType uint8

// QRSolver factors sqrt(W)X with a QR decomposition.  CholeskySolver
// forms and factors the weighted normal equations X'WX, which is
// faster for large data sets but less accurate when X is poorly
// conditioned.
const (
	QRSolver SolverType = iota
	CholeskySolver
)

func (s SolverType) String() string {
	switch s {
	case QRSolver:
		return "qr"
	case CholeskySolver:
		return "cholesky"
	default:
		return fmt.Sprintf("SolverType(%d)", uint8(s))
	}
}

// ParseSolver returns the solver with the given name ("qr" or
// "cholesky").
func ParseSolver(name string) (SolverType, error) {
	switch strings.ToLower(name) {
	case "qr", "":
		return QRSolver, nil
	case "cholesky":
		return CholeskySolver, nil
	default:
		return 0, fmt.Errorf("%w: unknown solver %q", ErrInvalidArgument, name)
	}
}

// A diagonal element of the triangular factor that is this small
// relative to the largest one indicates a rank deficient design.  The
// normal equations square the condition number, so the Cholesky
// factor only resolves half of the digits.
const (
	qrRankTol   = 1e-10
	cholRankTol = 1e-7
)

// WLS returns the coefficients b minimizing sum_i w[i] (z[i] - x[i,:] b)^2.
// An error wrapping ErrRankDeficient is returned if the minimizer is not
// unique.
func WLS(x mat.Matrix, z, w []float64, solver SolverType) (*mat.VecDense, error) {

	n, p := x.Dims()
	switch {
	case len(z) != n || len(w) != n:
		return nil, fmt.Errorf("%w: design has %d rows, response %d, weights %d",
			ErrInvalidArgument, n, len(z), len(w))
	case p == 0:
		return nil, fmt.Errorf("%w: design has no columns", ErrInvalidArgument)
	case n < p:
		return nil, fmt.Errorf("%w: %d observations for %d coefficients", ErrRankDeficient, n, p)
	}
	for i, v := range w {
		if !(v >= 0) || math.IsInf(v, 1) {
			return nil, obsError(ErrInvalidArgument, i, v, "weight must be non-negative and finite")
		}
	}

	switch solver {
	case QRSolver:
		return wlsQR(x, z, w)
	case CholeskySolver:
		xcols := make([][]float64, p)
		for j := range xcols {
			xcols[j] = mat.Col(nil, j, x)
		}
		return wlsCholesky(xcols, z, w, 0)
	default:
		return nil, fmt.Errorf("%w: unknown solver %v", ErrInvalidArgument, solver)
	}
}

func wlsQR(x mat.Matrix, z, w []float64) (*mat.VecDense, error) {

	n, p := x.Dims()

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			a.Set(i, j, sw*x.At(i, j))
		}
		b.SetVec(i, sw*z[i])
	}

	var qr mat.QR
	qr.Factorize(a)
	if err := checkRank(rDiag(&qr, p), qrRankTol); err != nil {
		return nil, err
	}

	beta := mat.NewVecDense(p, nil)
	if err := qr.SolveVecTo(beta, false, b); err != nil {
		return nil, conditionError(err)
	}

	return beta, nil
}

func wlsCholesky(xcols [][]float64, z, w []float64, minConcurrent int) (*mat.VecDense, error) {

	p := len(xcols)
	xtx := make([]float64, p*p)
	xtz := make([]float64, p)
	crossProd(xcols, z, w, xtz, xtx, minConcurrent)

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(p, xtx)); !ok {
		return nil, fmt.Errorf("%w: X'WX is not positive definite", ErrRankDeficient)
	}

	var u mat.TriDense
	chol.UTo(&u)
	diag := make([]float64, p)
	for j := range diag {
		diag[j] = u.At(j, j)
	}
	if err := checkRank(diag, cholRankTol); err != nil {
		return nil, err
	}

	beta := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(beta, mat.NewVecDense(p, xtz)); err != nil {
		return nil, conditionError(err)
	}

	return beta, nil
}

// fullRank returns an error wrapping ErrRankDeficient if the columns
// of x are linearly dependent.
func fullRank(x mat.Matrix) error {

	n, p := x.Dims()
	if n < p {
		return fmt.Errorf("%w: %d observations for %d coefficients", ErrRankDeficient, n, p)
	}

	var qr mat.QR
	qr.Factorize(x)

	return checkRank(rDiag(&qr, p), qrRankTol)
}

func rDiag(qr *mat.QR, p int) []float64 {
	var r mat.Dense
	qr.RTo(&r)
	diag := make([]float64, p)
	for j := range diag {
		diag[j] = r.At(j, j)
	}
	return diag
}

// checkRank inspects the diagonal of a triangular factor.
func checkRank(diag []float64, tol float64) error {

	var dmax float64
	for _, d := range diag {
		dmax = math.Max(dmax, math.Abs(d))
	}
	if dmax == 0 || math.IsNaN(dmax) {
		return fmt.Errorf("%w: weighted design is zero or not finite", ErrRankDeficient)
	}

	for j, d := range diag {
		if math.Abs(d) <= tol*dmax {
			return fmt.Errorf("%w: column %d is linearly dependent on the preceding columns",
				ErrRankDeficient, j)
		}
	}

	return nil
}

func conditionError(err error) error {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return fmt.Errorf("%w: %w", ErrRankDeficient, err)
	}
	return err
}

// crossProd accumulates the lower triangle of x' w x into xtx, and x' w z
// into xtz, then fills in the upper triangle.  If there are at least
// minConcurrent observations, each element is computed in its own
// goroutine.
func crossProd(xcols [][]float64, z, w, xtz, xtx []float64, minConcurrent int) {

	nvar := len(xcols)

	xty := func(j1 int) {
		xda := xcols[j1]
		var u float64
		for i := range z {
			u += z[i] * xda[i] * w[i]
		}
		xtz[j1] = u
	}

	xtxe := func(j1, j2 int) {
		xda, xdb := xcols[j1], xcols[j2]
		var u float64
		for i := range xda {
			u += xda[i] * xdb[i] * w[i]
		}
		xtx[j1*nvar+j2] = u
	}

	if minConcurrent <= 0 || len(w) < minConcurrent {
		for j1 := range xcols {
			if z != nil {
				xty(j1)
			}
			for j2 := 0; j2 <= j1; j2++ {
				xtxe(j1, j2)
			}
		}
	} else {
		var g errgroup.Group
		for j1 := range xcols {
			j1 := j1
			if z != nil {
				g.Go(func() error {
					xty(j1)
					return nil
				})
			}
			for j2 := 0; j2 <= j1; j2++ {
				j2 := j2
				g.Go(func() error {
					xtxe(j1, j2)
					return nil
				})
			}
		}
		_ = g.Wait()
	}

	// Fill in the upper triangle
	for j1 := 0; j1 < nvar; j1++ {
		for j2 := j1 + 1; j2 < nvar; j2++ {
			xtx[j1*nvar+j2] = xtx[j2*nvar+j1]
		}
	}
}
