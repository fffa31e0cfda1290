package glm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var solvers = []SolverType{QRSolver, CholeskySolver}

func TestWLSWeightedMean(t *testing.T) {

	// With an intercept-only design the solution is the weighted mean.
	x := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	z := []float64{1, 2, 4, 8}
	w := []float64{1, 0, 2, 1}

	for _, s := range solvers {
		b, err := WLS(x, z, w, s)
		require.NoError(t, err, s.String())
		assert.InDelta(t, 17.0/4, b.AtVec(0), 1e-12, s.String())
	}
}

func TestWLSSolversAgree(t *testing.T) {

	x := mat.NewDense(6, 3, []float64{
		1, 0.5, -1,
		1, 1.5, 2,
		1, -2, 0.5,
		1, 3, 1,
		1, 0, -2.5,
		1, 1, 1.5,
	})
	z := []float64{1, -0.5, 2, 0.25, 3, -1}
	w := []float64{1, 2, 0.5, 1, 3, 1.5}

	bq, err := WLS(x, z, w, QRSolver)
	require.NoError(t, err)
	bc, err := WLS(x, z, w, CholeskySolver)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox(bq.RawVector().Data, bc.RawVector().Data, 1e-10))

	// The residuals are orthogonal to the weighted design.
	var fit mat.VecDense
	fit.MulVec(x, bq)
	for j := 0; j < 3; j++ {
		var u float64
		for i := range z {
			u += w[i] * x.At(i, j) * (z[i] - fit.AtVec(i))
		}
		assert.InDelta(t, 0, u, 1e-10)
	}
}

func TestWLSRankDeficient(t *testing.T) {

	// The third column is the sum of the first two.
	x := mat.NewDense(5, 3, []float64{
		1, 0, 1,
		1, 2, 3,
		1, -1, 0,
		1, 4, 5,
		1, 1, 2,
	})
	z := []float64{1, 2, 3, 4, 5}
	w := []float64{1, 1, 1, 1, 1}

	for _, s := range solvers {
		_, err := WLS(x, z, w, s)
		assert.True(t, errors.Is(err, ErrRankDeficient), "%s: %v", s, err)
	}

	// More coefficients than observations
	_, err := WLS(mat.NewDense(2, 3, nil), z[:2], w[:2], QRSolver)
	assert.ErrorIs(t, err, ErrRankDeficient)

	// Zero weights remove the only observations that identify a column.
	x = mat.NewDense(4, 2, []float64{1, 0, 1, 0, 1, 1, 1, 0})
	_, err = WLS(x, z[:4], []float64{1, 1, 0, 1}, QRSolver)
	assert.ErrorIs(t, err, ErrRankDeficient)
}

func TestWLSInvalid(t *testing.T) {

	x := mat.NewDense(3, 1, []float64{1, 1, 1})

	_, err := WLS(x, []float64{1, 2}, []float64{1, 1, 1}, QRSolver)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = WLS(x, []float64{1, 2, 3}, []float64{1, -1, 1}, QRSolver)
	require.ErrorIs(t, err, ErrInvalidArgument)
	var oe *ObsError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 1, oe.Obs)

	_, err = WLS(x, []float64{1, 2, 3}, []float64{1, 1, 1}, SolverType(7))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseSolver(t *testing.T) {

	for name, want := range map[string]SolverType{"": QRSolver, "qr": QRSolver, "Cholesky": CholeskySolver} {
		s, err := ParseSolver(name)
		require.NoError(t, err)
		assert.Equal(t, want, s)
	}

	_, err := ParseSolver("lu")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "cholesky", CholeskySolver.String())
}

func TestCrossProdConcurrent(t *testing.T) {

	n := 50
	xcols := [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	z := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		xcols[0][i] = 1
		xcols[1][i] = float64(i%7) - 3
		xcols[2][i] = float64(i) / 10
		z[i] = float64(i % 5)
		w[i] = 1 + float64(i%3)
	}

	xtx1, xtz1 := make([]float64, 9), make([]float64, 3)
	xtx2, xtz2 := make([]float64, 9), make([]float64, 3)
	crossProd(xcols, z, w, xtz1, xtx1, 0)
	crossProd(xcols, z, w, xtz2, xtx2, 1)

	assert.Equal(t, xtx1, xtx2)
	assert.Equal(t, xtz1, xtz2)

	// Symmetric
	for j1 := 0; j1 < 3; j1++ {
		for j2 := 0; j2 < 3; j2++ {
			assert.Equal(t, xtx1[j1*3+j2], xtx1[j2*3+j1])
		}
	}
}
