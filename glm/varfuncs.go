package glm

import (
	"fmt"
)

// VarianceType is used to specify a GLM variance function.
type VarianceType uint8

// BinomialVar, etc. indicate the mean/variance relationships
// mu(1-mu), mu, 1, mu^2 and mu^3.
const (
	BinomialVar VarianceType = iota
	IdentityVar
	ConstantVar
	SquaredVar
	CubedVar
)

// NewVariance returns the variance function corresponding to the
// given type code.
func NewVariance(vartype VarianceType) *Variance {

	switch vartype {
	case BinomialVar:
		return &binomVariance
	case IdentityVar:
		return &identVariance
	case ConstantVar:
		return &constVariance
	case SquaredVar:
		return &squaredVariance
	case CubedVar:
		return &cubedVariance
	default:
		msg := fmt.Sprintf("Unknown variance function: %d\n", vartype)
		panic(msg)
	}
}

// Variance represents a GLM variance function.
type Variance struct {
	Name  string
	Var   ScalarFunc
	Deriv ScalarFunc
}

var binomVariance = Variance{
	Name:  "Binomial",
	Var:   func(mu float64) float64 { return mu * (1 - mu) },
	Deriv: func(mu float64) float64 { return 1 - 2*mu },
}

var identVariance = Variance{
	Name:  "Identity",
	Var:   func(mu float64) float64 { return mu },
	Deriv: func(float64) float64 { return 1 },
}

var constVariance = Variance{
	Name:  "Constant",
	Var:   func(float64) float64 { return 1 },
	Deriv: func(float64) float64 { return 0 },
}

var squaredVariance = Variance{
	Name:  "Squared",
	Var:   func(mu float64) float64 { return mu * mu },
	Deriv: func(mu float64) float64 { return 2 * mu },
}

var cubedVariance = Variance{
	Name:  "Cubed",
	Var:   func(mu float64) float64 { return mu * mu * mu },
	Deriv: func(mu float64) float64 { return 3 * mu * mu },
}
