package glm

import (
	"fmt"
	"math"
)

// ScalarFunc maps one float64 value to another.
type ScalarFunc func(float64) float64

// Link specifies a GLM link function.
type Link struct {
	Name string

	TypeCode LinkType

	// Link calculates the link function (mapping the mean value
	// to the linear predictor).
	Link ScalarFunc

	// InvLink calculates the inverse of the link function
	// (mapping the linear predictor to the mean value).
	InvLink ScalarFunc

	// Deriv calculates the derivative of the link function.
	Deriv ScalarFunc

	// Deriv2 calculates the second derivative of the link function.
	Deriv2 ScalarFunc
}

// LinkType is used to specify a GLM link function.
type LinkType uint8

// LogLink, etc. indicate the different link functions.
const (
	LogLink LinkType = iota
	IdentityLink
	LogitLink
	CloglogLink
	RecipLink
	RecipSquaredLink
)

// NewLink returns the link function corresponding to the given type
// code.
func NewLink(link LinkType) *Link {

	switch link {
	case LogLink:
		return &logLink
	case IdentityLink:
		return &idLink
	case CloglogLink:
		return &cLogLogLink
	case LogitLink:
		return &logitLink
	case RecipLink:
		return &recipLink
	case RecipSquaredLink:
		return &recipSquaredLink
	default:
		msg := fmt.Sprintf("Link unknown: %v\n", link)
		panic(msg)
	}
}

var logLink = Link{
	Name:     "Log",
	TypeCode: LogLink,
	Link:     math.Log,
	InvLink:  math.Exp,
	Deriv:    func(mu float64) float64 { return 1 / mu },
	Deriv2:   func(mu float64) float64 { return -1 / (mu * mu) },
}

var idLink = Link{
	Name:     "Identity",
	TypeCode: IdentityLink,
	Link:     func(mu float64) float64 { return mu },
	InvLink:  func(eta float64) float64 { return eta },
	Deriv:    func(float64) float64 { return 1 },
	Deriv2:   func(float64) float64 { return 0 },
}

var cLogLogLink = Link{
	Name:     "CLogLog",
	TypeCode: CloglogLink,
	Link:     cloglog,
	InvLink:  cloglogInv,
	Deriv:    cloglogDeriv,
	Deriv2:   cloglogDeriv2,
}

var logitLink = Link{
	Name:     "Logit",
	TypeCode: LogitLink,
	Link:     logit,
	InvLink:  expit,
	Deriv:    logitDeriv,
	Deriv2:   logitDeriv2,
}

var recipLink = Link{
	Name:     "Recip",
	TypeCode: RecipLink,
	Link:     genPow(-1, 1),
	InvLink:  genPow(-1, 1),
	Deriv:    genPow(-2, -1),
	Deriv2:   genPow(-3, 2),
}

var recipSquaredLink = Link{
	Name:     "RecipSquared",
	TypeCode: RecipSquaredLink,
	Link:     genPow(-2, 1),
	InvLink:  genPow(-0.5, 1),
	Deriv:    genPow(-3, -2),
	Deriv2:   genPow(-4, 6),
}

func logit(mu float64) float64 {
	return math.Log(mu / (1 - mu))
}

func expit(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}

func logitDeriv(mu float64) float64 {
	return 1 / (mu * (1 - mu))
}

func logitDeriv2(mu float64) float64 {
	v := mu * (1 - mu)
	return (2*mu - 1) / (v * v)
}

func cloglog(mu float64) float64 {
	return math.Log(-math.Log(1 - mu))
}

func cloglogInv(eta float64) float64 {
	return 1 - math.Exp(-math.Exp(eta))
}

func cloglogDeriv(mu float64) float64 {
	return 1 / ((mu - 1) * math.Log(1-mu))
}

func cloglogDeriv2(mu float64) float64 {
	f := math.Log(1 - mu)
	r := -1 / ((1 - mu) * (1 - mu) * f)
	return r * (1 + 1/f)
}

// genPow returns the function x -> s * x^p.
func genPow(p, s float64) ScalarFunc {
	return func(x float64) float64 {
		return s * math.Pow(x, p)
	}
}
