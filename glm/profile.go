package glm

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Bisection stops when the bracket is this small relative to its
// center.
const profileTol = 1e-6

// Limit on the number of times a bracket is widened.
const maxExpand = 200

// ScaleProfiler is used to do likelihood profile analysis on the
// scale (dispersion) parameter of a fitted GLM.  The maximum
// likelihood coefficients do not depend on the scale, so the profile
// log-likelihood is the log-likelihood at the fitted means.
type ScaleProfiler struct {

	// The profile analysis is done with respect to this fitted
	// model.
	results *GLMResults

	// The MLE of the scale parameter.
	scaleMLE float64

	// This is the largest log-likelihood value that can be
	// obtained by varying the scale parameter.
	maxLogLike float64

	// A sequence of (scale, log-likelihood) values that lie on
	// the profile curve, sorted by scale.
	Profile [][2]float64
}

// NewScaleProfiler returns a ScaleProfiler value that can be used to
// profile the scale parameter.  The family of the fit must have a
// free dispersion (Gaussian, Gamma or inverse Gaussian), and the fit
// must not be perfect.
func NewScaleProfiler(result *GLMResults) (*ScaleProfiler, error) {

	if !result.fam.EstimatesDispersion() {
		return nil, fmt.Errorf("%w: the %s log-likelihood does not depend on the scale",
			ErrInvalidArgument, result.fam.Name)
	}

	ps := &ScaleProfiler{
		results: result,
	}

	// Center point of the search
	scale := result.dispersion
	if !(scale > 0) || math.IsInf(scale, 1) {
		scale = result.deviance / result.fam.totalFreq(result.nobs)
	}
	if !(scale > 0) || math.IsInf(scale, 1) {
		return nil, fmt.Errorf("%w: the deviance %g does not determine a scale",
			ErrInvalidArgument, result.deviance)
	}

	if err := ps.getScaleMLE(scale); err != nil {
		return nil, err
	}

	return ps, nil
}

// LogLike returns the profile log likelihood value at the given scale
// parameter value.
func (ps *ScaleProfiler) LogLike(scale float64) float64 {
	rslt := ps.results
	return rslt.fam.LogLikeScale(rslt.y, rslt.mu, scale)
}

// ScaleMLE returns the maximum likelihood estimate of the scale parameter.
func (ps *ScaleProfiler) ScaleMLE() float64 {
	return ps.scaleMLE
}

// MaxLogLike returns the log-likelihood at the maximum likelihood
// estimate of the scale parameter.
func (ps *ScaleProfiler) MaxLogLike() float64 {
	return ps.maxLogLike
}

func (ps *ScaleProfiler) add(x, y float64) {
	ps.Profile = append(ps.Profile, [2]float64{x, y})
}

func (ps *ScaleProfiler) sortProfile() {
	sort.Slice(ps.Profile, func(i, j int) bool {
		return ps.Profile[i][0] < ps.Profile[j][0]
	})
}

// bisectmax finds the maximizer of f within the bracket x0 < x1 < x2,
// where f(x1) = y1 exceeds f at both ends.  The visited points are
// passed to visit.
func bisectmax(f func(float64) float64, x0, x1, x2, y1 float64, visit func(x, y float64)) (float64, float64) {

	for x2-x0 > profileTol*x1 {
		if x2-x1 > x1-x0 {
			x := (x1 + x2) / 2
			y := f(x)
			visit(x, y)
			if y > y1 {
				x0 = x1
				y1 = y
				x1 = x
			} else {
				x2 = x
			}
		} else {
			x := (x0 + x1) / 2
			y := f(x)
			visit(x, y)
			if y > y1 {
				x2 = x1
				y1 = y
				x1 = x
			} else {
				x0 = x
			}
		}
	}

	return x1, y1
}

// bisectroot finds x in [x0, x1] with f(x) = yt, given that f(x0) - yt
// and f(x1) - yt have opposite signs.
func bisectroot(f func(float64) float64, x0, x1, y0, yt float64, visit func(x, y float64)) float64 {

	for x1-x0 > profileTol*(x0+x1)/2 {
		x := (x0 + x1) / 2
		y := f(x)
		visit(x, y)
		if (y-yt)*(y0-yt) > 0 {
			x0 = x
			y0 = y
		} else {
			x1 = x
		}
	}

	return (x0 + x1) / 2
}

func (ps *ScaleProfiler) getScaleMLE(scale1 float64) error {

	ll1 := ps.LogLike(scale1)
	ps.add(scale1, ll1)

	// Upper point
	scale2 := 1.2 * scale1
	ll2 := ps.LogLike(scale2)
	ps.add(scale2, ll2)
	for k := 0; ll2 >= ll1; k++ {
		if k == maxExpand {
			return fmt.Errorf("%w: the profile log-likelihood has no maximum", ErrNumericalFault)
		}
		scale1, ll1 = scale2, ll2
		scale2 *= 1.2
		ll2 = ps.LogLike(scale2)
		ps.add(scale2, ll2)
	}

	// Lower point
	scale0 := 0.8 * scale1
	ll0 := ps.LogLike(scale0)
	ps.add(scale0, ll0)
	for k := 0; ll0 >= ll1; k++ {
		if k == maxExpand {
			return fmt.Errorf("%w: the profile log-likelihood has no maximum", ErrNumericalFault)
		}
		scale1, ll1 = scale0, ll0
		scale0 *= 0.8
		ll0 = ps.LogLike(scale0)
		ps.add(scale0, ll0)
	}

	ps.scaleMLE, ps.maxLogLike = bisectmax(ps.LogLike, scale0, scale1, scale2, ll1, ps.add)
	ps.sortProfile()

	return nil
}

// ConfInt identifies scale parameters scale1, scale2 that define a
// profile confidence interval for the scale parameter, with coverage
// probability prob.  All points on the profile likelihood visited
// during the search are added to the Profile field of the
// ScaleProfiler value.
func (ps *ScaleProfiler) ConfInt(prob float64) (float64, float64, error) {

	if !(prob > 0 && prob < 1) {
		return 0, 0, fmt.Errorf("%w: coverage probability %g is not in (0, 1)", ErrInvalidArgument, prob)
	}

	qp := distuv.ChiSquared{K: 1}.Quantile(prob) / 2
	target := ps.maxLogLike - qp

	// Left side
	scale0 := 0.9 * ps.scaleMLE
	ll0 := ps.LogLike(scale0)
	ps.add(scale0, ll0)
	for k := 0; ll0 > target; k++ {
		if k == maxExpand {
			return 0, 0, fmt.Errorf("%w: no lower confidence limit", ErrNumericalFault)
		}
		scale0 *= 0.9
		ll0 = ps.LogLike(scale0)
		ps.add(scale0, ll0)
	}
	scale0 = bisectroot(ps.LogLike, scale0, ps.scaleMLE, ll0, target, ps.add)

	// Right side
	scale1 := 1.1 * ps.scaleMLE
	ll1 := ps.LogLike(scale1)
	ps.add(scale1, ll1)
	for k := 0; ll1 > target; k++ {
		if k == maxExpand {
			return 0, 0, fmt.Errorf("%w: no upper confidence limit", ErrNumericalFault)
		}
		scale1 *= 1.1
		ll1 = ps.LogLike(scale1)
		ps.add(scale1, ll1)
	}
	scale1 = bisectroot(ps.LogLike, ps.scaleMLE, scale1, ps.maxLogLike, target, ps.add)

	ps.sortProfile()

	return scale0, scale1, nil
}
