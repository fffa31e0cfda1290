package glm

import (
	"fmt"
	"math"
)

// FamilyType is the type of GLM family used in a model.
type FamilyType uint8

// BinomialFamily, ... are families for a GLM.
const (
	BinomialFamily FamilyType = iota
	PoissonFamily
	GaussianFamily
	GammaFamily
	InvGaussianFamily
)

func (ft FamilyType) String() string {
	switch ft {
	case BinomialFamily:
		return "Binomial"
	case PoissonFamily:
		return "Poisson"
	case GaussianFamily:
		return "Gaussian"
	case GammaFamily:
		return "Gamma"
	case InvGaussianFamily:
		return "InvGaussian"
	default:
		return fmt.Sprintf("FamilyType(%d)", uint8(ft))
	}
}

// Family represents a generalized linear model family: a link
// function, a variance function, and the deviance and likelihood of
// the corresponding distribution.  A Family is read-only once it has
// been constructed, and may be shared between fits.
type Family struct {

	// The name of the family
	Name string

	// The numeric code for the family
	TypeCode FamilyType

	// The link in use by the family
	link *Link

	// The variance function of the family
	vari *Variance

	// The names of valid links for this family.  The first listed
	// link is the canonical link.
	validLinks []LinkType

	// Starting mean for an observed response, fails if the
	// response is outside the support of the family.
	mustart func(y float64) (float64, error)

	// Deviance contribution of one observation with prior weight w
	unitDev func(y, mu, w float64) float64

	// Log-likelihood contribution of one observation with prior
	// weight w, at the given dispersion.
	unitLogLike func(y, mu, w, scale float64) float64

	// Fixed per-observation prior weights (binomial trial
	// counts).  If nil, all weights are 1.
	weights []float64

	// Frequency weights, set from GLM.Weight.  If nil, all
	// weights are 1.
	freq []float64

	// If true the dispersion is estimated, otherwise it is 1.
	freeScale bool
}

// NewFamily returns a family object of the given type, using its
// canonical link.  A binomial family obtained this way has one trial
// per observation; use NewBinomialFamily for other trial counts.
func NewFamily(fam FamilyType) *Family {

	var f Family
	switch fam {
	case BinomialFamily:
		f = binomial
	case PoissonFamily:
		f = poisson
	case GaussianFamily:
		f = gaussian
	case GammaFamily:
		f = gamma
	case InvGaussianFamily:
		f = invGaussian
	default:
		msg := fmt.Sprintf("Unknown family: %v\n", fam)
		panic(msg)
	}

	return &f
}

// NewBinomialFamily returns a binomial family with the logit link.
// The response for observation i is the proportion of successes out
// of n[i] trials.  The trial counts are copied.
func NewBinomialFamily(n []int) (*Family, error) {

	w := make([]float64, len(n))
	for i, m := range n {
		if m < 0 {
			return nil, fmt.Errorf("%w: trial count %d for observation %d is negative",
				ErrInvalidArgument, m, i)
		}
		w[i] = float64(m)
	}

	f := binomial
	f.weights = w
	return &f, nil
}

// NewPoissonFamily returns a Poisson family with the log link.
func NewPoissonFamily() *Family {
	return NewFamily(PoissonFamily)
}

// NewGaussianFamily returns a Gaussian family with the identity link.
func NewGaussianFamily() *Family {
	return NewFamily(GaussianFamily)
}

// NewGammaFamily returns a Gamma family with the reciprocal link.
func NewGammaFamily() *Family {
	return NewFamily(GammaFamily)
}

// NewInvGaussianFamily returns an inverse Gaussian family with the
// reciprocal squared link.
func NewInvGaussianFamily() *Family {
	return NewFamily(InvGaussianFamily)
}

var binomial = Family{
	Name:        "Binomial",
	TypeCode:    BinomialFamily,
	link:        &logitLink,
	vari:        &binomVariance,
	validLinks:  []LinkType{LogitLink, CloglogLink, LogLink, IdentityLink},
	mustart:     binomialMuStart,
	unitDev:     binomialUnitDev,
	unitLogLike: binomialUnitLogLike,
}

var poisson = Family{
	Name:        "Poisson",
	TypeCode:    PoissonFamily,
	link:        &logLink,
	vari:        &identVariance,
	validLinks:  []LinkType{LogLink, IdentityLink},
	mustart:     poissonMuStart,
	unitDev:     poissonUnitDev,
	unitLogLike: poissonUnitLogLike,
}

var gaussian = Family{
	Name:        "Gaussian",
	TypeCode:    GaussianFamily,
	link:        &idLink,
	vari:        &constVariance,
	validLinks:  []LinkType{IdentityLink, LogLink, RecipLink},
	mustart:     func(y float64) (float64, error) { return y, nil },
	unitDev:     gaussianUnitDev,
	unitLogLike: gaussianUnitLogLike,
	freeScale:   true,
}

var gamma = Family{
	Name:        "Gamma",
	TypeCode:    GammaFamily,
	link:        &recipLink,
	vari:        &squaredVariance,
	validLinks:  []LinkType{RecipLink, LogLink, IdentityLink},
	mustart:     positiveMuStart,
	unitDev:     gammaUnitDev,
	unitLogLike: gammaUnitLogLike,
	freeScale:   true,
}

var invGaussian = Family{
	Name:        "InvGaussian",
	TypeCode:    InvGaussianFamily,
	link:        &recipSquaredLink,
	vari:        &cubedVariance,
	validLinks:  []LinkType{RecipSquaredLink, RecipLink, LogLink, IdentityLink},
	mustart:     positiveMuStart,
	unitDev:     invGaussianUnitDev,
	unitLogLike: invGaussianUnitLogLike,
	freeScale:   true,
}

// WithLink returns a copy of the family that uses the given link
// function.  The link must be one of the valid links for the family.
func (fam *Family) WithLink(link *Link) (*Family, error) {
	if !fam.IsValidLink(link) {
		return nil, fmt.Errorf("%w: link %s is not valid for the %s family",
			ErrInvalidArgument, link.Name, fam.Name)
	}
	f := *fam
	f.link = link
	return &f, nil
}

// IsValidLink returns true or false based on whether the link is
// valid for the family.
func (fam *Family) IsValidLink(link *Link) bool {

	if link == nil {
		return false
	}
	for _, q := range fam.validLinks {
		if link.TypeCode == q {
			return true
		}
	}

	return false
}

// LinkFunc returns the link function used by the family.
func (fam *Family) LinkFunc() *Link {
	return fam.link
}

// VarFunc returns the variance function of the family.
func (fam *Family) VarFunc() *Variance {
	return fam.vari
}

// Link maps a mean value to the linear predictor scale.
func (fam *Family) Link(mu float64) float64 {
	return fam.link.Link(mu)
}

// InvLink maps a linear predictor value to the mean scale.
func (fam *Family) InvLink(eta float64) float64 {
	return fam.link.InvLink(eta)
}

// DLink returns the derivative of the link function at mu.
func (fam *Family) DLink(mu float64) float64 {
	return fam.link.Deriv(mu)
}

// Variance returns the variance of the response at mean mu, up to
// the dispersion.
func (fam *Family) Variance(mu float64) float64 {
	return fam.vari.Var(mu)
}

// MuStart returns a starting value of the mean for an observed
// response y.  An error wrapping ErrInvalidArgument is returned if y
// is outside the support of the family.
func (fam *Family) MuStart(y float64) (float64, error) {
	return fam.mustart(y)
}

// PriorWeight returns the fixed weight of observation i, which is the
// number of trials for the binomial family and 1 otherwise, times the
// frequency weight of the observation if there is one.
func (fam *Family) PriorWeight(i int) float64 {
	return fam.trials(i) * fam.freqWeight(i)
}

func (fam *Family) trials(i int) float64 {
	if fam.weights == nil {
		return 1
	}
	return fam.weights[i]
}

func (fam *Family) freqWeight(i int) float64 {
	if fam.freq == nil {
		return 1
	}
	return fam.freq[i]
}

// withFreqWeights returns a copy of the family in which observation i
// counts as w[i] replicates.
func (fam *Family) withFreqWeights(w []float64) *Family {
	f := *fam
	f.freq = w
	return &f
}

// totalFreq returns the sum of the frequency weights of n
// observations.
func (fam *Family) totalFreq(n int) float64 {
	if fam.freq == nil {
		return float64(n)
	}
	var ws float64
	for _, w := range fam.freq {
		ws += w
	}
	return ws
}

// EstimatesDispersion reports whether the dispersion of the family is
// estimated from the data (true) or fixed at 1 (false).
func (fam *Family) EstimatesDispersion() bool {
	return fam.freeScale
}

// Validate checks that the fixed parameters of the family are
// compatible with a data set of nobs observations.
func (fam *Family) Validate(nobs int) error {
	if fam.weights != nil && len(fam.weights) != nobs {
		return fmt.Errorf("%w: %s family has %d trial counts, data have %d observations",
			ErrInvalidArgument, fam.Name, len(fam.weights), nobs)
	}
	if fam.freq != nil && len(fam.freq) != nobs {
		return fmt.Errorf("%w: %d frequency weights, data have %d observations",
			ErrInvalidArgument, len(fam.freq), nobs)
	}
	return nil
}

// UnitDeviance returns the deviance contribution of observation i.
func (fam *Family) UnitDeviance(i int, y, mu float64) float64 {
	return fam.unitDev(y, mu, fam.PriorWeight(i))
}

// Deviance returns the total deviance and the vector of deviance
// residuals.  The squared residuals sum to the total.
func (fam *Family) Deviance(y, mu []float64) (float64, []float64) {
	resid := make([]float64, len(y))
	dev := fam.DevianceTo(resid, y, mu)
	return dev, resid
}

// DevianceTo returns the total deviance, and stores the deviance
// residuals in resid if it is not nil.
func (fam *Family) DevianceTo(resid, y, mu []float64) float64 {

	var dev float64
	for i := range y {
		d := fam.UnitDeviance(i, y[i], mu[i])
		dev += d
		if resid != nil {
			resid[i] = signedRoot(d, y[i]-mu[i])
		}
	}

	return dev
}

// NullDeviance returns the deviance of the model in which every
// observation has the mean muGlobal.
func (fam *Family) NullDeviance(y []float64, muGlobal float64) float64 {

	var dev float64
	for i := range y {
		dev += fam.UnitDeviance(i, y[i], muGlobal)
	}

	return dev
}

// LogLike returns the log-likelihood of the data at the given means.
// For families with a free dispersion parameter, the dispersion is
// set to the deviance divided by the total weight.  This is the
// maximum likelihood value for the Gaussian and inverse Gaussian
// families and an approximation to it for the Gamma family.
func (fam *Family) LogLike(y, mu []float64) float64 {

	scale := 1.0
	if fam.freeScale {
		scale = fam.DevianceTo(nil, y, mu) / fam.totalFreq(len(y))
		if scale == 0 {
			return math.Inf(1)
		}
	}

	return fam.LogLikeScale(y, mu, scale)
}

// LogLikeScale returns the log-likelihood of the data at the given
// means and dispersion.  The binomial and Poisson log-likelihoods do
// not depend on the dispersion.
func (fam *Family) LogLikeScale(y, mu []float64, scale float64) float64 {

	var ll float64
	for i := range y {
		ll += fam.freqWeight(i) * fam.unitLogLike(y[i], mu[i], fam.trials(i), scale)
	}

	return ll
}

func signedRoot(d, r float64) float64 {
	switch {
	case r > 0:
		return math.Sqrt(d)
	case r < 0:
		return -math.Sqrt(d)
	default:
		return 0
	}
}

// xlogy returns x*log(y/z), with the convention 0*log(0) = 0.
func xlogy(x, y, z float64) float64 {
	if x == 0 {
		return 0
	}
	return x * math.Log(y/z)
}

func lgamma(x float64) float64 {
	u, _ := math.Lgamma(x)
	return u
}

func binomialMuStart(y float64) (float64, error) {
	if !(y >= 0 && y <= 1) {
		return 0, fmt.Errorf("%w: binomial response %g is outside [0, 1]", ErrInvalidArgument, y)
	}
	switch y {
	case 0:
		return 0.1, nil
	case 1:
		return 0.9, nil
	default:
		return y, nil
	}
}

func poissonMuStart(y float64) (float64, error) {
	if !(y >= 0) || math.IsInf(y, 1) {
		return 0, fmt.Errorf("%w: Poisson response %g is negative or not finite", ErrInvalidArgument, y)
	}
	return y + 0.1, nil
}

func positiveMuStart(y float64) (float64, error) {
	if !(y > 0) || math.IsInf(y, 1) {
		return 0, fmt.Errorf("%w: response %g is not positive and finite", ErrInvalidArgument, y)
	}
	return y, nil
}

// The y=0 and y=1 terms are taken at their limits rather than
// evaluated.
func binomialUnitDev(y, mu, n float64) float64 {
	d := 2 * n * (xlogy(y, y, mu) + xlogy(1-y, 1-y, 1-mu))
	if d < 0 {
		// Rounding when y and mu are nearly equal
		d = 0
	}
	return d
}

func binomialUnitLogLike(y, mu, n, _ float64) float64 {
	k := math.Round(n * y)
	lc := lgamma(n+1) - lgamma(k+1) - lgamma(n-k+1)
	var ll float64
	if y > 0 {
		ll += n * y * math.Log(mu)
	}
	if y < 1 {
		ll += n * (1 - y) * math.Log(1-mu)
	}
	return lc + ll
}

func poissonUnitDev(y, mu, w float64) float64 {
	d := 2 * w * (xlogy(y, y, mu) - (y - mu))
	if d < 0 {
		d = 0
	}
	return d
}

func poissonUnitLogLike(y, mu, w, _ float64) float64 {
	return w * (xlogy(y, mu, 1) - mu - lgamma(y+1))
}

func gaussianUnitDev(y, mu, w float64) float64 {
	r := y - mu
	return w * r * r
}

func gaussianUnitLogLike(y, mu, w, scale float64) float64 {
	r := y - mu
	return -w * (math.Log(2*math.Pi*scale) + r*r/scale) / 2
}

func gammaUnitDev(y, mu, w float64) float64 {
	d := 2 * w * (-math.Log(y/mu) + (y-mu)/mu)
	if d < 0 {
		d = 0
	}
	return d
}

// Gamma density with shape 1/scale and scale mu*scale.
func gammaUnitLogLike(y, mu, w, scale float64) float64 {
	k := 1 / scale
	theta := mu * scale
	return w * (-lgamma(k) - k*math.Log(theta) + (k-1)*math.Log(y) - y/theta)
}

func invGaussianUnitDev(y, mu, w float64) float64 {
	r := y - mu
	return w * r * r / (y * mu * mu)
}

func invGaussianUnitLogLike(y, mu, w, scale float64) float64 {
	r := y - mu
	return -w * (math.Log(2*math.Pi*scale*y*y*y) + r*r/(scale*y*mu*mu)) / 2
}
