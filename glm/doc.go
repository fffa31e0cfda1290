/*
Package glm implements procedures for fitting generalized linear models (GLM) in Go (golang).

A model is specified by a design matrix, a response vector and a Family,
which bundles a link function, a variance function, and the deviance and
log-likelihood of the response distribution.  The binomial, Poisson,
Gaussian, Gamma and inverse Gaussian families are provided.  Binomial
responses are proportions, with the number of trials per observation
fixed when the family is constructed:

	fam, err := glm.NewBinomialFamily(trials)
	model, err := glm.NewGLM(x, y).Family(fam).Done()
	result, err := model.Fit()
	fmt.Println(result.Summary())

Models are fit by iteratively reweighted least squares (IRLS).  Each
least squares problem is solved with a QR decomposition of the weighted
design matrix, or optionally by a Cholesky factorization of the weighted
normal equations.  A design matrix that is not of full column rank is
reported as ErrRankDeficient.  Fits that diverge or reach the iteration
limit are not errors; they are reported through the Status of the
results.

Frequency weights are set with Weight.  The dispersion is estimated for
the Gaussian, Gamma and inverse Gaussian families; Dispersion can fix it
at a known value, or estimate it for the binomial and Poisson families
(quasi-likelihood).  A ScaleProfiler finds the maximum likelihood
estimate of the dispersion and a profile likelihood confidence interval
for it.
*/
package glm
