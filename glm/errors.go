package glm

import (
	"errors"
	"fmt"
)

// Errors reported while constructing or fitting a GLM.  They are
// returned wrapped with context; test for them with errors.Is.
var (
	// ErrInvalidArgument is returned when data fall outside the
	// support of the family, or when the model is misconfigured.
	ErrInvalidArgument = errors.New("glm: invalid argument")

	// ErrNumericalFault is returned when the link derivative, the
	// variance function or an IRLS working weight is zero or not
	// finite for some observation.
	ErrNumericalFault = errors.New("glm: numerical fault")

	// ErrRankDeficient is returned when the weighted least squares
	// problem does not have a unique solution.
	ErrRankDeficient = errors.New("glm: design matrix is rank deficient")
)

// ObsError identifies the observation at which a fit failed.
type ObsError struct {
	// Index of the observation
	Obs int

	// Value that triggered the failure
	Value float64

	// What went wrong
	Msg string

	err error
}

func (e *ObsError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("observation %d: %v", e.Obs, e.err)
	}
	return fmt.Sprintf("%v: observation %d: %s (%g)", e.err, e.Obs, e.Msg, e.Value)
}

func (e *ObsError) Unwrap() error {
	return e.err
}

func obsError(kind error, i int, v float64, msg string) error {
	return &ObsError{Obs: i, Value: v, Msg: msg, err: kind}
}
