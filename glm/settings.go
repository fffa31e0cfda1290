package glm

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Settings holds the tuning parameters of a fit, typically read from
// a YAML document such as
//
//	max_iter: 50
//	tol: 1e-10
//	solver: cholesky
//	fit_method: irls
//	concurrent_irls: 5000
type Settings struct {
	MaxIter        int     `yaml:"max_iter"`
	Tol            float64 `yaml:"tol"`
	Solver         string  `yaml:"solver"`
	FitMethod      string  `yaml:"fit_method"`
	ConcurrentIRLS int     `yaml:"concurrent_irls"`
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() *Settings {
	return &Settings{
		MaxIter:        DefaultMaxIter,
		Tol:            DefaultTol,
		Solver:         QRSolver.String(),
		FitMethod:      "irls",
		ConcurrentIRLS: DefaultConcurrentIRLS,
	}
}

// LoadSettings reads settings in YAML format.  Fields that are absent
// keep their default values, unknown fields are an error.
func LoadSettings(r io.Reader) (*Settings, error) {

	s := DefaultSettings()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading settings: %w", ErrInvalidArgument, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {

	if s.MaxIter < 1 {
		return fmt.Errorf("%w: max_iter %d must be positive", ErrInvalidArgument, s.MaxIter)
	}
	if !(s.Tol > 0) {
		return fmt.Errorf("%w: tol %g must be positive", ErrInvalidArgument, s.Tol)
	}
	if _, err := ParseSolver(s.Solver); err != nil {
		return err
	}
	switch s.FitMethod {
	case "", "irls", "gradient":
	default:
		return fmt.Errorf("%w: unknown fit_method %q", ErrInvalidArgument, s.FitMethod)
	}

	return nil
}
