package growth

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidParameter indicates caller misconfiguration. It is never
	// retried.
	ErrInvalidParameter = errors.New("growth: invalid parameter")

	// ErrCanceled indicates the run was interrupted before all steps completed.
	ErrCanceled = errors.New("growth: simulation canceled")
)

// InvalidParameterError names the offending parameter and value.
type InvalidParameterError struct {
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("growth: invalid %s (%v): %s", e.Param, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// Invalid builds an InvalidParameterError.
func Invalid(param string, value any, reason string) error {
	return &InvalidParameterError{Param: param, Value: value, Reason: reason}
}
