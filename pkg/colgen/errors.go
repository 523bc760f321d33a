package colgen

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for bad arguments, rejected before any solver call
	ErrInvalidInput = errors.New("invalid input")
	// ErrSolver is returned when the master LP or the pricing MILP cannot be solved to optimality
	ErrSolver = errors.New("solver error")
	// ErrState is returned when an operation is called in the wrong lifecycle state
	ErrState = errors.New("invalid state")

	ErrDuplicateColumn = fmt.Errorf("%w: column already in pool", ErrInvalidInput)
)

// RunError reports a fatal failure of a column generation run together with
// the last state that was known to be valid.
type RunError struct {
	Variant       Variant
	Iteration     int
	LastObjective float64 // NaN when the master was never solved
	Duals         DualPrices
	Err           error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s column generation failed at iteration %d (last objective %g): %v",
		e.Variant, e.Iteration, e.LastObjective, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
