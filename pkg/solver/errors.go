package solver

import "errors"

var (
	ErrInfeasible   = errors.New("solver: problem is infeasible")
	ErrUnbounded    = errors.New("solver: problem is unbounded")
	ErrNumerical    = errors.New("solver: numerical failure")
	ErrNodeLimit    = errors.New("solver: branch-and-bound node limit reached")
	ErrInvalidModel = errors.New("solver: invalid model")
)
