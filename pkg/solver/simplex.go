package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Solution is an optimal point of a Model
type Solution struct {
	Objective float64   // objective value in the model's own sense
	X         []float64 // one value per model variable
	// Duals holds one price per model row (d objective / d rhs); removed and
	// dropped rows read 0. Nil for models with binary variables.
	Duals []float64
	Nodes int // branch-and-bound nodes explored, 0 for pure LPs
}

// Backend is the linear / mixed-binary solving capability consumed by the
// optimisation engine.
type Backend interface {
	Solve(m *Model) (*Solution, error)
}

// Simplex solves pure LPs with gonum's dense simplex and recovers row prices
// from an explicit dual LP. Models with binary variables are solved by
// depth-first branch and bound over a bounded-variable simplex.
type Simplex struct {
	Tol         float64 // simplex reduced-cost tolerance
	Integrality float64 // distance from an integer still treated as integral
	MaxNodes    int     // branch-and-bound node budget, 0 means unlimited
	Logger      zerolog.Logger
}

// NewSimplex creates a simplex backend with default tolerances
func NewSimplex() *Simplex {
	return &Simplex{
		Tol:         1e-10,
		Integrality: 1e-6,
		MaxNodes:    200000,
		Logger:      zerolog.Nop(),
	}
}

// Solve implements Backend
func (s *Simplex) Solve(m *Model) (*Solution, error) {
	if m.HasIntegers() {
		return s.branchAndBound(m)
	}

	lower, upper := modelBounds(m)
	return s.solveLP(m, lower, upper)
}

func modelBounds(m *Model) (lower, upper []float64) {
	lower = make([]float64, len(m.vars))
	upper = make([]float64, len(m.vars))
	for j, v := range m.vars {
		lower[j], upper[j] = v.lower, v.upper
	}
	return lower, upper
}

// solveLP solves m as an LP under the given bounds together with its row prices
func (s *Simplex) solveLP(m *Model, lower, upper []float64) (*Solution, error) {
	sf, err := toStandardForm(m, lower, upper, s.Integrality)
	if err != nil {
		return nil, err
	}

	sol := &Solution{}
	if sf.A == nil {
		// Every variable is fixed; nothing left to optimise
		sol.X = sf.toModel(nil)
		sol.Objective = m.Evaluate(sol.X)
		sol.Duals = make([]float64, len(m.rows))
		return sol, nil
	}

	primal, x, err := runSimplex(sf.c, sf.A, sf.b, s.Tol)
	if err != nil {
		return nil, err
	}

	sol.X = sf.toModel(x)
	sol.Objective = m.Evaluate(sol.X)

	y, err := s.solveDual(sf, primal)
	if err != nil {
		return nil, err
	}
	sol.Duals = make([]float64, len(m.rows))
	for r, i := range sf.rowOf {
		if i < 0 {
			continue
		}
		if m.Maximize {
			sol.Duals[r] = -y[i]
		} else {
			sol.Duals[r] = y[i]
		}
	}

	return sol, nil
}

// solveDual solves max b^T y s.t. A^T y <= c with y = p - q free, written as
//
//	minimize -b^T p + b^T q  s.t.  A^T p - A^T q + t = c,  p, q, t >= 0
//
// and checks strong duality against the primal optimum.
func (s *Simplex) solveDual(sf *standardForm, primal float64) ([]float64, error) {
	m, n := sf.A.Dims()

	c := make([]float64, 2*m+n)
	for i := 0; i < m; i++ {
		c[i] = -sf.b[i]
		c[m+i] = sf.b[i]
	}

	a := mat.NewDense(n, 2*m+n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := sf.A.At(i, j)
			if v == 0 {
				continue
			}
			a.Set(j, i, v)
			a.Set(j, m+i, -v)
		}
	}
	for j := 0; j < n; j++ {
		a.Set(j, 2*m+j, 1)
	}

	negDual, z, err := runSimplex(c, a, sf.c, s.Tol)
	if err != nil {
		return nil, fmt.Errorf("dual problem: %w", err)
	}

	y := make([]float64, m)
	for i := range y {
		y[i] = z[i] - z[m+i]
	}

	dual := floats.Dot(sf.b, y)
	if gap := math.Abs(dual + negDual); gap > 1e-6*(1+math.Abs(dual)) {
		return nil, fmt.Errorf("%w: dual objective recomputation differs by %g", ErrNumerical, gap)
	}
	if gap := math.Abs(primal - dual); gap > 1e-6*(1+math.Abs(primal)) {
		return nil, fmt.Errorf("%w: duality gap %g (primal %g, dual %g)", ErrNumerical, gap, primal, dual)
	}

	s.Logger.Trace().
		Int("rows", m).
		Int("cols", n).
		Float64("primal", primal).
		Float64("dual", dual).
		Msg("Dual prices recovered")

	return y, nil
}

// runSimplex calls gonum's simplex and maps its failures onto this package's errors
func runSimplex(c []float64, a mat.Matrix, b []float64, tol float64) (opt float64, x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: simplex panicked: %v", ErrNumerical, r)
		}
	}()

	opt, x, err = lp.Simplex(c, a, b, tol, nil)
	switch {
	case err == nil:
		return opt, x, nil
	case errors.Is(err, lp.ErrInfeasible):
		return 0, nil, ErrInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return 0, nil, ErrUnbounded
	default:
		return 0, nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}
}
